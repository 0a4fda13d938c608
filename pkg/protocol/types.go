package protocol

import (
	"encoding/json"
	"mibridge/internal/crypto"
)

// Fixed 16 byte header, all fields big-endian on the wire
type Header struct {
	Magic    uint16
	Length   uint16 // Total length including header, checksum, and payload
	Reserved uint32
	DeviceID uint32
	Stamp    uint32 // Device uptime in seconds
}

// Parsed datagram. Either *Hello or *Signed, decided once from the declared length.
type Packet interface {
	PacketHeader() Header
	isPacket()
}

// Unsigned 32 byte probe or acknowledgement
type Hello struct {
	Header
	Checksum [16]byte // All 0xFF on probe, zero on ack, never validated
}

// Checksummed packet carrying an encrypted JSON payload
type Signed struct {
	Header
	Checksum       [16]byte
	ChecksumValid  bool // False is a signal only, payload is still decoded
	LengthMismatch bool // Declared length disagreed with the received buffer
	Ciphertext     []byte
	Payload        crypto.Plaintext
}

func (hello *Hello) PacketHeader() Header   { return hello.Header }
func (signed *Signed) PacketHeader() Header { return signed.Header }
func (*Hello) isPacket()                    {}
func (*Signed) isPacket()                   {}

// Request sent to a device (or received by the push server)
type Command struct {
	ID     int    `json:"id"`
	Method string `json:"method,omitempty"`
	Params any    `json:"params,omitempty"`
}

// Inbound command with the parameters left undecoded
type RawCommand struct {
	ID     int             `json:"id"`
	Method *string         `json:"method"`
	Params json.RawMessage `json:"params,omitempty"`
}

// Reply carrying either a result or an error
type Response struct {
	ID     int             `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError  `json:"error,omitempty"`
}

type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
