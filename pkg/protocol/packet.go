package protocol

import (
	"bytes"
	"context"
	"crypto/subtle"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/crypto/hash"
)

// Builds a signed packet. The document is encrypted first so the total length
// is known before the header and checksum are written. A nil document yields
// a hello with a zero checksum.
func Pack(header Header, token []byte, document any) (packet []byte, err error) {
	err = crypto.Token(token).Validate()
	if err != nil {
		return
	}

	if document == nil {
		packet = PackHello(header, [16]byte{})
		return
	}

	ciphertext, err := crypto.EncodePayload(document, token)
	if err != nil {
		err = fmt.Errorf("failed to encode payload: %w", err)
		return
	}

	total := HelloLen + len(ciphertext)
	if total > MaxPacketLen {
		err = fmt.Errorf("packet length %d exceeds maximum %d", total, MaxPacketLen)
		return
	}

	header.Magic = Magic
	header.Length = uint16(total)

	headerBytes := header.appendTo(make([]byte, 0, HeaderLen))
	checksum := Checksum(headerBytes, token, ciphertext)

	packet = make([]byte, 0, total)
	packet = append(packet, headerBytes...)
	packet = append(packet, checksum...)
	packet = append(packet, ciphertext...)
	return
}

// MD5(header || token || ciphertext)
func Checksum(header []byte, token []byte, ciphertext []byte) (sum []byte) {
	sum = hash.MD5(header, token, ciphertext)
	return
}

// Parses a datagram into *Hello or *Signed.
// Length and checksum disagreements are recorded, not rejected.
// A payload that does not decrypt is kept raw in Payload.
func Unpack(ctx context.Context, data []byte, token []byte) (packet Packet, err error) {
	err = crypto.Token(token).Validate()
	if err != nil {
		return
	}

	header, err := ParseHeader(data)
	if err != nil {
		return
	}
	if len(data) < HelloLen {
		err = fmt.Errorf("packet of %d bytes is shorter than the %d byte frame", len(data), HelloLen)
		return
	}

	if IsHello(int(header.Length)) {
		hello := &Hello{Header: header}
		copy(hello.Checksum[:], data[HeaderLen:HelloLen])
		packet = hello
		return
	}

	signed := &Signed{Header: header}
	copy(signed.Checksum[:], data[HeaderLen:HelloLen])

	// Best-effort: trust the buffer when the declared length does not fit it
	end := int(header.Length)
	if end != len(data) {
		signed.LengthMismatch = true
		if end < HelloLen || end > len(data) {
			end = len(data)
		}
	}
	signed.Ciphertext = bytes.Clone(data[PayloadOff:end])

	expected := Checksum(data[:HeaderLen], token, signed.Ciphertext)
	signed.ChecksumValid = subtle.ConstantTimeCompare(expected, signed.Checksum[:]) == 1

	if len(signed.Ciphertext) > 0 {
		signed.Payload, err = crypto.DecodePayload(ctx, signed.Ciphertext, token)
		if err != nil {
			err = fmt.Errorf("failed to decode payload: %w", err)
			return
		}
	}

	packet = signed
	return
}
