package protocol

import (
	"encoding/binary"
	"fmt"
)

// Serializes header fields in wire order
func (header Header) MarshalBinary() (data []byte, err error) {
	data = header.appendTo(make([]byte, 0, HeaderLen))
	return
}

func (header Header) appendTo(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint16(buf, header.Magic)
	buf = binary.BigEndian.AppendUint16(buf, header.Length)
	buf = binary.BigEndian.AppendUint32(buf, header.Reserved)
	buf = binary.BigEndian.AppendUint32(buf, header.DeviceID)
	buf = binary.BigEndian.AppendUint32(buf, header.Stamp)
	return buf
}

// Reads the fixed header from the front of data
func ParseHeader(data []byte) (header Header, err error) {
	if len(data) < HeaderLen {
		err = fmt.Errorf("need %d bytes for header, have %d", HeaderLen, len(data))
		return
	}

	header.Magic = binary.BigEndian.Uint16(data[0:2])
	header.Length = binary.BigEndian.Uint16(data[2:4])
	header.Reserved = binary.BigEndian.Uint32(data[4:8])
	header.DeviceID = binary.BigEndian.Uint32(data[8:12])
	header.Stamp = binary.BigEndian.Uint32(data[12:16])

	if header.Magic != Magic {
		err = fmt.Errorf("invalid magic 0x%04x", header.Magic)
		return
	}
	return
}

// True iff the declared total length marks a hello packet
func IsHello(totalLength int) bool {
	return totalLength == HelloLen
}
