package protocol

import "bytes"

// Fixed discovery probe: magic, length 32, then 28 bytes of 0xFF
func HelloProbe() (packet []byte) {
	header := Header{
		Magic:    Magic,
		Length:   uint16(HelloLen),
		Reserved: probeReserved,
		DeviceID: 0xFFFFFFFF,
		Stamp:    0xFFFFFFFF,
	}
	var checksum [16]byte
	for i := range checksum {
		checksum[i] = probeFill
	}
	packet = PackHello(header, checksum)
	return
}

// Acknowledgement carrying a device identifier and stamp with a zero checksum
func HelloAck(deviceID uint32, stamp uint32) (packet []byte) {
	header := Header{
		Magic:    Magic,
		Length:   uint16(HelloLen),
		DeviceID: deviceID,
		Stamp:    stamp,
	}
	packet = PackHello(header, [16]byte{})
	return
}

// Writes a hello packet with the checksum bytes verbatim
func PackHello(header Header, checksum [16]byte) (packet []byte) {
	header.Magic = Magic
	header.Length = uint16(HelloLen)

	packet = make([]byte, 0, HelloLen)
	packet = header.appendTo(packet)
	packet = append(packet, checksum[:]...)
	return
}

// Exact match against the fixed probe bytes
func IsHelloProbe(data []byte) bool {
	return bytes.Equal(data, HelloProbe())
}

// Probe packets carry the all 0xFF reserved marker
func (hello *Hello) IsProbe() bool {
	return hello.Reserved == probeReserved
}
