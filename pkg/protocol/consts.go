package protocol

const (
	Magic uint16 = 0x2131

	// Fixed field lengths
	lenMagic    int = 2
	lenLength   int = 2
	lenReserved int = 4
	lenDeviceID int = 4
	lenStamp    int = 4

	HeaderLen   int = lenMagic + lenLength + lenReserved + lenDeviceID + lenStamp
	ChecksumLen int = 16
	HelloLen    int = HeaderLen + ChecksumLen // Any packet of exactly this length is a hello
	PayloadOff  int = HelloLen

	// Largest value the length field can hold
	MaxPacketLen int = 1<<(8*lenLength) - 1

	probeReserved uint32 = 0xFFFFFFFF
	probeFill     byte   = 0xFF

	// Server side response codes
	ErrCodeInvalidRequest    int = -1
	ErrCodeUnsupportedMethod int = -2
	ErrCodeExecutionFailed   int = -3
)
