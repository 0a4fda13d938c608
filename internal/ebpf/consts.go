package ebpf

const (
	FilterName string = "miio_magic"

	// Socket filters on UDP sockets see the packet from the UDP header
	udpHeaderLen int32 = 8

	keepPacket int32 = -1
	dropPacket int32 = 0

	dropLabel string = "drop"
)
