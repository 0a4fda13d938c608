package device

import (
	"errors"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/store"
	"net"
	"sync"
	"time"
)

var (
	ErrHandshakeTimeout = errors.New("no hello acknowledgement from device")
	ErrCommandTimeout   = errors.New("no response from device")

	errAttemptTimeout = errors.New("attempt timed out")
)

// Device reported failure in the error member of a response
type DeviceError struct {
	Method  string
	Code    int
	Message string
}

func (deviceErr *DeviceError) Error() string {
	return fmt.Sprintf("device rejected %s: code %d: %s", deviceErr.Method, deviceErr.Code, deviceErr.Message)
}

type State int

const (
	Unidentified State = iota
	Identified
)

func (state State) String() string {
	switch state {
	case Identified:
		return "identified"
	default:
		return "unidentified"
	}
}

// Values learned from the hello acknowledgement
type Identity struct {
	DeviceID  uint32
	Stamp     uint32    // Device clock reported in its last packet
	LearnedAt time.Time // Local time the stamp was received
}

// Device clock estimate for an outgoing packet
func (identity Identity) StampAt(now time.Time) uint32 {
	elapsed := now.Sub(identity.LearnedAt) / time.Second
	if elapsed < 0 {
		elapsed = 0
	}
	return identity.Stamp + uint32(elapsed) + 1
}

type Config struct {
	Address string // IP or hostname
	Port    int    // Defaults to the miIO device port
	Token   crypto.Token
	Timeout time.Duration
	Retries int
	IDs     store.RequestIDs // Optional request id persistence
}

// Stop-and-wait command session with one device
type Session struct {
	mutex    sync.Mutex // One exchange in flight
	address  *net.UDPAddr
	key      string // Request id persistence key
	token    crypto.Token
	timeout  time.Duration
	retries  int
	conn     *net.UDPConn
	state    State
	identity Identity // Valid only while Identified
	lastID   int
	ids      store.RequestIDs
}

// Collected from a broadcast hello
type Discovered struct {
	Address  string
	DeviceID uint32
	Stamp    uint32
	Token    crypto.Token // Only set by unprovisioned devices that echo their token
}

// Device mode changes are rejected with a fixed code while powered off.
// Applies once per call: power on, then repeat the original command.
type PowerOnQuirk struct {
	Code        int
	Methods     []string
	PowerMethod string
	PowerParams any
}

// Service/property pair on MIoT devices
type PropertyRef struct {
	SIID int `json:"siid"`
	PIID int `json:"piid"`
}

// One entry of a get_properties reply
type MIoTProperty struct {
	DID   string `json:"did"`
	SIID  int    `json:"siid"`
	PIID  int    `json:"piid"`
	Code  int    `json:"code"`
	Value any    `json:"value,omitempty"`
}

// Subset of the miIO.info reply
type Info struct {
	Model           string         `json:"model"`
	FirmwareVersion string         `json:"fw_ver"`
	HardwareVersion string         `json:"hw_ver"`
	MAC             string         `json:"mac"`
	Token           string         `json:"token,omitempty"`
	AccessPoint     map[string]any `json:"ap,omitempty"`
	NetIF           map[string]any `json:"netif,omitempty"`
	Raw             map[string]any `json:"-"`
}
