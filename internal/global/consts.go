package global

import "time"

const (
	// Descriptive Names for available verbosity levels
	VerbosityNone int = iota
	VerbosityStandard
	VerbosityProgress
	VerbosityData
	VerbosityFullData
	VerbosityDebug

	// Descriptive names for available severity levels
	ErrorLog string = "Error"
	WarnLog  string = "Warn"
	InfoLog  string = "Info"
)

const (
	ProgVersion  string = "v0.3.1"
	ProgBaseName string = "mibridge"

	// Context keys
	LoggerKey  CtxKey = "logger"  // Event queue (mostly for variable log verbosity handling)
	LogTagsKey CtxKey = "logtags" // List of tags in order of broad->specific appended at various parts of the program
	LogPeerKey CtxKey = "logpeer" // Remote device address the current work is for

	DefaultConfigPath string = "/etc/mibridge.json"
	DefaultBinaryPath string = "/usr/local/bin/mibridge"
	DefaultUnitPath   string = "/etc/systemd/system/mibridge.service"

	// miIO defaults
	DevicePort          int           = 54321 // Port every miIO device listens on
	DefaultTimeout      time.Duration = 5 * time.Second
	DefaultRetries      int           = 3
	DefaultMaxProps     int           = 15 // Properties per get_prop(erties) request
	MaxRequestID        int           = 9999
	RetryRequestIDJump  int           = 100 // Devices drop repeated ids, so retries skip ahead
	DiscoveryTimeout    time.Duration = 5 * time.Second
	MaxDatagramSize     int           = 4096
	BroadcastAddress    string        = "255.255.255.255"
	MaxSceneCommandLen  int           = 49 // Longer target commands are not triggered by some gateways
	DefaultSourcePrefix string        = "lumi."

	// Push server identity
	DefaultServerDeviceID uint32 = 120009025
	DefaultServerModel    string = "chuangmi.plug.v3"
	DefaultServerAddress  string = "0.0.0.0"

	// Event queue
	DefaultMinQueueSize int = 256
	DefaultMaxQueueSize int = 8192

	// Timeout values
	ServeShutdownTimeout time.Duration = 20 * time.Second
	SinkDialTimeout      time.Duration = 3 * time.Second

	// Metric HTTP server
	HTTPListenPort   int           = 10000 + DevicePort // Default listen port
	HTTPListenAddr   string        = "localhost"        // Metric queries only exposed to local machine
	HTTPReadTimeout  time.Duration = 30 * time.Second
	HTTPWriteTimeout time.Duration = 10 * time.Second
	HTTPIdleTimeout  time.Duration = 180 * time.Second
	DataPath         string        = "/data/"
	DiscoveryPath    string        = "/discover/"
	DevicesPath      string        = "/devices"
	EventsPath       string        = "/events"
	WSWriteTimeout   time.Duration = 5 * time.Second
	WSClientBuffer   int           = 64 // Events buffered per websocket client before it is dropped

	// Namespacing Name Components
	NSMetric    string = "Metrics"
	NSMetricSrv string = "Server"
	NSTest      string = "Test"
	NSCLI       string = "CLI"
	NSBridge    string = "Bridge"
	NSPush      string = "PushServer"
	NSDevice    string = "Device"
	NSScene     string = "Scene"
	NSListen    string = "Listener"
	NSDispatch  string = "Dispatch"
	NSEvents    string = "Events"
	NSWatcher   string = "Watcher"
	NSCrypto    string = "Crypto"
	NSFilter    string = "Filter"
	NSoBeats    string = "Beats"
	NSoRedis    string = "Redis"
	NSoSocket   string = "Websocket"
)
