package global

type CommandSet struct {
	CommandName     string                 // Exact name of cli command
	UsageOption     string                 // Expected command value in usage top line
	Description     string                 // Short text displayed on parent command
	FullDescription string                 // Long text displayed on current command
	ChildCommands   map[string]*CommandSet // Available subcommands
}

type CtxKey string

// Bridge Daemon

type BridgeConfig struct {
	Server  ServerConf   `json:"server"`
	Devices []DeviceConf `json:"devices"`
	Sinks   SinkConf     `json:"sinks"`
	Metrics MetricConf   `json:"metrics"`
	Logging Logging      `json:"logging"`
}

type ServerConf struct {
	Address      string `json:"address,omitempty"`
	Port         int    `json:"port,omitempty"`
	DeviceID     uint32 `json:"deviceId,omitempty"`
	Model        string `json:"model,omitempty"`
	Token        string `json:"token,omitempty"` // Hex, random when empty
	SourcePrefix string `json:"sourcePrefix,omitempty"`
	KernelFilter bool   `json:"kernelFilter"`
}

type DeviceConf struct {
	Address string      `json:"address"`
	Port    int         `json:"port,omitempty"`
	Token   string      `json:"token"`
	Timeout string      `json:"timeout,omitempty"`
	Retries int         `json:"retries,omitempty"`
	Events  []EventConf `json:"events"`
}

type EventConf struct {
	Action      string `json:"action"`
	SourceID    string `json:"sourceId"`
	SourceModel string `json:"sourceModel"`
	Event       string `json:"event"`
	Extra       string `json:"extra,omitempty"`
	Value       any    `json:"value,omitempty"`
}

type SinkConf struct {
	Beats     string `json:"beatsAddress,omitempty"`
	Redis     string `json:"redisAddress,omitempty"`
	RedisDB   int    `json:"redisDB,omitempty"`
	Channel   string `json:"redisChannel,omitempty"`
	Stdout    bool   `json:"stdout"`
	QueueSize int    `json:"queueSize,omitempty"`
}

type MetricConf struct {
	Enabled          bool     `json:"enabled"`
	PollingIntervals []string `json:"pollingIntervals"`
	RetentionPeriod  string   `json:"inMemoryRetentionPeriod"`
	ExternalAccess   bool     `json:"externalAccessEnabled"`
	Port             int      `json:"port,omitempty"`
}

type Logging struct {
	Level int `json:"logLevel"`
}
