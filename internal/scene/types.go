package scene

// What a source device should report to the push server
type EventInfo struct {
	Action       string // Name the push server receives, e.g. "motion"
	SourceID     string // Source id as known to the gateway, e.g. "lumi.158d000a1b2c3d"
	SourceModel  string // e.g. "lumi.sensor_motion.v2"
	Event        string // Event name in the source model, e.g. "motion"
	Extra        string // Opaque trigger extra field
	TriggerValue any    // Optional, omitted when nil
	TriggerToken string
	CommandExtra string
}

// Push server identity inserted in the target clause
type Target struct {
	DeviceID uint32
	Model    string
	IP       string
	Token    string // Hex token of the push server
}

type Trigger struct {
	DID      string   `json:"did"`
	Extra    string   `json:"extra"`
	Key      string   `json:"key"`
	Model    string   `json:"model"`
	Src      string   `json:"src"`
	Timespan []string `json:"timespan"`
	Token    string   `json:"token"`
	Value    any      `json:"value,omitempty"`
}

type Action struct {
	Command string `json:"command"`
	DID     string `json:"did"`
	Extra   string `json:"extra"`
	ID      int    `json:"id"`
	IP      string `json:"ip"`
	Model   string `json:"model"`
	Token   string `json:"token"`
	Value   string `json:"value"`
}

// Scene definition uploaded to the gateway
type Descriptor struct {
	EventID string
	Magic   int
	Trigger Trigger
	Target  Action
}
