// Scene descriptors that make a gateway forward events to the push server
package scene

import (
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/crypto/random"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
	"strconv"
	"strings"
	"sync/atomic"
	"unicode/utf8"
)

const (
	// Prefix of scene event ids, followed by a counter
	EventIDPrefix string = "x.scene."
	firstEventID  int64  = 1000000

	sceneVersion string = "1.0"
	triggerIndex string = "0"
	triggerSrc   string = "device"

	// Fixed id gateways expect in the data frame
	DataToken int = 29576

	magicMin int = 1000000000
	magicMax int = 9999999999
)

// Every day, all day
var everyDay = []string{"0 0 * * 0,1,2,3,4,5,6", "0 0 * * 0,1,2,3,4,5,6"}

var eventCounter atomic.Int64

func init() {
	eventCounter.Store(firstEventID)
}

// Allocates the next event id. Monotonic for the life of the process.
func NextEventID() string {
	return EventIDPrefix + strconv.FormatInt(eventCounter.Add(1), 10)
}

// Method the gateway sends to the push server when the event fires.
// Dots in the source id are sent as underscores.
func Command(model string, action string, sourceID string) string {
	return fmt.Sprintf("%s.%s:%s", model, action, strings.ReplaceAll(sourceID, ".", "_"))
}

// Builds the descriptor. Overlong commands are logged, never rejected.
func Build(ctx context.Context, eventID string, info EventInfo, target Target) (descriptor Descriptor, err error) {
	ctx = logctx.AppendCtxTag(ctx, global.NSScene)

	command := Command(target.Model, info.Action, info.SourceID)
	length := utf8.RuneCountInString(command)
	if length > global.MaxSceneCommandLen {
		logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
			"command %q is %d characters, gateways may ignore commands longer than %d\n",
			command, length, global.MaxSceneCommandLen)
	}

	magic, err := random.NumberInRange(magicMin, magicMax)
	if err != nil {
		err = fmt.Errorf("failed to generate scene magic: %w", err)
		return
	}

	descriptor = Descriptor{
		EventID: eventID,
		Magic:   magic,
		Trigger: Trigger{
			DID:      info.SourceID,
			Extra:    info.Extra,
			Key:      fmt.Sprintf("event.%s.%s", info.SourceModel, info.Event),
			Model:    info.SourceModel,
			Src:      triggerSrc,
			Timespan: everyDay,
			Token:    info.TriggerToken,
			Value:    info.TriggerValue,
		},
		Target: Action{
			Command: command,
			DID:     strconv.FormatUint(uint64(target.DeviceID), 10),
			Extra:   info.CommandExtra,
			ID:      0,
			IP:      target.IP,
			Model:   target.Model,
			Token:   target.Token,
			Value:   "",
		},
	}
	return
}

// [[event id, ["1.0", magic, ["0", trigger], [target]]]]
func (descriptor Descriptor) Payload() []any {
	body := []any{
		sceneVersion,
		descriptor.Magic,
		[]any{triggerIndex, descriptor.Trigger},
		[]any{descriptor.Target},
	}
	return []any{[]any{descriptor.EventID, body}}
}

// Serialized payload as carried in the data frame
func (descriptor Descriptor) Encode() (data string, err error) {
	raw, err := json.Marshal(descriptor.Payload())
	if err != nil {
		err = fmt.Errorf("failed to serialize scene: %w", err)
		return
	}
	data = string(raw)
	return
}

// Parameters for send_data_frame
type DataFrame struct {
	Cur     int    `json:"cur"`
	Data    string `json:"data"`
	DataTkn int    `json:"data_tkn"`
	Total   int    `json:"total"`
	Type    string `json:"type"`
}

// Single frame upload of the descriptor
func (descriptor Descriptor) Frame() (frame DataFrame, err error) {
	data, err := descriptor.Encode()
	if err != nil {
		return
	}
	frame = DataFrame{
		Cur:     0,
		Data:    data,
		DataTkn: DataToken,
		Total:   1,
		Type:    "scene",
	}
	return
}
