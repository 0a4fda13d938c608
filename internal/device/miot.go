package device

import (
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/global"
	"slices"
)

type miotGet struct {
	DID  string `json:"did"`
	SIID int    `json:"siid"`
	PIID int    `json:"piid"`
}

type miotSet struct {
	DID   string `json:"did"`
	SIID  int    `json:"siid"`
	PIID  int    `json:"piid"`
	Value any    `json:"value"`
}

type miotAction struct {
	DID  string `json:"did"`
	SIID int    `json:"siid"`
	AIID int    `json:"aiid"`
	In   []any  `json:"in"`
}

// Reads every mapped property with get_properties. Results are keyed by name.
func (session *Session) GetMIoTProperties(ctx context.Context, mapping map[string]PropertyRef, maxPerRequest int) (properties map[string]MIoTProperty, err error) {
	names := make([]string, 0, len(mapping))
	for name := range mapping {
		names = append(names, name)
	}
	slices.Sort(names)

	props := make([]any, len(names))
	for i, name := range names {
		ref := mapping[name]
		props[i] = miotGet{DID: name, SIID: ref.SIID, PIID: ref.PIID}
	}

	values, err := session.GetPropertiesWith(ctx, "get_properties", props, maxPerRequest)
	if err != nil {
		return
	}

	properties = make(map[string]MIoTProperty, len(values))
	for _, raw := range values {
		var property MIoTProperty
		err = json.Unmarshal(raw, &property)
		if err != nil {
			err = fmt.Errorf("unexpected get_properties entry %s: %w", raw, err)
			return
		}
		properties[property.DID] = property
	}
	return
}

// Writes one property. Non-zero entry codes are returned as device errors.
func (session *Session) SetMIoTProperty(ctx context.Context, ref PropertyRef, value any) (err error) {
	params := []miotSet{{
		DID:   fmt.Sprintf("set-%d-%d", ref.SIID, ref.PIID),
		SIID:  ref.SIID,
		PIID:  ref.PIID,
		Value: value,
	}}

	result, err := session.Send(ctx, "set_properties", params)
	if err != nil {
		return
	}

	var entries []MIoTProperty
	err = json.Unmarshal(result, &entries)
	if err != nil {
		err = fmt.Errorf("unexpected set_properties result %s: %w", result, err)
		return
	}
	for _, entry := range entries {
		if entry.Code != 0 {
			err = &DeviceError{Method: "set_properties", Code: entry.Code, Message: entry.DID}
			return
		}
	}
	return
}

// Invokes an action with positional input arguments
func (session *Session) CallMIoTAction(ctx context.Context, siid int, aiid int, in []any) (result json.RawMessage, err error) {
	if in == nil {
		in = []any{}
	}
	params := miotAction{
		DID:  fmt.Sprintf("call-%d-%d", siid, aiid),
		SIID: siid,
		AIID: aiid,
		In:   in,
	}
	result, err = session.Send(ctx, "action", params)
	return
}

// Default chunk size for get_properties
const MaxMIoTProperties = global.DefaultMaxProps
