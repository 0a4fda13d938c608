package device

import (
	"context"
	"encoding/json"
	"fmt"
	"mibridge/internal/global"
	"mibridge/internal/logctx"
)

// Reads legacy properties with get_prop, at most maxPerRequest names per command
func (session *Session) GetProperties(ctx context.Context, names []string, maxPerRequest int) (values []json.RawMessage, err error) {
	props := make([]any, len(names))
	for i, name := range names {
		props[i] = name
	}
	values, err = session.GetPropertiesWith(ctx, "get_prop", props, maxPerRequest)
	return
}

// Splits props into consecutive chunks, issues one command per chunk, and
// concatenates the replies in input order. Count mismatches are logged only.
func (session *Session) GetPropertiesWith(ctx context.Context, method string, props []any, maxPerRequest int) (values []json.RawMessage, err error) {
	if maxPerRequest <= 0 {
		maxPerRequest = global.DefaultMaxProps
	}

	values = make([]json.RawMessage, 0, len(props))
	for start := 0; start < len(props); start += maxPerRequest {
		end := min(start+maxPerRequest, len(props))
		chunk := props[start:end]

		var result json.RawMessage
		result, err = session.Send(ctx, method, chunk)
		if err != nil {
			err = fmt.Errorf("failed to read properties %d-%d: %w", start, end-1, err)
			return
		}

		var chunkValues []json.RawMessage
		err = json.Unmarshal(result, &chunkValues)
		if err != nil {
			err = fmt.Errorf("unexpected %s result %s: %w", method, result, err)
			return
		}

		if len(chunkValues) != len(chunk) {
			logctx.LogEvent(ctx, global.VerbosityStandard, global.WarnLog,
				"requested %d properties from %s but received %d\n", len(chunk), session.address, len(chunkValues))
		}
		values = append(values, chunkValues...)
	}
	return
}
