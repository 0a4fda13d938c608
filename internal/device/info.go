package device

import (
	"context"
	"encoding/json"
	"fmt"
)

// Queries miIO.info
func (session *Session) Info(ctx context.Context) (info Info, err error) {
	result, err := session.Send(ctx, "miIO.info", nil)
	if err != nil {
		return
	}

	err = json.Unmarshal(result, &info)
	if err != nil {
		err = fmt.Errorf("unexpected miIO.info result %s: %w", result, err)
		return
	}
	err = json.Unmarshal(result, &info.Raw)
	if err != nil {
		err = fmt.Errorf("unexpected miIO.info result %s: %w", result, err)
	}
	return
}
