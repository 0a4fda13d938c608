package protocol

import (
	"encoding/json"
	"fmt"
)

// Request for method. Devices expect a params member, so nil becomes an empty list.
func NewRequest(id int, method string, params any) (command Command) {
	if params == nil {
		params = []any{}
	}
	command = Command{ID: id, Method: method, Params: params}
	return
}

// Successful reply for a request id
func NewResult(id int, result any) (response Response, err error) {
	raw, err := json.Marshal(result)
	if err != nil {
		err = fmt.Errorf("failed to serialize result: %w", err)
		return
	}
	response = Response{ID: id, Result: raw}
	return
}

// Error reply for a request id
func NewError(id int, code int, message string) (response Response) {
	response = Response{
		ID:    id,
		Error: &ResponseError{Code: code, Message: message},
	}
	return
}

// The result every event sink acknowledgement carries
var OKResult = []string{"ok"}

// True when the result is exactly ["ok"]
func IsOK(result json.RawMessage) bool {
	var values []string
	err := json.Unmarshal(result, &values)
	if err != nil {
		return false
	}
	return len(values) == 1 && values[0] == "ok"
}
