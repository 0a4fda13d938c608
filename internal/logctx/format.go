package logctx

import (
	"strings"
	"time"
)

// RFC3339 with nanoseconds always padded to nine digits
const timestampLayout string = "2006-01-02T15:04:05.000000000Z07:00"

// Stringify full event
func (event Event) Format() (text string) {
	var builder strings.Builder

	// Only print parts that are present
	appendPart := func(part string) {
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(part)
	}

	if !event.Timestamp.IsZero() {
		appendPart("[" + padTimestamp(event.Timestamp) + "]")
	}
	if len(event.Tags) > 0 {
		appendPart("[" + strings.Join(event.Tags, "/") + "]")
	}
	if event.Severity != "" {
		appendPart("[" + event.Severity + "]")
	}
	if event.Peer != "" {
		appendPart("<" + event.Peer + ">")
	}
	if event.Message != "" {
		appendPart(event.Message)
	}

	// No newline, message creator determines newlines
	text = builder.String()
	return
}

// Ensures fixed length strings for timestamps
func padTimestamp(timestamp time.Time) (formatted string) {
	formatted = timestamp.Format(timestampLayout)
	return
}
