package events

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Sink printing one JSON document per line
type WriterSink struct {
	mutex   sync.Mutex
	out     io.Writer
	encoder *json.Encoder
}

func NewWriterSink(out io.Writer) (sink *WriterSink) {
	sink = &WriterSink{out: out, encoder: json.NewEncoder(out)}
	sink.encoder.SetEscapeHTML(false)
	return
}

func (sink *WriterSink) Name() string {
	return "stdout"
}

func (sink *WriterSink) Write(ctx context.Context, event Event) (err error) {
	sink.mutex.Lock()
	defer sink.mutex.Unlock()
	err = sink.encoder.Encode(event)
	if err != nil {
		err = fmt.Errorf("failed to serialize event: %w", err)
	}
	return
}

func (sink *WriterSink) Close() (err error) {
	return
}
