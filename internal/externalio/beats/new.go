// Forwards push events to a Logstash/beats endpoint over lumberjack v2
package beats

import (
	"fmt"
	"mibridge/internal/global"

	lumberjack "github.com/elastic/go-lumber/client/v2"
)

type OutModule struct {
	endpoint string
	sink     *lumberjack.SyncClient
}

// Creates new beats (lumberjack) output module. Returns nil nil if no endpoint.
func NewOutput(endpoint string) (module *OutModule, err error) {
	if endpoint == "" {
		return
	}

	compression := lumberjack.CompressionLevel(3)
	timeout := lumberjack.Timeout(global.SinkDialTimeout)

	ljClient, err := lumberjack.SyncDial(endpoint, compression, timeout)
	if err != nil {
		err = fmt.Errorf("failed connection to beats server: %w", err)
		return
	}

	module = &OutModule{
		endpoint: endpoint,
		sink:     ljClient,
	}
	return
}
