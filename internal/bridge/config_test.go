package bridge

import (
	"mibridge/internal/global"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleConfig = `{
	// Push server presented to gateways
	"server": {
		"address": "192.168.1.5",
		"token": "0123456789abcdef0123456789abcdef",
		"kernelFilter": true,
	},
	"devices": [
		{
			"address": "192.168.1.20",
			"token": "fedcba9876543210fedcba9876543210",
			"timeout": "2s",
			"events": [
				{"action": "motion", "sourceId": "lumi.158d000a1b2c3d", "sourceModel": "lumi.sensor_motion.v2", "event": "motion"},
				{"action": "open", "sourceId": "lumi.158d000a1b2c3e", "sourceModel": "lumi.sensor_magnet.v2", "event": "open", "value": 1},
			],
		},
	],
	"sinks": {"stdout": true, "redisAddress": "localhost:6379"},
	"metrics": {"enabled": true, "pollingIntervals": ["10s", "1m"], "inMemoryRetentionPeriod": "2h"},
}`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mibridge.json")
	err := os.WriteFile(path, []byte(sampleConfig), 0600)
	if err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	jsonCfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cfg, err := NewDaemonConf(jsonCfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.ListenIP != "192.168.1.5" || !cfg.KernelFilter || len(cfg.Token) != 16 {
		t.Fatalf("server settings not parsed: %+v", cfg)
	}
	if len(cfg.Devices) != 1 {
		t.Fatalf("expected 1 device, got %d", len(cfg.Devices))
	}
	dev := cfg.Devices[0]
	if dev.Timeout != 2*time.Second || len(dev.Events) != 2 {
		t.Fatalf("device not parsed: %+v", dev)
	}
	if dev.Events[1].TriggerValue != float64(1) || dev.Events[0].TriggerValue != nil {
		t.Fatalf("trigger values not carried: %+v", dev.Events)
	}
	if len(cfg.MetricIntervals) != 2 || cfg.MetricMaxAge != 2*time.Hour {
		t.Fatalf("metric settings not parsed: %+v", cfg)
	}

	cfg.setDefaults()
	if cfg.ListenPort != global.DevicePort || cfg.Model != global.DefaultServerModel {
		t.Fatalf("server defaults not applied: %+v", cfg)
	}
	if cfg.Devices[0].Retries != global.DefaultRetries || cfg.Devices[0].Port != global.DevicePort {
		t.Fatalf("device defaults not applied: %+v", cfg.Devices[0])
	}
	if cfg.Devices[0].Timeout != 2*time.Second {
		t.Fatalf("configured timeout overwritten")
	}
	if cfg.RedisChannel != "mibridge:events" {
		t.Fatalf("expected default redis channel, got %q", cfg.RedisChannel)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	if err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewDaemonConfErrors(t *testing.T) {
	tests := []struct {
		name    string
		config  string
		wantErr string
	}{
		{"bad syntax", `{"server": }`, ""},
		{"short server token", `{"server": {"token": "abcd"}}`, "server token"},
		{"device without address", `{"devices": [{"token": "0123456789abcdef0123456789abcdef"}]}`, "without address"},
		{"bad device token", `{"devices": [{"address": "10.0.0.1", "token": "xyz"}]}`, "10.0.0.1"},
		{"duplicate device", `{"devices": [
			{"address": "10.0.0.1", "token": "0123456789abcdef0123456789abcdef"},
			{"address": "10.0.0.1", "token": "0123456789abcdef0123456789abcdef"}]}`, "more than once"},
		{"incomplete event", `{"devices": [{"address": "10.0.0.1", "token": "0123456789abcdef0123456789abcdef",
			"events": [{"action": "motion"}]}]}`, "sourceId"},
		{"bad timeout", `{"devices": [{"address": "10.0.0.1", "token": "0123456789abcdef0123456789abcdef", "timeout": "soon"}]}`, "timeout"},
		{"bad interval", `{"metrics": {"pollingIntervals": ["often"]}}`, "polling interval"},
		{"negative interval", `{"metrics": {"pollingIntervals": ["-1s"]}}`, "positive"},
		{"bad retention", `{"metrics": {"inMemoryRetentionPeriod": "forever"}}`, "retention"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jsonCfg, err := ParseConfig([]byte(tt.config))
			if err == nil {
				_, err = NewDaemonConf(jsonCfg)
			}
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestTemplateParses(t *testing.T) {
	cfg, err := NewDaemonConf(Template())
	if err != nil {
		t.Fatalf("template does not produce a valid config: %v", err)
	}
	if len(cfg.Devices) != 1 || len(cfg.Devices[0].Events) != 1 {
		t.Fatalf("unexpected template config %+v", cfg)
	}
}
