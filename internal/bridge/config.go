package bridge

import (
	"encoding/json"
	"fmt"
	"mibridge/internal/crypto"
	"mibridge/internal/global"
	"mibridge/internal/scene"
	"os"
	"time"

	"github.com/tailscale/hujson"
)

// Loads JSON config from file. Comments and trailing commas are accepted.
func LoadConfig(path string) (cfg global.BridgeConfig, err error) {
	configFile, err := os.ReadFile(path)
	if err != nil {
		err = fmt.Errorf("failed to read config file: %w", err)
		return
	}

	cfg, err = ParseConfig(configFile)
	if err != nil {
		err = fmt.Errorf("invalid config syntax in '%s': %w", path, err)
		return
	}
	return
}

func ParseConfig(raw []byte) (cfg global.BridgeConfig, err error) {
	standard, err := hujson.Standardize(raw)
	if err != nil {
		return
	}
	err = json.Unmarshal(standard, &cfg)
	return
}

// Parses JSON config into daemon config
func NewDaemonConf(cfg global.BridgeConfig) (config Config, err error) {
	// Push server settings
	config.ListenIP = cfg.Server.Address
	config.ListenPort = cfg.Server.Port
	config.DeviceID = cfg.Server.DeviceID
	config.Model = cfg.Server.Model
	config.SourcePrefix = cfg.Server.SourcePrefix
	config.KernelFilter = cfg.Server.KernelFilter
	if cfg.Server.Token != "" {
		config.Token, err = crypto.ParseToken(cfg.Server.Token)
		if err != nil {
			err = fmt.Errorf("invalid server token: %w", err)
			return
		}
	}

	// Devices
	seen := make(map[string]bool)
	for _, dev := range cfg.Devices {
		var spec DeviceSpec
		spec, err = newDeviceSpec(dev)
		if err != nil {
			return
		}
		if seen[spec.Address] {
			err = fmt.Errorf("device %s listed more than once", spec.Address)
			return
		}
		seen[spec.Address] = true
		config.Devices = append(config.Devices, spec)
	}

	// Sink settings
	config.BeatsEndpoint = cfg.Sinks.Beats
	config.RedisAddress = cfg.Sinks.Redis
	config.RedisDB = cfg.Sinks.RedisDB
	config.RedisChannel = cfg.Sinks.Channel
	config.Stdout = cfg.Sinks.Stdout
	config.QueueSize = cfg.Sinks.QueueSize

	// Metric settings
	config.MetricsEnabled = cfg.Metrics.Enabled
	config.MetricQueryServerEnabled = cfg.Metrics.ExternalAccess
	config.MetricQueryServerPort = cfg.Metrics.Port
	for _, rawInterval := range cfg.Metrics.PollingIntervals {
		var interval time.Duration
		interval, err = time.ParseDuration(rawInterval)
		if err != nil {
			err = fmt.Errorf("failed to parse metric polling interval %q: %w", rawInterval, err)
			return
		}
		if interval <= 0 {
			err = fmt.Errorf("metric polling interval must be positive, got %q", rawInterval)
			return
		}
		config.MetricIntervals = append(config.MetricIntervals, interval)
	}
	if cfg.Metrics.RetentionPeriod != "" {
		config.MetricMaxAge, err = time.ParseDuration(cfg.Metrics.RetentionPeriod)
		if err != nil {
			err = fmt.Errorf("failed to parse metric retention period: %w", err)
			return
		}
	}
	return
}

func newDeviceSpec(dev global.DeviceConf) (spec DeviceSpec, err error) {
	if dev.Address == "" {
		err = fmt.Errorf("device entry without address")
		return
	}
	spec.Address = dev.Address
	spec.Port = dev.Port
	spec.Retries = dev.Retries

	spec.Token, err = crypto.ParseToken(dev.Token)
	if err != nil {
		err = fmt.Errorf("invalid token for device %s: %w", dev.Address, err)
		return
	}

	if dev.Timeout != "" {
		spec.Timeout, err = time.ParseDuration(dev.Timeout)
		if err != nil {
			err = fmt.Errorf("failed to parse timeout for device %s: %w", dev.Address, err)
			return
		}
	}

	for _, event := range dev.Events {
		if event.Action == "" || event.SourceID == "" {
			err = fmt.Errorf("event for device %s needs both action and sourceId", dev.Address)
			return
		}
		spec.Events = append(spec.Events, scene.EventInfo{
			Action:       event.Action,
			SourceID:     event.SourceID,
			SourceModel:  event.SourceModel,
			Event:        event.Event,
			Extra:        event.Extra,
			TriggerValue: event.Value,
		})
	}
	return
}

// Sets defaults for any missing/invalid values
func (cfg *Config) setDefaults() {
	// Push server
	if cfg.ListenIP == "" {
		cfg.ListenIP = global.DefaultServerAddress
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = global.DevicePort
	}
	if cfg.DeviceID == 0 {
		cfg.DeviceID = global.DefaultServerDeviceID
	}
	if cfg.Model == "" {
		cfg.Model = global.DefaultServerModel
	}
	if cfg.SourcePrefix == "" {
		cfg.SourcePrefix = global.DefaultSourcePrefix
	}

	// Devices
	for i := range cfg.Devices {
		if cfg.Devices[i].Port == 0 {
			cfg.Devices[i].Port = global.DevicePort
		}
		if cfg.Devices[i].Timeout == 0 {
			cfg.Devices[i].Timeout = global.DefaultTimeout
		}
		if cfg.Devices[i].Retries == 0 {
			cfg.Devices[i].Retries = global.DefaultRetries
		}
	}

	// Sinks
	if cfg.RedisChannel == "" && cfg.RedisAddress != "" {
		cfg.RedisChannel = global.ProgBaseName + ":events"
	}

	// Metrics
	if len(cfg.MetricIntervals) == 0 {
		cfg.MetricIntervals = []time.Duration{15 * time.Second}
	}
	if cfg.MetricMaxAge == 0 {
		cfg.MetricMaxAge = 1 * time.Hour
	}
	if cfg.MetricQueryServerPort == 0 {
		cfg.MetricQueryServerPort = global.HTTPListenPort
	}
}

// Sample configuration written by the configure command
func Template() (cfg global.BridgeConfig) {
	cfg = global.BridgeConfig{
		Server: global.ServerConf{
			Address: global.DefaultServerAddress,
			Port:    global.DevicePort,
			Model:   global.DefaultServerModel,
		},
		Devices: []global.DeviceConf{
			{
				Address: "192.168.1.20",
				Token:   "00000000000000000000000000000000",
				Events: []global.EventConf{
					{
						Action:      "motion",
						SourceID:    "lumi.158d000a1b2c3d",
						SourceModel: "lumi.sensor_motion.v2",
						Event:       "motion",
					},
				},
			},
		},
		Sinks: global.SinkConf{
			Stdout: true,
		},
		Metrics: global.MetricConf{
			Enabled:          true,
			PollingIntervals: []string{"15s", "1m"},
			RetentionPeriod:  "1h",
			ExternalAccess:   true,
		},
		Logging: global.Logging{
			Level: global.VerbosityStandard,
		},
	}
	return
}
