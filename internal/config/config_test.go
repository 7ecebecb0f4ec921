package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
devices:
  - host: 192.168.1.50
    name: desk
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Transport.Port != 9080 {
		t.Errorf("Transport.Port = %d, want 9080", cfg.Transport.Port)
	}
	if cfg.Transport.Timeout.Duration() != 3*time.Second {
		t.Errorf("Transport.Timeout = %v, want 3s", cfg.Transport.Timeout.Duration())
	}
	if cfg.Poll.Interval.Duration() != 30*time.Second {
		t.Errorf("Poll.Interval = %v, want 30s", cfg.Poll.Interval.Duration())
	}
	if cfg.Poll.RateLimitRPS != 10.0 {
		t.Errorf("Poll.RateLimitRPS = %v, want 10", cfg.Poll.RateLimitRPS)
	}
	if cfg.Database.Path != "./sengledd.sqlite" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.TopicPrefix != "sengled" {
		t.Errorf("MQTT.TopicPrefix = %q, want sengled", cfg.MQTT.TopicPrefix)
	}
	if cfg.API.Port != 8088 {
		t.Errorf("API.Port = %d, want 8088", cfg.API.Port)
	}
	if cfg.GetShutdownTimeout() != 5*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 5s", cfg.GetShutdownTimeout())
	}
	if got := cfg.EventBus.GetWorkers(); got != 4 {
		t.Errorf("EventBus.GetWorkers() = %d, want 4", got)
	}
	if got := cfg.Log.GetLevel(); got != "info" {
		t.Errorf("Log.GetLevel() = %q, want info", got)
	}

	if len(cfg.Devices) != 1 || cfg.Devices[0].Host != "192.168.1.50" {
		t.Errorf("Devices = %+v", cfg.Devices)
	}
}

func TestLoad_ExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
devices:
  - host: 192.168.1.50
    type: rgb
  - host: 192.168.1.51
    type: white
transport:
  port: 9999
  timeout: 1s
poll:
  interval: 10s
  debounce: 500ms
discovery:
  enabled: true
  window: 3s
log:
  level: debug
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Transport.Port != 9999 {
		t.Errorf("Transport.Port = %d, want 9999", cfg.Transport.Port)
	}
	if cfg.Poll.Debounce.Duration() != 500*time.Millisecond {
		t.Errorf("Poll.Debounce = %v, want 500ms", cfg.Poll.Debounce.Duration())
	}
	if !cfg.Discovery.Enabled || cfg.Discovery.Window.Duration() != 3*time.Second {
		t.Errorf("Discovery = %+v", cfg.Discovery)
	}
	if cfg.Devices[1].Type != "white" {
		t.Errorf("Devices[1].Type = %q, want white", cfg.Devices[1].Type)
	}
}

func TestLoad_RejectsBadDevices(t *testing.T) {
	if _, err := Load(writeConfig(t, "devices:\n  - name: nameless\n")); err == nil {
		t.Error("Load accepted a device without a host")
	}
	if _, err := Load(writeConfig(t, "devices:\n  - host: 192.168.1.50\n    type: disco\n")); err == nil {
		t.Error("Load accepted an unknown device type")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SENGLEDD_TEST_BROKER", "mqtt://broker.local:1883")

	cfg, err := Load(writeConfig(t, `
mqtt:
  enabled: true
  broker: ${SENGLEDD_TEST_BROKER}
  topic_prefix: ${SENGLEDD_TEST_PREFIX:lights}
`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.MQTT.Broker != "mqtt://broker.local:1883" {
		t.Errorf("MQTT.Broker = %q, env var not expanded", cfg.MQTT.Broker)
	}
	if cfg.MQTT.TopicPrefix != "lights" {
		t.Errorf("MQTT.TopicPrefix = %q, want default from ${VAR:default}", cfg.MQTT.TopicPrefix)
	}
}
