package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) *Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return NewManager(path)
}

func TestLoadJSON(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{
		"logging": {"level": "DEBUG", "console": true},
		"scheduler": {"enabled": true, "retry_base": "5s", "retry_max_delay": "15m", "timezone": "UTC"},
		"history": {"driver": "file", "path": "./hist", "retention": "168h"}
	}`)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if !cfg.Scheduler.Enabled || cfg.Scheduler.Timezone != "UTC" {
		t.Fatalf("unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if cfg.History == nil || cfg.History.Driver != "file" {
		t.Fatalf("unexpected history config: %+v", cfg.History)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.yaml", `
logging:
  level: INFO
  console: true
scheduler:
  enabled: true
  history_size: 50
  retry_base: 2s
heartbeat:
  enabled: true
  spec: "@every 30m"
`)

	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Scheduler.HistorySize != 50 || cfg.Scheduler.RetryBase != "2s" {
		t.Fatalf("unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if !cfg.Heartbeat.Enabled || cfg.Heartbeat.Spec != "@every 30m" {
		t.Fatalf("unexpected heartbeat config: %+v", cfg.Heartbeat)
	}
	if cfg.History != nil {
		t.Fatal("omitted history section should stay nil")
	}
}

func TestLoadYAMLNonStringKey(t *testing.T) {
	t.Parallel()
	// YAML allows integer keys; they must survive the JSON round-trip and
	// then fail the strict decode as unknown fields, not crash the marshal.
	m := writeConfig(t, "config.yaml", `
scheduler:
  enabled: true
  5: surprise
`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for non-string key")
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"scheduler": {"enabled": true, "wrokers": 4}}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestParseRejectsTrailingData(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"scheduler": {"enabled": true}}{"extra": 1}`)
	if _, err := m.Parse(); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestParseDurationField(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{name: "empty means zero", raw: "", want: 0},
		{name: "seconds", raw: "5s", want: 5 * time.Second},
		{name: "compound", raw: "1h30m", want: 90 * time.Minute},
		{name: "negative rejected", raw: "-5s", wantErr: true},
		{name: "garbage rejected", raw: "soon", wantErr: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDurationField("x", tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDurationField(%q) expected error", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDurationField(%q) error: %v", tt.raw, err)
			}
			if got != tt.want {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseDurationOrDefault(t *testing.T) {
	t.Parallel()
	got, err := ParseDurationOrDefault("x", "", 5*time.Second)
	if err != nil || got != 5*time.Second {
		t.Fatalf("got %v, %v; want 5s, nil", got, err)
	}
	got, err = ParseDurationOrDefault("x", "10s", 5*time.Second)
	if err != nil || got != 10*time.Second {
		t.Fatalf("got %v, %v; want 10s, nil", got, err)
	}
}

func TestSubscribePublishUnsubscribe(t *testing.T) {
	t.Parallel()
	m := writeConfig(t, "config.json", `{"scheduler": {"enabled": true}}`)
	if _, err := m.Load(); err != nil {
		t.Fatal(err)
	}

	ch := m.Subscribe(1)
	next := &Config{}
	m.publish(next)

	select {
	case got := <-ch:
		if got != next {
			t.Fatal("subscriber received wrong config")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive config")
	}

	// Full buffer: the oldest entry is dropped for the newest.
	first, second := &Config{}, &Config{}
	m.publish(first)
	m.publish(second)
	if got := <-ch; got != second {
		t.Fatal("expected newest config after drop-oldest")
	}

	m.Unsubscribe(ch)
	if _, ok := <-ch; ok {
		t.Fatal("channel should be closed after Unsubscribe")
	}
	// Publishing after unsubscribe must not panic.
	m.publish(next)
}
