package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	if cfg.Fabric.Endpoint != "http://localhost:8545" {
		t.Fatalf("endpoint %q, want default", cfg.Fabric.Endpoint)
	}
	if cfg.Fabric.RequestTimeout != 10 {
		t.Fatalf("timeout %d, want 10", cfg.Fabric.RequestTimeout)
	}
	if cfg.GPS.Type != "demo" {
		t.Fatalf("gps type %q, want demo", cfg.GPS.Type)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
fabric:
  endpoint: http://fabric.local:8545
  request_timeout: 3
gps:
  type: nmea
  port_path: /dev/ttyUSB0
  baud_rate: 115200
share:
  enabled: false
  interval_s: 60
`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Load(path)

	if cfg.Fabric.Endpoint != "http://fabric.local:8545" {
		t.Fatalf("endpoint %q", cfg.Fabric.Endpoint)
	}
	if cfg.Fabric.RequestTimeout != 3 {
		t.Fatalf("timeout %d", cfg.Fabric.RequestTimeout)
	}
	if cfg.GPS.Type != "nmea" || cfg.GPS.PortPath != "/dev/ttyUSB0" || cfg.GPS.BaudRate != 115200 {
		t.Fatalf("gps %+v", cfg.GPS)
	}
	if cfg.Share.Enabled || cfg.Share.Interval != 60 {
		t.Fatalf("share %+v", cfg.Share)
	}
	// Untouched sections keep defaults
	if cfg.Server.ListenAddr != ":8080" {
		t.Fatalf("listen addr %q", cfg.Server.ListenAddr)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FABRIC_ENDPOINT", "http://override:9999")
	t.Setenv("FABRIC_TIMEOUT_S", "5")
	t.Setenv("GPS_TYPE", "disabled")
	t.Setenv("SHARE_INTERVAL_S", "15")

	cfg := Load(filepath.Join(t.TempDir(), "nope.yaml"))

	if cfg.Fabric.Endpoint != "http://override:9999" {
		t.Fatalf("endpoint %q", cfg.Fabric.Endpoint)
	}
	if cfg.Fabric.RequestTimeout != 5 {
		t.Fatalf("timeout %d", cfg.Fabric.RequestTimeout)
	}
	if cfg.GPS.Type != "disabled" {
		t.Fatalf("gps type %q", cfg.GPS.Type)
	}
	if cfg.Share.Interval != 15 {
		t.Fatalf("share interval %d", cfg.Share.Interval)
	}
}

func TestDotEnvFileLoads(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("FABRIC_ENDPOINT=\"http://dotenv:8545\"\n# comment\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// t.Setenv registers restoration of the pre-test value; the Unsetenv
	// makes the variable truly absent so .env can supply it.
	t.Setenv("FABRIC_ENDPOINT", "")
	os.Unsetenv("FABRIC_ENDPOINT")

	cfg := Load(filepath.Join(dir, "config.yaml"))

	if cfg.Fabric.Endpoint != "http://dotenv:8545" {
		t.Fatalf("endpoint %q, want value from .env", cfg.Fabric.Endpoint)
	}
	os.Unsetenv("FABRIC_ENDPOINT")
}

func TestUpdateFromJSONDeepMerges(t *testing.T) {
	cfg := DefaultConfig()

	if err := cfg.UpdateFromJSON([]byte(`{"fabric":{"endpoint":"http://new:8545"}}`)); err != nil {
		t.Fatalf("update: %v", err)
	}

	if cfg.Fabric.Endpoint != "http://new:8545" {
		t.Fatalf("endpoint %q", cfg.Fabric.Endpoint)
	}
	// Sibling field inside the patched section is preserved
	if cfg.Fabric.RequestTimeout != 10 {
		t.Fatalf("timeout %d, want 10", cfg.Fabric.RequestTimeout)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := Load(path)
	cfg.Fabric.Endpoint = "http://saved:8545"

	if err := cfg.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded := Load(path)
	if reloaded.Fabric.Endpoint != "http://saved:8545" {
		t.Fatalf("endpoint %q after reload", reloaded.Fabric.Endpoint)
	}
}
