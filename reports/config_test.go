package reports

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadConfig_KeepsDefaultsForMissingKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), "config.yaml")
	body := "addr: \":9090\"\n" +
		"debug: true\n" +
		"archive_cache_url: mem://\n" +
		"simulator:\n" +
		"  interval: 250ms\n" +
		"  error_every: 4\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != ":9090" || !cfg.Debug || cfg.ArchiveCacheURL != "mem://" {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if cfg.Simulator.Interval != 250*time.Millisecond || cfg.Simulator.ErrorEvery != 4 {
		t.Fatalf("unexpected simulator config %+v", cfg.Simulator)
	}
	if cfg.DB != "refinery.db" || cfg.Simulator.FilesPerTick != 12 || !cfg.Simulator.Enabled {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if cfg.AssumedTotalFiles != AssumedTotalFiles || cfg.PollInterval != time.Second {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
	p := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(p, []byte("simulator: [1, 2"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"REFINERY_DB":                  "/data/r.db",
		"REFINERY_DEBUG":               "true",
		"REFINERY_SIMULATOR_ENABLED":   "false",
		"REFINERY_ASSUMED_TOTAL_FILES": "720",
		"REFINERY_POLL_INTERVAL":       "3s",
	}
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(func(k string) string { return env[k] }); err != nil {
		t.Fatal(err)
	}
	if cfg.DB != "/data/r.db" || !cfg.Debug || cfg.Simulator.Enabled || cfg.AssumedTotalFiles != 720 || cfg.PollInterval != 3*time.Second {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if cfg.Addr != ":8080" {
		t.Fatalf("unset variable changed addr to %q", cfg.Addr)
	}

	bad := DefaultConfig()
	err := bad.ApplyEnv(func(k string) string {
		if k == "REFINERY_POLL_INTERVAL" {
			return "soon"
		}
		return ""
	})
	if err == nil || !strings.Contains(err.Error(), "REFINERY_POLL_INTERVAL") {
		t.Fatalf("expected poll interval error, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*FileConfig){
		"addr":         func(c *FileConfig) { c.Addr = "" },
		"db":           func(c *FileConfig) { c.DB = " " },
		"total":        func(c *FileConfig) { c.AssumedTotalFiles = 0 },
		"poll":         func(c *FileConfig) { c.PollInterval = 0 },
		"sim interval": func(c *FileConfig) { c.Simulator.Interval = 0 },
		"sim files":    func(c *FileConfig) { c.Simulator.FilesPerTick = -1 },
	}
	for name, mutate := range cases {
		cfg := DefaultConfig()
		mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}

	cfg := DefaultConfig()
	cfg.Simulator = SimulatorConfig{}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled simulator should not be validated: %v", err)
	}
}
