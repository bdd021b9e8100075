package config

import (
	"strings"
	"testing"

	"github.com/dbsmedya/qtrace/pattern"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// Test database defaults
	if cfg.Database.Port != 3306 {
		t.Errorf("expected database port 3306, got %d", cfg.Database.Port)
	}
	if cfg.Database.TLS != "preferred" {
		t.Errorf("expected database TLS 'preferred', got %s", cfg.Database.TLS)
	}
	if cfg.Database.MaxConnections != 10 {
		t.Errorf("expected database max_connections 10, got %d", cfg.Database.MaxConnections)
	}
	if cfg.HasDatabase() {
		t.Error("expected no database host by default")
	}

	// Test watch defaults
	if len(cfg.Watch.Literals) != 0 || len(cfg.Watch.Patterns) != 0 {
		t.Errorf("expected no watches by default, got %+v", cfg.Watch)
	}

	// Test trace defaults
	if cfg.Trace.Prefix != "** " {
		t.Errorf("expected trace prefix '** ', got %q", cfg.Trace.Prefix)
	}

	// Test report defaults
	if cfg.Report.Output != "stdout" {
		t.Errorf("expected report output 'stdout', got %s", cfg.Report.Output)
	}
	if cfg.Report.Color {
		t.Error("expected report color disabled by default")
	}

	// Test logging defaults
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected logging level 'debug', got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("expected logging output 'stderr', got %s", cfg.Logging.Output)
	}
}

func TestRegisterWatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Literals = []string{"users", "a.b"}
	cfg.Watch.Patterns = []string{`^UPDATE\s+accounts`}

	reg := pattern.NewRegistry()
	if err := cfg.RegisterWatches(reg); err != nil {
		t.Fatalf("RegisterWatches() failed: %v", err)
	}

	if reg.Len() != 3 {
		t.Errorf("expected 3 registered patterns, got %d", reg.Len())
	}
	if !reg.Matches("select * from USERS") {
		t.Error("expected literal 'users' to match case-insensitively")
	}
	if reg.Matches("SELECT axb") {
		t.Error("expected literal 'a.b' to match literally")
	}
	if !reg.Matches("update   accounts set x = 1") {
		t.Error("expected pattern to match")
	}
}

func TestRegisterWatches_InvalidPattern(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Watch.Patterns = []string{"ok", "broken("}

	reg := pattern.NewRegistry()
	err := cfg.RegisterWatches(reg)
	if err == nil {
		t.Fatal("expected error for malformed pattern")
	}
	if !strings.Contains(err.Error(), "watch.patterns[1]") {
		t.Errorf("error should name the offending entry, got: %v", err)
	}
}

func TestHasDatabase(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Database.Host = "db.internal"
	if !cfg.HasDatabase() {
		t.Error("expected HasDatabase() to be true when host is set")
	}
}
