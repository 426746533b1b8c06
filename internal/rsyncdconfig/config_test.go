package rsyncdconfig

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rsyncd.toml")
	contents := `
bwlimit = "1m"

[[listener]]
rsyncd = "0.0.0.0:873"

[[module]]
name = "pub"
path = "/srv/pub"
writable = false
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := FromFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Listeners) != 1 || cfg.Listeners[0].Rsyncd != "0.0.0.0:873" {
		t.Fatalf("got listeners %+v", cfg.Listeners)
	}
	if len(cfg.Modules) != 1 || cfg.Modules[0].Name != "pub" || cfg.Modules[0].Path != "/srv/pub" {
		t.Fatalf("got modules %+v", cfg.Modules)
	}
	if cfg.BwLimit != "1m" {
		t.Errorf("BwLimit = %q, want 1m", cfg.BwLimit)
	}
}

func TestFromFileMissing(t *testing.T) {
	if _, err := FromFile("/nonexistent/path/rsyncd.toml"); err == nil {
		t.Fatal("expected an error for a missing config file")
	}
}
