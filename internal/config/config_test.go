package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadValidConfig(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server.json", `{
		"listen_addr": ":9001",
		"tile_size": 16,
		"tick_period_ns": 1000000,
		"landscape_scale": 2.5
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9001" {
		t.Fatalf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.AdminAddrOrDefault() != ":9090" {
		t.Fatalf("AdminAddrOrDefault default = %q", cfg.AdminAddrOrDefault())
	}
	if cfg.PersistenceEnabled() {
		t.Fatal("persistence should be disabled without db_path")
	}
}

func TestLoadRejectsNonJSONExtension(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server.txt", `{}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for non-.json extension")
	}
}

func TestLoadRejectsOversizedFile(t *testing.T) {
	dir := t.TempDir()
	big := make([]byte, maxConfigFileBytes+1)
	path := filepath.Join(dir, "big.json")
	if err := os.WriteFile(path, big, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for oversized config file")
	}
}

func TestLoadRejectsInvalidTickPeriod(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server.json", `{"listen_addr": ":9001", "tile_size": 16, "tick_period_ns": 0}`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero tick period")
	}
}

func TestDBPathOverride(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "server.json", `{
		"listen_addr": ":9001",
		"tile_size": 16,
		"tick_period_ns": 1000000,
		"db_path": "matches.db"
	}`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.PersistenceEnabled() {
		t.Fatal("expected persistence enabled when db_path set")
	}
}
