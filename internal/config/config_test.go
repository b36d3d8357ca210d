package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadFileAndDefaults(t *testing.T) {
	path := writeConfig(t, `
server:
  grpc_addr: ":6000"
storage:
  backend: sql
database:
  driver: sqlite
  path: /tmp/ledger-test.db
session:
  secret: s3cret
  ttl: 30m
ledger:
  node_id: 7
seed_file: config/seed.yaml
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.GRPCAddr != ":6000" || cfg.Server.HTTPAddr != ":8080" {
		t.Fatalf("server=%+v", cfg.Server)
	}
	if cfg.Storage.Backend != BackendSQL || cfg.Database.Driver != "sqlite" || cfg.Database.Path != "/tmp/ledger-test.db" {
		t.Fatalf("storage=%+v database=%+v", cfg.Storage, cfg.Database)
	}
	if cfg.Session.TTL != 30*time.Minute || cfg.Session.CookieName != "AuthToken" {
		t.Fatalf("session=%+v", cfg.Session)
	}
	if cfg.Ledger.NodeID != 7 || cfg.SeedFile != "config/seed.yaml" {
		t.Fatalf("ledger=%+v seed=%q", cfg.Ledger, cfg.SeedFile)
	}
	if cfg.Database.MaxOpenConns != 100 || cfg.Database.ConnMaxLifetime != 30*time.Minute {
		t.Fatalf("pool defaults not applied: %+v", cfg.Database)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	path := writeConfig(t, "session:\n  secret: from-file\n")
	t.Setenv("LEDGER_SESSION_SECRET", "from-env")
	t.Setenv("LEDGER_SERVER_HTTP_ADDR", ":9090")
	t.Setenv("LEDGER_LEDGER_NODE_ID", "12")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Session.Secret != "from-env" || cfg.Server.HTTPAddr != ":9090" || cfg.Ledger.NodeID != 12 {
		t.Fatalf("env override not applied: %+v %+v %+v", cfg.Session, cfg.Server, cfg.Ledger)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing secret", "storage:\n  backend: memory\n", "session.secret"},
		{"bad backend", "session:\n  secret: x\nstorage:\n  backend: redis\n", "storage.backend"},
		{"bad node", "session:\n  secret: x\nledger:\n  node_id: 5000\n", "node_id"},
		{"bad driver", "session:\n  secret: x\nstorage:\n  backend: sql\ndatabase:\n  driver: oracle\n", "database"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err=%v want mention of %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing explicit config file")
	}
}
