package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Vault.Dir != dir {
		t.Errorf("Vault.Dir = %s, want %s", cfg.Vault.Dir, dir)
	}
	if cfg.Vault.Owner != "local" {
		t.Errorf("Vault.Owner = %s, want local", cfg.Vault.Owner)
	}
	if cfg.Store.Driver != DriverSQLite {
		t.Errorf("Store.Driver = %s, want %s", cfg.Store.Driver, DriverSQLite)
	}
	if cfg.Server.Addr != "127.0.0.1:8787" {
		t.Errorf("Server.Addr = %s", cfg.Server.Addr)
	}
	if cfg.SQLitePath() != filepath.Join(dir, "vault.db") {
		t.Errorf("SQLitePath() = %s", cfg.SQLitePath())
	}
	if cfg.JournalDir() != filepath.Join(dir, "journal") {
		t.Errorf("JournalDir() = %s", cfg.JournalDir())
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
vault:
  owner: alice
store:
  driver: Postgres
  dsn: postgres://qv:qv@localhost:5432/qv
server:
  addr: ":9000"
  read_timeout: 5s
log:
  level: DEBUG
  format: json
security:
  two_factor_score: 40
`)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Vault.Owner != "alice" {
		t.Errorf("Vault.Owner = %s, want alice", cfg.Vault.Owner)
	}
	if cfg.Store.Driver != DriverPostgres {
		t.Errorf("Store.Driver = %s, want %s", cfg.Store.Driver, DriverPostgres)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Server.WriteTimeout != 15*time.Second {
		t.Errorf("WriteTimeout = %v, want default 15s", cfg.Server.WriteTimeout)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	if cfg.Security.TwoFactorScore != 40 {
		t.Errorf("TwoFactorScore = %d, want 40", cfg.Security.TwoFactorScore)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "vault:\n  owner: alice\nlog:\n  level: info\n")

	t.Setenv("QV_VAULT_OWNER", "bob")
	t.Setenv("QV_LOG_LEVEL", "warn")
	t.Setenv("QV_STORE_DRIVER", "memory")
	t.Setenv("QV_SERVER_SHUTDOWN_TIMEOUT", "30s")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Vault.Owner != "bob" {
		t.Errorf("Vault.Owner = %s, want bob", cfg.Vault.Owner)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %s, want warn", cfg.Log.Level)
	}
	if cfg.Store.Driver != DriverMemory {
		t.Errorf("Store.Driver = %s, want memory", cfg.Store.Driver)
	}
	if cfg.Server.ShutdownTimeout != 30*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 30s", cfg.Server.ShutdownTimeout)
	}
}

func TestLoad_VaultDirFromEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QV_VAULT_DIR", dir)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Vault.Dir != dir {
		t.Errorf("Vault.Dir = %s, want %s", cfg.Vault.Dir, dir)
	}
}

func TestLoad_ExplicitDirBeatsEnv(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("QV_VAULT_DIR", t.TempDir())

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Vault.Dir != dir {
		t.Errorf("Vault.Dir = %s, want %s", cfg.Vault.Dir, dir)
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "vault: [unterminated")

	if _, err := Load(dir); err == nil {
		t.Error("Load() expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing owner", func(c *Config) { c.Vault.Owner = " " }, "vault.owner"},
		{"unknown driver", func(c *Config) { c.Store.Driver = "mysql" }, "store.driver"},
		{"postgres without dsn", func(c *Config) { c.Store.Driver = "postgres" }, "store.dsn"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"negative timeout", func(c *Config) { c.Server.ReadTimeout = -time.Second }, "timeouts"},
		{"bad level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"two factor too high", func(c *Config) { c.Security.TwoFactorScore = 101 }, "two_factor_score"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}
