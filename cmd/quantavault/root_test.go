package main

import (
	"bufio"
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/forest6511/quantavault/internal/config"
	"github.com/forest6511/quantavault/pkg/audit"
	"github.com/forest6511/quantavault/pkg/vault"
)

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input   string
		want    time.Duration
		wantErr bool
	}{
		{input: "24h", want: 24 * time.Hour},
		{input: "30d", want: 30 * 24 * time.Hour},
		{input: "2w", want: 14 * 24 * time.Hour},
		{input: "1y", want: 365 * 24 * time.Hour},
		{input: "90m", want: 90 * time.Minute},
		{input: "1.5h", want: 90 * time.Minute},
		{input: "d", wantErr: true},
		{input: "xd", wantErr: true},
		{input: "10q", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseDuration(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseDuration(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("parseDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestReadLine(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "unix newline", input: "hello\nrest", want: "hello"},
		{name: "windows newline", input: "hello\r\n", want: "hello"},
		{name: "no newline", input: "hello", want: "hello"},
		{name: "empty", input: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := readLine(bufio.NewReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("readLine() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMasterPassword_Env(t *testing.T) {
	t.Setenv(PasswordEnv, "from-env-password")

	got, err := masterPassword(audit.SourceMCP)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "from-env-password" {
		t.Errorf("masterPassword() = %q", got)
	}
	if _, ok := os.LookupEnv(PasswordEnv); ok {
		t.Error("expected password variable to be cleared")
	}

	// Cleared variable is required again for server sources
	if _, err := masterPassword(audit.SourceAPI); err == nil {
		t.Error("expected error when the variable is missing")
	}
}

func TestMasterPassword_EmptyEnv(t *testing.T) {
	t.Setenv(PasswordEnv, "")
	if _, err := masterPassword(audit.SourceAPI); err == nil {
		t.Error("expected error for empty password variable")
	}
}

func TestOpenRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		c := config.Default(t.TempDir())
		c.Store.Driver = config.DriverMemory
		repo, err := openRepository(ctx, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := repo.(*vault.MemoryRepository); !ok {
			t.Errorf("got %T, want *vault.MemoryRepository", repo)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		c := config.Default(t.TempDir())
		repo, err := openRepository(ctx, c)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer repo.Close()
		if _, ok := repo.(*vault.SQLiteRepository); !ok {
			t.Errorf("got %T, want *vault.SQLiteRepository", repo)
		}
		if _, err := os.Stat(c.SQLitePath()); err != nil {
			t.Errorf("expected database file: %v", err)
		}
	})

	t.Run("postgres", func(t *testing.T) {
		dsn := os.Getenv("QV_TEST_POSTGRES_DSN")
		if dsn == "" {
			t.Skip("QV_TEST_POSTGRES_DSN not set")
		}
		c := config.Default(t.TempDir())
		c.Store.Driver = config.DriverPostgres
		c.Store.DSN = dsn

		// the second open finds the schema current
		for i := 0; i < 2; i++ {
			repo, err := openRepository(ctx, c)
			if err != nil {
				t.Fatalf("open %d: unexpected error: %v", i+1, err)
			}
			if _, ok := repo.(*vault.PostgresRepository); !ok {
				t.Errorf("got %T, want *vault.PostgresRepository", repo)
			}
			repo.Close()
		}
	})

	t.Run("unknown", func(t *testing.T) {
		c := config.Default(t.TempDir())
		c.Store.Driver = "mongo"
		if _, err := openRepository(ctx, c); err == nil {
			t.Error("expected error for unknown driver")
		}
	})
}
