//go:build !windows

package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_InsecurePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, []byte("vault:\n  owner: alice\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(dir); !errors.Is(err, ErrConfigInsecure) {
		t.Errorf("Load() error = %v, want ErrConfigInsecure", err)
	}
}

func TestLoad_RejectsSymlink(t *testing.T) {
	dir := t.TempDir()
	real := filepath.Join(dir, "real.yaml")
	if err := os.WriteFile(real, []byte("vault:\n  owner: alice\n"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(real, filepath.Join(dir, FileName)); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	if _, err := Load(dir); !errors.Is(err, ErrConfigSymlink) {
		t.Errorf("Load() error = %v, want ErrConfigSymlink", err)
	}
}
