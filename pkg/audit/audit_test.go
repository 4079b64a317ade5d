package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger := NewLogger(t.TempDir())
	if err := logger.SetHMACKey(testKey()); err != nil {
		t.Fatalf("SetHMACKey failed: %v", err)
	}
	return logger
}

func TestNewLogger(t *testing.T) {
	tmpDir := t.TempDir()
	logger := NewLogger(tmpDir)

	if logger.Path() != tmpDir {
		t.Errorf("expected path %s, got %s", tmpDir, logger.Path())
	}
	if logger.prevHash != genesisHash {
		t.Errorf("expected prevHash %q, got %s", genesisHash, logger.prevHash)
	}
	if logger.sessionID == "" {
		t.Error("expected non-empty sessionID")
	}
}

func TestLogWithoutHMACKey(t *testing.T) {
	logger := NewLogger(t.TempDir())
	if err := logger.LogSuccess("credential.create", SourceCLI, "id-1"); !errors.Is(err, ErrKeyNotSet) {
		t.Errorf("expected ErrKeyNotSet, got %v", err)
	}
	if _, err := logger.Verify(); !errors.Is(err, ErrKeyNotSet) {
		t.Errorf("expected ErrKeyNotSet from Verify, got %v", err)
	}
}

func TestLogSuccess(t *testing.T) {
	logger := newTestLogger(t)

	if err := logger.LogSuccess("credential.create", SourceAPI, "cred-123"); err != nil {
		t.Fatalf("LogSuccess failed: %v", err)
	}

	files, _ := filepath.Glob(filepath.Join(logger.Path(), "*.jsonl"))
	if len(files) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(files))
	}
	data, err := os.ReadFile(files[0])
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}
	if bytes.Contains(data, []byte("cred-123")) {
		t.Error("credential ID written in the clear")
	}

	var event Event
	if err := json.Unmarshal(bytes.TrimSpace(data), &event); err != nil {
		t.Fatalf("failed to parse log entry: %v", err)
	}
	if event.Operation != "credential.create" || event.Source != SourceAPI || event.Result != ResultSuccess {
		t.Errorf("unexpected event %+v", event)
	}
	if event.Chain.Sequence != 1 || event.Chain.PrevHash != genesisHash || event.Chain.HMAC == "" {
		t.Errorf("unexpected chain %+v", event.Chain)
	}
	if event.Target == "" {
		t.Error("expected hashed target")
	}
}

func TestLogError(t *testing.T) {
	logger := newTestLogger(t)
	if err := logger.LogError("credential.create", SourceCLI, "", "INVALID_CREDENTIAL", "title is required"); err != nil {
		t.Fatalf("LogError failed: %v", err)
	}
	events, err := logger.ListEvents(0, time.Time{})
	if err != nil {
		t.Fatalf("ListEvents failed: %v", err)
	}
	if len(events) != 1 || events[0].Result != ResultError || events[0].Error == nil || events[0].Error.Code != "INVALID_CREDENTIAL" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestChainIntegrity(t *testing.T) {
	logger := newTestLogger(t)
	for i := 0; i < 5; i++ {
		if err := logger.LogSuccess("credential.list", SourceCLI, ""); err != nil {
			t.Fatalf("LogSuccess failed: %v", err)
		}
	}

	result, err := logger.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid || result.RecordsTotal != 5 || result.RecordsVerified != 5 {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestChainPersistence(t *testing.T) {
	dir := t.TempDir()
	first := NewLogger(dir)
	_ = first.SetHMACKey(testKey())
	_ = first.LogSuccess(OpVaultUnlock, SourceCLI, "")
	_ = first.LogSuccess("credential.create", SourceCLI, "a")

	second := NewLogger(dir)
	_ = second.SetHMACKey(testKey())
	if second.sequence != 2 {
		t.Errorf("expected restored sequence 2, got %d", second.sequence)
	}
	_ = second.LogSuccess("credential.delete", SourceCLI, "a")

	result, err := second.Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid || result.RecordsTotal != 3 {
		t.Errorf("expected valid 3-record chain across sessions, got %+v", result)
	}
}

func TestTamperingDetection(t *testing.T) {
	tamper := func(t *testing.T, edit func(lines []string) []string) *VerifyResult {
		t.Helper()
		logger := newTestLogger(t)
		for _, op := range []string{"credential.create", "credential.update", "credential.delete"} {
			if err := logger.LogSuccess(op, SourceCLI, "id"); err != nil {
				t.Fatalf("LogSuccess failed: %v", err)
			}
		}

		files, _ := filepath.Glob(filepath.Join(logger.Path(), "*.jsonl"))
		data, _ := os.ReadFile(files[0])
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		lines = edit(lines)
		if err := os.WriteFile(files[0], []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
			t.Fatalf("failed to write tampered file: %v", err)
		}

		reader := NewLogger(logger.Path())
		_ = reader.SetHMACKey(testKey())
		result, err := reader.Verify()
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		return result
	}

	t.Run("modified record", func(t *testing.T) {
		result := tamper(t, func(lines []string) []string {
			lines[1] = strings.Replace(lines[1], "credential.update", "credential.create", 1)
			return lines
		})
		if result.Valid || len(result.Errors) == 0 {
			t.Error("expected tampering to be detected")
		}
	})

	t.Run("deleted record", func(t *testing.T) {
		result := tamper(t, func(lines []string) []string {
			return append(lines[:1], lines[2:]...)
		})
		if result.Valid {
			t.Error("expected deletion to be detected")
		}
	})

	t.Run("reordered records", func(t *testing.T) {
		result := tamper(t, func(lines []string) []string {
			lines[0], lines[2] = lines[2], lines[0]
			return lines
		})
		if result.Valid {
			t.Error("expected reordering to be detected")
		}
	})

	t.Run("wrong key", func(t *testing.T) {
		logger := newTestLogger(t)
		_ = logger.LogSuccess("credential.create", SourceCLI, "id")

		other := NewLogger(logger.Path())
		_ = other.SetHMACKey(make([]byte, 32))
		result, err := other.Verify()
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if result.Valid {
			t.Error("expected verification with a different key to fail")
		}
	})
}

func TestVerifyEmptyLog(t *testing.T) {
	result, err := newTestLogger(t).Verify()
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if !result.Valid || result.RecordsTotal != 0 {
		t.Errorf("expected valid empty result, got %+v", result)
	}
}

func TestListEvents(t *testing.T) {
	logger := newTestLogger(t)
	base := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		logger.now = func() time.Time { return base.Add(time.Duration(i) * time.Minute) }
		_ = logger.LogSuccess("credential.list", SourceCLI, "")
	}

	all, _ := logger.ListEvents(0, time.Time{})
	if len(all) != 4 {
		t.Fatalf("expected 4 events, got %d", len(all))
	}

	last, _ := logger.ListEvents(2, time.Time{})
	if len(last) != 2 || last[1].Chain.Sequence != 4 {
		t.Errorf("expected the 2 most recent events, got %+v", last)
	}

	recent, _ := logger.ListEvents(0, base.Add(90*time.Second))
	if len(recent) != 2 {
		t.Errorf("expected 2 events after cutoff, got %d", len(recent))
	}
}
