// Package audit keeps a tamper-evident journal of vault operations.
//
// Each entry is a JSON line carrying an HMAC over its content and the HMAC of
// the previous entry, so editing, removing or reordering entries breaks the
// chain. The HMAC key is derived with HKDF from the vault's data key; the
// journal can only be written or verified while the vault is unlocked.
// Credential IDs are stored as keyed hashes, never in the clear.
package audit

import (
	"bufio"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// Operation names not owned by the vault facade.
const (
	OpVaultInit      = "vault.init"
	OpVaultUnlock    = "vault.unlock"
	OpPasswordChange = "vault.password_change"
)

// Sources identify the surface that triggered an operation.
const (
	SourceCLI = "cli"
	SourceMCP = "mcp"
	SourceAPI = "api"
)

// Results
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

const (
	genesisHash   = "genesis"
	stateFileName = "journal.meta"
	hkdfInfo      = "quantavault-journal-v1"
)

// ErrKeyNotSet is returned when writing or verifying before SetHMACKey.
var ErrKeyNotSet = errors.New("audit: HMAC key not set")

// Event is one journal line.
type Event struct {
	Version   int        `json:"v"`
	ID        string     `json:"id"`
	Timestamp string     `json:"ts"`
	Operation string     `json:"op"`
	Target    string     `json:"target,omitempty"` // HMAC of the credential ID
	Source    string     `json:"source"`
	SessionID string     `json:"session"`
	Result    string     `json:"result"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Chain     Chain      `json:"chain"`
}

// ErrorInfo describes a failed operation.
type ErrorInfo struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger appends events to monthly JSONL files in a directory.
type Logger struct {
	path      string
	mu        sync.Mutex
	hmacKey   []byte
	sequence  int64
	prevHash  string
	sessionID string
	now       func() time.Time
}

// NewLogger returns a logger writing under path.
func NewLogger(path string) *Logger {
	return &Logger{
		path:      path,
		prevHash:  genesisHash,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
}

// Path returns the journal directory.
func (l *Logger) Path() string {
	return l.path
}

// SetHMACKey derives the chain key from masterKey and loads the persisted chain position.
func (l *Logger) SetHMACKey(masterKey []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, masterKey, nil, []byte(hkdfInfo)), key); err != nil {
		return fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}
	l.hmacKey = key

	if err := l.loadChainState(); err != nil {
		// first run
		l.sequence = 0
		l.prevHash = genesisHash
	}
	return nil
}

// Log appends an event.
func (l *Logger) Log(op, source, result, target string, errInfo *ErrorInfo) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return ErrKeyNotSet
	}
	if err := os.MkdirAll(l.path, 0700); err != nil {
		return fmt.Errorf("audit: failed to create directory: %w", err)
	}

	now := l.now().UTC()
	event := Event{
		Version:   1,
		ID:        newEventID(),
		Timestamp: now.Format(time.RFC3339Nano),
		Operation: op,
		Source:    source,
		SessionID: l.sessionID,
		Result:    result,
		Error:     errInfo,
	}
	if target != "" {
		event.Target = l.mac([]byte(target))
	}

	event.Chain.Sequence = l.sequence + 1
	event.Chain.PrevHash = l.prevHash
	event.Chain.HMAC = l.mac(recordData(&event))

	if err := l.appendEvent(now, &event); err != nil {
		return err
	}
	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.HMAC
	return l.saveChainState()
}

// LogSuccess records a successful operation.
func (l *Logger) LogSuccess(op, source, target string) error {
	return l.Log(op, source, ResultSuccess, target, nil)
}

// LogError records a failed operation.
func (l *Logger) LogError(op, source, target, errCode, errMsg string) error {
	return l.Log(op, source, ResultError, target, &ErrorInfo{Code: errCode, Message: errMsg})
}

func (l *Logger) mac(data []byte) string {
	h := hmac.New(sha256.New, l.hmacKey)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// recordData is the canonical byte form covered by an event's HMAC.
func recordData(e *Event) []byte {
	var errData string
	if e.Error != nil {
		errData = e.Error.Code + "|" + e.Error.Message
	}
	return []byte(strings.Join([]string{
		fmt.Sprint(e.Version), e.ID, e.Timestamp, e.Operation, e.Target, e.Source,
		e.SessionID, e.Result, errData, fmt.Sprint(e.Chain.Sequence), e.Chain.PrevHash,
	}, "|"))
}

func (l *Logger) appendEvent(now time.Time, event *Event) error {
	name := filepath.Join(l.path, now.Format("2006-01")+".jsonl")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, stateFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, stateFileName), data, 0600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// newEventID returns a time-ordered UUIDv7, falling back to a random UUID.
func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// VerifyResult summarizes a chain verification.
type VerifyResult struct {
	Valid           bool     `json:"valid"`
	RecordsTotal    int      `json:"records_total"`
	RecordsVerified int      `json:"records_verified"`
	Errors          []string `json:"errors,omitempty"`
}

// Verify walks every journal file in order and checks sequence numbers,
// chain links and HMACs.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.hmacKey == nil {
		return nil, ErrKeyNotSet
	}

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	expectedPrev := genesisHash
	var expectedSeq int64 = 1

	for i := range events {
		event := &events[i]
		result.RecordsTotal++
		ok := true

		if event.Chain.Sequence != expectedSeq {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"sequence gap at record %s: expected %d, got %d", event.ID, expectedSeq, event.Chain.Sequence))
		}
		if event.Chain.PrevHash != expectedPrev {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"chain broken at record %s", event.ID))
		}
		if !hmac.Equal([]byte(event.Chain.HMAC), []byte(l.mac(recordData(event)))) {
			ok = false
			result.Errors = append(result.Errors, fmt.Sprintf(
				"HMAC mismatch at record %s: possible tampering", event.ID))
		}

		if ok {
			result.RecordsVerified++
		} else {
			result.Valid = false
		}
		expectedPrev = event.Chain.HMAC
		expectedSeq = event.Chain.Sequence + 1
	}
	return result, nil
}

// ListEvents returns the most recent events, at most limit (0 = all), newer than since.
func (l *Logger) ListEvents(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if !since.IsZero() {
		filtered := events[:0]
		for _, e := range events {
			ts, err := time.Parse(time.RFC3339Nano, e.Timestamp)
			if err == nil && ts.After(since) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM names sort chronologically
	sort.Strings(files)

	var events []Event
	for _, file := range files {
		fileEvents, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", filepath.Base(file), err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

func readLogFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var event Event
		if err := json.Unmarshal(line, &event); err != nil {
			return nil, fmt.Errorf("failed to parse line: %w", err)
		}
		events = append(events, event)
	}
	return events, scanner.Err()
}
