package vault

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest6511/quantavault/pkg/crypto"
	"github.com/forest6511/quantavault/pkg/strength"
)

// Files kept in the vault directory.
const (
	KeyringFileName = "keyring.json"
	LockFileName    = "vault.lock"
	FileMode        = 0600
	DirMode         = 0700

	keyringVersion = 1
)

// Unlock attempt limits: 5 failures -> 30s, 10 -> 5min, 20 -> 30min.
const (
	CooldownThreshold1 = 5
	CooldownThreshold2 = 10
	CooldownThreshold3 = 20
	CooldownDuration1  = 30 * time.Second
	CooldownDuration2  = 5 * time.Minute
	CooldownDuration3  = 30 * time.Minute
)

// Master password limits.
const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

// keyringFile is the on-disk keyring: the KDF salt and parameters plus the
// DEK wrapped by the password-derived KEK.
type keyringFile struct {
	Version    int              `json:"version"`
	CreatedAt  time.Time        `json:"created_at"`
	KDF        crypto.KDFParams `json:"kdf"`
	Salt       []byte           `json:"salt"`
	WrappedDEK []byte           `json:"wrapped_dek"`
}

// LockState tracks failed unlock attempts for cooldown enforcement.
type LockState struct {
	FailedAttempts int       `json:"failed_attempts"`
	LastAttempt    time.Time `json:"last_attempt"`
	CooldownUntil  time.Time `json:"cooldown_until"`
}

// Keyring owns the envelope key material stored in a vault directory.
type Keyring struct {
	dir string
	kdf crypto.KDFParams
	now func() time.Time
}

// NewKeyring returns a keyring rooted at dir using the default KDF parameters.
func NewKeyring(dir string) *Keyring {
	return &Keyring{dir: dir, kdf: crypto.DefaultKDF, now: time.Now}
}

// WithKDF overrides the parameters used when the keyring is created or re-wrapped.
// Existing keyrings always unlock with the parameters they were written with.
func (k *Keyring) WithKDF(p crypto.KDFParams) *Keyring {
	k.kdf = p
	return k
}

// WithClock replaces time.Now for cooldown bookkeeping.
func (k *Keyring) WithClock(now func() time.Time) *Keyring {
	k.now = now
	return k
}

// Dir returns the vault directory.
func (k *Keyring) Dir() string {
	return k.dir
}

// Exists reports whether a keyring has been initialized in the directory.
func (k *Keyring) Exists() bool {
	_, err := os.Stat(filepath.Join(k.dir, KeyringFileName))
	return err == nil
}

// Init creates the vault directory and a new keyring protected by masterPassword.
func (k *Keyring) Init(masterPassword string) error {
	if k.Exists() {
		return ErrVaultAlreadyExists
	}
	if err := checkPasswordLength(masterPassword); err != nil {
		return err
	}
	if err := os.MkdirAll(k.dir, DirMode); err != nil {
		return fmt.Errorf("vault: failed to create vault directory: %w", err)
	}

	dek, err := crypto.RandomBytes(crypto.KeyLength)
	if err != nil {
		return fmt.Errorf("vault: failed to generate DEK: %w", err)
	}
	defer crypto.SecureWipe(dek)

	kf, err := k.wrap(masterPassword, dek)
	if err != nil {
		return err
	}
	kf.CreatedAt = k.now().UTC()
	return k.save(kf)
}

// Session holds an unlocked data-encryption key.
type Session struct {
	dek    []byte
	sealer *crypto.Sealer
}

// Sealer returns the field sealer for this session.
func (s *Session) Sealer() *crypto.Sealer {
	return s.sealer
}

// KeyMaterial returns the raw DEK for deriving subkeys. Callers must not retain it.
func (s *Session) KeyMaterial() []byte {
	return s.dek
}

// Close wipes the DEK from memory.
func (s *Session) Close() {
	if s.dek != nil {
		crypto.SecureWipe(s.dek)
		s.dek = nil
	}
}

// Unlock derives the KEK from masterPassword and unwraps the DEK.
// Repeated failures trigger an increasing cooldown.
func (k *Keyring) Unlock(masterPassword string) (*Session, error) {
	kf, err := k.load()
	if err != nil {
		return nil, err
	}

	if remaining := k.RemainingCooldown(); remaining > 0 {
		return nil, fmt.Errorf("%w: please wait %v", ErrCooldownActive, remaining.Round(time.Second))
	}

	kek := crypto.DeriveKey([]byte(masterPassword), kf.Salt, kf.KDF)
	defer crypto.SecureWipe(kek)

	dek, err := crypto.Unwrap(kek, kf.WrappedDEK)
	if err != nil {
		if !errors.Is(err, crypto.ErrDecryptionFailed) {
			return nil, fmt.Errorf("vault: failed to unwrap DEK: %w", err)
		}
		cooldown, recordErr := k.recordFailedAttempt()
		if recordErr != nil {
			fmt.Fprintf(os.Stderr, "warning: failed to record unlock attempt: %v\n", recordErr)
		}
		if cooldown > 0 {
			return nil, fmt.Errorf("%w: cooldown activated for %v", ErrTooManyAttempts, cooldown)
		}
		return nil, ErrInvalidPassword
	}

	sealer, err := crypto.NewSealer(dek)
	if err != nil {
		crypto.SecureWipe(dek)
		return nil, err
	}
	if err := k.clearLockState(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: failed to clear lock state: %v\n", err)
	}
	return &Session{dek: dek, sealer: sealer}, nil
}

// ChangePassword re-wraps the DEK under a new master password with a fresh salt.
// Stored credentials are untouched.
func (k *Keyring) ChangePassword(current, next string) error {
	if current == next {
		return ErrSamePassword
	}
	if err := checkPasswordLength(next); err != nil {
		return err
	}

	sess, err := k.Unlock(current)
	if err != nil {
		return err
	}
	defer sess.Close()

	old, err := k.load()
	if err != nil {
		return err
	}
	kf, err := k.wrap(next, sess.dek)
	if err != nil {
		return err
	}
	kf.CreatedAt = old.CreatedAt
	return k.save(kf)
}

func (k *Keyring) wrap(masterPassword string, dek []byte) (*keyringFile, error) {
	salt, err := crypto.RandomBytes(crypto.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to generate salt: %w", err)
	}
	kek := crypto.DeriveKey([]byte(masterPassword), salt, k.kdf)
	defer crypto.SecureWipe(kek)

	wrapped, err := crypto.Wrap(kek, dek)
	if err != nil {
		return nil, fmt.Errorf("vault: failed to wrap DEK: %w", err)
	}
	return &keyringFile{
		Version:    keyringVersion,
		KDF:        k.kdf,
		Salt:       salt,
		WrappedDEK: wrapped,
	}, nil
}

func (k *Keyring) load() (*keyringFile, error) {
	data, err := os.ReadFile(filepath.Join(k.dir, KeyringFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrVaultNotFound
		}
		return nil, fmt.Errorf("vault: failed to read keyring: %w", err)
	}

	var kf keyringFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVaultCorrupted, err)
	}
	if kf.Version != keyringVersion || len(kf.Salt) != crypto.SaltLength || len(kf.WrappedDEK) == 0 {
		return nil, ErrVaultCorrupted
	}
	return &kf, nil
}

// save writes the keyring atomically via a temp file and rename.
func (k *Keyring) save(kf *keyringFile) error {
	data, err := json.MarshalIndent(kf, "", "  ")
	if err != nil {
		return fmt.Errorf("vault: failed to marshal keyring: %w", err)
	}
	path := filepath.Join(k.dir, KeyringFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write keyring: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("vault: failed to replace keyring: %w", err)
	}
	return nil
}

func (k *Keyring) loadLockState() (*LockState, error) {
	data, err := os.ReadFile(filepath.Join(k.dir, LockFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &LockState{}, nil
		}
		return nil, fmt.Errorf("vault: failed to read lock state: %w", err)
	}

	var state LockState
	if err := json.Unmarshal(data, &state); err != nil {
		// corrupted lock file resets the counter
		return &LockState{}, nil
	}
	return &state, nil
}

func (k *Keyring) saveLockState(state *LockState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("vault: failed to marshal lock state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(k.dir, LockFileName), data, FileMode); err != nil {
		return fmt.Errorf("vault: failed to write lock state: %w", err)
	}
	return nil
}

func (k *Keyring) clearLockState() error {
	err := os.Remove(filepath.Join(k.dir, LockFileName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("vault: failed to clear lock state: %w", err)
	}
	return nil
}

// recordFailedAttempt bumps the failure counter and returns the cooldown it triggered, if any.
func (k *Keyring) recordFailedAttempt() (time.Duration, error) {
	state, err := k.loadLockState()
	if err != nil {
		return 0, err
	}

	now := k.now()
	state.FailedAttempts++
	state.LastAttempt = now

	var cooldown time.Duration
	switch {
	case state.FailedAttempts >= CooldownThreshold3:
		cooldown = CooldownDuration3
	case state.FailedAttempts >= CooldownThreshold2:
		cooldown = CooldownDuration2
	case state.FailedAttempts >= CooldownThreshold1:
		cooldown = CooldownDuration1
	}
	if cooldown > 0 {
		state.CooldownUntil = now.Add(cooldown)
	}

	return cooldown, k.saveLockState(state)
}

// RemainingCooldown returns the time left before another unlock attempt is allowed.
func (k *Keyring) RemainingCooldown() time.Duration {
	state, err := k.loadLockState()
	if err != nil {
		return 0
	}
	now := k.now()
	if !state.CooldownUntil.IsZero() && now.Before(state.CooldownUntil) {
		return state.CooldownUntil.Sub(now)
	}
	return 0
}

// PasswordValidationResult contains the result of master password validation.
type PasswordValidationResult struct {
	Valid    bool
	Score    int
	Tier     strength.Tier
	Warnings []string
}

// ValidateMasterPassword checks the hard length limits and rates the password
// with the same scorer used for stored credentials. A low tier only warns.
func ValidateMasterPassword(password string) *PasswordValidationResult {
	res := strength.Evaluate(password)
	result := &PasswordValidationResult{
		Valid: true,
		Score: res.Score,
		Tier:  res.Tier,
	}
	if err := checkPasswordLength(password); err != nil {
		result.Valid = false
		result.Warnings = append(result.Warnings, err.Error())
		return result
	}
	for _, h := range res.Hints {
		result.Warnings = append(result.Warnings, string(h))
	}
	return result
}

func checkPasswordLength(password string) error {
	switch {
	case len(password) < MinPasswordLength:
		return ErrPasswordTooShort
	case len(password) > MaxPasswordLength:
		return ErrPasswordTooLong
	}
	return nil
}
