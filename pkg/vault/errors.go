package vault

import "errors"

// Errors
var (
	ErrNotFound           = errors.New("vault: credential not found")
	ErrInvalidCredential  = errors.New("vault: invalid credential")
	ErrVaultAlreadyExists = errors.New("vault: vault already exists at this path")
	ErrVaultNotFound      = errors.New("vault: vault not found at this path")
	ErrVaultCorrupted     = errors.New("vault: vault is corrupted")
	ErrInvalidPassword    = errors.New("vault: invalid master password")
	ErrSamePassword       = errors.New("vault: new password must differ from current password")
	ErrTooManyAttempts    = errors.New("vault: too many failed unlock attempts")
	ErrCooldownActive     = errors.New("vault: cooldown period active")
	ErrPasswordTooShort   = errors.New("vault: password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("vault: password must be at most 128 characters")
)

// Facade operation names carried by StoreError.
const (
	OpList     = "list"
	OpGet      = "get"
	OpCreate   = "create"
	OpUpdate   = "update"
	OpDelete   = "delete"
	OpFavorite = "favorite"
)

// StoreError is returned by every Vault operation that fails.
// Callers that only need a message can use Error(); errors.Is still
// reaches the underlying sentinel.
type StoreError struct {
	Op  string // facade operation
	ID  string // credential ID, if any
	Err error
}

func (e *StoreError) Error() string {
	if e.ID != "" {
		return e.Op + " " + e.ID + ": " + e.Err.Error()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *StoreError) Unwrap() error { return e.Err }

func storeErr(op, id string, err error) error {
	if err == nil {
		return nil
	}
	return &StoreError{Op: op, ID: id, Err: err}
}
