// Package vault stores a single API credential on disk encrypted under a
// password-derived key.
package vault

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// #region constants
const (
	SaltLength        = 16
	NonceLength       = 12
	KeyLength         = 32
	DefaultIterations = 600_000
	MinIterations     = 1_000
	MaxIterations     = 10_000_000
	FileMode          = 0o600
	DirMode           = 0o700
	appDir            = "narcan-finder"
	fileName          = "credential.vault"
)

// #endregion constants

// #region errors
var (
	ErrUninitialized        = errors.New("vault: no credential stored")
	ErrAuthenticationFailed = errors.New("vault: wrong password or tampered file")
	ErrCorrupt              = errors.New("vault: credential file is corrupt")
	ErrIO                   = errors.New("vault: io failure")
	ErrEmptySecret          = errors.New("vault: secret must not be empty")
	ErrEmptyPassword        = errors.New("vault: password must not be empty")
	ErrSealed               = errors.New("vault: vault is sealed")
)

// #endregion errors

// #region state
// State describes what the vault currently knows.
type State int

const (
	Uninitialized State = iota
	Sealed
	Unsealed
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Sealed:
		return "sealed"
	case Unsealed:
		return "unsealed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// #endregion state

// #region vault
// Vault guards one encrypted credential file. The plaintext secret is held
// in memory only between Unseal and Lock.
type Vault struct {
	mu         sync.Mutex
	path       string
	iterations int
	logger     *zap.Logger
	secret     []byte
}

// Option customizes a Vault.
type Option func(*Vault)

// WithIterations overrides the PBKDF2 work factor used for new seals.
// Values are clamped to [MinIterations, MaxIterations].
func WithIterations(n int) Option {
	return func(v *Vault) {
		n = max(MinIterations, min(n, MaxIterations))
		v.iterations = n
	}
}

// WithLogger attaches a logger. Secrets and passwords are never logged.
func WithLogger(l *zap.Logger) Option {
	return func(v *Vault) {
		if l != nil {
			v.logger = l
		}
	}
}

// New returns a vault bound to path. Nothing is read until State or Unseal.
func New(path string, opts ...Option) *Vault {
	v := &Vault{
		path:       path,
		iterations: DefaultIterations,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// DefaultPath returns the per-user credential location.
func DefaultPath() (string, error) {
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("%w: locate cache dir: %w", ErrIO, err)
	}
	return filepath.Join(base, appDir, fileName), nil
}

// Path returns the backing file path.
func (v *Vault) Path() string { return v.path }

// State reports Unsealed if a secret is held, else Sealed if the file
// exists, else Uninitialized.
func (v *Vault) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.secret != nil {
		return Unsealed
	}
	if _, err := os.Stat(v.path); err == nil {
		return Sealed
	}
	return Uninitialized
}

// Seal encrypts secret under password and atomically replaces the file.
// Any in-memory secret is dropped; the vault is left Sealed.
func (v *Vault) Seal(secret, password string) error {
	if secret == "" {
		return ErrEmptySecret
	}
	if password == "" {
		return ErrEmptyPassword
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	b, err := encrypt([]byte(secret), password, v.iterations)
	if err != nil {
		return err
	}
	if err := writeAtomic(v.path, b.marshal()); err != nil {
		v.logger.Warn("vault seal failed", zap.String("path", v.path), zap.Error(err))
		return err
	}
	v.dropLocked()
	v.logger.Info("vault sealed",
		zap.String("path", v.path),
		zap.Int("iterations", v.iterations))
	return nil
}

// Unseal decrypts the stored credential and keeps it in memory.
func (v *Vault) Unseal(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	plaintext, err := v.openLocked(password)
	if err != nil {
		if errors.Is(err, ErrAuthenticationFailed) {
			v.logger.Warn("vault unseal rejected", zap.String("path", v.path))
		}
		return "", err
	}
	v.dropLocked()
	v.secret = plaintext
	return string(plaintext), nil
}

// Verify checks password against the stored file without retaining the secret.
func (v *Vault) Verify(password string) error {
	if password == "" {
		return ErrEmptyPassword
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	plaintext, err := v.openLocked(password)
	if err != nil {
		return err
	}
	wipe(plaintext)
	return nil
}

// Secret returns the unsealed credential or ErrSealed.
func (v *Vault) Secret() (string, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.secret == nil {
		return "", ErrSealed
	}
	return string(v.secret), nil
}

// Lock wipes the in-memory secret.
func (v *Vault) Lock() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropLocked()
}

// Rekey re-encrypts the stored credential under newPassword. An empty
// secret keeps the current one.
func (v *Vault) Rekey(currentPassword, secret, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return ErrEmptyPassword
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	plaintext, err := v.openLocked(currentPassword)
	if err != nil {
		return err
	}
	defer wipe(plaintext)
	if secret != "" {
		plaintext = []byte(secret)
	}
	b, err := encrypt(plaintext, newPassword, v.iterations)
	if err != nil {
		return err
	}
	if err := writeAtomic(v.path, b.marshal()); err != nil {
		return err
	}
	v.dropLocked()
	v.logger.Info("vault rekeyed", zap.String("path", v.path))
	return nil
}

func (v *Vault) openLocked(password string) ([]byte, error) {
	data, err := readBlob(v.path)
	if err != nil {
		return nil, err
	}
	b, err := parseBlob(data)
	if err != nil {
		return nil, err
	}
	return decrypt(b, password)
}

func (v *Vault) dropLocked() {
	if v.secret != nil {
		wipe(v.secret)
		v.secret = nil
	}
}

// #endregion vault
