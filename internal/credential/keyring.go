// Package credential keeps the gateway secrets (mailbox password, API
// key) in the system keyring, with environment variables taking
// precedence.
package credential

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/99designs/keyring"
)

const serviceName = "mailgateway"

// Well-known credential keys and the environment variables that override them.
const (
	KeyEmailPassword = "email-password"
	KeyAPIKey        = "api-key"
	KeyResendAPIKey  = "resend-api-key"

	EnvEmailPassword = "EMAIL_PASSWORD"
	EnvAPIKey        = "API_KEY"
	EnvResendAPIKey  = "RESEND_API_KEY"
)

// ErrNotFound is returned when a credential is neither in the
// environment nor in the keyring.
var ErrNotFound = errors.New("credential not found")

// Store reads and writes credentials in a keyring.
type Store struct {
	ring keyring.Keyring
}

// NewStore wraps an already opened keyring.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Open returns a Store backed by the system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailgateway/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailgateway-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewStore(ring), nil
}

// Get retrieves a credential value by key from the keyring.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", fmt.Errorf("getting credential %q: %w", key, ErrNotFound)
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}

	return string(item.Data), nil
}

// Set stores a credential value by key in the keyring.
func (s *Store) Set(key string, value string) error {
	err := s.ring.Set(keyring.Item{
		Key:  key,
		Data: []byte(value),
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}

	return nil
}

// Delete removes a credential by key from the keyring.
func (s *Store) Delete(key string) error {
	if err := s.ring.Remove(key); err != nil {
		return fmt.Errorf("deleting credential %q: %w", key, err)
	}

	return nil
}

// Resolve returns the value of envVar when it is set and non-blank,
// otherwise the keyring entry for key. A nil Store only consults the
// environment.
func (s *Store) Resolve(key, envVar string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v, nil
	}
	if s == nil {
		return "", fmt.Errorf("resolving %s: %w", envVar, ErrNotFound)
	}

	v, err := s.Get(key)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", envVar, err)
	}
	return v, nil
}
