// Package keystore provides encrypted storage for API keys.
package keystore

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"runtime"
)

// EnvMasterKey names the environment variable holding the keystore master
// key. When unset, a machine-derived key is used.
const EnvMasterKey = "SHOWROOM_MASTER_KEY"

// Keystore defines the interface for secure key storage.
type Keystore interface {
	// Set stores a key-value pair.
	Set(name, value string) error
	// Get retrieves a value by name. Returns error if not found.
	Get(name string) (string, error)
	// Delete removes a key by name.
	Delete(name string) error
	// List returns all stored key names.
	List() ([]string, error)
}

// ErrKeyNotFound is returned when a requested key does not exist.
type ErrKeyNotFound struct {
	Name string
}

func (e *ErrKeyNotFound) Error() string {
	return "key not found: " + e.Name
}

// MasterKeySource supplies the secret the file encryption key is derived
// from.
type MasterKeySource interface {
	GetMasterKey() ([]byte, error)
}

// StaticKey is a MasterKeySource with a fixed value.
type StaticKey []byte

// GetMasterKey returns the key.
func (k StaticKey) GetMasterKey() ([]byte, error) {
	if len(k) == 0 {
		return nil, errors.New("master key is empty")
	}
	return []byte(k), nil
}

// EnvKey reads the master key from an environment variable.
type EnvKey string

// GetMasterKey returns the variable's value.
func (k EnvKey) GetMasterKey() ([]byte, error) {
	v := os.Getenv(string(k))
	if v == "" {
		return nil, errors.New(string(k) + " is not set")
	}
	return []byte(v), nil
}

// MachineKey derives a master key from the hostname and user name. It only
// keeps keys from being readable as plain text on disk; anyone with access
// to the same account can derive it.
type MachineKey struct{}

// GetMasterKey returns the derived key.
func (MachineKey) GetMasterKey() ([]byte, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	hash := sha256.Sum256([]byte(hostname + ":" + username + ":showroom-keystore"))
	return hash[:], nil
}

// DefaultKeystorePath returns the default keystore file path.
// - macOS/Linux: ~/.showroom/keys.enc
// - Windows: %USERPROFILE%\.showroom\keys.enc
func DefaultKeystorePath() string {
	var homeDir string

	if runtime.GOOS == "windows" {
		homeDir = os.Getenv("USERPROFILE")
	} else {
		homeDir = os.Getenv("HOME")
	}

	if homeDir == "" {
		return "keys.enc"
	}

	return filepath.Join(homeDir, ".showroom", "keys.enc")
}

// NewKeystore opens the default keystore, keyed from SHOWROOM_MASTER_KEY
// when set and from the machine otherwise.
func NewKeystore() (Keystore, error) {
	var source MasterKeySource = MachineKey{}
	if os.Getenv(EnvMasterKey) != "" {
		source = EnvKey(EnvMasterKey)
	}
	return NewFileKeystore(DefaultKeystorePath(), source)
}
