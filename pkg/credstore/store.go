package credstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultPath is the default credential file.
const DefaultPath = "/etc/wifi_credentials.json"

// RecordVersion is the current version of the file format.
const RecordVersion = 1

// Store errors.
var (
	ErrNotFound = errors.New("no persisted credential")
	ErrPersist  = errors.New("failed to persist credential")
	ErrCorrupt  = errors.New("persisted credential is unreadable")
)

// PersistedCredential is a verified credential pair.
type PersistedCredential struct {
	SSID       string
	Passphrase string
	SavedAt    time.Time
}

// record is the on-disk form. Password is only read, for files written by
// earlier provisioners that used that key.
type record struct {
	Version          int       `json:"version"`
	SSID             string    `json:"ssid"`
	Passphrase       string    `json:"passphrase,omitempty"`
	Password         string    `json:"password,omitempty"`
	PassphraseSealed string    `json:"passphrase_sealed,omitempty"`
	SavedAt          time.Time `json:"saved_at"`
}

// Store reads and writes the credential file.
type Store struct {
	mu     sync.Mutex
	path   string
	sealer *Sealer
	now    func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithSealer stores the passphrase encrypted.
func WithSealer(s *Sealer) Option {
	return func(st *Store) { st.sealer = s }
}

// NewStore creates a store for path.
func NewStore(path string, opts ...Option) *Store {
	if path == "" {
		path = DefaultPath
	}
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the credential file path.
func (s *Store) Path() string {
	return s.path
}

// Persist replaces the stored credential.
func (s *Store) Persist(ssid, passphrase string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := record{
		Version: RecordVersion,
		SSID:    ssid,
		SavedAt: s.now().UTC().Truncate(time.Second),
	}
	if s.sealer != nil {
		sealed, err := s.sealer.Seal(passphrase)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrPersist, err)
		}
		rec.PassphraseSealed = sealed
	} else {
		rec.Passphrase = passphrase
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	if err := writeFileAtomic(s.path, data, 0600); err != nil {
		return fmt.Errorf("%w: %v", ErrPersist, err)
	}
	return nil
}

// LoadLast returns the stored credential, or ErrNotFound.
func (s *Store) LoadLast() (*PersistedCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if rec.SSID == "" {
		return nil, fmt.Errorf("%w: missing ssid", ErrCorrupt)
	}

	passphrase := rec.Passphrase
	if passphrase == "" {
		passphrase = rec.Password
	}
	if rec.PassphraseSealed != "" {
		if s.sealer == nil {
			return nil, fmt.Errorf("%w: passphrase is sealed and no key is configured", ErrCorrupt)
		}
		passphrase, err = s.sealer.Open(rec.PassphraseSealed)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
		}
	}
	if passphrase == "" {
		return nil, fmt.Errorf("%w: missing passphrase", ErrCorrupt)
	}

	return &PersistedCredential{
		SSID:       rec.SSID,
		Passphrase: passphrase,
		SavedAt:    rec.SavedAt,
	}, nil
}

// Clear removes the credential file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
