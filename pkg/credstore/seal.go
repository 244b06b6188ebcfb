package credstore

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/nacl/secretbox"
)

// DefaultMachineIDPath holds the per-install machine identifier.
const DefaultMachineIDPath = "/etc/machine-id"

const nonceSize = 24

var (
	sealSalt = []byte("wifiprov credential store")
	sealInfo = []byte("passphrase v1")
)

// Seal errors.
var (
	ErrSealedTooShort = errors.New("sealed passphrase too short")
	ErrSealedOpen     = errors.New("sealed passphrase does not open with this key")
)

// Sealer encrypts passphrases with a key bound to a device secret. It keeps
// the passphrase out of plain text on disk; anyone who can read the device
// secret can still recover it.
type Sealer struct {
	key [32]byte
}

// NewSealer derives the sealing key from secret.
func NewSealer(secret []byte) (*Sealer, error) {
	if len(bytes.TrimSpace(secret)) == 0 {
		return nil, errors.New("empty sealing secret")
	}
	s := &Sealer{}
	r := hkdf.New(sha256.New, bytes.TrimSpace(secret), sealSalt, sealInfo)
	if _, err := io.ReadFull(r, s.key[:]); err != nil {
		return nil, fmt.Errorf("derive sealing key: %w", err)
	}
	return s, nil
}

// NewMachineSealer derives the sealing key from the machine-id file.
func NewMachineSealer(path string) (*Sealer, error) {
	if path == "" {
		path = DefaultMachineIDPath
	}
	secret, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read machine id: %w", err)
	}
	return NewSealer(secret)
}

// Seal encrypts plaintext and returns base64(nonce || ciphertext).
func (s *Sealer) Seal(plaintext string) (string, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	out := secretbox.Seal(nonce[:], []byte(plaintext), &nonce, &s.key)
	return base64.StdEncoding.EncodeToString(out), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}
	if len(data) < nonceSize+secretbox.Overhead {
		return "", ErrSealedTooShort
	}

	var nonce [nonceSize]byte
	copy(nonce[:], data[:nonceSize])

	plaintext, ok := secretbox.Open(nil, data[nonceSize:], &nonce, &s.key)
	if !ok {
		return "", ErrSealedOpen
	}
	return string(plaintext), nil
}
