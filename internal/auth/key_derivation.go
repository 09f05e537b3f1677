package auth

import (
	"crypto/sha256"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// DerivedKeyLength is the HMAC-SHA256 key size in bytes.
const DerivedKeyLength = 32

const purposeSessionJWT = "eventease-session-jwt-v1"

var ErrInvalidMasterSecret = errors.New("master secret cannot be empty")

// DeriveKey derives a purpose-bound key from the configured secret with
// HKDF-SHA256 (RFC 5869). Different purposes yield independent keys.
func DeriveKey(masterSecret []byte, purpose string) ([]byte, error) {
	if len(masterSecret) == 0 {
		return nil, ErrInvalidMasterSecret
	}
	reader := hkdf.New(sha256.New, masterSecret, nil, []byte(purpose))
	key := make([]byte, DerivedKeyLength)
	if _, err := io.ReadFull(reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// DeriveSessionKey derives the key that signs session tokens.
func DeriveSessionKey(masterSecret []byte) ([]byte, error) {
	return DeriveKey(masterSecret, purposeSessionJWT)
}
