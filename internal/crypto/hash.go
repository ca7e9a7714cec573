package crypto

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrKeyMismatch is returned when a key does not match the stored fingerprint
var ErrKeyMismatch = errors.New("key does not match fingerprint")

// Fingerprint returns a hex SHA256 digest identifying key without revealing it
func Fingerprint(key []byte) (string, error) {
	if len(key) == 0 {
		return "", fmt.Errorf("key cannot be empty")
	}

	hash := sha256.Sum256(append([]byte("fingerprint:"), key...))
	return hex.EncodeToString(hash[:]), nil
}

// VerifyKey checks key against a fingerprint produced by Fingerprint
func VerifyKey(key []byte, fingerprint string) error {
	if fingerprint == "" {
		return fmt.Errorf("fingerprint cannot be empty")
	}

	computed, err := Fingerprint(key)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(computed), []byte(fingerprint)) != 1 {
		return ErrKeyMismatch
	}
	return nil
}
