package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFKeyLength is the length of keys produced by DeriveKey.
const HKDFKeyLength = 32

// DeriveKey derives a purpose-bound subkey from the service master key
// using HKDF-SHA256. The info label keeps keys for different record
// families (events, profiles, accounts) cryptographically independent.
func DeriveKey(master []byte, info string) ([]byte, error) {
	h := hkdf.New(sha256.New, master, nil, []byte(info))
	k := make([]byte, HKDFKeyLength)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
