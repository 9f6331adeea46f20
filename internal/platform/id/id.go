// Package id generates compact identifiers for persisted records.
//
// IDs are random UUIDs re-encoded as lowercase unpadded base32 so they stay
// URL-safe and sort-neutral while remaining 26 characters long.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new 26-character lowercase base32 identifier.
func NewID() (string, error) {
	raw, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(raw[:])), nil
}

// MustNewID returns a new identifier or panics. Reserved for startup paths
// where id generation failure means the process cannot run at all.
func MustNewID() string {
	id, err := NewID()
	if err != nil {
		panic(err)
	}
	return id
}
