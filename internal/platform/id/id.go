// Package id generates opaque identifiers for connections, messages,
// and users. IDs are random UUIDv4 values rendered as 26-character
// lowercase base32 strings, so they are safe to expose on the wire.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a new random identifier.
func NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate uuid: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(value[:])), nil
}

// MustNewID returns a new random identifier and panics when the random
// source fails. Reserved for paths where a missing entropy source is
// unrecoverable anyway.
func MustNewID() string {
	value, err := NewID()
	if err != nil {
		panic(err)
	}
	return value
}
