// Package paycode generates and validates the short confirmation codes a
// requester reads out to a fixer during a cash payment.
package paycode

import (
	"crypto/rand"
	"errors"
	"strings"
)

// Length is the fixed length of a confirmation code.
const Length = 6

// alphabet excludes nothing: codes are read aloud between two people who can
// repeat them, so the full uppercase alphanumeric set is acceptable.
const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var (
	ErrEmptyCode  = errors.New("confirmation code is required")
	ErrBadLength  = errors.New("confirmation code must be 6 characters")
	ErrBadCharset = errors.New("confirmation code must be letters and digits only")
)

// Generate returns a new random confirmation code.
func Generate() (string, error) {
	buf := make([]byte, Length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return string(buf), nil
}

// Normalize uppercases and trims user input. It does not validate.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks a normalized code against the expected shape. Validation
// failures are resolved locally and never reach the network.
func Validate(code string) error {
	if code == "" {
		return ErrEmptyCode
	}
	if len(code) != Length {
		return ErrBadLength
	}
	for _, r := range code {
		if !strings.ContainsRune(alphabet, r) {
			return ErrBadCharset
		}
	}
	return nil
}
