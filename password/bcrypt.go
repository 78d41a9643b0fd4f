package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Bcrypt hashes credentials with bcrypt at a fixed cost factor.
type Bcrypt struct {
	cost int
}

// NewBcrypt returns a bcrypt hasher. cost must lie within
// [bcrypt.MinCost, bcrypt.MaxCost].
func NewBcrypt(cost int) (*Bcrypt, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost)
	}
	return &Bcrypt{cost: cost}, nil
}

// Hash returns the bcrypt digest of plaintext. Plaintexts longer than 72
// bytes are rejected rather than silently truncated.
func (b *Bcrypt) Hash(plaintext string) (string, error) {
	if len(plaintext) > 72 {
		return "", ErrTooLong
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plaintext), b.cost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Verify reports whether plaintext matches digest. A mismatch is not an error.
func (b *Bcrypt) Verify(plaintext, digest string) (bool, error) {
	err := bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	case errors.Is(err, bcrypt.ErrHashTooShort):
		return false, ErrMalformedDigest
	default:
		return false, err
	}
}

// NeedsUpgrade reports whether digest was produced with a lower cost.
func (b *Bcrypt) NeedsUpgrade(digest string) (bool, error) {
	cost, err := bcrypt.Cost([]byte(digest))
	if err != nil {
		return false, ErrMalformedDigest
	}
	return cost < b.cost, nil
}
