package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// NewVerificationToken returns nbytes of crypto/rand output encoded as
// unpadded base64url.
func NewVerificationToken(nbytes int) (string, error) {
	if nbytes <= 0 {
		return "", errors.New("invalid token size")
	}
	raw := make([]byte, nbytes)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}
