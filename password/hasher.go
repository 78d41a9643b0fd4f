package password

import (
	"errors"
	"strings"
)

var (
	// ErrMalformedDigest is returned when a stored digest cannot be parsed.
	ErrMalformedDigest = errors.New("malformed password digest")
	// ErrUnknownAlgorithm is returned for digests of an unrecognised format.
	ErrUnknownAlgorithm = errors.New("unknown password digest algorithm")
	// ErrTooLong is returned when a plaintext exceeds the algorithm's input limit.
	ErrTooLong = errors.New("password too long")
)

// Algorithm names accepted by Config.Algorithm.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// Config selects the algorithm used for new digests and carries the cost
// parameters for both supported algorithms.
type Config struct {
	Algorithm string
	Cost      int
	Argon2    Argon2Config
}

// Hasher hashes with the configured algorithm and verifies digests of any
// supported algorithm, dispatching on the digest prefix.
type Hasher struct {
	algorithm string
	bcrypt    *Bcrypt
	argon2    *Argon2
}

// New builds a Hasher. Only the parameters of the selected algorithm are
// validated; the other algorithm is available for verification only.
func New(cfg Config) (*Hasher, error) {
	h := &Hasher{algorithm: cfg.Algorithm}

	switch cfg.Algorithm {
	case AlgorithmBcrypt:
		b, err := NewBcrypt(cfg.Cost)
		if err != nil {
			return nil, err
		}
		h.bcrypt = b
		h.argon2 = &Argon2{config: cfg.Argon2}
	case AlgorithmArgon2id:
		a, err := NewArgon2(cfg.Argon2)
		if err != nil {
			return nil, err
		}
		h.argon2 = a
		h.bcrypt = &Bcrypt{cost: cfg.Cost}
	default:
		return nil, ErrUnknownAlgorithm
	}

	return h, nil
}

// Hash describes the hash operation and its observable behavior.
//
// Hash may return an error when the plaintext is rejected by the algorithm or the system random source fails.
// Hash does not mutate shared global state and can be used concurrently.
func (h *Hasher) Hash(plaintext string) (string, error) {
	if h.algorithm == AlgorithmArgon2id {
		return h.argon2.Hash(plaintext)
	}
	return h.bcrypt.Hash(plaintext)
}

// Verify describes the verify operation and its observable behavior.
//
// Verify returns (false, nil) for a well-formed digest that does not match and
// an error only for digests it cannot interpret.
func (h *Hasher) Verify(plaintext, digest string) (bool, error) {
	switch algorithmOf(digest) {
	case AlgorithmBcrypt:
		return h.bcrypt.Verify(plaintext, digest)
	case AlgorithmArgon2id:
		return h.argon2.Verify(plaintext, digest)
	default:
		return false, ErrUnknownAlgorithm
	}
}

// NeedsUpgrade reports whether digest should be replaced by a fresh Hash:
// either it uses a different algorithm or weaker parameters.
func (h *Hasher) NeedsUpgrade(digest string) (bool, error) {
	algo := algorithmOf(digest)
	if algo == "" {
		return false, ErrUnknownAlgorithm
	}
	if algo != h.algorithm {
		return true, nil
	}
	if algo == AlgorithmArgon2id {
		return h.argon2.NeedsUpgrade(digest)
	}
	return h.bcrypt.NeedsUpgrade(digest)
}

func algorithmOf(digest string) string {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return AlgorithmArgon2id
	case strings.HasPrefix(digest, "$2a$"),
		strings.HasPrefix(digest, "$2b$"),
		strings.HasPrefix(digest, "$2y$"):
		return AlgorithmBcrypt
	default:
		return ""
	}
}
