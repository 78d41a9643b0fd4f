package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	argon2Prefix          = "$argon2id$"

	// DefaultMaxPasswordBytes bounds plaintext size when Argon2Config.MaxPasswordBytes is zero.
	DefaultMaxPasswordBytes = 1024
)

// Argon2Config holds argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MaxPasswordBytes int
}

// Argon2 hashes credentials with argon2id and encodes them as PHC strings.
type Argon2 struct {
	config Argon2Config
}

type argon2Digest struct {
	memory      uint32
	time        uint32
	parallelism uint8
	salt        []byte
	key         []byte
}

// NewArgon2 validates cfg and returns an argon2id hasher.
func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.MaxPasswordBytes <= 0 {
		cfg.MaxPasswordBytes = DefaultMaxPasswordBytes
	}
	return &Argon2{config: cfg}, nil
}

// Hash derives a fresh salted digest for plaintext. The plaintext bytes are
// used as given, without Unicode normalization.
func (a *Argon2) Hash(plaintext string) (string, error) {
	if len(plaintext) > a.maxBytes() {
		return "", ErrTooLong
	}

	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", err
	}

	key := argon2.IDKey([]byte(plaintext), salt, a.config.Time, a.config.Memory, a.config.Parallelism, a.config.KeyLength)

	return fmt.Sprintf(
		"%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix,
		argon2.Version,
		a.config.Memory,
		a.config.Time,
		a.config.Parallelism,
		base64.StdEncoding.EncodeToString(salt),
		base64.StdEncoding.EncodeToString(key),
	), nil
}

// Verify recomputes the key with the parameters embedded in digest and
// compares in constant time.
func (a *Argon2) Verify(plaintext, digest string) (bool, error) {
	if len(plaintext) > a.maxBytes() {
		return false, ErrTooLong
	}

	d, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(plaintext), d.salt, d.time, d.memory, d.parallelism, uint32(len(d.key)))
	return subtle.ConstantTimeCompare(computed, d.key) == 1, nil
}

// NeedsUpgrade reports whether digest was produced with weaker parameters
// than the hasher's current configuration.
func (a *Argon2) NeedsUpgrade(digest string) (bool, error) {
	d, err := decodeArgon2(digest)
	if err != nil {
		return false, err
	}

	switch {
	case a.config.Memory > d.memory,
		a.config.Time > d.time,
		a.config.Parallelism > d.parallelism,
		a.config.KeyLength != uint32(len(d.key)):
		return true, nil
	}
	return false, nil
}

func (a *Argon2) maxBytes() int {
	if a.config.MaxPasswordBytes <= 0 {
		return DefaultMaxPasswordBytes
	}
	return a.config.MaxPasswordBytes
}

func decodeArgon2(digest string) (*argon2Digest, error) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, ErrMalformedDigest
	}
	if parts[1] != "argon2id" {
		return nil, errors.New("unsupported algorithm")
	}

	version, err := strconv.Atoi(strings.TrimPrefix(parts[2], "v="))
	if err != nil || !strings.HasPrefix(parts[2], "v=") {
		return nil, errors.New("invalid argon2 version")
	}
	if version != argon2.Version {
		return nil, errors.New("unsupported argon2 version")
	}

	d := &argon2Digest{}
	if err := d.parseParams(parts[3]); err != nil {
		return nil, err
	}

	d.salt, err = base64.StdEncoding.DecodeString(parts[4])
	if err != nil || len(d.salt) < int(minSaltLength) {
		return nil, errors.New("invalid salt")
	}
	d.key, err = base64.StdEncoding.DecodeString(parts[5])
	if err != nil || len(d.key) == 0 {
		return nil, errors.New("invalid hash")
	}

	return d, nil
}

func (d *argon2Digest) parseParams(part string) error {
	seen := map[string]bool{}
	for _, pair := range strings.Split(part, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return errors.New("invalid parameter entry")
		}
		switch k {
		case "m":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minMemoryKB) {
				return errors.New("invalid memory parameter")
			}
			d.memory = uint32(n)
		case "t":
			n, err := strconv.ParseUint(v, 10, 32)
			if err != nil || n < uint64(minTimeCost) {
				return errors.New("invalid time parameter")
			}
			d.time = uint32(n)
		case "p":
			n, err := strconv.ParseUint(v, 10, 8)
			if err != nil || n < uint64(minParallelism) {
				return errors.New("invalid parallelism parameter")
			}
			d.parallelism = uint8(n)
		default:
			return errors.New("unsupported parameter")
		}
		seen[k] = true
	}
	if len(seen) != 3 {
		return errors.New("missing parameters")
	}
	return nil
}

func (c Argon2Config) validate() error {
	if c.Memory < minMemoryKB {
		return errors.New("password memory must be >= 8192 KB")
	}
	if c.Time < minTimeCost {
		return errors.New("password time must be >= 1")
	}
	if c.Parallelism < minParallelism {
		return errors.New("password parallelism must be >= 1")
	}
	if c.SaltLength < minSaltLength {
		return errors.New("password salt length must be >= 16")
	}
	if c.KeyLength < minKeyLength {
		return errors.New("password key length must be >= 16")
	}
	return nil
}
