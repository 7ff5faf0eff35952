package pin

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var (
	// ErrInvalidHash indicates a stored hash that cannot be parsed.
	ErrInvalidHash = errors.New("pin: invalid hash format")
	// ErrIncompatibleVersion indicates a hash from an unsupported argon2
	// version.
	ErrIncompatibleVersion = errors.New("pin: incompatible argon2 version")
)

// PINs are short and numeric, so the work factor is what stands between a
// leaked hash and a 10^4 search space. Parameters follow the OWASP argon2id
// guidance.
const (
	hashMemory      = 64 * 1024
	hashIterations  = 3
	hashParallelism = 2
	hashSaltLength  = 16
	hashKeyLength   = 32
)

// Hash derives an argon2id hash of the PIN in the standard encoded form.
func Hash(pin string) (string, error) {
	salt := make([]byte, hashSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("pin: generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(pin), salt, hashIterations, hashMemory, hashParallelism, hashKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		hashMemory,
		hashIterations,
		hashParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyHash re-derives the key with the stored parameters and compares in
// constant time. Never compare PIN material with ==.
func VerifyHash(encoded, pin string) (bool, error) {
	salt, key, memory, iterations, parallelism, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}
	derived := argon2.IDKey([]byte(pin), salt, iterations, memory, parallelism, uint32(len(key)))
	return subtle.ConstantTimeCompare(key, derived) == 1, nil
}

func decodeHash(encoded string) (salt, key []byte, memory, iterations uint32, parallelism uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, ErrIncompatibleVersion
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, 0, 0, 0, ErrInvalidHash
	}
	return salt, key, memory, iterations, parallelism, nil
}
