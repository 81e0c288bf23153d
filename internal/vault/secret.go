package vault

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argonParams are the Argon2id cost settings for both key derivation and
// secret hashing.
type argonParams struct {
	time    uint32
	memory  uint32
	threads uint8
	keyLen  uint32
}

var defaultParams = argonParams{time: 3, memory: 64 * 1024, threads: 1, keyLen: 32}

const saltLen = 16

func randomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("reading random bytes: %w", err)
	}
	return b, nil
}

func (p argonParams) derive(secret, salt []byte) []byte {
	return argon2.IDKey(secret, salt, p.time, p.memory, p.threads, p.keyLen)
}

// hashSecret returns secret as a PHC string:
// $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func hashSecret(secret string, p argonParams) (string, error) {
	salt, err := randomBytes(saltLen)
	if err != nil {
		return "", err
	}
	sum := p.derive([]byte(secret), salt)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.memory, p.time, p.threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// verifySecret reports whether secret matches a PHC string from hashSecret.
// Malformed hashes never match.
func verifySecret(secret, encoded string) bool {
	fields := strings.Split(encoded, "$")
	if len(fields) != 6 || fields[1] != "argon2id" { //nolint:mnd // PHC has six $-separated fields
		return false
	}

	var p argonParams
	if _, err := fmt.Sscanf(fields[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return false
	}
	salt, err := base64.RawStdEncoding.DecodeString(fields[4])
	if err != nil {
		return false
	}
	want, err := base64.RawStdEncoding.DecodeString(fields[5])
	if err != nil || len(want) == 0 {
		return false
	}
	p.keyLen = uint32(len(want)) //nolint:gosec // hash length always fits uint32

	return subtle.ConstantTimeCompare(want, p.derive([]byte(secret), salt)) == 1
}
