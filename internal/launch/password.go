package launch

import (
	"crypto/rand"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
)

// hashPattern is the notebook server's passwd() format for sha1 hashes.
var hashPattern = regexp.MustCompile(`^sha1:([0-9a-f]{16}):([0-9a-f]{40})$`)

const saltBytes = 8

// PasswordHash is a salted sha1 password hash.
type PasswordHash struct {
	Salt   string // 16 lowercase hex chars
	Digest string // 40 lowercase hex chars
}

// String formats the hash as sha1:<salt>:<digest>.
func (h PasswordHash) String() string {
	return "sha1:" + h.Salt + ":" + h.Digest
}

// Matches reports whether password hashes to h.
func (h PasswordHash) Matches(password string) bool {
	return digest(password, h.Salt) == h.Digest
}

// HashPassword salts and hashes password with salt bytes read from r.
// A nil r uses crypto/rand.
func HashPassword(password string, r io.Reader) (PasswordHash, error) {
	if r == nil {
		r = rand.Reader
	}
	buf := make([]byte, saltBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return PasswordHash{}, fmt.Errorf("failed to generate password salt: %w", err)
	}

	salt := hex.EncodeToString(buf)
	return PasswordHash{Salt: salt, Digest: digest(password, salt)}, nil
}

// ParseHash parses a sha1:<salt>:<digest> string.
func ParseHash(s string) (PasswordHash, error) {
	m := hashPattern.FindStringSubmatch(s)
	if m == nil {
		return PasswordHash{}, fmt.Errorf("malformed password hash %q", s)
	}
	return PasswordHash{Salt: m[1], Digest: m[2]}, nil
}

func digest(password, salt string) string {
	sum := sha1.Sum([]byte(password + salt))
	return hex.EncodeToString(sum[:])
}
