// Package credential issues and digests the opaque API keys that devices
// present on every request.
//
// A credential is 32 bytes from the operating system CSPRNG encoded as
// unpadded base64url (RFC 4648 section 5), which gives 43 URL-safe
// characters. Credentials are never derived from the device identifier.
//
// Only the keyed BLAKE2b-256 digest of a credential is persisted. The digest
// is deterministic for a given pepper, so authentication remains a single
// indexed equality lookup on (device_id, digest).
package credential

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// entropyBytes is the amount of randomness in each credential.
const entropyBytes = 32

// EncodedLen is the length of every string returned by Generate.
var EncodedLen = base64.RawURLEncoding.EncodedLen(entropyBytes)

// Generate returns a fresh credential.
//
// Failure to read from the entropy source leaves the process unable to
// issue safe credentials at all, so it panics instead of returning an error.
func Generate() string {
	buf := make([]byte, entropyBytes)
	if _, err := rand.Read(buf); err != nil {
		panic(fmt.Sprintf("credential: reading entropy: %v", err))
	}
	return base64.RawURLEncoding.EncodeToString(buf)
}

// Hasher computes storage digests of credentials.
//
// Thread Safety:
//   - A Hasher is immutable and safe for concurrent use.
type Hasher struct {
	key []byte
}

// NewHasher builds a Hasher keyed with pepper. An empty pepper produces an
// unkeyed BLAKE2b-256 digest; a pepper longer than 64 bytes is rejected.
func NewHasher(pepper string) (*Hasher, error) {
	key := []byte(pepper)
	if len(key) > blake2b.Size {
		return nil, fmt.Errorf("credential: pepper longer than %d bytes", blake2b.Size)
	}
	if len(key) == 0 {
		key = nil
	}
	return &Hasher{key: key}, nil
}

// Digest returns the hex-encoded keyed digest of raw.
func (h *Hasher) Digest(raw string) string {
	// New256 only fails on an oversized key, which NewHasher rules out.
	d, err := blake2b.New256(h.key)
	if err != nil {
		panic(fmt.Sprintf("credential: blake2b: %v", err))
	}
	d.Write([]byte(raw)) //nolint:errcheck // hash.Hash.Write never returns an error
	return hex.EncodeToString(d.Sum(nil))
}
