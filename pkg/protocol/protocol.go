// Package protocol defines the wire messages exchanged between pub/sub peers
// and their compact binary framing.
package protocol

import (
    "crypto/sha1"
    "encoding/hex"
    "errors"
    "fmt"
)

// KeyLen is the length in bytes of a ServiceKey digest.
const KeyLen = sha1.Size

// HeaderLen is the fixed part of every frame: kind tag plus service key.
const HeaderLen = 1 + KeyLen

// ErrFraming reports a buffer that cannot be interpreted as a message.
var ErrFraming = errors.New("protocol: malformed frame")

// ServiceKey identifies a service across the mesh. Two peers hashing the same
// service name always obtain the same key.
type ServiceKey [KeyLen]byte

// HashServiceName derives the key of a human-readable service name.
func HashServiceName(name string) ServiceKey {
    return ServiceKey(sha1.Sum([]byte(name)))
}

// KeyFromBytes copies b into a ServiceKey. It fails if b has the wrong length.
func KeyFromBytes(b []byte) (ServiceKey, error) {
    var k ServiceKey
    if len(b) != KeyLen {
        return k, fmt.Errorf("protocol: key length %d, want %d", len(b), KeyLen)
    }
    copy(k[:], b)
    return k, nil
}

// ParseKey decodes a hex key, with or without a 0x prefix.
func ParseKey(s string) (ServiceKey, error) {
    if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') { s = s[2:] }
    b, err := hex.DecodeString(s)
    if err != nil { return ServiceKey{}, fmt.Errorf("protocol: bad key %q: %w", s, err) }
    return KeyFromBytes(b)
}

// Hex returns the lowercase hex encoding of the key.
func (k ServiceKey) Hex() string { return hex.EncodeToString(k[:]) }

func (k ServiceKey) String() string { return "0x" + k.Hex() }
