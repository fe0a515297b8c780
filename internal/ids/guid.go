// Package ids computes the silo's content-addressed GUID: a SHA-1-derived
// UUID over the ordered accumulation of import identity tokens.
package ids

import "github.com/google/uuid"

// Accumulator joins GUID input tokens with "&", matching spec.md §4.6's
// xb_builder_append_guid behavior: the first token is appended bare, every
// subsequent one is prefixed with "&".
type Accumulator struct {
	buf string
}

// Append adds token to the accumulator.
func (a *Accumulator) Append(token string) {
	if a.buf != "" {
		a.buf += "&"
	}
	a.buf += token
}

// String returns the joined accumulator contents — the literal input to
// the GUID hash.
func (a *Accumulator) String() string { return a.buf }

// GUID computes a SHA-1-derived UUID (RFC 4122 version 5) over data, using
// the nil UUID as the fixed namespace. This is the exact shape spec.md
// §4.6/§9 describes: "SHA-1 over the accumulator in a fixed (zero)
// namespace, yielding a UUID-shaped byte array".
func GUID(data string) [16]byte {
	u := uuid.NewSHA1(uuid.Nil, []byte(data))
	var out [16]byte
	copy(out[:], u[:])
	return out
}
