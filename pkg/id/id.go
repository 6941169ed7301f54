// Package id generates session ids, request ids and opaque tokens.
package id

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// Crockford base32, without I, L, O and U.
const crockford = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"

// NewULID returns a 26 character ULID: a 48 bit millisecond timestamp
// followed by 80 random bits. ULIDs sort by creation time.
func NewULID() string {
	return ulidAt(time.Now())
}

func ulidAt(t time.Time) string {
	var raw [16]byte
	ms := uint64(t.UnixMilli())
	for i := range 6 {
		raw[i] = byte(ms >> (40 - 8*i))
	}
	_, _ = rand.Read(raw[6:])

	// 128 bits in 26 five-bit groups; the first group holds only 3 bits.
	var out [26]byte
	var acc uint32
	bits := 2
	pos := 0
	for _, b := range raw {
		acc = acc<<8 | uint32(b)
		bits += 8
		for bits >= 5 {
			bits -= 5
			out[pos] = crockford[(acc>>bits)&0x1F]
			pos++
		}
	}
	return string(out[:])
}

// NewToken returns n random bytes, URL-safe base64 encoded. Session
// tokens and sign-in tickets use it.
func NewToken(n int) string {
	b := make([]byte, max(n, 16))
	_, _ = rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
