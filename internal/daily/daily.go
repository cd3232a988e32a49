// internal/daily/daily.go
//
// Daily puzzle seeding. Every player gets the same board on a given UTC date:
// the board RNG is seeded from a blake2b-256 keyed hash of the date key, with
// the server salt as the key. Changing the salt reshuffles every day.

package daily

import (
	"encoding/binary"
	"math/rand/v2"
	"time"

	"golang.org/x/crypto/blake2b"
)

// DateKey returns YYYY-MM-DD in UTC.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Seed derives the board seed for the date of t.
func Seed(t time.Time, salt string) uint64 {
	key := []byte(salt)
	if len(key) > blake2b.Size {
		// blake2b keys are capped at 64 bytes; longer salts are pre-hashed.
		sum := blake2b.Sum512(key)
		key = sum[:]
	}
	h, err := blake2b.New256(key)
	if err != nil {
		// unreachable: key length is bounded above
		panic(err)
	}
	h.Write([]byte(DateKey(t)))
	return binary.BigEndian.Uint64(h.Sum(nil)[:8])
}

// Rand returns the board RNG for a seed.
func Rand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}
