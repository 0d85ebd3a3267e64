// Package random provides the seedable random trials used by the
// fault-injection harness.
package random

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	mathrand "math/rand"
	"sync"

	"github.com/pkg/errors"
)

// Rand is a math/rand generator which is safe for concurrent use
type Rand struct {
	mu   sync.Mutex
	rand *mathrand.Rand
	seed int64
}

// CryptoSeed reads a seed from crypto/rand
func CryptoSeed() (int64, error) {
	var seed int64
	err := binary.Read(cryptorand.Reader, binary.LittleEndian, &seed)
	if err != nil {
		return 0, errors.Wrap(err, "failed to read random seed")
	}
	return seed, nil
}

// New makes a generator seeded with seed.  A zero seed is replaced
// with one read from crypto/rand so separate runs differ.
func New(seed int64) (*Rand, error) {
	if seed == 0 {
		var err error
		seed, err = CryptoSeed()
		if err != nil {
			return nil, err
		}
	}
	return &Rand{
		rand: mathrand.New(mathrand.NewSource(seed)),
		seed: seed,
	}, nil
}

// Seed returns the seed the generator was started with, so a failing
// run can be reproduced.
func (r *Rand) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n)
func (r *Rand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Percent runs a Bernoulli trial which succeeds with probability
// percent/100.  Values outside 0..100 are clamped.
func (r *Rand) Percent(percent int) bool {
	if percent <= 0 {
		return false
	}
	if percent >= 100 {
		return true
	}
	return r.Intn(100) < percent
}
