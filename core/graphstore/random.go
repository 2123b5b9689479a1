package graphstore

import (
	"math/rand"
	"sync"
	"time"
)

// RandSource draws the uniform indices used for back-edge slot selection and
// walk sampling. Tests inject a scripted source to fix the sequence of draws.
type RandSource interface {
	// Intn returns a value in [0, n). n is always positive.
	Intn(n int) int
}

// LockedRand is a RandSource safe for concurrent use.
type LockedRand struct {
	rand *rand.Rand
	mu   sync.Mutex
}

// NewRandSource returns a LockedRand seeded with seed.
func NewRandSource(seed int64) *LockedRand {
	return &LockedRand{
		rand: rand.New(rand.NewSource(seed)),
	}
}

// NewTimeSeededRandSource seeds from the wall clock.
func NewTimeSeededRandSource() *LockedRand {
	return NewRandSource(time.Now().UnixNano())
}

func (r *LockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Int63 returns a non-negative pseudo-random 63-bit integer.
func (r *LockedRand) Int63() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Int63()
}
