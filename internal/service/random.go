package service

import (
	"sync"
	"time"

	"golang.org/x/exp/rand"
)

// Random is the source of every non-deterministic bot decision.
type Random interface {
	Intn(n int) int
	Float64() float64
}

type lockedRandom struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandom returns a Random seeded with seed; it is safe for concurrent use.
func NewRandom(seed uint64) Random {
	return &lockedRandom{rnd: rand.New(rand.NewSource(seed))}
}

// NewTimeSeededRandom seeds from the wall clock.
func NewTimeSeededRandom() Random {
	return NewRandom(uint64(time.Now().UnixNano()))
}

func (that *lockedRandom) Intn(n int) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rnd.Intn(n)
}

func (that *lockedRandom) Float64() float64 {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.rnd.Float64()
}
