// Package rng provides the single seeded random stream a simulation run draws from.
// A Source is passed explicitly to the model and its agents; there is no
// package-level generator.
package rng

import (
	"errors"
	"fmt"
	"math/rand/v2"
)

// ErrSampleTooLarge is returned when more items are requested than exist.
var ErrSampleTooLarge = errors.New("rng: sample larger than population")

// Source is a deterministic random stream. It is not safe for concurrent use.
type Source struct {
	seed int64
	r    *rand.Rand
}

// New creates a stream that always yields the same sequence for the same seed.
func New(seed int64) *Source {
	return &Source{
		seed: seed,
		r:    rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}
}

// Seed returns the seed the stream was created with.
func (s *Source) Seed() int64 { return s.seed }

// IntN returns a value in [0, n). It panics if n <= 0.
func (s *Source) IntN(n int) int {
	return s.r.IntN(n)
}

// Shuffle randomizes the order of n elements through swap.
func (s *Source) Shuffle(n int, swap func(i, j int)) {
	s.r.Shuffle(n, swap)
}

// Choice picks one element uniformly. ok is false for an empty slice.
func Choice[T any](s *Source, items []T) (item T, ok bool) {
	if len(items) == 0 {
		return item, false
	}
	return items[s.IntN(len(items))], true
}

// Sample draws k distinct elements without replacement. The input slice is
// left untouched.
func Sample[T any](s *Source, items []T, k int) ([]T, error) {
	if k < 0 || k > len(items) {
		return nil, fmt.Errorf("%w: want %d of %d", ErrSampleTooLarge, k, len(items))
	}
	pool := make([]T, len(items))
	copy(pool, items)
	for i := 0; i < k; i++ {
		j := i + s.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}
