package entropy

import (
	"hash/fnv"
	"math/rand"
	"sync"
)

// Source supplies uniform randomness to the engine.
type Source interface {
	// Uniform returns a value in [lo, hi).
	Uniform(lo, hi float64) float64
}

// Forker derives independent streams from a source, one per key. The same key
// always yields the same stream, whatever else has been drawn from the parent.
type Forker interface {
	Fork(key string) Source
}

// Fork returns the stream of src for key, or src itself when it cannot fork.
func Fork(src Source, key string) Source {
	if f, ok := src.(Forker); ok {
		return f.Fork(key)
	}
	return src
}

// Rand is a goroutine-safe Source backed by math/rand.
type Rand struct {
	seed int64

	mu sync.Mutex
	r  *rand.Rand
}

// NewRand creates a PRNG source with the given seed.
func NewRand(seed int64) *Rand {
	return &Rand{seed: seed, r: rand.New(rand.NewSource(seed))}
}

// Fork seeds a new PRNG from the parent seed mixed with a hash of key.
func (s *Rand) Fork(key string) Source {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return NewRand(s.seed ^ int64(h.Sum64()))
}

func (s *Rand) Uniform(lo, hi float64) float64 {
	s.mu.Lock()
	v := s.r.Float64()
	s.mu.Unlock()
	return lo + v*(hi-lo)
}

// Sequence replays a fixed list of unit draws, wrapping at the end.
// Each draw v is scaled into the requested range as lo + v*(hi-lo).
type Sequence struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequence creates a deterministic source. With no values every draw is 0.
func NewSequence(values ...float64) *Sequence {
	return &Sequence{values: append([]float64(nil), values...)}
}

func (s *Sequence) Uniform(lo, hi float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.values) == 0 {
		return lo
	}
	v := s.values[s.next%len(s.values)]
	s.next++
	return lo + v*(hi-lo)
}

// Draws reports how many values have been consumed.
func (s *Sequence) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next
}
