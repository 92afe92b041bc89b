package entropy

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSequence(t *testing.T) {
	t.Run("should scale draws into the requested range", func(t *testing.T) {
		s := NewSequence(0.5, 0.25)
		assert.InDelta(t, 5.0, s.Uniform(0, 10), 1e-9)
		assert.InDelta(t, 0.7, s.Uniform(0.6, 1.0), 1e-9)
		assert.Equal(t, 2, s.Draws())
	})

	t.Run("should wrap around after the last value", func(t *testing.T) {
		s := NewSequence(0.1)
		assert.InDelta(t, 0.1, s.Uniform(0, 1), 1e-9)
		assert.InDelta(t, 0.1, s.Uniform(0, 1), 1e-9)
	})

	t.Run("should return lo when empty", func(t *testing.T) {
		assert.Equal(t, 3.0, NewSequence().Uniform(3, 4))
	})
}

func TestRand(t *testing.T) {
	t.Run("should be reproducible for a seed", func(t *testing.T) {
		a, b := NewRand(42), NewRand(42)
		for i := 0; i < 10; i++ {
			assert.Equal(t, a.Uniform(0, 1), b.Uniform(0, 1))
		}
	})

	t.Run("should stay within bounds under concurrent use", func(t *testing.T) {
		s := NewRand(7)
		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					v := s.Uniform(-6, 6)
					assert.GreaterOrEqual(t, v, -6.0)
					assert.Less(t, v, 6.0)
				}
			}()
		}
		wg.Wait()
	})
}

func TestFork(t *testing.T) {
	t.Run("should derive the same stream for the same key", func(t *testing.T) {
		parent := NewRand(42)
		a := Fork(parent, "s1/3")
		parent.Uniform(0, 1)
		b := Fork(parent, "s1/3")
		for i := 0; i < 10; i++ {
			assert.Equal(t, a.Uniform(0, 1), b.Uniform(0, 1))
		}
	})

	t.Run("should derive distinct streams for distinct keys", func(t *testing.T) {
		parent := NewRand(42)
		assert.NotEqual(t, Fork(parent, "s1/1").Uniform(0, 1), Fork(parent, "s2/1").Uniform(0, 1))
	})

	t.Run("should leave the parent stream untouched", func(t *testing.T) {
		a, b := NewRand(7), NewRand(7)
		Fork(a, "s1/1").Uniform(0, 1)
		assert.Equal(t, b.Uniform(0, 1), a.Uniform(0, 1))
	})

	t.Run("should share a source that cannot fork", func(t *testing.T) {
		seq := NewSequence(0.5)
		assert.Same(t, seq, Fork(seq, "s1/1"))
	})
}
