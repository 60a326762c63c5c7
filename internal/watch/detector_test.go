package watch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetector(t *testing.T) {
	t.Run("first observation is new", func(t *testing.T) {
		d := NewDetector()
		assert.True(t, d.Observe("aaa"))
		assert.Equal(t, "aaa", d.Last())
	})

	t.Run("same hash is not new", func(t *testing.T) {
		d := NewDetector()
		d.Observe("aaa")
		assert.False(t, d.Observe("aaa"))
		assert.False(t, d.Observe("aaa"))
	})

	t.Run("different hash is new", func(t *testing.T) {
		d := NewDetector()
		d.Observe("aaa")
		assert.True(t, d.Observe("bbb"))
		assert.Equal(t, "bbb", d.Last())
	})

	t.Run("returning to an earlier hash is new", func(t *testing.T) {
		d := NewDetector()
		d.Observe("aaa")
		d.Observe("bbb")
		assert.True(t, d.Observe("aaa"))
	})

	t.Run("empty hash is ignored", func(t *testing.T) {
		d := NewDetector()
		d.Observe("aaa")
		assert.False(t, d.Observe(""))
		assert.Equal(t, "aaa", d.Last())
	})

	t.Run("seed suppresses the current head", func(t *testing.T) {
		d := NewDetector()
		d.Seed("aaa")
		assert.False(t, d.Observe("aaa"))
		assert.True(t, d.Observe("bbb"))
	})

	t.Run("reset makes the next observation new", func(t *testing.T) {
		d := NewDetector()
		d.Observe("aaa")
		d.Reset()
		assert.Equal(t, "", d.Last())
		assert.True(t, d.Observe("aaa"))
	})
}
