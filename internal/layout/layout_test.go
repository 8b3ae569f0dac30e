package layout

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIndexRowMajor(t *testing.T) {
	m := Matrix{Width: 4, Height: 3}
	assert.Equal(t, 12, m.Count())
	assert.Equal(t, 0, m.Index(0, 0))
	assert.Equal(t, 3, m.Index(3, 0))
	assert.Equal(t, 5, m.Index(1, 1))
	assert.Equal(t, 11, m.Index(3, 2))
}

func TestIndexSerpentine(t *testing.T) {
	m := Matrix{Width: 4, Height: 3, XFlipEveryRow: true}
	assert.Equal(t, 0, m.Index(0, 0))
	assert.Equal(t, 7, m.Index(0, 1))
	assert.Equal(t, 4, m.Index(3, 1))
	assert.Equal(t, 8, m.Index(0, 2))

	seen := map[int]bool{}
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			seen[m.Index(x, y)] = true
		}
	}
	assert.Len(t, seen, m.Count())
}

func TestContains(t *testing.T) {
	m := Matrix{Width: 2, Height: 2}
	assert.True(t, m.Contains(0, 0))
	assert.True(t, m.Contains(1, 1))
	assert.False(t, m.Contains(-1, 0))
	assert.False(t, m.Contains(2, 0))
	assert.False(t, m.Contains(0, 2))
}
