package ranges

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRangeEnd(t *testing.T) {
	assert.Equal(t, int64(3), Range{Pos: 1, Size: 2}.End())
}

func TestRangeIsEmpty(t *testing.T) {
	assert.False(t, Range{Pos: 1, Size: 2}.IsEmpty())
	assert.True(t, Range{Pos: 1, Size: 0}.IsEmpty())
	assert.True(t, Range{Pos: 1, Size: -1}.IsEmpty())
}

func TestRangeClip(t *testing.T) {
	r := Range{Pos: 1, Size: 2}
	assert.Equal(t, Range{Pos: 1, Size: 2}, r.Clip(5))

	r = Range{Pos: 1, Size: 6}
	assert.Equal(t, Range{Pos: 1, Size: 4}, r.Clip(5))

	r = Range{Pos: 5, Size: 6}
	assert.Equal(t, Range{}, r.Clip(5))

	r = Range{Pos: 7, Size: 6}
	assert.Equal(t, Range{}, r.Clip(5))
}

func TestRangeIntersection(t *testing.T) {
	for _, test := range []struct {
		r, b, want Range
	}{
		{Range{1, 1}, Range{3, 1}, Range{}},
		{Range{0, 10}, Range{5, 10}, Range{5, 5}},
		{Range{0, 10}, Range{2, 3}, Range{2, 3}},
		{Range{0, 0}, Range{0, 10}, Range{}},
	} {
		assert.Equal(t, test.want, test.r.Intersection(test.b))
		assert.Equal(t, test.want, test.b.Intersection(test.r))
	}
}

func TestRangeOverlaps(t *testing.T) {
	assert.True(t, Range{0, 10}.Overlaps(Range{5, 10}))
	assert.False(t, Range{0, 10}.Overlaps(Range{10, 10}))
}
