package datastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewRectNormalisesCorners(t *testing.T) {
	r := NewRect(NewCoordinate(2, 5), NewCoordinate(-1, -3))

	assert.Equal(t, NewCoordinate(-1, -3), r.Min)
	assert.Equal(t, NewCoordinate(2, 5), r.Max)
}

func TestRectContainsBoundaryInclusive(t *testing.T) {
	r := NewRect(NewCoordinate(0, 0), NewCoordinate(1, 1))

	testCases := []struct {
		name  string
		coord Coordinate
		want  bool
	}{
		{name: "interior", coord: NewCoordinate(0.5, 0.5), want: true},
		{name: "min corner", coord: NewCoordinate(0, 0), want: true},
		{name: "max corner", coord: NewCoordinate(1, 1), want: true},
		{name: "edge", coord: NewCoordinate(0, 0.5), want: true},
		{name: "outside lon", coord: NewCoordinate(1.0001, 0.5), want: false},
		{name: "outside lat", coord: NewCoordinate(0.5, -0.0001), want: false},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Contains(tt.coord))
		})
	}
}

func TestRectIntersects(t *testing.T) {
	r := NewRect(NewCoordinate(0, 0), NewCoordinate(1, 1))

	assert.True(t, r.Intersects(NewRect(NewCoordinate(0.5, 0.5), NewCoordinate(2, 2))))
	assert.True(t, r.Intersects(NewRect(NewCoordinate(1, 1), NewCoordinate(2, 2))), "touching corners intersect")
	assert.False(t, r.Intersects(NewRect(NewCoordinate(1.5, 0), NewCoordinate(2, 1))))
	assert.False(t, r.Intersects(NewRect(NewCoordinate(0, -2), NewCoordinate(1, -1.5))))
}

func TestRectExpandAndBuffer(t *testing.T) {
	r := NewRect(NewCoordinate(0, 0), NewCoordinate(1, 1))

	grown := r.Expand(NewCoordinate(3, -2))
	assert.Equal(t, NewCoordinate(0, -2), grown.Min)
	assert.Equal(t, NewCoordinate(3, 1), grown.Max)

	buffered := r.Buffer(0.5)
	assert.Equal(t, NewCoordinate(-0.5, -0.5), buffered.Min)
	assert.Equal(t, NewCoordinate(1.5, 1.5), buffered.Max)
}

func TestCoordinateBounds(t *testing.T) {
	assert.True(t, NewCoordinate(180, 90).InWGS84Bounds())
	assert.True(t, NewCoordinate(-180, -90).InWGS84Bounds())
	assert.False(t, NewCoordinate(180.01, 0).InWGS84Bounds())
	assert.False(t, NewCoordinate(0, -90.5).InWGS84Bounds())
}
