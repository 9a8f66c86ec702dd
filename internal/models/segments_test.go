package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// relabeled wraps an end segment in a type the collections do not know
type relabeled struct {
	*EndSegment
}

func TestSegmentsAdd(t *testing.T) {
	s := NewSegments()
	s.Add(NewEndSegment(0, Left, 0, 1, 0.1))
	s.Add(NewContinuationSegment(1, Right, 1, 1, 2, -1))
	s.Add(NewBranchSegment(2, Right, 2, 2, 3, 4, -1))

	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.NumIntervals())
	assert.Len(t, s.EndsIn(0), 1)
	assert.Len(t, s.ContinuationsIn(1), 1)
	assert.Len(t, s.BranchesIn(2), 1)
}

func TestAddUnknownSegmentPanics(t *testing.T) {
	seg := relabeled{NewEndSegment(0, Left, 0, 1, 0.1)}

	assert.Panics(t, func() { NewSegments().Add(seg) })
	assert.Panics(t, func() { NewNeuron(0).Add(seg) })
}

func TestNeuronAdd(t *testing.T) {
	n := NewNeuron(3)
	n.Add(NewEndSegment(0, Left, 0, 5, 0.1))
	n.Add(NewContinuationSegment(1, Right, 1, 5, 7, -1))
	n.Add(NewBranchSegment(2, Right, 2, 7, 8, 9, -1))

	assert.Equal(t, 3, n.Len())
	assert.Equal(t, []uint{5, 7, 8, 9}, n.SliceIDs())
	assert.Len(t, n.Segments(), 3)
}
