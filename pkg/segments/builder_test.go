package segments

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidesigner/sopnet/internal/models"
)

func rectSlice(id uint, section, minX, minY, maxX, maxY int) *models.Slice {
	box := models.BoundingBox{MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
	bitmap := models.NewBitmap(box.Width(), box.Height())
	for i := range bitmap.Bits {
		bitmap.Bits[i] = true
	}
	return &models.Slice{
		ID:          id,
		Section:     section,
		BoundingBox: box,
		Center:      models.Point{X: float64(minX+maxX-1) / 2, Y: float64(minY+maxY-1) / 2},
		Size:        box.Width() * box.Height(),
		Bitmap:      bitmap,
	}
}

// A (section 0) continues into B (section 1), which splits into C and D
// (section 2)
func branchingStack() *models.SliceSet {
	set := models.NewSliceSet(3)
	set.Add(rectSlice(0, 0, 0, 0, 10, 10))
	set.Add(rectSlice(1, 1, 0, 0, 10, 10))
	set.Add(rectSlice(2, 2, 0, 0, 5, 10))
	set.Add(rectSlice(3, 2, 5, 0, 10, 10))
	return set
}

func TestBuild(t *testing.T) {
	set := branchingStack()
	segs, err := NewBuilder(DefaultParameters(), nil, zerolog.Nop()).Build(context.Background(), set)
	require.NoError(t, err)

	assert.Equal(t, 4, segs.NumIntervals())
	assert.Len(t, segs.Ends(), 8)
	assert.Len(t, segs.Continuations(), 3)
	assert.Len(t, segs.Branches(), 1)
	assert.Equal(t, 12, segs.Len())

	// ids are dense in interval order
	want := []struct {
		id       uint
		kind     models.SegmentKind
		interval int
		slices   []uint
	}{
		{0, models.EndKind, 0, []uint{0}},
		{1, models.EndKind, 1, []uint{1}},
		{2, models.EndKind, 1, []uint{0}},
		{3, models.ContinuationKind, 1, []uint{0, 1}},
		{4, models.EndKind, 2, []uint{2}},
		{5, models.EndKind, 2, []uint{3}},
		{6, models.EndKind, 2, []uint{1}},
		{7, models.ContinuationKind, 2, []uint{1, 2}},
		{8, models.ContinuationKind, 2, []uint{1, 3}},
		{9, models.BranchKind, 2, []uint{1, 2, 3}},
		{10, models.EndKind, 3, []uint{2}},
		{11, models.EndKind, 3, []uint{3}},
	}
	byID := make(map[uint]models.Segment)
	for _, seg := range segs.All() {
		byID[seg.ID()] = seg
	}
	require.Len(t, byID, len(want))
	for _, w := range want {
		seg := byID[w.id]
		require.NotNil(t, seg, "segment %d", w.id)
		assert.Equal(t, w.kind, seg.Kind(), "segment %d", w.id)
		assert.Equal(t, w.interval, seg.Interval(), "segment %d", w.id)
		assert.Equal(t, w.slices, seg.SliceIDs(), "segment %d", w.id)
	}

	// every referenced slice lies in the section its segment expects
	for _, seg := range segs.All() {
		for _, ref := range models.SliceRefs(seg) {
			assert.True(t, set.InSection(ref.ID, ref.Section), "segment %d slice %d", seg.ID(), ref.ID)
		}
	}

	assert.Equal(t, models.Right, byID[9].Direction())
	assert.InDelta(t, -1.5, byID[3].Cost(), 1e-9)
	assert.InDelta(t, -0.5, byID[7].Cost(), 1e-9)
	assert.InDelta(t, -1.2, byID[9].Cost(), 1e-9)
	assert.InDelta(t, 0.1, byID[0].Cost(), 1e-9)
}

func TestBuildCenterDistance(t *testing.T) {
	params := DefaultParameters()
	params.MaxCenterDistance = 1

	segs, err := NewBuilder(params, nil, zerolog.Nop()).Build(context.Background(), branchingStack())
	require.NoError(t, err)

	require.Len(t, segs.Continuations(), 1)
	assert.Equal(t, 1, segs.Continuations()[0].Interval())
	assert.Empty(t, segs.Branches())
}

func TestBuildMinOverlap(t *testing.T) {
	set := models.NewSliceSet(2)
	set.Add(rectSlice(0, 0, 0, 0, 10, 10))
	set.Add(rectSlice(1, 1, 7, 0, 17, 10))

	segs, err := NewBuilder(DefaultParameters(), nil, zerolog.Nop()).Build(context.Background(), set)
	require.NoError(t, err)
	assert.Empty(t, segs.Continuations(), "an overlap ratio of 0.3 is below the threshold")

	params := DefaultParameters()
	params.MinOverlap = 0.25
	segs, err = NewBuilder(params, nil, zerolog.Nop()).Build(context.Background(), set)
	require.NoError(t, err)
	assert.Len(t, segs.Continuations(), 1)
}

func TestBuildLeftBranch(t *testing.T) {
	// two slices merge into one when seen from the left
	set := models.NewSliceSet(2)
	set.Add(rectSlice(0, 0, 0, 0, 5, 10))
	set.Add(rectSlice(1, 0, 5, 0, 10, 10))
	set.Add(rectSlice(2, 1, 0, 0, 10, 10))

	segs, err := NewBuilder(DefaultParameters(), nil, zerolog.Nop()).Build(context.Background(), set)
	require.NoError(t, err)

	require.Len(t, segs.Branches(), 1)
	br := segs.Branches()[0]
	assert.Equal(t, models.Left, br.Direction())
	assert.Equal(t, uint(2), br.Source)
	left, right := br.Sides()
	assert.Equal(t, []uint{0, 1}, left)
	assert.Equal(t, []uint{2}, right)
}

func TestBuildNoBranches(t *testing.T) {
	params := DefaultParameters()
	params.MaxBranchPartners = 0

	segs, err := NewBuilder(params, nil, zerolog.Nop()).Build(context.Background(), branchingStack())
	require.NoError(t, err)
	assert.Empty(t, segs.Branches())
	assert.Len(t, segs.Continuations(), 3)
}

func TestBuildEmpty(t *testing.T) {
	segs, err := NewBuilder(DefaultParameters(), nil, zerolog.Nop()).Build(context.Background(), models.NewSliceSet(0))
	require.NoError(t, err)
	assert.Zero(t, segs.Len())
}

func TestBuildDeterministic(t *testing.T) {
	params := DefaultParameters()
	params.Workers = 1
	first, err := NewBuilder(params, nil, zerolog.Nop()).Build(context.Background(), branchingStack())
	require.NoError(t, err)

	params.Workers = 8
	second, err := NewBuilder(params, nil, zerolog.Nop()).Build(context.Background(), branchingStack())
	require.NoError(t, err)

	assert.Equal(t, first.All(), second.All())
}

type flatCost struct{}

func (flatCost) EndCost(*models.Slice) float64               { return 1 }
func (flatCost) ContinuationCost(_, _ *models.Slice) float64 { return 2 }
func (flatCost) BranchCost(_, _, _ *models.Slice) float64    { return 3 }

func TestBuildCostFunction(t *testing.T) {
	segs, err := NewBuilder(DefaultParameters(), flatCost{}, zerolog.Nop()).Build(context.Background(), branchingStack())
	require.NoError(t, err)

	costs := map[models.SegmentKind]float64{
		models.EndKind:          1,
		models.ContinuationKind: 2,
		models.BranchKind:       3,
	}
	for _, seg := range segs.All() {
		assert.Equal(t, costs[seg.Kind()], seg.Cost())
	}
}

func TestCenterIndexWithin(t *testing.T) {
	slices := []*models.Slice{
		rectSlice(4, 0, 0, 0, 3, 3),
		rectSlice(2, 0, 10, 0, 13, 3),
		rectSlice(7, 0, 3, 0, 6, 3),
	}
	idx := newCenterIndex(slices)

	got := idx.within(models.Point{X: 1, Y: 1}, 3)
	require.Len(t, got, 2)
	assert.Equal(t, uint(4), got[0].ID)
	assert.Equal(t, uint(7), got[1].ID)

	assert.Empty(t, newCenterIndex(nil).within(models.Point{}, 100))
}
