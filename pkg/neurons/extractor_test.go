package neurons

import (
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/unidesigner/sopnet/internal/models"
)

func segmentIDs(n *models.Neuron) []uint {
	var ids []uint
	for _, seg := range n.Segments() {
		ids = append(ids, seg.ID())
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func TestChainAndTriangle(t *testing.T) {
	selected := models.NewSegments()
	// A(1) - B(2) - C(3) - D(4)
	selected.AddContinuation(models.NewContinuationSegment(0, models.Right, 1, 1, 2, 0))
	selected.AddContinuation(models.NewContinuationSegment(1, models.Right, 2, 2, 3, 0))
	selected.AddContinuation(models.NewContinuationSegment(2, models.Right, 3, 3, 4, 0))
	// X(10) splits into Y(11) and Z(12)
	selected.AddBranch(models.NewBranchSegment(3, models.Right, 1, 10, 11, 12, 0))
	selected.AddEnd(models.NewEndSegment(4, models.Left, 0, 1, 0))
	selected.AddEnd(models.NewEndSegment(5, models.Left, 0, 10, 0))

	neurons := Extract(selected)
	require.Len(t, neurons, 2)

	assert.Equal(t, 0, neurons[0].ID)
	assert.Equal(t, []uint{1, 2, 3, 4}, neurons[0].SliceIDs())
	assert.Equal(t, []uint{0, 1, 2, 4}, segmentIDs(neurons[0]))

	assert.Equal(t, 1, neurons[1].ID)
	assert.Equal(t, []uint{10, 11, 12}, neurons[1].SliceIDs())
	assert.Equal(t, []uint{3, 5}, segmentIDs(neurons[1]))
}

func TestSingleContinuation(t *testing.T) {
	selected := models.NewSegments()
	selected.AddContinuation(models.NewContinuationSegment(10, models.Right, 1, 1, 2, 3.5))

	neurons := Extract(selected)
	require.Len(t, neurons, 1)
	assert.Equal(t, []uint{10}, segmentIDs(neurons[0]))
	assert.Len(t, neurons[0].Continuations(), 1)
}

func TestBranchMergesTargets(t *testing.T) {
	selected := models.NewSegments()
	selected.AddBranch(models.NewBranchSegment(0, models.Right, 1, 1, 2, 3, 0))
	selected.AddEnd(models.NewEndSegment(1, models.Right, 2, 2, 0))
	selected.AddEnd(models.NewEndSegment(2, models.Right, 2, 3, 0))

	neurons := Extract(selected)
	require.Len(t, neurons, 1)
	assert.Equal(t, 3, neurons[0].Len())
	assert.Len(t, neurons[0].Ends(), 2)
	assert.Len(t, neurons[0].Branches(), 1)
}

func TestEndsAloneStaySeparate(t *testing.T) {
	selected := models.NewSegments()
	selected.AddEnd(models.NewEndSegment(0, models.Left, 0, 5, 0))
	selected.AddEnd(models.NewEndSegment(1, models.Right, 1, 5, 0))
	selected.AddEnd(models.NewEndSegment(2, models.Left, 0, 3, 0))

	neurons := Extract(selected)
	require.Len(t, neurons, 2)
	// numbered by smallest slice id
	assert.Equal(t, []uint{3}, neurons[0].SliceIDs())
	assert.Equal(t, []uint{5}, neurons[1].SliceIDs())
	assert.Equal(t, 2, neurons[1].Len())
}

func TestEmpty(t *testing.T) {
	assert.Empty(t, Extract(models.NewSegments()))
}

// randomSelection links slices of consecutive sections at random. Every
// section holds ids section*perSection .. section*perSection+perSection-1.
func randomSelection(r *rand.Rand, sections, perSection int) *models.Segments {
	selected := models.NewSegments()
	id := uint(0)
	slice := func(section int) uint {
		return uint(section*perSection + r.Intn(perSection))
	}
	for s := 0; s < sections; s++ {
		for k := 0; k < perSection/2; k++ {
			selected.AddEnd(models.NewEndSegment(id, models.Left, s, slice(s), 0))
			id++
		}
		if s == 0 {
			continue
		}
		for k := 0; k < perSection/2; k++ {
			selected.AddContinuation(models.NewContinuationSegment(id, models.Right, s, slice(s-1), slice(s), 0))
			id++
		}
		t1 := uint(s * perSection)
		t2 := t1 + 1
		selected.AddBranch(models.NewBranchSegment(id, models.Right, s, slice(s-1), t1, t2, 0))
		id++
	}
	return selected
}

func TestPartitionMatchesConnectedComponents(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for trial := 0; trial < 20; trial++ {
		selected := randomSelection(r, 6, 8)
		neurons := Extract(selected)

		// every segment in exactly one neuron
		seen := make(map[uint]int)
		total := 0
		for _, n := range neurons {
			total += n.Len()
			for _, seg := range n.Segments() {
				seen[seg.ID()]++
			}
		}
		require.Equal(t, selected.Len(), total)
		for _, seg := range selected.All() {
			assert.Equal(t, 1, seen[seg.ID()])
		}

		g := simple.NewUndirectedGraph()
		link := func(a, b uint) {
			if g.Node(int64(a)) == nil {
				g.AddNode(simple.Node(a))
			}
			if g.Node(int64(b)) == nil {
				g.AddNode(simple.Node(b))
			}
			if a != b {
				g.SetEdge(g.NewEdge(simple.Node(a), simple.Node(b)))
			}
		}
		for _, seg := range selected.All() {
			ids := seg.SliceIDs()
			for _, other := range ids {
				link(ids[0], other)
			}
		}

		var want [][]uint
		for _, component := range topo.ConnectedComponents(g) {
			var ids []uint
			for _, n := range component {
				ids = append(ids, uint(n.ID()))
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			want = append(want, ids)
		}
		sort.Slice(want, func(i, j int) bool { return want[i][0] < want[j][0] })

		var got [][]uint
		for _, n := range neurons {
			got = append(got, n.SliceIDs())
		}
		assert.Equal(t, want, got)
	}
}
