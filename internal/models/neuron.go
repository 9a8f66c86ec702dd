package models

import (
	"fmt"
	"sort"
)

// Neuron groups the selected segments whose slices are connected through
// continuations and branches. A neuron only holds references; it never
// mutates the segments it groups.
type Neuron struct {
	// ID is the dense index of the neuron within one extraction run
	ID int

	ends          []*EndSegment
	continuations []*ContinuationSegment
	branches      []*BranchSegment
}

// NewNeuron creates an empty neuron.
func NewNeuron(id int) *Neuron {
	return &Neuron{ID: id}
}

// Add appends a segment to the neuron.
func (n *Neuron) Add(seg Segment) {
	switch v := seg.(type) {
	case *EndSegment:
		n.ends = append(n.ends, v)
	case *ContinuationSegment:
		n.continuations = append(n.continuations, v)
	case *BranchSegment:
		n.branches = append(n.branches, v)
	default:
		panic(fmt.Sprintf("models: unknown segment type %T", seg))
	}
}

func (n *Neuron) Ends() []*EndSegment                   { return n.ends }
func (n *Neuron) Continuations() []*ContinuationSegment { return n.continuations }
func (n *Neuron) Branches() []*BranchSegment            { return n.branches }

// Segments returns ends, continuations, then branches.
func (n *Neuron) Segments() []Segment {
	out := make([]Segment, 0, n.Len())
	for _, e := range n.ends {
		out = append(out, e)
	}
	for _, c := range n.continuations {
		out = append(out, c)
	}
	for _, b := range n.branches {
		out = append(out, b)
	}
	return out
}

// Len returns the number of segments in the neuron.
func (n *Neuron) Len() int {
	return len(n.ends) + len(n.continuations) + len(n.branches)
}

// SliceIDs returns the distinct slices touched by the neuron, ascending.
func (n *Neuron) SliceIDs() []uint {
	seen := make(map[uint]struct{})
	for _, seg := range n.Segments() {
		for _, id := range seg.SliceIDs() {
			seen[id] = struct{}{}
		}
	}
	ids := make([]uint, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
