// Package neurons groups the segments selected by the solver into neurons:
// sets of segments whose slices are linked through continuations and
// branches.
package neurons

import (
	"github.com/emirpasic/gods/trees/redblacktree"
	"github.com/emirpasic/gods/utils"

	"github.com/unidesigner/sopnet/internal/models"
)

// disjointSets is a union-find forest over slice ids
type disjointSets struct {
	parent map[uint]uint
	size   map[uint]int
}

func newDisjointSets() *disjointSets {
	return &disjointSets{parent: make(map[uint]uint), size: make(map[uint]int)}
}

// add registers a singleton. Known ids are left alone.
func (d *disjointSets) add(id uint) {
	if _, ok := d.parent[id]; ok {
		return
	}
	d.parent[id] = id
	d.size[id] = 1
}

func (d *disjointSets) find(id uint) uint {
	d.add(id)
	root := id
	for d.parent[root] != root {
		root = d.parent[root]
	}
	for id != root {
		next := d.parent[id]
		d.parent[id] = root
		id = next
	}
	return root
}

func (d *disjointSets) union(a, b uint) {
	ra, rb := d.find(a), d.find(b)
	if ra == rb {
		return
	}
	if d.size[ra] < d.size[rb] {
		ra, rb = rb, ra
	}
	d.parent[rb] = ra
	d.size[ra] += d.size[rb]
	delete(d.size, rb)
}

// Extract partitions the selected segments into neurons. Two slices belong
// to the same neuron when a chain of continuations and branches connects
// them. Neurons are numbered in ascending order of their smallest slice id
// and every segment ends up in exactly one of them.
func Extract(selected *models.Segments) []*models.Neuron {
	sets := newDisjointSets()

	for _, e := range selected.Ends() {
		sets.add(e.Slice)
	}
	for _, c := range selected.Continuations() {
		sets.union(c.Source, c.Target)
	}
	for _, b := range selected.Branches() {
		sets.union(b.Source, b.Target1)
		sets.union(b.Source, b.Target2)
		sets.union(b.Target1, b.Target2)
	}

	// smallest slice id of every class, keyed by it in ascending order
	smallest := make(map[uint]uint)
	for id := range sets.parent {
		root := sets.find(id)
		if lowest, ok := smallest[root]; !ok || id < lowest {
			smallest[root] = id
		}
	}
	order := redblacktree.NewWith(utils.UIntComparator)
	for root, lowest := range smallest {
		order.Put(lowest, root)
	}

	index := make(map[uint]int, order.Size())
	neurons := make([]*models.Neuron, 0, order.Size())
	it := order.Iterator()
	for it.Next() {
		index[it.Value().(uint)] = len(neurons)
		neurons = append(neurons, models.NewNeuron(len(neurons)))
	}

	for _, seg := range selected.All() {
		neurons[index[sets.find(seg.Anchor())]].Add(seg)
	}
	return neurons
}
