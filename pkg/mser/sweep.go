package mser

import "github.com/unidesigner/sopnet/internal/models"

const numLevels = 256

// growHistory records the size a region lineage had while it stayed at one
// gray level.
type growHistory struct {
	level int
	size  int
	prev  int
}

// region is a component in progress on the region stack. Its pixels form
// one chain head..tail in the pixel list.
type region struct {
	level    int
	size     int
	head     int
	tail     int
	history  int
	children []int
}

func newRegion(level int) region {
	return region{level: level, head: models.None, tail: models.None, history: models.None}
}

// stableRegion is a snapshot of a region judged stable. Chains are only
// ever concatenated, so head..tail stays a contiguous run for the rest of
// the sweep.
type stableRegion struct {
	level    int
	size     int
	head     int
	tail     int
	children []int
	topLevel bool
}

// neighbor offsets: left, up, right, down
var neighborOffsets = [4][2]int{{-1, 0}, {0, -1}, {1, 0}, {0, 1}}

// sweep floods one image from the lowest to the highest gray level.
type sweep struct {
	width  int
	height int
	values []uint8

	delta  int
	policy StabilityPolicy

	visited      []bool
	nextNeighbor []uint8
	pixels       *PixelList
	stacks       [numLevels][]int
	regions      []region
	histories    []growHistory
	stable       []stableRegion
}

func newSweep(width, height int, values []uint8, delta int, policy StabilityPolicy) *sweep {
	size := width * height
	return &sweep{
		width:        width,
		height:       height,
		values:       values,
		delta:        delta,
		policy:       policy,
		visited:      make([]bool, size),
		nextNeighbor: make([]uint8, size),
		pixels:       NewPixelList(size),
	}
}

func (s *sweep) neighbor(index int, k uint8) (int, bool) {
	x := index%s.width + neighborOffsets[k][0]
	y := index/s.width + neighborOffsets[k][1]
	if x < 0 || x >= s.width || y < 0 || y >= s.height {
		return 0, false
	}
	return y*s.width + x, true
}

func (s *sweep) pop(level int) int {
	stack := s.stacks[level]
	index := stack[len(stack)-1]
	s.stacks[level] = stack[:len(stack)-1]
	return index
}

func (s *sweep) run() {
	// dummy region above every level, never merged into
	s.regions = append(s.regions[:0], newRegion(numLevels))

	cur := 0
	curValue := int(s.values[cur])
	curStack := curValue
	s.regions = append(s.regions, newRegion(curValue))
	s.visited[cur] = true

	for {
		for s.nextNeighbor[cur] < 4 {
			nb, ok := s.neighbor(cur, s.nextNeighbor[cur])
			if !ok {
				s.nextNeighbor[cur]++
				continue
			}

			if !s.visited[nb] {
				s.visited[nb] = true
				nv := int(s.values[nb])

				if nv < curValue {
					// park the current pixel and descend into the neighbor
					s.stacks[curStack] = append(s.stacks[curStack], cur)
					s.nextNeighbor[cur]++

					cur, curValue, curStack = nb, nv, nv
					s.regions = append(s.regions, newRegion(nv))
					continue
				}

				s.stacks[nv] = append(s.stacks[nv], nb)
			}
			s.nextNeighbor[cur]++
		}

		s.addPixel(&s.regions[len(s.regions)-1], cur)

		if len(s.stacks[curStack]) > 0 {
			cur = s.pop(curStack)
			curValue = int(s.values[cur])
			continue
		}

		next := -1
		for level := curStack + 1; level < numLevels; level++ {
			if len(s.stacks[level]) > 0 {
				next = level
				break
			}
		}
		if next < 0 {
			break
		}

		curStack = next
		cur = s.pop(next)
		curValue = next
		s.processStack(next)
	}
}

func (s *sweep) addPixel(r *region, index int) {
	if r.head == models.None {
		r.head = index
	} else {
		s.pixels.Splice(r.tail, index)
	}
	r.tail = index
	r.size++
}

// processStack raises the top region to next, merging it with the regions
// below it on the stack that are reached on the way.
func (s *sweep) processStack(next int) {
	for {
		top := len(s.regions) - 1
		s.checkStability(top, next)

		if next < s.regions[top-1].level {
			s.raise(&s.regions[top], next)
			return
		}

		s.merge(&s.regions[top-1], &s.regions[top])
		s.regions = s.regions[:top]

		if next <= s.regions[top-1].level {
			return
		}
	}
}

func (s *sweep) raise(r *region, level int) {
	s.histories = append(s.histories, growHistory{level: r.level, size: r.size, prev: r.history})
	r.history = len(s.histories) - 1
	r.level = level
}

// merge lets a absorb b. The larger of the two keeps its history.
func (s *sweep) merge(a, b *region) {
	s.histories = append(s.histories, growHistory{level: b.level, size: b.size, prev: b.history})
	if b.size >= a.size {
		a.history = len(s.histories) - 1
	}

	switch {
	case b.head == models.None:
	case a.head == models.None:
		a.head, a.tail = b.head, b.tail
	default:
		s.pixels.Splice(a.tail, b.head)
		a.tail = b.tail
	}

	a.size += b.size
	a.children = append(a.children, b.children...)
}

// sizeAt returns the size the region's lineage had at the given level.
func (s *sweep) sizeAt(r *region, level int) int {
	if r.level <= level {
		return r.size
	}
	for h := r.history; h != models.None; h = s.histories[h].prev {
		if s.histories[h].level <= level {
			return s.histories[h].size
		}
	}
	return 0
}

// checkStability judges the region at the top of the stack just before it
// grows to level next. Its pixel set is unchanged on [level, next), so
// growth is measured at next-1.
func (s *sweep) checkStability(index, next int) {
	r := &s.regions[index]
	if r.size == 0 {
		return
	}

	below := s.sizeAt(r, next-1-s.delta)
	childSize := 0
	for _, c := range r.children {
		childSize = max(childSize, s.stable[c].size)
	}

	stats := RegionStats{
		Level:     r.level,
		Size:      r.size,
		SizeBelow: below,
		Variation: float64(r.size-below) / float64(r.size),
		ChildSize: childSize,
		ImageSize: s.width * s.height,
	}
	if !s.policy.IsStable(stats) {
		return
	}

	s.stable = append(s.stable, stableRegion{
		level:    r.level,
		size:     r.size,
		head:     r.head,
		tail:     r.tail,
		children: append([]int(nil), r.children...),
		topLevel: true,
	})
	id := len(s.stable) - 1
	for _, c := range r.children {
		s.stable[c].topLevel = false
	}
	r.children = []int{id}
}

// tree converts the stable regions into components. level maps a gray
// level of the sweep back to a normalized value.
func (s *sweep) tree(level func(int) float64) *ComponentTree {
	t := &ComponentTree{Nodes: make([]ComponentNode, len(s.stable))}
	for i, st := range s.stable {
		pixels := s.pixels.Chain(st.head, st.tail)
		t.Nodes[i] = ComponentNode{
			Component: NewComponent(pixels, s.width, level(st.level)),
			Children:  st.children,
		}
		if st.topLevel {
			t.Roots = append(t.Roots, i)
		}
	}
	return t
}
