package models

// Direction fixes the meaning of source and target slices of a segment
// within its inter-section interval.
type Direction int

const (
	// Left segments have their source (or their only slice) in the section
	// to the right of the interval.
	Left Direction = iota
	// Right segments have their source (or their only slice) in the section
	// to the left of the interval.
	Right
)

func (d Direction) String() string {
	if d == Left {
		return "left"
	}
	return "right"
}

// SegmentKind distinguishes the three segment variants
type SegmentKind int

const (
	EndKind SegmentKind = iota
	ContinuationKind
	BranchKind
)

func (k SegmentKind) String() string {
	switch k {
	case EndKind:
		return "end"
	case ContinuationKind:
		return "continuation"
	default:
		return "branch"
	}
}

// Segment is a hypothesized linking of one, two, or three slices across an
// inter-section interval. Every segment is one optimization variable.
//
// Interval i lies between sections i-1 and i, so a stack of N sections has
// N+1 intervals.
type Segment interface {
	ID() uint
	Cost() float64
	Interval() int
	Direction() Direction
	Kind() SegmentKind

	// SliceIDs lists the referenced slices: the end slice, source and
	// target, or source, target1 and target2.
	SliceIDs() []uint

	// Anchor is the slice that decides neuron membership: the end slice or
	// the source slice.
	Anchor() uint

	// Sides splits the referenced slices into those in section Interval()-1
	// and those in section Interval().
	Sides() (left, right []uint)
}

type base struct {
	id        uint
	cost      float64
	interval  int
	direction Direction
}

func (b *base) ID() uint             { return b.id }
func (b *base) Cost() float64        { return b.cost }
func (b *base) Interval() int        { return b.interval }
func (b *base) Direction() Direction { return b.direction }

// SetID assigns the segment id. Ids are handed out once all candidates of a
// run are known.
func (b *base) SetID(id uint) { b.id = id }

// SetCost replaces the segment cost.
func (b *base) SetCost(cost float64) { b.cost = cost }

// EndSegment terminates a path at its slice.
type EndSegment struct {
	base
	Slice uint
}

// NewEndSegment creates an end segment. Left ends live in the interval in
// front of the slice's section, Right ends in the interval behind it.
func NewEndSegment(id uint, direction Direction, interval int, slice uint, cost float64) *EndSegment {
	return &EndSegment{base: base{id: id, cost: cost, interval: interval, direction: direction}, Slice: slice}
}

func (e *EndSegment) Kind() SegmentKind { return EndKind }
func (e *EndSegment) SliceIDs() []uint  { return []uint{e.Slice} }
func (e *EndSegment) Anchor() uint      { return e.Slice }

func (e *EndSegment) Sides() (left, right []uint) {
	if e.direction == Left {
		return nil, []uint{e.Slice}
	}
	return []uint{e.Slice}, nil
}

// ContinuationSegment hypothesizes that a process continues from the source
// slice to the target slice in the adjacent section.
type ContinuationSegment struct {
	base
	Source uint
	Target uint
}

// NewContinuationSegment creates a continuation segment.
func NewContinuationSegment(id uint, direction Direction, interval int, source, target uint, cost float64) *ContinuationSegment {
	return &ContinuationSegment{
		base:   base{id: id, cost: cost, interval: interval, direction: direction},
		Source: source,
		Target: target,
	}
}

func (c *ContinuationSegment) Kind() SegmentKind { return ContinuationKind }
func (c *ContinuationSegment) SliceIDs() []uint  { return []uint{c.Source, c.Target} }
func (c *ContinuationSegment) Anchor() uint      { return c.Source }

func (c *ContinuationSegment) Sides() (left, right []uint) {
	if c.direction == Right {
		return []uint{c.Source}, []uint{c.Target}
	}
	return []uint{c.Target}, []uint{c.Source}
}

// BranchSegment hypothesizes that one process splits into two.
type BranchSegment struct {
	base
	Source  uint
	Target1 uint
	Target2 uint
}

// NewBranchSegment creates a branch segment.
func NewBranchSegment(id uint, direction Direction, interval int, source, target1, target2 uint, cost float64) *BranchSegment {
	return &BranchSegment{
		base:    base{id: id, cost: cost, interval: interval, direction: direction},
		Source:  source,
		Target1: target1,
		Target2: target2,
	}
}

func (b *BranchSegment) Kind() SegmentKind { return BranchKind }
func (b *BranchSegment) SliceIDs() []uint  { return []uint{b.Source, b.Target1, b.Target2} }
func (b *BranchSegment) Anchor() uint      { return b.Source }

func (b *BranchSegment) Sides() (left, right []uint) {
	if b.direction == Right {
		return []uint{b.Source}, []uint{b.Target1, b.Target2}
	}
	return []uint{b.Target1, b.Target2}, []uint{b.Source}
}

// SliceRef names a slice together with the section a segment expects it in.
type SliceRef struct {
	ID      uint
	Section int
}

// SliceRefs lists the slices referenced by seg with their expected sections.
func SliceRefs(seg Segment) []SliceRef {
	left, right := seg.Sides()
	out := make([]SliceRef, 0, len(left)+len(right))
	for _, id := range left {
		out = append(out, SliceRef{ID: id, Section: seg.Interval() - 1})
	}
	for _, id := range right {
		out = append(out, SliceRef{ID: id, Section: seg.Interval()})
	}
	return out
}
