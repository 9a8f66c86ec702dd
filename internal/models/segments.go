package models

import "fmt"

// Segments holds all segments of a run, one list per inter-section interval
// and segment variant.
type Segments struct {
	ends          [][]*EndSegment
	continuations [][]*ContinuationSegment
	branches      [][]*BranchSegment
}

// NewSegments creates an empty collection.
func NewSegments() *Segments {
	return &Segments{}
}

func (s *Segments) resize(interval int) {
	for len(s.ends) <= interval {
		s.ends = append(s.ends, nil)
		s.continuations = append(s.continuations, nil)
		s.branches = append(s.branches, nil)
	}
}

// AddEnd adds an end segment to its interval.
func (s *Segments) AddEnd(e *EndSegment) {
	s.resize(e.Interval())
	s.ends[e.Interval()] = append(s.ends[e.Interval()], e)
}

// AddContinuation adds a continuation segment to its interval.
func (s *Segments) AddContinuation(c *ContinuationSegment) {
	s.resize(c.Interval())
	s.continuations[c.Interval()] = append(s.continuations[c.Interval()], c)
}

// AddBranch adds a branch segment to its interval.
func (s *Segments) AddBranch(b *BranchSegment) {
	s.resize(b.Interval())
	s.branches[b.Interval()] = append(s.branches[b.Interval()], b)
}

// Add dispatches on the segment variant.
func (s *Segments) Add(seg Segment) {
	switch v := seg.(type) {
	case *EndSegment:
		s.AddEnd(v)
	case *ContinuationSegment:
		s.AddContinuation(v)
	case *BranchSegment:
		s.AddBranch(v)
	default:
		panic(fmt.Sprintf("models: unknown segment type %T", seg))
	}
}

// Ends returns all end segments in interval order.
func (s *Segments) Ends() []*EndSegment {
	var out []*EndSegment
	for _, interval := range s.ends {
		out = append(out, interval...)
	}
	return out
}

// Continuations returns all continuation segments in interval order.
func (s *Segments) Continuations() []*ContinuationSegment {
	var out []*ContinuationSegment
	for _, interval := range s.continuations {
		out = append(out, interval...)
	}
	return out
}

// Branches returns all branch segments in interval order.
func (s *Segments) Branches() []*BranchSegment {
	var out []*BranchSegment
	for _, interval := range s.branches {
		out = append(out, interval...)
	}
	return out
}

// EndsIn returns the end segments of one interval.
func (s *Segments) EndsIn(interval int) []*EndSegment {
	if interval < 0 || interval >= len(s.ends) {
		return nil
	}
	return s.ends[interval]
}

// ContinuationsIn returns the continuation segments of one interval.
func (s *Segments) ContinuationsIn(interval int) []*ContinuationSegment {
	if interval < 0 || interval >= len(s.continuations) {
		return nil
	}
	return s.continuations[interval]
}

// BranchesIn returns the branch segments of one interval.
func (s *Segments) BranchesIn(interval int) []*BranchSegment {
	if interval < 0 || interval >= len(s.branches) {
		return nil
	}
	return s.branches[interval]
}

// All returns every segment: ends, then continuations, then branches.
func (s *Segments) All() []Segment {
	out := make([]Segment, 0, s.Len())
	for _, e := range s.Ends() {
		out = append(out, e)
	}
	for _, c := range s.Continuations() {
		out = append(out, c)
	}
	for _, b := range s.Branches() {
		out = append(out, b)
	}
	return out
}

// InInterval returns every segment of one interval.
func (s *Segments) InInterval(interval int) []Segment {
	var out []Segment
	for _, e := range s.EndsIn(interval) {
		out = append(out, e)
	}
	for _, c := range s.ContinuationsIn(interval) {
		out = append(out, c)
	}
	for _, b := range s.BranchesIn(interval) {
		out = append(out, b)
	}
	return out
}

// NumIntervals returns the number of inter-section intervals covered.
func (s *Segments) NumIntervals() int {
	return len(s.ends)
}

// Len returns the number of segments.
func (s *Segments) Len() int {
	n := 0
	for i := range s.ends {
		n += len(s.ends[i]) + len(s.continuations[i]) + len(s.branches[i])
	}
	return n
}

// Subset returns a new collection holding the segments for which keep
// returns true. The segments themselves are shared, not copied.
func (s *Segments) Subset(keep func(Segment) bool) *Segments {
	out := NewSegments()
	for _, seg := range s.All() {
		if keep(seg) {
			out.Add(seg)
		}
	}
	return out
}
