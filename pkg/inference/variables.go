// Package inference turns segment hypotheses into an integer linear program,
// writes it out for external solvers and debugging, and solves it.
package inference

import "github.com/unidesigner/sopnet/internal/models"

// VariableMap is a bijection between segment ids and variable indices.
// Variables are dense from 0.
type VariableMap struct {
	variables map[uint]int
	segments  []uint
}

// NewVariableMap creates an empty map.
func NewVariableMap() *VariableMap {
	return &VariableMap{variables: make(map[uint]int)}
}

// FromSegments maps every segment to a variable, in the order of
// Segments.All.
func FromSegments(segments *models.Segments) *VariableMap {
	m := NewVariableMap()
	for _, seg := range segments.All() {
		m.Add(seg.ID())
	}
	return m
}

// Add maps a segment to the next free variable and returns it. Adding a
// known segment returns its existing variable.
func (m *VariableMap) Add(segment uint) int {
	if v, ok := m.variables[segment]; ok {
		return v
	}
	v := len(m.segments)
	m.variables[segment] = v
	m.segments = append(m.segments, segment)
	return v
}

// Variable returns the variable of a segment.
func (m *VariableMap) Variable(segment uint) (int, bool) {
	v, ok := m.variables[segment]
	return v, ok
}

// Segment returns the segment of a variable.
func (m *VariableMap) Segment(variable int) (uint, bool) {
	if variable < 0 || variable >= len(m.segments) {
		return 0, false
	}
	return m.segments[variable], true
}

// Len returns the number of variables.
func (m *VariableMap) Len() int {
	return len(m.segments)
}
