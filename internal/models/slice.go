package models

import "sort"

// None marks an absent pixel index.
const None = -1

// Section is one 2-D electron-microscopy image of the stack
type Section struct {
	// Index is the depth position of this section in the stack
	Index int

	// Width and Height are the dimensions of the section in pixels
	Width  int
	Height int

	// Pixels holds the intensities in [0,1] in row-major order
	Pixels []float64
}

// Len returns the number of pixels in the section.
func (s Section) Len() int {
	return s.Width * s.Height
}

// BoundingBox is an axis-aligned box in section coordinates. The max
// bounds are exclusive.
type BoundingBox struct {
	MinX, MaxX int
	MinY, MaxY int
}

// Width returns the horizontal extent of the box
func (b BoundingBox) Width() int { return b.MaxX - b.MinX }

// Height returns the vertical extent of the box
func (b BoundingBox) Height() int { return b.MaxY - b.MinY }

// Contains reports whether the pixel (x, y) lies inside the box.
func (b BoundingBox) Contains(x, y int) bool {
	return x >= b.MinX && x < b.MaxX && y >= b.MinY && y < b.MaxY
}

// Intersect returns the overlap of two boxes and whether it is non-empty.
func (b BoundingBox) Intersect(o BoundingBox) (BoundingBox, bool) {
	r := BoundingBox{
		MinX: max(b.MinX, o.MinX),
		MaxX: min(b.MaxX, o.MaxX),
		MinY: max(b.MinY, o.MinY),
		MaxY: min(b.MaxY, o.MaxY),
	}
	return r, r.MinX < r.MaxX && r.MinY < r.MaxY
}

// Point is a 2-D position with sub-pixel precision
type Point struct {
	X, Y float64
}

// Bitmap is a binary raster local to a bounding box
type Bitmap struct {
	Width  int
	Height int
	Bits   []bool
}

// NewBitmap allocates an empty bitmap of the given size.
func NewBitmap(width, height int) Bitmap {
	return Bitmap{Width: width, Height: height, Bits: make([]bool, width*height)}
}

// At returns the bit at local coordinates (x, y).
func (b Bitmap) At(x, y int) bool {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return false
	}
	return b.Bits[y*b.Width+x]
}

// Set sets the bit at local coordinates (x, y).
func (b Bitmap) Set(x, y int, v bool) {
	b.Bits[y*b.Width+x] = v
}

// Slice is a 2-D connected region extracted from one section. Slices are
// immutable once created.
type Slice struct {
	// ID is unique within a run
	ID uint

	// Section is the depth index of the section the slice was extracted from
	Section int

	// BoundingBox encloses all member pixels (max bounds exclusive)
	BoundingBox BoundingBox

	// Value is the normalized threshold level the region was extracted at
	Value float64

	// Center is the centroid of the member pixels
	Center Point

	// Size is the number of member pixels
	Size int

	// Bitmap marks the member pixels, local to BoundingBox
	Bitmap Bitmap
}

// Contains reports whether the global pixel (x, y) belongs to the slice.
func (s *Slice) Contains(x, y int) bool {
	if !s.BoundingBox.Contains(x, y) {
		return false
	}
	return s.Bitmap.At(x-s.BoundingBox.MinX, y-s.BoundingBox.MinY)
}

// Overlap counts the pixels shared by two slices in global coordinates.
func (s *Slice) Overlap(o *Slice) int {
	box, ok := s.BoundingBox.Intersect(o.BoundingBox)
	if !ok {
		return 0
	}
	n := 0
	for y := box.MinY; y < box.MaxY; y++ {
		for x := box.MinX; x < box.MaxX; x++ {
			if s.Contains(x, y) && o.Contains(x, y) {
				n++
			}
		}
	}
	return n
}

// SliceSet is the arena of all slices of a run, addressed by id.
type SliceSet struct {
	slices    map[uint]*Slice
	sections  [][]uint
	conflicts [][][]uint
}

// NewSliceSet creates an empty set spanning the given number of sections.
func NewSliceSet(numSections int) *SliceSet {
	return &SliceSet{
		slices:    make(map[uint]*Slice),
		sections:  make([][]uint, numSections),
		conflicts: make([][][]uint, numSections),
	}
}

// Add inserts a slice into its section. Sections beyond the current range
// grow the set.
func (s *SliceSet) Add(slice *Slice) {
	for slice.Section >= len(s.sections) {
		s.sections = append(s.sections, nil)
		s.conflicts = append(s.conflicts, nil)
	}
	s.slices[slice.ID] = slice
	s.sections[slice.Section] = append(s.sections[slice.Section], slice.ID)
}

// AddConflictSet records a set of slice ids of one section that share
// pixels, so at most one of them can be part of a reconstruction.
func (s *SliceSet) AddConflictSet(section int, ids []uint) {
	for section >= len(s.conflicts) {
		s.sections = append(s.sections, nil)
		s.conflicts = append(s.conflicts, nil)
	}
	s.conflicts[section] = append(s.conflicts[section], append([]uint(nil), ids...))
}

// Get looks up a slice by id.
func (s *SliceSet) Get(id uint) (*Slice, bool) {
	slice, ok := s.slices[id]
	return slice, ok
}

// InSection reports whether the slice with the given id exists and belongs
// to the given section.
func (s *SliceSet) InSection(id uint, section int) bool {
	slice, ok := s.slices[id]
	return ok && slice.Section == section
}

// Section returns the slices of one section in id order.
func (s *SliceSet) Section(section int) []*Slice {
	if section < 0 || section >= len(s.sections) {
		return nil
	}
	out := make([]*Slice, 0, len(s.sections[section]))
	for _, id := range s.sections[section] {
		out = append(out, s.slices[id])
	}
	return out
}

// ConflictSets returns the conflict sets recorded for a section.
func (s *SliceSet) ConflictSets(section int) [][]uint {
	if section < 0 || section >= len(s.conflicts) {
		return nil
	}
	return s.conflicts[section]
}

// NumSections returns the number of sections covered.
func (s *SliceSet) NumSections() int {
	return len(s.sections)
}

// Len returns the total number of slices.
func (s *SliceSet) Len() int {
	return len(s.slices)
}

// IDs returns all slice ids in ascending order.
func (s *SliceSet) IDs() []uint {
	ids := make([]uint, 0, len(s.slices))
	for id := range s.slices {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
