package mser

import (
	"sort"

	"github.com/unidesigner/sopnet/internal/models"
)

// Component is a connected set of pixels found by the sweep, together with
// its geometric summary.
type Component struct {
	// Value is the normalized gray level the component was found at
	Value float64

	// Pixels are linear pixel indices (y*width + x)
	Pixels []int

	BoundingBox models.BoundingBox
	Center      models.Point
	Size        int
	Bitmap      models.Bitmap
}

// NewComponent summarizes a pixel set of an image with the given width.
func NewComponent(pixels []int, width int, value float64) Component {
	c := Component{Value: value, Pixels: pixels, Size: len(pixels)}
	if len(pixels) == 0 {
		return c
	}

	first := pixels[0]
	c.BoundingBox = models.BoundingBox{
		MinX: first % width, MaxX: first%width + 1,
		MinY: first / width, MaxY: first/width + 1,
	}

	var sumX, sumY float64
	for _, p := range pixels {
		x, y := p%width, p/width
		c.BoundingBox.MinX = min(c.BoundingBox.MinX, x)
		c.BoundingBox.MaxX = max(c.BoundingBox.MaxX, x+1)
		c.BoundingBox.MinY = min(c.BoundingBox.MinY, y)
		c.BoundingBox.MaxY = max(c.BoundingBox.MaxY, y+1)
		sumX += float64(x)
		sumY += float64(y)
	}
	c.Center = models.Point{X: sumX / float64(len(pixels)), Y: sumY / float64(len(pixels))}

	c.Bitmap = models.NewBitmap(c.BoundingBox.Width(), c.BoundingBox.Height())
	for _, p := range pixels {
		c.Bitmap.Set(p%width-c.BoundingBox.MinX, p/width-c.BoundingBox.MinY, true)
	}
	return c
}

// ComponentNode is a component plus the indices of the components nested
// directly inside it.
type ComponentNode struct {
	Component
	Children []int
}

// ComponentTree holds the nested components of one section. Roots are the
// components not contained in any other.
type ComponentTree struct {
	Nodes []ComponentNode
	Roots []int
}

// Len returns the number of components.
func (t *ComponentTree) Len() int {
	return len(t.Nodes)
}

// Walk visits all components in pre-order, roots in order.
func (t *ComponentTree) Walk(visit func(index, depth int)) {
	var rec func(index, depth int)
	rec = func(index, depth int) {
		visit(index, depth)
		for _, child := range t.Nodes[index].Children {
			rec(child, depth+1)
		}
	}
	for _, root := range t.Roots {
		rec(root, 0)
	}
}

// Paths returns every root-to-leaf path as component indices. Components
// on one path overlap, so at most one of them can be chosen.
func (t *ComponentTree) Paths() [][]int {
	var paths [][]int
	var rec func(index int, path []int)
	rec = func(index int, path []int) {
		path = append(path, index)
		children := t.Nodes[index].Children
		if len(children) == 0 {
			paths = append(paths, append([]int(nil), path...))
			return
		}
		for _, child := range children {
			rec(child, path)
		}
	}
	for _, root := range t.Roots {
		rec(root, nil)
	}
	return paths
}

// Conflicts returns sets of components that share pixels: every
// root-to-leaf path, then every overlapping pair of components that do not
// lie on a common path. Such pairs appear when both sweep directions are
// merged into one tree.
func (t *ComponentTree) Conflicts() [][]int {
	sets := t.Paths()

	parent := make([]int, len(t.Nodes))
	for i := range parent {
		parent[i] = -1
	}
	for i, node := range t.Nodes {
		for _, c := range node.Children {
			parent[c] = i
		}
	}
	ancestor := func(a, b int) bool {
		for p := parent[b]; p >= 0; p = parent[p] {
			if p == a {
				return true
			}
		}
		return false
	}

	owners := make(map[int][]int)
	for i, node := range t.Nodes {
		for _, p := range node.Pixels {
			owners[p] = append(owners[p], i)
		}
	}

	seen := make(map[[2]int]bool)
	var pairs [][2]int
	for _, nodes := range owners {
		for x := 0; x < len(nodes); x++ {
			for y := x + 1; y < len(nodes); y++ {
				pair := [2]int{min(nodes[x], nodes[y]), max(nodes[x], nodes[y])}
				if seen[pair] {
					continue
				}
				seen[pair] = true
				if ancestor(pair[0], pair[1]) || ancestor(pair[1], pair[0]) {
					continue
				}
				pairs = append(pairs, pair)
			}
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	for _, pair := range pairs {
		sets = append(sets, []int{pair[0], pair[1]})
	}
	return sets
}

// merge appends the nodes of other, keeping their nesting.
func (t *ComponentTree) merge(other *ComponentTree) {
	offset := len(t.Nodes)
	for _, node := range other.Nodes {
		var children []int
		for _, c := range node.Children {
			children = append(children, c+offset)
		}
		t.Nodes = append(t.Nodes, ComponentNode{Component: node.Component, Children: children})
	}
	for _, root := range other.Roots {
		t.Roots = append(t.Roots, root+offset)
	}
}
