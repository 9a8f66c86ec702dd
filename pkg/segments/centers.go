package segments

import (
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/unidesigner/sopnet/internal/models"
)

// center is a slice centroid that satisfies kdtree.Comparable
type center struct {
	X, Y  float64
	slice *models.Slice
}

// Compare implements the kdtree.Comparable interface
func (p center) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(center)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

func (p center) Dims() int { return 2 }

// Distance returns the squared Euclidean distance
func (p center) Distance(c kdtree.Comparable) float64 {
	q := c.(center)
	dx := p.X - q.X
	dy := p.Y - q.Y
	return dx*dx + dy*dy
}

// centers is a collection of slice centroids that satisfies kdtree.Interface
type centers []center

func (p centers) Index(i int) kdtree.Comparable         { return p[i] }
func (p centers) Len() int                              { return len(p) }
func (p centers) Slice(start, end int) kdtree.Interface { return p[start:end] }

func (p centers) Pivot(d kdtree.Dim) int {
	return kdtree.Partition(centerPlane{centers: p, Dim: d}, kdtree.MedianOfRandoms(centerPlane{centers: p, Dim: d}, 100))
}

// centerPlane implements kdtree.SortSlicer for centers
type centerPlane struct {
	centers
	kdtree.Dim
}

func (p centerPlane) Less(i, j int) bool {
	switch p.Dim {
	case 0:
		return p.centers[i].X < p.centers[j].X
	case 1:
		return p.centers[i].Y < p.centers[j].Y
	default:
		panic("illegal dimension")
	}
}

func (p centerPlane) Slice(start, end int) kdtree.SortSlicer {
	return centerPlane{centers: p.centers[start:end], Dim: p.Dim}
}

func (p centerPlane) Swap(i, j int) {
	p.centers[i], p.centers[j] = p.centers[j], p.centers[i]
}

// centerIndex answers radius queries over the slices of one section.
type centerIndex struct {
	tree *kdtree.Tree
}

func newCenterIndex(slices []*models.Slice) *centerIndex {
	if len(slices) == 0 {
		return &centerIndex{}
	}
	points := make(centers, len(slices))
	for i, s := range slices {
		points[i] = center{X: s.Center.X, Y: s.Center.Y, slice: s}
	}
	return &centerIndex{tree: kdtree.New(points, false)}
}

// within returns the slices whose centers lie at most radius away from p,
// ordered by id.
func (c *centerIndex) within(p models.Point, radius float64) []*models.Slice {
	if c.tree == nil {
		return nil
	}
	keeper := kdtree.NewDistKeeper(radius * radius)
	c.tree.NearestSet(keeper, center{X: p.X, Y: p.Y})

	out := make([]*models.Slice, 0, keeper.Len())
	for _, item := range keeper.Heap {
		// skip the sentinel
		if item.Comparable == nil {
			continue
		}
		out = append(out, item.Comparable.(center).slice)
	}
	sortByID(out)
	return out
}
