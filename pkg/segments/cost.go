package segments

import (
	"math"

	"github.com/unidesigner/sopnet/internal/models"
)

// CostFunction prices segment hypotheses. Lower is more plausible; negative
// costs are rewarded by the optimizer.
type CostFunction interface {
	EndCost(slice *models.Slice) float64
	ContinuationCost(source, target *models.Slice) float64
	BranchCost(source, target1, target2 *models.Slice) float64
}

// GeometricCost compares slice shapes: a prior per segment kind, plus the
// dissimilarity 1 - Jaccard of the linked slices, plus a Potts-weighted
// penalty on the relative size change.
type GeometricCost struct {
	models.SegmentationCostFunctionParameters `yaml:",inline"`

	EndBias          float64 `yaml:"endBias"`
	ContinuationBias float64 `yaml:"continuationBias"`
	BranchBias       float64 `yaml:"branchBias"`
}

// DefaultGeometricCost returns the default priors.
func DefaultGeometricCost() GeometricCost {
	return GeometricCost{
		SegmentationCostFunctionParameters: models.DefaultSegmentationCostFunctionParameters(),
		EndBias:                            0.1,
		ContinuationBias:                   -1.5,
		BranchBias:                         -1.2,
	}
}

func (c GeometricCost) EndCost(*models.Slice) float64 {
	return c.EndBias
}

func (c GeometricCost) ContinuationCost(source, target *models.Slice) float64 {
	overlap := float64(source.Overlap(target))
	union := float64(source.Size+target.Size) - overlap
	return c.ContinuationBias + dissimilarity(overlap, union) +
		c.WeightPotts*sizeChange(source.Size, target.Size)
}

func (c GeometricCost) BranchCost(source, target1, target2 *models.Slice) float64 {
	// targets are disjoint, so their union is a plain sum
	overlap := float64(source.Overlap(target1) + source.Overlap(target2))
	union := float64(source.Size+target1.Size+target2.Size) - overlap
	return c.BranchBias + dissimilarity(overlap, union) +
		c.WeightPotts*sizeChange(source.Size, target1.Size+target2.Size)
}

func dissimilarity(overlap, union float64) float64 {
	if union <= 0 {
		return 1
	}
	return 1 - overlap/union
}

func sizeChange(a, b int) float64 {
	larger := max(a, b)
	if larger == 0 {
		return 0
	}
	return math.Abs(float64(a-b)) / float64(larger)
}
