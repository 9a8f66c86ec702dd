// Package evaluation compares reconstructions against ground truth and
// summarizes them.
package evaluation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"

	"github.com/unidesigner/sopnet/internal/models"
)

// VariationOfInformation holds the conditional entropies between a
// reconstruction and a ground truth labeling, in bits.
type VariationOfInformation struct {
	// Split is H(reconstruction | truth): one true object cut into pieces
	Split float64
	// Merge is H(truth | reconstruction): several true objects joined
	Merge float64
}

// Total returns Split + Merge = 2H(A,B) - H(A) - H(B).
func (v VariationOfInformation) Total() float64 {
	return v.Split + v.Merge
}

// CompareLabels computes the variation of information between two label
// volumes of equal size. Label 0 counts as a label like any other.
func CompareLabels(reconstruction, truth []int) (VariationOfInformation, error) {
	if len(reconstruction) != len(truth) {
		return VariationOfInformation{}, errors.Errorf("label volumes differ in size: %d vs %d", len(reconstruction), len(truth))
	}
	if len(truth) == 0 {
		return VariationOfInformation{}, nil
	}

	type pair struct{ a, b int }
	joint := make(map[pair]float64)
	countA := make(map[int]float64)
	countB := make(map[int]float64)
	for i := range truth {
		joint[pair{reconstruction[i], truth[i]}]++
		countA[reconstruction[i]]++
		countB[truth[i]]++
	}

	n := float64(len(truth))
	hAB := entropy(joint, n)
	hA := entropy(countA, n)
	hB := entropy(countB, n)

	return VariationOfInformation{
		Split: math.Max(hAB-hB, 0),
		Merge: math.Max(hAB-hA, 0),
	}, nil
}

// entropy of a histogram in bits
func entropy[K comparable](counts map[K]float64, n float64) float64 {
	p := make([]float64, 0, len(counts))
	for _, c := range counts {
		p = append(p, c/n)
	}
	return stat.Entropy(p) / math.Ln2
}

// Summary describes the size distribution of a reconstruction.
type Summary struct {
	Neurons             int
	Segments            int
	Slices              int
	MeanSegments        float64
	StdDevSegments      float64
	Branches            int
	LargestNeuronSlices int
}

// Summarize counts neurons and their segments.
func Summarize(neurons []*models.Neuron) Summary {
	s := Summary{Neurons: len(neurons)}
	if len(neurons) == 0 {
		return s
	}

	sizes := make([]float64, len(neurons))
	for i, n := range neurons {
		sizes[i] = float64(n.Len())
		s.Segments += n.Len()
		s.Branches += len(n.Branches())
		slices := len(n.SliceIDs())
		s.Slices += slices
		s.LargestNeuronSlices = max(s.LargestNeuronSlices, slices)
	}

	s.MeanSegments = stat.Mean(sizes, nil)
	if len(sizes) > 1 {
		s.StdDevSegments = stat.StdDev(sizes, nil)
	}
	return s
}
