package models

// SegmentationCostFunctionParameters weighs the smoothness term of the
// segment cost.
type SegmentationCostFunctionParameters struct {
	WeightPotts float64 `yaml:"weightPotts" validate:"gte=0"`
}

// DefaultSegmentationCostFunctionParameters returns WeightPotts = 1.
func DefaultSegmentationCostFunctionParameters() SegmentationCostFunctionParameters {
	return SegmentationCostFunctionParameters{WeightPotts: 1.0}
}
