package mser

// Parameters control the threshold sweep
type Parameters struct {
	// Delta is the number of gray levels over which region growth is measured
	Delta int `yaml:"delta" validate:"gte=1,lte=255"`

	// MinArea and MaxArea bound the pixel count of accepted regions. A
	// MaxArea of 0 means unbounded.
	MinArea int `yaml:"minArea" validate:"gte=1"`
	MaxArea int `yaml:"maxArea" validate:"gte=0"`

	// MaxVariation is the largest relative growth over Delta levels that
	// still counts as stable
	MaxVariation float64 `yaml:"maxVariation" validate:"gte=0"`

	// MinDiversity is the smallest relative size difference to the largest
	// stable child region
	MinDiversity float64 `yaml:"minDiversity" validate:"gte=0,lte=1"`

	// DarkToBright and BrightToDark select the sweep directions
	DarkToBright bool `yaml:"darkToBright"`
	BrightToDark bool `yaml:"brightToDark"`

	// SameIntensityComponents zeroes every pixel that differs from its left
	// or upper neighbor, so that regions are made of equal-valued pixels
	SameIntensityComponents bool `yaml:"sameIntensityComponents"`
}

// DefaultParameters returns parameters suited to membrane probability maps.
func DefaultParameters() Parameters {
	return Parameters{
		Delta:        10,
		MinArea:      10,
		MaxArea:      0,
		MaxVariation: 0.5,
		MinDiversity: 0.1,
		DarkToBright: true,
	}
}

// RegionStats describes a region at the moment its stability is judged.
type RegionStats struct {
	// Level is the highest gray level at which the region has its current
	// pixel set
	Level int

	// Size is the current pixel count
	Size int

	// SizeBelow is the pixel count of the region Delta levels below Level,
	// 0 if it did not exist yet
	SizeBelow int

	// Variation is (Size - SizeBelow) / Size
	Variation float64

	// ChildSize is the size of the largest stable region already found
	// inside this one, 0 if there is none
	ChildSize int

	// ImageSize is the number of pixels in the section
	ImageSize int
}

// StabilityPolicy decides which regions of the sweep become slices.
type StabilityPolicy interface {
	IsStable(stats RegionStats) bool
}

// IsStable implements the default policy: area bounds, bounded variation,
// and sufficient diversity from the largest stable child.
func (p Parameters) IsStable(s RegionStats) bool {
	if s.Size < p.MinArea {
		return false
	}
	if p.MaxArea > 0 && s.Size > p.MaxArea {
		return false
	}
	if s.Size >= s.ImageSize {
		return false
	}
	if s.Variation > p.MaxVariation {
		return false
	}
	if s.ChildSize > 0 {
		diversity := float64(s.Size-s.ChildSize) / float64(s.Size)
		if diversity < p.MinDiversity {
			return false
		}
	}
	return true
}
