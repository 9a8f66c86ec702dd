// Package visualization renders slices and reconstructed neurons as raster
// images.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/unidesigner/sopnet/internal/models"
)

// Viewer renders a label volume along any of its axes. Label 0 is
// background, label k is neuron k-1.
type Viewer struct {
	labels []int

	// dimensions of the volume; depth runs over sections
	width  int
	height int
	depth  int

	palette []colorful.Color
}

// NewViewer creates a viewer over a volume of width*height*depth labels,
// section-major.
func NewViewer(labels []int, width, height, depth int) *Viewer {
	maxLabel := 0
	for _, l := range labels {
		maxLabel = max(maxLabel, l)
	}
	return &Viewer{
		labels:  labels,
		width:   width,
		height:  height,
		depth:   depth,
		palette: Palette(maxLabel),
	}
}

// LabelVolume paints every slice of every neuron into a volume of the given
// size. Pixels claimed by several neurons keep the last one.
func LabelVolume(neurons []*models.Neuron, slices *models.SliceSet, width, height, depth int) []int {
	labels := make([]int, width*height*depth)
	for _, n := range neurons {
		for _, id := range n.SliceIDs() {
			s, ok := slices.Get(id)
			if !ok || s.Section < 0 || s.Section >= depth {
				continue
			}
			base := s.Section * width * height
			for y := s.BoundingBox.MinY; y < s.BoundingBox.MaxY && y < height; y++ {
				for x := s.BoundingBox.MinX; x < s.BoundingBox.MaxX && x < width; x++ {
					if s.Contains(x, y) {
						labels[base+y*width+x] = n.ID + 1
					}
				}
			}
		}
	}
	return labels
}

// Palette returns n well separated colors, spaced by the golden angle in
// hue.
func Palette(n int) []colorful.Color {
	out := make([]colorful.Color, n)
	for i := range out {
		hue := math.Mod(float64(i)*137.508, 360)
		out[i] = colorful.Hsv(hue, 0.65, 0.95).Clamped()
	}
	return out
}

func (v *Viewer) color(label int) color.RGBA {
	if label <= 0 || label > len(v.palette) {
		return color.RGBA{A: 255}
	}
	r, g, b := v.palette[label-1].RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func (v *Viewer) at(x, y, z int) int {
	idx := z*v.width*v.height + y*v.width + x
	if idx < len(v.labels) {
		return v.labels[idx]
	}
	return 0
}

// ExtractSlice renders one plane of the volume. Axis z cuts along a
// section, x and y cut across sections.
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var img *image.RGBA

	switch axis {
	case "x", "X":
		if position >= v.width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.width)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.depth, v.height))
		for y := 0; y < v.height; y++ {
			for z := 0; z < v.depth; z++ {
				img.SetRGBA(z, y, v.color(v.at(position, y, z)))
			}
		}

	case "y", "Y":
		if position >= v.height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.height)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.depth))
		for z := 0; z < v.depth; z++ {
			for x := 0; x < v.width; x++ {
				img.SetRGBA(x, z, v.color(v.at(x, position, z)))
			}
		}

	case "z", "Z":
		if position >= v.depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.depth)
		}
		img = image.NewRGBA(image.Rect(0, 0, v.width, v.height))
		for y := 0; y < v.height; y++ {
			for x := 0; x < v.width; x++ {
				img.SetRGBA(x, y, v.color(v.at(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// LabelSlice returns the raw labels of one section as a 16-bit image, for
// evaluation with external tools.
func (v *Viewer) LabelSlice(section int) (*image.Gray16, error) {
	if section < 0 || section >= v.depth {
		return nil, fmt.Errorf("section %d out of range [0,%d)", section, v.depth)
	}
	img := image.NewGray16(image.Rect(0, 0, v.width, v.height))
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			img.SetGray16(x, y, color.Gray16{Y: uint16(min(v.at(x, y, section), math.MaxUint16))})
		}
	}
	return img, nil
}

// SaveSliceSequence renders every plane along axis into outputDir, encoded
// as ext (png, tiff or jpg).
func (v *Viewer) SaveSliceSequence(axis, outputDir, ext string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.width
	case "y", "Y":
		maxPos = v.height
	case "z", "Z":
		maxPos = v.depth
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("neurons_%s_%03d.%s", axis, pos, ext))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}

	return nil
}

// SaveSectionSequence writes the raw label image of every section into
// outputDir.
func (v *Viewer) SaveSectionSequence(outputDir, ext string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}
	for z := 0; z < v.depth; z++ {
		img, err := v.LabelSlice(z)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("labels_%03d.%s", z, ext))
		if err := SaveImage(img, filename); err != nil {
			return err
		}
	}
	return nil
}
