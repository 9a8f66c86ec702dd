package visualization

import (
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/image/tiff"

	"github.com/unidesigner/sopnet/internal/models"
)

// BitmapImage converts a slice mask into a black and white image.
func BitmapImage(b models.Bitmap) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, b.Width, b.Height))
	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			if b.At(x, y) {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

// SectionImage converts section intensities in [0,1] to a 16-bit image.
func SectionImage(s models.Section) *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			v := min(max(s.Pixels[y*s.Width+x], 0), 1)
			img.SetGray16(x, y, color.Gray16{Y: uint16(v * 65535)})
		}
	}
	return img
}

// ImageSection reads the red channel of img as intensities in [0,1].
func ImageSection(index int, img image.Image) models.Section {
	bounds := img.Bounds()
	s := models.Section{
		Index:  index,
		Width:  bounds.Dx(),
		Height: bounds.Dy(),
		Pixels: make([]float64, bounds.Dx()*bounds.Dy()),
	}
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			s.Pixels[y*s.Width+x] = float64(r) / 65535.0
		}
	}
	return s
}

// IsImageFile reports whether the file name has an extension SaveImage and
// LoadImage understand.
func IsImageFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return true
	}
	return false
}

// SaveImage encodes img in the format named by the file extension.
func SaveImage(img image.Image, filename string) error {
	if !IsImageFile(filename) {
		return errors.Errorf("unsupported image format %q", filepath.Ext(filename))
	}
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".tif", ".tiff":
		err = tiff.Encode(file, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: 90})
	}

	if cerr := file.Close(); err == nil {
		err = cerr
	}
	return errors.Wrapf(err, "save %s", filename)
}

// LoadImage decodes a PNG, JPEG or TIFF file.
func LoadImage(filename string) (image.Image, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var img image.Image
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		img, err = png.Decode(file)
	case ".tif", ".tiff":
		img, err = tiff.Decode(file)
	default:
		img, err = jpeg.Decode(file)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", filename)
	}
	return img, nil
}
