package pipeline

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/pkg/errors"

	"github.com/unidesigner/sopnet/internal/models"
	"github.com/unidesigner/sopnet/pkg/visualization"
)

// imageFiles lists the images of a directory ordered by the number in their
// file names.
func imageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && visualization.IsImageFile(entry.Name()) {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, errors.Errorf("no images found in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})
	return files, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadSections reads one section per image. Section indices follow the
// file order, so a restricted range keeps the indices of the full stack.
func loadSections(dir string, sections models.SectionRange) ([]models.Section, error) {
	files, err := imageFiles(dir)
	if err != nil {
		return nil, err
	}

	var out []models.Section
	for i, name := range files {
		if !sections.Contains(i) {
			continue
		}
		img, err := visualization.LoadImage(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		s := visualization.ImageSection(i, img)
		if len(out) > 0 && (s.Width != out[0].Width || s.Height != out[0].Height) {
			return nil, errors.Errorf("%s is %dx%d, expected %dx%d", name, s.Width, s.Height, out[0].Width, out[0].Height)
		}
		out = append(out, s)
	}
	return out, nil
}

// loadLabels reads ground truth label images for the given sections. Labels
// are the raw 16-bit gray values.
func loadLabels(dir string, sections []models.Section) ([][]int, error) {
	files, err := imageFiles(dir)
	if err != nil {
		return nil, err
	}

	out := make([][]int, len(sections))
	for k, s := range sections {
		if s.Index >= len(files) {
			return nil, errors.Errorf("no ground truth for section %d", s.Index)
		}
		img, err := visualization.LoadImage(filepath.Join(dir, files[s.Index]))
		if err != nil {
			return nil, err
		}
		b := img.Bounds()
		if b.Dx() != s.Width || b.Dy() != s.Height {
			return nil, errors.Errorf("ground truth %s is %dx%d, expected %dx%d", files[s.Index], b.Dx(), b.Dy(), s.Width, s.Height)
		}
		out[k] = imageLabels(img)
	}
	return out, nil
}

func imageLabels(img image.Image) []int {
	b := img.Bounds()
	labels := make([]int, 0, b.Dx()*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			labels = append(labels, int(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y))
		}
	}
	return labels
}
