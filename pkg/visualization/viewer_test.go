package visualization

import (
	"image"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidesigner/sopnet/internal/models"
)

func square(id uint, section, minX, minY, size int) *models.Slice {
	box := models.BoundingBox{MinX: minX, MaxX: minX + size, MinY: minY, MaxY: minY + size}
	b := models.NewBitmap(size, size)
	for i := range b.Bits {
		b.Bits[i] = true
	}
	return &models.Slice{ID: id, Section: section, BoundingBox: box, Size: size * size, Bitmap: b}
}

// two neurons over three 10x10 sections
func testVolume() ([]int, *models.SliceSet) {
	set := models.NewSliceSet(3)
	set.Add(square(0, 0, 1, 1, 3))
	set.Add(square(1, 1, 1, 1, 3))
	set.Add(square(2, 2, 6, 6, 2))

	a := models.NewNeuron(0)
	a.Add(models.NewContinuationSegment(0, models.Right, 1, 0, 1, 0))
	b := models.NewNeuron(1)
	b.Add(models.NewEndSegment(1, models.Left, 2, 2, 0))

	return LabelVolume([]*models.Neuron{a, b}, set, 10, 10, 3), set
}

func TestLabelVolume(t *testing.T) {
	labels, _ := testVolume()
	require.Len(t, labels, 300)

	count := map[int]int{}
	for _, l := range labels {
		count[l]++
	}
	assert.Equal(t, 18, count[1])
	assert.Equal(t, 4, count[2])
	assert.Equal(t, 300-22, count[0])

	assert.Equal(t, 1, labels[0*100+2*10+2])
	assert.Equal(t, 1, labels[1*100+3*10+3])
	assert.Equal(t, 2, labels[2*100+7*10+7])
	assert.Equal(t, 0, labels[2*100+2*10+2])
}

func TestExtractSlice(t *testing.T) {
	labels, _ := testVolume()
	v := NewViewer(labels, 10, 10, 3)

	img, err := v.ExtractSlice("z", 0)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())

	bg := img.At(0, 0)
	fg := img.At(2, 2)
	assert.NotEqual(t, bg, fg)

	img, err = v.ExtractSlice("x", 2)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 3, 10), img.Bounds())
	// same neuron in sections 0 and 1
	assert.Equal(t, img.At(0, 2), img.At(1, 2))

	img, err = v.ExtractSlice("y", 7)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 10, 3), img.Bounds())

	_, err = v.ExtractSlice("z", 3)
	assert.Error(t, err)
	_, err = v.ExtractSlice("w", 0)
	assert.Error(t, err)
	_, err = v.ExtractSlice("x", -1)
	assert.Error(t, err)
}

func TestPalette(t *testing.T) {
	p := Palette(8)
	require.Len(t, p, 8)
	for i := range p {
		assert.True(t, p[i].IsValid())
		for j := i + 1; j < len(p); j++ {
			assert.NotEqual(t, p[i].Hex(), p[j].Hex())
		}
	}
	assert.Empty(t, Palette(0))
}

func TestSaveSequences(t *testing.T) {
	labels, _ := testVolume()
	v := NewViewer(labels, 10, 10, 3)
	dir := t.TempDir()

	require.NoError(t, v.SaveSliceSequence("z", filepath.Join(dir, "rgb"), "png"))
	require.NoError(t, v.SaveSectionSequence(filepath.Join(dir, "labels"), "tiff"))

	for z := 0; z < 3; z++ {
		_, err := os.Stat(filepath.Join(dir, "rgb", "neurons_z_00"+string(rune('0'+z))+".png"))
		assert.NoError(t, err)
	}

	img, err := LoadImage(filepath.Join(dir, "labels", "labels_002.tiff"))
	require.NoError(t, err)
	r, _, _, _ := img.At(7, 7).RGBA()
	assert.Equal(t, uint32(2), r)

	assert.Error(t, v.SaveSliceSequence("q", dir, "png"))
}

func TestBitmapRoundTrip(t *testing.T) {
	b := models.NewBitmap(4, 3)
	b.Set(0, 0, true)
	b.Set(3, 2, true)

	dir := t.TempDir()
	for _, name := range []string{"mask.png", "mask.tiff"} {
		path := filepath.Join(dir, name)
		require.NoError(t, SaveImage(BitmapImage(b), path))

		img, err := LoadImage(path)
		require.NoError(t, err)
		s := ImageSection(5, img)
		assert.Equal(t, 5, s.Index)
		assert.Equal(t, 4, s.Width)
		assert.Equal(t, 3, s.Height)
		assert.Equal(t, 1.0, s.Pixels[0])
		assert.Equal(t, 0.0, s.Pixels[1])
		assert.Equal(t, 1.0, s.Pixels[11])
	}

	assert.Error(t, SaveImage(BitmapImage(b), filepath.Join(dir, "mask.bmp")))
	_, err := os.Stat(filepath.Join(dir, "mask.bmp"))
	assert.True(t, os.IsNotExist(err), "unsupported formats leave no file behind")
}

func TestSectionImage(t *testing.T) {
	s := models.Section{Width: 2, Height: 1, Pixels: []float64{0, 1}}
	back := ImageSection(0, SectionImage(s))
	assert.Equal(t, s.Pixels, back.Pixels)
	assert.True(t, IsImageFile("a.TIF"))
	assert.False(t, IsImageFile("a.txt"))
}
