package inference

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/unidesigner/sopnet/internal/models"
	"github.com/unidesigner/sopnet/pkg/visualization"
)

const (
	sliceTableHeader   = "# id section bb.minX bb.maxX bb.minY bb.maxY value center.x center.y size"
	segmentTableHeader = "# segmentid number_of_slices (1=end,2=continuation,3=branch) (sliceids)* cost"
)

// WriteOptions selects the artifacts a ProblemWriter emits. Empty paths
// skip the corresponding artifact.
type WriteOptions struct {
	SlicesFile    string
	SegmentsFile  string
	ProblemFile   string
	SliceImageDir string

	// ImageFormat is png or tiff
	ImageFormat string

	// Sections restricts the emitted slice and segment rows, nil writes
	// all sections
	Sections *models.SectionRange
}

// WriterInput bundles everything a problem dump is made of.
type WriterInput struct {
	Segments    *models.Segments
	Slices      *models.SliceSet
	Variables   *VariableMap
	Objective   *LinearObjective
	Constraints *LinearConstraints
}

// ProblemWriter dumps a formulated problem for inspection and for external
// solvers.
type ProblemWriter struct {
	opts WriteOptions
	log  zerolog.Logger
}

// NewProblemWriter creates a writer.
func NewProblemWriter(opts WriteOptions, log zerolog.Logger) *ProblemWriter {
	if opts.ImageFormat == "" {
		opts.ImageFormat = "png"
	}
	return &ProblemWriter{
		opts: opts,
		log:  log.With().Str("component", "writer").Logger(),
	}
}

// Write emits the slice table, slice images, segment table and problem
// file. Missing inputs make it a no-op. References are validated before
// anything touches the disk.
func (w *ProblemWriter) Write(in WriterInput) error {
	if in.Segments == nil || in.Variables == nil || in.Objective == nil || in.Slices == nil {
		w.log.Debug().Err(models.ErrNotReady).Msg("skipping problem dump")
		return nil
	}

	if err := Validate("write", in.Segments, in.Slices); err != nil {
		return err
	}
	for _, seg := range in.Segments.All() {
		v, ok := in.Variables.Variable(seg.ID())
		if !ok || v >= in.Objective.Size() {
			return &models.RunError{
				Kind:   models.ErrInconsistentReference,
				Stage:  "write",
				Entity: "segment",
				ID:     seg.ID(),
				Err:    errors.New("segment has no variable"),
			}
		}
	}

	slices := w.tableSlices(in)

	if w.opts.SlicesFile != "" {
		if err := writeFile(w.opts.SlicesFile, func(out io.Writer) error {
			return writeSliceTable(out, slices)
		}); err != nil {
			return models.IOFailure("write", err)
		}
	}

	if w.opts.SliceImageDir != "" {
		if err := w.writeSliceImages(slices); err != nil {
			return models.IOFailure("write", err)
		}
	}

	if w.opts.SegmentsFile != "" {
		if err := writeFile(w.opts.SegmentsFile, func(out io.Writer) error {
			return w.writeSegmentTable(out, in)
		}); err != nil {
			return models.IOFailure("write", err)
		}
	}

	if w.opts.ProblemFile != "" && in.Constraints != nil {
		if err := writeFile(w.opts.ProblemFile, func(out io.Writer) error {
			return WriteProblem(out, in.Objective, in.Constraints)
		}); err != nil {
			return models.IOFailure("write", err)
		}
	}

	w.log.Info().
		Int("slices", len(slices)).
		Int("segments", in.Segments.Len()).
		Msg("problem written")
	return nil
}

// tableSlices lists the slices of left ends in order, each once.
func (w *ProblemWriter) tableSlices(in WriterInput) []*models.Slice {
	seen := make(map[uint]bool)
	var out []*models.Slice
	for _, end := range in.Segments.Ends() {
		if end.Direction() != models.Left || seen[end.Slice] {
			continue
		}
		seen[end.Slice] = true
		s, _ := in.Slices.Get(end.Slice)
		if !w.contains(s.Section) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func writeSliceTable(out io.Writer, slices []*models.Slice) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintln(bw, sliceTableHeader)
	for _, s := range slices {
		fmt.Fprintf(bw, "%d %d %d %d %d %d %s %s %s %d\n",
			s.ID, s.Section,
			s.BoundingBox.MinX, s.BoundingBox.MaxX, s.BoundingBox.MinY, s.BoundingBox.MaxY,
			formatFloat(s.Value), formatFloat(s.Center.X), formatFloat(s.Center.Y), s.Size)
	}
	return bw.Flush()
}

func (w *ProblemWriter) writeSliceImages(slices []*models.Slice) error {
	if err := os.MkdirAll(w.opts.SliceImageDir, 0755); err != nil {
		return errors.Wrap(err, "create slice image directory")
	}
	for _, s := range slices {
		name := fmt.Sprintf("%d_%d.%s", s.Section, s.ID, w.opts.ImageFormat)
		if err := visualization.SaveImage(visualization.BitmapImage(s.Bitmap), filepath.Join(w.opts.SliceImageDir, name)); err != nil {
			return err
		}
	}
	return nil
}

func (w *ProblemWriter) writeSegmentTable(out io.Writer, in WriterInput) error {
	bw := bufio.NewWriter(out)
	fmt.Fprintln(bw, segmentTableHeader)
	// All lists ends, continuations and branches in that order
	for _, seg := range in.Segments.All() {
		if !w.inRange(seg, in.Slices) {
			continue
		}
		ids := seg.SliceIDs()
		v, _ := in.Variables.Variable(seg.ID())
		fmt.Fprintf(bw, "%d %d", seg.ID(), len(ids))
		for _, id := range ids {
			fmt.Fprintf(bw, " %d", id)
		}
		fmt.Fprintf(bw, " %s\n", formatFloat(in.Objective.Coefficient(v)))
	}
	return bw.Flush()
}

// inRange reports whether all slices of a segment lie in the selected
// sections.
func (w *ProblemWriter) inRange(seg models.Segment, slices *models.SliceSet) bool {
	for _, id := range seg.SliceIDs() {
		s, _ := slices.Get(id)
		if !w.contains(s.Section) {
			return false
		}
	}
	return true
}

func (w *ProblemWriter) contains(section int) bool {
	return w.opts.Sections == nil || w.opts.Sections.Contains(section)
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "create directory for %s", path)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	if err := write(f); err != nil {
		f.Close()
		return errors.Wrapf(err, "write %s", path)
	}
	return errors.Wrapf(f.Close(), "close %s", path)
}
