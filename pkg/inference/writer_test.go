package inference

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unidesigner/sopnet/internal/models"
)

func testOptions(dir string) WriteOptions {
	return WriteOptions{
		SlicesFile:    filepath.Join(dir, "slices.txt"),
		SegmentsFile:  filepath.Join(dir, "segments.txt"),
		ProblemFile:   filepath.Join(dir, "problem.txt"),
		SliceImageDir: filepath.Join(dir, "slices"),
	}
}

func writerInput(t *testing.T, segments *models.Segments, slices *models.SliceSet) WriterInput {
	t.Helper()
	problem, err := NewAssembler(false, zerolog.Nop()).Assemble(segments, slices)
	require.NoError(t, err)
	return WriterInput{
		Segments:    segments,
		Slices:      slices,
		Variables:   problem.Variables,
		Objective:   problem.Objective,
		Constraints: problem.Constraints,
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestWriteProblemDump(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)

	require.NoError(t, NewProblemWriter(testOptions(dir), zerolog.Nop()).Write(in))

	assert.Equal(t, []string{
		sliceTableHeader,
		"1 0 0 2 0 2 0.5 0.5 0.5 4",
		"2 1 0 2 0 2 0.25 0.5 0.5 4",
	}, readLines(t, filepath.Join(dir, "slices.txt")))

	assert.Equal(t, []string{
		segmentTableHeader,
		"0 1 1 0.1",
		"1 1 1 0.1",
		"2 1 2 0.1",
		"3 1 2 0.1",
		"10 2 1 2 3.5",
	}, readLines(t, filepath.Join(dir, "segments.txt")))

	for _, name := range []string{"0_1.png", "1_2.png"} {
		_, err := os.Stat(filepath.Join(dir, "slices", name))
		assert.NoError(t, err, name)
	}

	f, err := os.Open(filepath.Join(dir, "problem.txt"))
	require.NoError(t, err)
	defer f.Close()
	objective, constraints, err := ReadProblem(f)
	require.NoError(t, err)
	assert.Equal(t, in.Objective.Coefficients(), objective.Coefficients())
	assert.Equal(t, in.Constraints.All(), constraints.All())
}

func TestWriteWithoutRangeKeepsAllSections(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)

	opts := WriteOptions{
		SlicesFile:   filepath.Join(dir, "slices.txt"),
		SegmentsFile: filepath.Join(dir, "segments.txt"),
	}
	require.NoError(t, NewProblemWriter(opts, zerolog.Nop()).Write(in))

	assert.Len(t, readLines(t, filepath.Join(dir, "slices.txt")), 3)
	rows := readLines(t, filepath.Join(dir, "segments.txt"))
	assert.Len(t, rows, 6)
	assert.Contains(t, rows, "10 2 1 2 3.5")
	assert.Contains(t, rows, "3 1 2 0.1")
}

func TestWriteDeduplicatesSlices(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	segments.AddEnd(models.NewEndSegment(4, models.Left, 0, 1, 0.2))
	in := writerInput(t, segments, slices)

	require.NoError(t, NewProblemWriter(testOptions(dir), zerolog.Nop()).Write(in))

	lines := readLines(t, filepath.Join(dir, "slices.txt"))
	assert.Len(t, lines, 3)
	assert.Contains(t, readLines(t, filepath.Join(dir, "segments.txt")), "4 1 1 0.2")
}

func TestWriteSkipsWhenNotReady(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)
	w := NewProblemWriter(testOptions(dir), zerolog.Nop())

	for name, modify := range map[string]func(*WriterInput){
		"segments":  func(in *WriterInput) { in.Segments = nil },
		"variables": func(in *WriterInput) { in.Variables = nil },
		"objective": func(in *WriterInput) { in.Objective = nil },
		"slices":    func(in *WriterInput) { in.Slices = nil },
	} {
		partial := in
		modify(&partial)
		assert.NoError(t, w.Write(partial), name)
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteRejectsInconsistentReference(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)

	// slice 1 is in section 0, not in section 1
	bad := models.NewSegments()
	for _, seg := range segments.All() {
		bad.Add(seg)
	}
	bad.AddEnd(models.NewEndSegment(20, models.Left, 1, 1, 0))
	in.Segments = bad
	in.Variables.Add(20)

	err := NewProblemWriter(testOptions(dir), zerolog.Nop()).Write(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrInconsistentReference))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWriteRejectsSegmentWithoutVariable(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)
	in.Variables = NewVariableMap()

	err := NewProblemWriter(testOptions(dir), zerolog.Nop()).Write(in)
	assert.True(t, errors.Is(err, models.ErrInconsistentReference))
}

func TestWriteSectionRange(t *testing.T) {
	dir := t.TempDir()
	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)

	opts := testOptions(dir)
	opts.Sections = &models.SectionRange{First: 1, Last: -1}
	opts.ImageFormat = "tiff"
	require.NoError(t, NewProblemWriter(opts, zerolog.Nop()).Write(in))

	assert.Equal(t, []string{
		sliceTableHeader,
		"2 1 0 2 0 2 0.25 0.5 0.5 4",
	}, readLines(t, filepath.Join(dir, "slices.txt")))

	assert.Equal(t, []string{
		segmentTableHeader,
		"2 1 2 0.1",
		"3 1 2 0.1",
	}, readLines(t, filepath.Join(dir, "segments.txt")))

	_, err := os.Stat(filepath.Join(dir, "slices", "1_2.tiff"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "slices", "0_1.tiff"))
	assert.True(t, os.IsNotExist(err))
}

func TestWriteIOFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0644))

	segments, slices := chain(3.5)
	in := writerInput(t, segments, slices)

	opts := WriteOptions{SlicesFile: filepath.Join(blocker, "slices.txt")}
	err := NewProblemWriter(opts, zerolog.Nop()).Write(in)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrIO))
}
