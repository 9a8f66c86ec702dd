// Package segments hypothesizes how slices of adjacent sections connect.
package segments

import (
	"context"
	"runtime"
	"sort"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unidesigner/sopnet/internal/models"
)

// Parameters bound the candidate search.
type Parameters struct {
	// MaxCenterDistance is the largest centroid distance, in pixels, between
	// two linked slices
	MaxCenterDistance float64 `yaml:"maxCenterDistance" validate:"gt=0"`

	// MinOverlap is the smallest |A∩B| / min(|A|,|B|) of two linked slices
	MinOverlap float64 `yaml:"minOverlap" validate:"gte=0,lte=1"`

	// MaxBranchPartners limits, per source slice, how many of the best
	// overlapping candidates are paired into branches. Below 2 disables
	// branches.
	MaxBranchPartners int `yaml:"maxBranchPartners" validate:"gte=0"`

	// Workers bounds the number of intervals processed at once; below 1
	// means one per CPU
	Workers int `yaml:"workers"`
}

// DefaultParameters returns the default search bounds.
func DefaultParameters() Parameters {
	return Parameters{
		MaxCenterDistance: 50,
		MinOverlap:        0.5,
		MaxBranchPartners: 5,
	}
}

// Builder creates the segment hypotheses of a slice set.
type Builder struct {
	params Parameters
	cost   CostFunction
	log    zerolog.Logger
}

// NewBuilder creates a builder. A nil cost function selects the default
// geometric one.
func NewBuilder(params Parameters, cost CostFunction, log zerolog.Logger) *Builder {
	if cost == nil {
		cost = DefaultGeometricCost()
	}
	if params.Workers < 1 {
		params.Workers = runtime.NumCPU()
	}
	return &Builder{
		params: params,
		cost:   cost,
		log:    log.With().Str("component", "segments").Logger(),
	}
}

// interval collects the hypotheses of one interval before ids are known
type interval struct {
	ends          []*models.EndSegment
	continuations []*models.ContinuationSegment
	branches      []*models.BranchSegment
}

// Build creates End, Continuation and Branch segments for every interval of
// the stack. Ids are dense from 0, handed out in interval order and within
// an interval ends first, then continuations, then branches.
func (b *Builder) Build(ctx context.Context, slices *models.SliceSet) (*models.Segments, error) {
	segments := models.NewSegments()
	n := slices.NumSections()
	if n == 0 {
		b.log.Debug().Msg("no sections, no segments")
		return segments, nil
	}

	intervals := make([]interval, n+1)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(b.params.Workers)
	for i := range intervals {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			intervals[i] = b.buildInterval(i, slices.Section(i-1), slices.Section(i))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var id uint
	for _, iv := range intervals {
		for _, e := range iv.ends {
			e.SetID(id)
			segments.AddEnd(e)
			id++
		}
		for _, c := range iv.continuations {
			c.SetID(id)
			segments.AddContinuation(c)
			id++
		}
		for _, br := range iv.branches {
			br.SetID(id)
			segments.AddBranch(br)
			id++
		}
	}

	b.log.Info().
		Int("intervals", len(intervals)).
		Int("ends", len(segments.Ends())).
		Int("continuations", len(segments.Continuations())).
		Int("branches", len(segments.Branches())).
		Msg("segments built")

	return segments, nil
}

// buildInterval hypothesizes segments between the sections left and right
// of interval i. Either side may be empty at the stack borders.
func (b *Builder) buildInterval(i int, prev, next []*models.Slice) interval {
	var iv interval

	for _, s := range next {
		iv.ends = append(iv.ends, models.NewEndSegment(0, models.Left, i, s.ID, b.cost.EndCost(s)))
	}
	for _, s := range prev {
		iv.ends = append(iv.ends, models.NewEndSegment(0, models.Right, i, s.ID, b.cost.EndCost(s)))
	}

	if len(prev) == 0 || len(next) == 0 {
		return iv
	}

	prevIndex := newCenterIndex(prev)
	nextIndex := newCenterIndex(next)

	for _, s := range prev {
		for _, t := range b.partners(s, nextIndex) {
			iv.continuations = append(iv.continuations,
				models.NewContinuationSegment(0, models.Right, i, s.ID, t.ID, b.cost.ContinuationCost(s, t)))
		}
	}

	if b.params.MaxBranchPartners > 1 {
		for _, s := range prev {
			iv.branches = append(iv.branches, b.branches(i, models.Right, s, nextIndex)...)
		}
		for _, s := range next {
			iv.branches = append(iv.branches, b.branches(i, models.Left, s, prevIndex)...)
		}
	}

	return iv
}

// partners returns the slices of the other section that may continue s,
// ordered by id.
func (b *Builder) partners(s *models.Slice, other *centerIndex) []*models.Slice {
	var out []*models.Slice
	for _, t := range other.within(s.Center, b.params.MaxCenterDistance) {
		if overlapRatio(s, t) >= b.params.MinOverlap {
			out = append(out, t)
		}
	}
	return out
}

// branches pairs the best-overlapping partners of source into branch
// segments. Paired targets must not share pixels.
func (b *Builder) branches(i int, dir models.Direction, source *models.Slice, other *centerIndex) []*models.BranchSegment {
	candidates := b.partners(source, other)
	sort.SliceStable(candidates, func(x, y int) bool {
		return source.Overlap(candidates[x]) > source.Overlap(candidates[y])
	})
	if len(candidates) > b.params.MaxBranchPartners {
		candidates = candidates[:b.params.MaxBranchPartners]
	}
	sortByID(candidates)

	var out []*models.BranchSegment
	for x := 0; x < len(candidates); x++ {
		for y := x + 1; y < len(candidates); y++ {
			t1, t2 := candidates[x], candidates[y]
			if t1.Overlap(t2) > 0 {
				continue
			}
			out = append(out, models.NewBranchSegment(0, dir, i, source.ID, t1.ID, t2.ID,
				b.cost.BranchCost(source, t1, t2)))
		}
	}
	return out
}

// overlapRatio is |a∩b| / min(|a|,|b|)
func overlapRatio(a, b *models.Slice) float64 {
	smaller := min(a.Size, b.Size)
	if smaller == 0 {
		return 0
	}
	return float64(a.Overlap(b)) / float64(smaller)
}

func sortByID(slices []*models.Slice) {
	sort.Slice(slices, func(i, j int) bool { return slices[i].ID < slices[j].ID })
}
