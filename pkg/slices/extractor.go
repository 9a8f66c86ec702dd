// Package slices turns section images into the slice arena of a run.
package slices

import (
	"context"
	"runtime"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/unidesigner/sopnet/internal/models"
	"github.com/unidesigner/sopnet/pkg/mser"
	"github.com/unidesigner/sopnet/pkg/store"
)

// Extractor runs the region sweep over every section of a stack.
type Extractor struct {
	mser     *mser.Extractor
	cache    *store.SliceCache
	log      zerolog.Logger
	workers  int
	sections models.SectionRange
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithCache reuses component trees of previously seen sections.
func WithCache(cache *store.SliceCache) Option {
	return func(e *Extractor) {
		e.cache = cache
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Extractor) {
		e.log = log.With().Str("component", "slices").Logger()
	}
}

// WithWorkers bounds the number of sections processed at once. Values
// below 1 mean one worker per CPU.
func WithWorkers(n int) Option {
	return func(e *Extractor) {
		e.workers = n
	}
}

// WithSectionRange restricts extraction to a range of section indices.
// Sections outside the range contribute no slices.
func WithSectionRange(r models.SectionRange) Option {
	return func(e *Extractor) {
		e.sections = r
	}
}

// NewExtractor creates a stack extractor around a region sweep.
func NewExtractor(m *mser.Extractor, opts ...Option) *Extractor {
	e := &Extractor{
		mser:     m,
		log:      zerolog.Nop(),
		sections: models.AllSections,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.workers < 1 {
		e.workers = runtime.NumCPU()
	}
	return e
}

// ExtractAll extracts the slices of all sections. Sections are processed
// in parallel; slice ids are assigned afterwards in section order and,
// within a section, in component pre-order, so they do not depend on
// scheduling.
func (e *Extractor) ExtractAll(ctx context.Context, sections []models.Section) (*models.SliceSet, error) {
	trees := make([]*mser.ComponentTree, len(sections))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, section := range sections {
		if !e.sections.Contains(section.Index) {
			continue
		}
		i, section := i, section
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			tree, err := e.extract(section)
			if err != nil {
				return err
			}
			trees[i] = tree
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	numSections := 0
	for _, section := range sections {
		numSections = max(numSections, section.Index+1)
	}
	set := models.NewSliceSet(numSections)

	var next uint
	for i, section := range sections {
		tree := trees[i]
		if tree == nil {
			continue
		}

		ids := make([]uint, tree.Len())
		tree.Walk(func(index, _ int) {
			c := tree.Nodes[index].Component
			ids[index] = next
			set.Add(&models.Slice{
				ID:          next,
				Section:     section.Index,
				BoundingBox: c.BoundingBox,
				Value:       c.Value,
				Center:      c.Center,
				Size:        c.Size,
				Bitmap:      c.Bitmap,
			})
			next++
		})

		for _, nodes := range tree.Conflicts() {
			conflict := make([]uint, len(nodes))
			for k, index := range nodes {
				conflict[k] = ids[index]
			}
			set.AddConflictSet(section.Index, conflict)
		}

		e.log.Debug().
			Int("section", section.Index).
			Int("slices", tree.Len()).
			Msg("section extracted")
	}

	e.log.Info().
		Int("sections", len(sections)).
		Int("slices", set.Len()).
		Msg("slices extracted")

	return set, nil
}

func (e *Extractor) extract(section models.Section) (*mser.ComponentTree, error) {
	// cache keys only cover the parameters
	if e.cache == nil || e.mser.CustomPolicy() {
		return e.sweep(section)
	}

	key := store.Key(section, e.mser.Parameters())
	tree, ok, err := e.cache.Get(key)
	if err != nil {
		e.log.Warn().Err(err).Int("section", section.Index).Msg("cache read failed")
	}
	if ok {
		return tree, nil
	}

	tree, err = e.sweep(section)
	if err != nil {
		return nil, err
	}
	if err := e.cache.Put(key, tree); err != nil {
		e.log.Warn().Err(err).Int("section", section.Index).Msg("cache write failed")
	}
	return tree, nil
}

func (e *Extractor) sweep(section models.Section) (*mser.ComponentTree, error) {
	tree, err := e.mser.Extract(section)
	if err != nil {
		return nil, errors.Wrapf(err, "extract section %d", section.Index)
	}
	return tree, nil
}
