// Package mser finds maximally stable extremal regions in a section image
// and arranges them in their natural nesting.
package mser

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/unidesigner/sopnet/internal/models"
)

// Extractor runs the linear-time sweep over section images.
type Extractor struct {
	params Parameters
	policy StabilityPolicy
	custom bool
	log    zerolog.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithPolicy replaces the stability decision of the parameters.
func WithPolicy(policy StabilityPolicy) Option {
	return func(e *Extractor) {
		e.policy = policy
		e.custom = true
	}
}

// WithLogger sets the logger used for per-section debug output.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Extractor) {
		e.log = log
	}
}

// NewExtractor creates an extractor. Without WithPolicy the parameters
// themselves decide stability.
func NewExtractor(params Parameters, opts ...Option) *Extractor {
	e := &Extractor{
		params: params,
		policy: params,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Parameters returns the sweep parameters.
func (e *Extractor) Parameters() Parameters {
	return e.params
}

// CustomPolicy reports whether stability is decided by a policy other than
// the parameters, so that the parameters alone do not determine the output.
func (e *Extractor) CustomPolicy() bool {
	return e.custom
}

// Extract finds the stable regions of one section. Empty sections yield an
// empty tree.
func (e *Extractor) Extract(section models.Section) (*ComponentTree, error) {
	if section.Width < 0 || section.Height < 0 || len(section.Pixels) != section.Len() {
		return nil, errors.Errorf("section %d: %d pixels do not fit %dx%d",
			section.Index, len(section.Pixels), section.Width, section.Height)
	}

	tree := &ComponentTree{}
	if section.Len() == 0 {
		return tree, nil
	}

	gray := quantize(section, e.params.SameIntensityComponents)

	if e.params.DarkToBright {
		s := newSweep(section.Width, section.Height, gray, e.params.Delta, e.policy)
		s.run()
		tree.merge(s.tree(func(level int) float64 { return float64(level) / 255 }))
	}

	if e.params.BrightToDark {
		inverted := make([]uint8, len(gray))
		for i, v := range gray {
			inverted[i] = 255 - v
		}
		s := newSweep(section.Width, section.Height, inverted, e.params.Delta, e.policy)
		s.run()
		tree.merge(s.tree(func(level int) float64 { return float64(255-level) / 255 }))
	}

	e.log.Debug().
		Int("section", section.Index).
		Int("components", tree.Len()).
		Int("roots", len(tree.Roots)).
		Msg("extracted components")

	return tree, nil
}

// quantize maps [0,1] intensities onto 256 gray levels.
func quantize(section models.Section, sameIntensity bool) []uint8 {
	gray := make([]uint8, len(section.Pixels))
	for i, v := range section.Pixels {
		gray[i] = uint8(min(max(v, 0), 1) * 255)
	}
	if !sameIntensity {
		return gray
	}

	// pixels differing from their left or upper neighbor become boundary
	out := make([]uint8, len(gray))
	copy(out, gray)
	w := section.Width
	for i, v := range gray {
		x, y := i%w, i/w
		if x > 0 && gray[i-1] != v {
			out[i] = 0
		}
		if y > 0 && gray[i-w] != v {
			out[i] = 0
		}
	}
	return out
}
