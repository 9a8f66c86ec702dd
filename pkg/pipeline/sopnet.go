// Package pipeline runs the full reconstruction: slices are extracted from
// every section, linked into segment hypotheses, the best consistent subset
// is selected by an integer linear program and grouped into neurons.
package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/unidesigner/sopnet/internal/models"
	"github.com/unidesigner/sopnet/pkg/config"
	"github.com/unidesigner/sopnet/pkg/evaluation"
	"github.com/unidesigner/sopnet/pkg/inference"
	"github.com/unidesigner/sopnet/pkg/metrics"
	"github.com/unidesigner/sopnet/pkg/mser"
	"github.com/unidesigner/sopnet/pkg/neurons"
	"github.com/unidesigner/sopnet/pkg/segments"
	"github.com/unidesigner/sopnet/pkg/slices"
	"github.com/unidesigner/sopnet/pkg/store"
	"github.com/unidesigner/sopnet/pkg/visualization"
)

// Result holds everything a run produced.
type Result struct {
	RunID     string
	OutputDir string

	Sections []models.Section
	Slices   *models.SliceSet
	Segments *models.Segments
	Problem  *inference.Problem
	Solution *inference.Solution
	Selected *models.Segments
	Neurons  []*models.Neuron

	Summary evaluation.Summary

	// Evaluation is set when ground truth was available
	Evaluation *evaluation.VariationOfInformation
}

// Sopnet drives one reconstruction run.
type Sopnet struct {
	cfg     *config.Config
	log     zerolog.Logger
	metrics *metrics.Recorder

	runID     string
	outputDir string
	cache     *store.SliceCache
	solver    inference.Solver
}

// Option customizes a Sopnet.
type Option func(*Sopnet)

// WithRunID names the run. Outputs go to a directory of that name.
func WithRunID(id string) Option {
	return func(s *Sopnet) {
		s.runID = id
	}
}

// WithSolver replaces the solver selected by the configuration.
func WithSolver(solver inference.Solver) Option {
	return func(s *Sopnet) {
		s.solver = solver
	}
}

// New prepares a run. A nil recorder disables metrics.
func New(cfg *config.Config, log zerolog.Logger, recorder *metrics.Recorder, opts ...Option) (*Sopnet, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Sopnet{
		cfg:     cfg,
		metrics: recorder,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.runID == "" {
		s.runID = uuid.NewString()
	}
	s.log = log.With().Str("run", s.runID).Logger()
	s.outputDir = filepath.Join(cfg.Output.Dir, s.runID)

	if s.solver == nil {
		switch cfg.Inference.Solver {
		case "file":
			s.solver = inference.SolutionFileSolver{Path: cfg.Inference.SolutionFile}
		default:
			lp := inference.NewLPSolver(cfg.Inference.MaxNodes, s.log)
			if cfg.Inference.Relaxation {
				lp.Type = inference.Continuous
			}
			s.solver = lp
		}
	}

	if cfg.Cache.Enabled {
		cache, err := store.Open(cfg.Cache.Config, s.log)
		if err != nil {
			return nil, err
		}
		s.cache = cache
	}

	return s, nil
}

// RunID returns the id of the run.
func (s *Sopnet) RunID() string {
	return s.runID
}

// Close releases the extraction cache.
func (s *Sopnet) Close() error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Close()
}

// Process loads the sections named by the configuration and runs the
// pipeline on them.
func (s *Sopnet) Process(ctx context.Context) (*Result, error) {
	s.log.Info().Msg("Step 1: Loading input sections...")
	done := s.metrics.Stage("load")
	sections, err := loadSections(s.cfg.Input.ImageDir, s.cfg.Input.Sections)
	done(err)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load sections")
	}
	if len(sections) > 0 {
		s.log.Info().
			Int("sections", len(sections)).
			Int("width", sections[0].Width).
			Int("height", sections[0].Height).
			Msg("Loaded sections")
	}
	return s.Run(ctx, sections)
}

// stage runs fn as a timed pipeline stage.
func (s *Sopnet) stage(name string, fn func() error) error {
	done := s.metrics.Stage(name)
	start := time.Now()
	err := fn()
	done(err)
	if err != nil {
		s.log.Error().Err(err).Str("stage", name).Msg("stage failed")
		return err
	}
	s.log.Debug().Str("stage", name).Dur("took", time.Since(start)).Msg("stage done")
	return nil
}

// Run processes already loaded sections. Stages run one after the other;
// the first failure ends the run.
func (s *Sopnet) Run(ctx context.Context, sections []models.Section) (*Result, error) {
	res := &Result{RunID: s.runID, OutputDir: s.outputDir, Sections: sections}
	s.metrics.Count("sections", len(sections))

	if s.cfg.Output.SaveIntermediaryResults || s.cfg.Output.SaveNeuronRasters {
		if err := os.MkdirAll(s.outputDir, 0755); err != nil {
			return nil, models.IOFailure("run", errors.Wrap(err, "failed to create output directory"))
		}
	}

	s.log.Info().Msg("Step 2: Extracting slices...")
	err := s.stage("extract", func() error {
		m := mser.NewExtractor(s.cfg.Mser, mser.WithLogger(s.log))
		opts := []slices.Option{
			slices.WithLogger(s.log),
			slices.WithWorkers(s.cfg.Processing.NumCores),
			slices.WithSectionRange(s.cfg.Input.Sections),
		}
		if s.cache != nil {
			opts = append(opts, slices.WithCache(s.cache))
		}
		var err error
		res.Slices, err = slices.NewExtractor(m, opts...).ExtractAll(ctx, sections)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Count("slices", res.Slices.Len())

	s.log.Info().Msg("Step 3: Building segment hypotheses...")
	err = s.stage("build", func() error {
		params := s.cfg.Segments
		if params.Workers < 1 {
			params.Workers = s.cfg.Processing.NumCores
		}
		var err error
		res.Segments, err = segments.NewBuilder(params, s.cfg.Cost, s.log).Build(ctx, res.Slices)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Count("ends", len(res.Segments.Ends()))
	s.metrics.Count("continuations", len(res.Segments.Continuations()))
	s.metrics.Count("branches", len(res.Segments.Branches()))

	s.log.Info().Msg("Step 4: Assembling the problem...")
	err = s.stage("assemble", func() error {
		var err error
		res.Problem, err = inference.NewAssembler(s.cfg.Inference.ForceExplanation, s.log).Assemble(res.Segments, res.Slices)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Count("variables", res.Problem.Variables.Len())
	s.metrics.Count("constraints", res.Problem.Constraints.Len())

	if s.cfg.Output.SaveIntermediaryResults {
		s.log.Info().Msg("Step 5: Writing the problem...")
		err = s.stage("write", func() error {
			return s.writer().Write(inference.WriterInput{
				Segments:    res.Segments,
				Slices:      res.Slices,
				Variables:   res.Problem.Variables,
				Objective:   res.Problem.Objective,
				Constraints: res.Problem.Constraints,
			})
		})
		if err != nil {
			return nil, err
		}
	}

	s.log.Info().Msg("Step 6: Solving...")
	err = s.stage("solve", func() error {
		solveCtx := ctx
		if s.cfg.Inference.SolverTimeout > 0 {
			var cancel context.CancelFunc
			solveCtx, cancel = context.WithTimeout(ctx, s.cfg.Inference.SolverTimeout)
			defer cancel()
		}
		var err error
		res.Solution, err = s.solver.Solve(solveCtx, res.Problem.Objective, res.Problem.Constraints)
		if err != nil {
			return err
		}
		if s.cfg.Output.SaveIntermediaryResults {
			return s.writeSolution(res.Solution)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.SetObjective(res.Solution.Objective)
	s.log.Info().
		Stringer("status", res.Solution.Status).
		Float64("objective", res.Solution.Objective).
		Msg("Solved")

	s.log.Info().Msg("Step 7: Extracting neurons...")
	err = s.stage("neurons", func() error {
		res.Selected = inference.Select(res.Segments, res.Problem.Variables, res.Solution)
		res.Neurons = neurons.Extract(res.Selected)
		res.Summary = evaluation.Summarize(res.Neurons)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.metrics.Count("neurons", len(res.Neurons))
	s.log.Info().
		Int("neurons", res.Summary.Neurons).
		Int("segments", res.Summary.Segments).
		Float64("meanSegments", res.Summary.MeanSegments).
		Msg("Neurons extracted")

	if len(sections) == 0 {
		return res, nil
	}
	labels := visualization.LabelVolume(res.Neurons, res.Slices, sections[0].Width, sections[0].Height, res.Slices.NumSections())

	if s.cfg.Output.SaveNeuronRasters {
		s.log.Info().Msg("Step 8: Saving neuron rasters...")
		err = s.stage("rasters", func() error {
			return s.saveRasters(labels, sections[0].Width, sections[0].Height, res.Slices.NumSections())
		})
		if err != nil {
			return nil, err
		}
	}

	if s.cfg.Input.GroundTruthDir != "" {
		s.log.Info().Msg("Step 9: Evaluating against ground truth...")
		err = s.stage("evaluate", func() error {
			voi, err := s.evaluate(labels, sections)
			if err != nil {
				return err
			}
			res.Evaluation = &voi
			return nil
		})
		if err != nil {
			return nil, err
		}
		s.metrics.SetVariationOfInformation(res.Evaluation.Split, res.Evaluation.Merge)
		s.log.Info().
			Float64("split", res.Evaluation.Split).
			Float64("merge", res.Evaluation.Merge).
			Float64("total", res.Evaluation.Total()).
			Msg("Variation of information")
	}

	return res, nil
}

func (s *Sopnet) writer() *inference.ProblemWriter {
	dir := filepath.Join(s.outputDir, "problem")
	return inference.NewProblemWriter(inference.WriteOptions{
		SlicesFile:    filepath.Join(dir, "slices.txt"),
		SegmentsFile:  filepath.Join(dir, "segments.txt"),
		ProblemFile:   filepath.Join(dir, "problem.txt"),
		SliceImageDir: filepath.Join(dir, "slices"),
		ImageFormat:   s.cfg.Output.SliceImageFormat,
		Sections:      &s.cfg.Input.Sections,
	}, s.log)
}

func (s *Sopnet) writeSolution(solution *inference.Solution) error {
	path := filepath.Join(s.outputDir, "solution.txt")
	f, err := os.Create(path)
	if err != nil {
		return models.IOFailure("solve", errors.Wrapf(err, "create %s", path))
	}
	if err := inference.WriteSolution(f, solution); err != nil {
		f.Close()
		return models.IOFailure("solve", errors.Wrapf(err, "write %s", path))
	}
	if err := f.Close(); err != nil {
		return models.IOFailure("solve", errors.Wrapf(err, "close %s", path))
	}
	return nil
}

func (s *Sopnet) saveRasters(labels []int, width, height, depth int) error {
	viewer := visualization.NewViewer(labels, width, height, depth)
	format := s.cfg.Output.SliceImageFormat

	if err := viewer.SaveSectionSequence(filepath.Join(s.outputDir, "labels"), format); err != nil {
		return models.IOFailure("rasters", err)
	}
	if err := viewer.SaveSliceSequence("z", filepath.Join(s.outputDir, "neurons"), format); err != nil {
		return models.IOFailure("rasters", err)
	}
	return nil
}

// evaluate compares the loaded sections of the label volume with ground
// truth.
func (s *Sopnet) evaluate(labels []int, sections []models.Section) (evaluation.VariationOfInformation, error) {
	truth, err := loadLabels(s.cfg.Input.GroundTruthDir, sections)
	if err != nil {
		return evaluation.VariationOfInformation{}, errors.Wrap(err, "failed to load ground truth")
	}

	var a, b []int
	for k, section := range sections {
		size := section.Width * section.Height
		start := section.Index * size
		a = append(a, labels[start:start+size]...)
		b = append(b, truth[k]...)
	}
	return evaluation.CompareLabels(a, b)
}
