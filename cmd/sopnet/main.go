package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/unidesigner/sopnet/pkg/config"
	"github.com/unidesigner/sopnet/pkg/inference"
	"github.com/unidesigner/sopnet/pkg/logging"
	"github.com/unidesigner/sopnet/pkg/metrics"
	"github.com/unidesigner/sopnet/pkg/pipeline"
)

var (
	configPath string

	// run overrides
	inputDir   string
	outputDir  string
	truthDir   string
	numCores   int
	logLevel   string
	noRasters  bool
	noProblem  bool
	solverName string
	solutionIn string

	// solve flags
	maxNodes int
	timeout  time.Duration

	rootCmd = &cobra.Command{
		Use:   "sopnet",
		Short: "Reconstruct neurons from serial electron microscopy sections",
		Long: `sopnet extracts candidate slices from every section, links them into
segment hypotheses across sections and selects a consistent set of
segments with an integer linear program. The selected segments are
grouped into neurons.`,
		SilenceUsage: true,
	}

	runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the full reconstruction on a stack of section images",
		RunE:  runReconstruction,
	}

	solveCmd = &cobra.Command{
		Use:   "solve <problem> <solution>",
		Short: "Solve a problem file written by a previous run",
		Args:  cobra.ExactArgs(2),
		RunE:  solveProblem,
	}

	initConfigCmd = &cobra.Command{
		Use:   "init-config [path]",
		Short: "Write a configuration file with default values",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := configPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := config.CreateDefaultConfigFile(path); err != nil {
				return err
			}
			fmt.Printf("Default configuration written to %s\n", path)
			return nil
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "sopnet.yaml", "Configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")

	runCmd.Flags().StringVarP(&inputDir, "input", "i", "", "Directory containing the section images")
	runCmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory receiving the run outputs")
	runCmd.Flags().StringVar(&truthDir, "ground-truth", "", "Directory containing ground truth label images")
	runCmd.Flags().IntVar(&numCores, "cores", 0, "Number of CPU cores to use (default: from config)")
	runCmd.Flags().BoolVar(&noRasters, "no-rasters", false, "Do not save neuron label images")
	runCmd.Flags().BoolVar(&noProblem, "no-problem", false, "Do not save slice and segment tables or the problem file")
	runCmd.Flags().StringVar(&solverName, "solver", "", "Solver to use (lp or file)")
	runCmd.Flags().StringVar(&solutionIn, "solution", "", "Solution file of an external solver, implies --solver file")

	solveCmd.Flags().IntVar(&maxNodes, "max-nodes", 10000, "Branch and bound node limit, 0 for unbounded")
	solveCmd.Flags().DurationVar(&timeout, "timeout", 0, "Abort the solver after this long")

	rootCmd.AddCommand(runCmd, solveCmd, initConfigCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies command line
// overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.Input.ImageDir = inputDir
	}
	if flags.Changed("output") {
		cfg.Output.Dir = outputDir
	}
	if flags.Changed("ground-truth") {
		cfg.Input.GroundTruthDir = truthDir
	}
	if flags.Changed("cores") {
		cfg.Processing.NumCores = numCores
	}
	if noRasters {
		cfg.Output.SaveNeuronRasters = false
	}
	if noProblem {
		cfg.Output.SaveIntermediaryResults = false
	}
	if flags.Changed("solver") {
		cfg.Inference.Solver = solverName
	}
	if flags.Changed("solution") {
		cfg.Inference.Solver = "file"
		cfg.Inference.SolutionFile = solutionIn
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(level string) (zerolog.Logger, error) {
	cfg := logging.DefaultConfig()
	if level != "" {
		cfg.Level = level
	}
	return logging.New(cfg)
}

func runReconstruction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("SOPNET: NEURON RECONSTRUCTION FROM SERIAL SECTIONS")
	fmt.Println("================================")

	runID := uuid.NewString()
	recorder := metrics.NewRecorder()
	s, err := pipeline.New(cfg, log, recorder, pipeline.WithRunID(runID))
	if err != nil {
		return err
	}
	defer s.Close()

	startTime := time.Now()
	res, err := s.Process(ctx)
	if err != nil {
		return errors.Wrap(err, "reconstruction failed")
	}
	processingTime := time.Since(startTime)

	if err := recorder.Push(cfg.Metrics.PushGateway, cfg.Metrics.Job, runID); err != nil {
		log.Warn().Err(err).Str("gateway", cfg.Metrics.PushGateway).Msg("Failed to push metrics")
	}

	fmt.Printf("\nReconstruction completed in %.2f seconds!\n", processingTime.Seconds())
	fmt.Printf("Run %s\n\n", runID)

	fmt.Printf("Sections:       %d\n", len(res.Sections))
	fmt.Printf("Slices:         %d\n", res.Slices.Len())
	fmt.Printf("Segments:       %d (%d ends, %d continuations, %d branches)\n",
		res.Segments.Len(), len(res.Segments.Ends()), len(res.Segments.Continuations()), len(res.Segments.Branches()))
	fmt.Printf("Solution:       %s, objective %.4f\n", res.Solution.Status, res.Solution.Objective)
	fmt.Printf("Neurons:        %d (%.1f ± %.1f segments)\n",
		res.Summary.Neurons, res.Summary.MeanSegments, res.Summary.StdDevSegments)
	if res.Evaluation != nil {
		fmt.Printf("VOI:            %.4f (split %.4f, merge %.4f)\n",
			res.Evaluation.Total(), res.Evaluation.Split, res.Evaluation.Merge)
	}

	if cfg.Output.SaveIntermediaryResults || cfg.Output.SaveNeuronRasters {
		fmt.Println("\nResults saved to:")
		fmt.Printf("%s\n", res.OutputDir)
		if cfg.Output.SaveIntermediaryResults {
			fmt.Println("- problem: slice and segment tables, slice images and the problem file")
			fmt.Println("- solution.txt: solver output")
		}
		if cfg.Output.SaveNeuronRasters {
			fmt.Println("- labels: neuron labels per section")
			fmt.Println("- neurons: colored neurons per section")
		}
	}
	return nil
}

func solveProblem(cmd *cobra.Command, args []string) error {
	log, err := newLogger(logLevel)
	if err != nil {
		return err
	}

	in, err := os.Open(args[0])
	if err != nil {
		return errors.Wrap(err, "failed to open problem")
	}
	objective, constraints, err := inference.ReadProblem(in)
	in.Close()
	if err != nil {
		return errors.Wrapf(err, "failed to read %s", args[0])
	}
	log.Info().
		Int("variables", objective.Size()).
		Int("constraints", constraints.Len()).
		Msg("Problem loaded")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	solution, err := inference.NewLPSolver(maxNodes, log).Solve(ctx, objective, constraints)
	if err != nil {
		return err
	}

	out, err := os.Create(args[1])
	if err != nil {
		return errors.Wrap(err, "failed to create solution")
	}
	if err := inference.WriteSolution(out, solution); err != nil {
		out.Close()
		return errors.Wrapf(err, "failed to write %s", args[1])
	}
	if err := out.Close(); err != nil {
		return err
	}

	log.Info().
		Stringer("status", solution.Status).
		Float64("objective", solution.Objective).
		Str("path", args[1]).
		Msg("Solution written")
	return nil
}
