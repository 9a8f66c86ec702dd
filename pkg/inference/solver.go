package inference

import (
	"context"
	"os"

	"github.com/pkg/errors"

	"github.com/unidesigner/sopnet/internal/models"
)

// Status describes how a solution was obtained.
type Status int

const (
	// Optimal solutions were proven best.
	Optimal Status = iota
	// Feasible solutions satisfy all constraints but the search stopped early.
	Feasible
	// Rounded solutions are a thresholded relaxation and may violate
	// constraints.
	Rounded
	// External solutions were read back from another solver.
	External
)

func (s Status) String() string {
	switch s {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Rounded:
		return "rounded"
	default:
		return "external"
	}
}

// Solution holds one value per variable.
type Solution struct {
	Values    []float64
	Objective float64
	Status    Status
}

// Len returns the number of variables.
func (s *Solution) Len() int {
	return len(s.Values)
}

// Selected reports whether variable i is switched on.
func (s *Solution) Selected(i int) bool {
	return s.Values[i] > 0.5
}

// Solver minimizes a linear objective over binary variables.
type Solver interface {
	Solve(ctx context.Context, objective *LinearObjective, constraints *LinearConstraints) (*Solution, error)
}

// Select returns the segments whose variables the solution switches on.
func Select(segments *models.Segments, variables *VariableMap, solution *Solution) *models.Segments {
	return segments.Subset(func(seg models.Segment) bool {
		v, ok := variables.Variable(seg.ID())
		return ok && v < solution.Len() && solution.Selected(v)
	})
}

// SolutionFileSolver reads the result of an external solver that was run
// on a written problem file.
type SolutionFileSolver struct {
	Path string
}

func (s SolutionFileSolver) Solve(ctx context.Context, objective *LinearObjective, _ *LinearConstraints) (*Solution, error) {
	if err := ctx.Err(); err != nil {
		return nil, models.SolverFailure("solve", err)
	}

	f, err := os.Open(s.Path)
	if err != nil {
		return nil, models.SolverFailure("solve", errors.Wrap(err, "open solution"))
	}
	defer f.Close()

	solution, err := ReadSolution(f)
	if err != nil {
		return nil, models.SolverFailure("solve", errors.Wrapf(err, "read %s", s.Path))
	}
	if solution.Len() != objective.Size() {
		return nil, models.SolverFailure("solve",
			errors.Errorf("solution has %d values, problem has %d variables", solution.Len(), objective.Size()))
	}

	solution.Objective = objective.Value(solution.Values)
	solution.Status = External
	return solution, nil
}
