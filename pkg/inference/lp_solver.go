package inference

import (
	"context"
	"math"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/unidesigner/sopnet/internal/models"
)

// VariableType selects the domain of the variables.
type VariableType int

const (
	Binary VariableType = iota
	Continuous
)

const (
	feasibilityTol = 1e-6
	integralityTol = 1e-6
	dependenceTol  = 1e-9
)

// LPSolver solves binary programs by branch and bound over linear
// relaxations. Each relaxation is solved with the simplex method on the
// standard form min c'x, Ax = b, x >= 0.
type LPSolver struct {
	// MaxNodes bounds the number of relaxations solved during branching,
	// 0 means unbounded. When the bound is hit the best integral solution
	// found so far is returned, or the rounded root relaxation if there is
	// none.
	MaxNodes int

	// Type is Binary unless only the relaxation is wanted
	Type VariableType

	log zerolog.Logger
}

// NewLPSolver creates a binary solver.
func NewLPSolver(maxNodes int, log zerolog.Logger) *LPSolver {
	return &LPSolver{
		MaxNodes: maxNodes,
		Type:     Binary,
		log:      log.With().Str("component", "solver").Logger(),
	}
}

// relaxation is the solution of one LP relaxation
type relaxation struct {
	x        []float64
	value    float64
	feasible bool
}

// bbNode is a branch-and-bound node: variables fixed to 0 or 1
type bbNode struct {
	fixed map[int]float64
}

func (s *LPSolver) Solve(ctx context.Context, objective *LinearObjective, constraints *LinearConstraints) (*Solution, error) {
	n := objective.Size()
	rows := constraints.All()
	for i, row := range rows {
		for _, t := range row.Terms {
			if t.Variable < 0 || t.Variable >= n {
				return nil, models.SolverFailure("solve",
					errors.Errorf("constraint %d references variable %d of %d", i, t.Variable, n))
			}
		}
	}
	if n == 0 {
		return &Solution{Status: Optimal}, nil
	}

	c := objective.Coefficients()
	root, err := relax(c, rows, nil)
	if err != nil {
		return nil, models.SolverFailure("solve", err)
	}
	if !root.feasible {
		return nil, models.SolverFailure("solve", errors.New("relaxation is infeasible"))
	}
	if s.Type == Continuous {
		return &Solution{Values: root.x, Objective: root.value, Status: Optimal}, nil
	}

	var best []float64
	bestValue := math.Inf(1)
	stack := []bbNode{{}}
	nodes := 0
	exhausted := true

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, models.SolverFailure("solve", err)
		}
		if s.MaxNodes > 0 && nodes >= s.MaxNodes {
			exhausted = false
			break
		}

		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		rel := root
		if node.fixed != nil {
			if rel, err = relax(c, rows, node.fixed); err != nil {
				return nil, models.SolverFailure("solve", err)
			}
		}
		if !rel.feasible || rel.value >= bestValue-feasibilityTol {
			continue
		}

		j := mostFractional(rel.x)
		if j < 0 {
			best = threshold(rel.x)
			bestValue = objective.Value(best)
			continue
		}

		down := bbNode{fixed: withFixed(node.fixed, j, 0)}
		up := bbNode{fixed: withFixed(node.fixed, j, 1)}
		// the child closer to the relaxation is explored first
		if rel.x[j] >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	var solution *Solution
	switch {
	case best != nil && exhausted:
		solution = &Solution{Values: best, Objective: bestValue, Status: Optimal}
	case best != nil:
		solution = &Solution{Values: best, Objective: bestValue, Status: Feasible}
	case exhausted:
		return nil, models.SolverFailure("solve", errors.New("no binary solution exists"))
	default:
		x := threshold(root.x)
		solution = &Solution{Values: x, Objective: objective.Value(x), Status: Rounded}
	}

	s.log.Debug().
		Int("variables", n).
		Int("constraints", len(rows)).
		Int("nodes", nodes).
		Stringer("status", solution.Status).
		Float64("objective", solution.Objective).
		Msg("solved")

	return solution, nil
}

// reducedRow is a constraint over the free variables of a node
type reducedRow struct {
	coefs    []float64
	relation Relation
	rhs      float64
}

// relax solves the LP relaxation with the given variables fixed.
func relax(c []float64, rows []LinearConstraint, fixed map[int]float64) (relaxation, error) {
	n := len(c)
	x := make([]float64, n)
	column := make([]int, n)
	var free []int
	constant := 0.0
	for i := range c {
		if v, ok := fixed[i]; ok {
			x[i] = v
			column[i] = -1
			constant += c[i] * v
			continue
		}
		column[i] = len(free)
		free = append(free, i)
	}
	nf := len(free)

	var eqs, ineqs []reducedRow
	for _, row := range rows {
		r := reducedRow{coefs: make([]float64, nf), relation: row.Relation, rhs: row.Value}
		nonzero := false
		for _, t := range row.Terms {
			if column[t.Variable] < 0 {
				r.rhs -= t.Coefficient * x[t.Variable]
				continue
			}
			r.coefs[column[t.Variable]] += t.Coefficient
		}
		for _, v := range r.coefs {
			if v != 0 {
				nonzero = true
				break
			}
		}
		if !nonzero {
			if !holds(0, r.relation, r.rhs, feasibilityTol) {
				return relaxation{}, nil
			}
			continue
		}
		if r.relation == Equal {
			eqs = append(eqs, r)
		} else {
			ineqs = append(ineqs, r)
		}
	}

	if nf == 0 {
		return relaxation{x: x, value: constant, feasible: true}, nil
	}

	independent := independentRows(eqs)
	ni := len(ineqs)

	// columns: free variables, inequality slacks, upper bound slacks
	cols := nf + ni + nf
	m := len(independent) + ni + nf
	A := mat.NewDense(m, cols, nil)
	b := make([]float64, m)
	cost := make([]float64, cols)
	for j, v := range free {
		cost[j] = c[v]
	}

	r := 0
	for _, eq := range independent {
		A.SetRow(r, padded(eq.coefs, cols))
		b[r] = eq.rhs
		r++
	}
	for k, in := range ineqs {
		A.SetRow(r, padded(in.coefs, cols))
		if in.relation == LessEqual {
			A.Set(r, nf+k, 1)
		} else {
			A.Set(r, nf+k, -1)
		}
		b[r] = in.rhs
		r++
	}
	for j := 0; j < nf; j++ {
		A.Set(r, j, 1)
		A.Set(r, nf+ni+j, 1)
		b[r] = 1
		r++
	}

	for i := range b {
		if b[i] < 0 {
			b[i] = -b[i]
			for j := 0; j < cols; j++ {
				A.Set(i, j, -A.At(i, j))
			}
		}
	}

	_, xs, err := lp.Simplex(cost, A, b, 0, nil)
	if errors.Is(err, lp.ErrInfeasible) {
		return relaxation{}, nil
	}
	if err != nil {
		return relaxation{}, errors.Wrap(err, "simplex")
	}

	value := constant
	for j, v := range free {
		x[v] = math.Min(math.Max(xs[j], 0), 1)
		value += c[v] * x[v]
	}

	// dropped rows were combinations of kept ones only if their right-hand
	// sides agree
	for _, eq := range eqs {
		lhs := 0.0
		for j, v := range free {
			lhs += eq.coefs[j] * x[v]
		}
		if math.Abs(lhs-eq.rhs) > feasibilityTol {
			return relaxation{}, nil
		}
	}

	return relaxation{x: x, value: value, feasible: true}, nil
}

// independentRows keeps the equality rows that are linearly independent of
// the rows kept before them (modified Gram-Schmidt).
func independentRows(rows []reducedRow) []reducedRow {
	var basis []*mat.VecDense
	var out []reducedRow
	for _, row := range rows {
		v := mat.NewVecDense(len(row.coefs), append([]float64(nil), row.coefs...))
		scale := math.Max(1, mat.Norm(v, 2))
		for _, q := range basis {
			v.AddScaledVec(v, -mat.Dot(v, q), q)
		}
		norm := mat.Norm(v, 2)
		if norm <= dependenceTol*scale {
			continue
		}
		v.ScaleVec(1/norm, v)
		basis = append(basis, v)
		out = append(out, row)
	}
	return out
}

func padded(coefs []float64, n int) []float64 {
	row := make([]float64, n)
	copy(row, coefs)
	return row
}

// mostFractional returns the variable farthest from integrality, -1 when
// all are integral.
func mostFractional(x []float64) int {
	best, bestFrac := -1, integralityTol
	for i, v := range x {
		frac := math.Min(v, 1-v)
		if frac > bestFrac {
			best, bestFrac = i, frac
		}
	}
	return best
}

func threshold(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		if v > 0.5 {
			out[i] = 1
		}
	}
	return out
}

func withFixed(fixed map[int]float64, variable int, value float64) map[int]float64 {
	out := make(map[int]float64, len(fixed)+1)
	for k, v := range fixed {
		out[k] = v
	}
	out[variable] = value
	return out
}
