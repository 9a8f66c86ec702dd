package inference

import (
	"math"

	"github.com/pkg/errors"
)

// Relation compares the left-hand side of a constraint with its value.
type Relation int

const (
	LessEqual Relation = iota
	Equal
	GreaterEqual
)

func (r Relation) String() string {
	switch r {
	case LessEqual:
		return "<="
	case Equal:
		return "=="
	default:
		return ">="
	}
}

// ParseRelation reads the textual form produced by String.
func ParseRelation(s string) (Relation, error) {
	switch s {
	case "<=":
		return LessEqual, nil
	case "==", "=":
		return Equal, nil
	case ">=":
		return GreaterEqual, nil
	}
	return 0, errors.Errorf("unknown relation %q", s)
}

// Term is one variable of a constraint with its coefficient.
type Term struct {
	Variable    int
	Coefficient float64
}

// LinearConstraint is sum(coefficient * variable) <relation> value.
type LinearConstraint struct {
	Terms    []Term
	Relation Relation
	Value    float64
}

// SetCoefficient sets the coefficient of a variable, adding the term if it
// is not present yet.
func (c *LinearConstraint) SetCoefficient(variable int, coef float64) {
	for i := range c.Terms {
		if c.Terms[i].Variable == variable {
			c.Terms[i].Coefficient = coef
			return
		}
	}
	c.Terms = append(c.Terms, Term{Variable: variable, Coefficient: coef})
}

// LHS evaluates the left-hand side at x.
func (c *LinearConstraint) LHS(x []float64) float64 {
	sum := 0.0
	for _, t := range c.Terms {
		sum += t.Coefficient * x[t.Variable]
	}
	return sum
}

// Satisfied reports whether x fulfills the constraint up to tol.
func (c *LinearConstraint) Satisfied(x []float64, tol float64) bool {
	return holds(c.LHS(x), c.Relation, c.Value, tol)
}

func holds(lhs float64, r Relation, value, tol float64) bool {
	switch r {
	case LessEqual:
		return lhs <= value+tol
	case GreaterEqual:
		return lhs >= value-tol
	default:
		return math.Abs(lhs-value) <= tol
	}
}

// LinearConstraints is an ordered list of constraints.
type LinearConstraints struct {
	constraints []LinearConstraint
}

// NewLinearConstraints creates an empty list.
func NewLinearConstraints() *LinearConstraints {
	return &LinearConstraints{}
}

// Add appends a constraint.
func (l *LinearConstraints) Add(c LinearConstraint) {
	l.constraints = append(l.constraints, c)
}

// Len returns the number of constraints.
func (l *LinearConstraints) Len() int {
	if l == nil {
		return 0
	}
	return len(l.constraints)
}

// All returns the constraints in insertion order.
func (l *LinearConstraints) All() []LinearConstraint {
	if l == nil {
		return nil
	}
	return l.constraints
}
