package inference

import (
	"gonum.org/v1/gonum/mat"

	"github.com/unidesigner/sopnet/internal/models"
)

// LinearObjective is a coefficient per variable, to be minimized.
type LinearObjective struct {
	coefs *mat.VecDense
}

// NewLinearObjective creates an all-zero objective over size variables.
func NewLinearObjective(size int) *LinearObjective {
	o := &LinearObjective{}
	if size > 0 {
		o.coefs = mat.NewVecDense(size, nil)
	}
	return o
}

// Size returns the number of variables.
func (o *LinearObjective) Size() int {
	if o.coefs == nil {
		return 0
	}
	return o.coefs.Len()
}

// SetCoefficient sets the coefficient of variable i.
func (o *LinearObjective) SetCoefficient(i int, v float64) {
	o.coefs.SetVec(i, v)
}

// Coefficient returns the coefficient of variable i.
func (o *LinearObjective) Coefficient(i int) float64 {
	return o.coefs.AtVec(i)
}

// Coefficients returns a copy of all coefficients.
func (o *LinearObjective) Coefficients() []float64 {
	if o.coefs == nil {
		return nil
	}
	out := make([]float64, o.coefs.Len())
	copy(out, o.coefs.RawVector().Data)
	return out
}

// Value evaluates the objective at x.
func (o *LinearObjective) Value(x []float64) float64 {
	if o.coefs == nil || len(x) == 0 {
		return 0
	}
	return mat.Dot(o.coefs, mat.NewVecDense(len(x), x))
}

// GenerateObjective uses the cost of every segment as the coefficient of
// its variable.
func GenerateObjective(segments *models.Segments, variables *VariableMap) *LinearObjective {
	o := NewLinearObjective(variables.Len())
	for _, seg := range segments.All() {
		if v, ok := variables.Variable(seg.ID()); ok {
			o.SetCoefficient(v, seg.Cost())
		}
	}
	return o
}
