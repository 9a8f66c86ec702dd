package inference

import (
	"sort"

	"github.com/rs/zerolog"

	"github.com/unidesigner/sopnet/internal/models"
)

// Problem is a complete integer linear program over segment variables.
type Problem struct {
	Variables   *VariableMap
	Objective   *LinearObjective
	Constraints *LinearConstraints
}

// Assembler derives the program of a segment set.
//
// Two families of constraints are generated. Conflict sets (slices of one
// section that share pixels) may be used by at most one segment arriving
// from the interval in front of the section; with ForceExplanation exactly
// one. Continuity asks every slice to be entered from the left as often as
// it is left to the right, so that each used slice is covered by one
// segment on either side.
type Assembler struct {
	ForceExplanation bool

	log zerolog.Logger
}

// NewAssembler creates an assembler.
func NewAssembler(forceExplanation bool, log zerolog.Logger) *Assembler {
	return &Assembler{
		ForceExplanation: forceExplanation,
		log:              log.With().Str("component", "assembler").Logger(),
	}
}

// Validate checks that every slice referenced by a segment exists in the
// section the segment expects it in.
func Validate(stage string, segments *models.Segments, slices *models.SliceSet) error {
	for _, seg := range segments.All() {
		for _, ref := range models.SliceRefs(seg) {
			if !slices.InSection(ref.ID, ref.Section) {
				return models.InconsistentReference(stage, seg.ID(), ref.ID, ref.Section)
			}
		}
	}
	return nil
}

// Assemble validates the segments against the slices and builds variables,
// objective and constraints.
func (a *Assembler) Assemble(segments *models.Segments, slices *models.SliceSet) (*Problem, error) {
	if err := Validate("assemble", segments, slices); err != nil {
		return nil, err
	}

	variables := FromSegments(segments)
	objective := GenerateObjective(segments, variables)

	// per slice: variables of segments in the interval in front of its
	// section and in the interval behind it
	entering := make(map[uint][]int)
	leaving := make(map[uint][]int)
	for _, seg := range segments.All() {
		v, _ := variables.Variable(seg.ID())
		left, right := seg.Sides()
		for _, id := range right {
			entering[id] = append(entering[id], v)
		}
		for _, id := range left {
			leaving[id] = append(leaving[id], v)
		}
	}

	constraints := NewLinearConstraints()

	relation := LessEqual
	if a.ForceExplanation {
		relation = Equal
	}
	for section := 0; section < slices.NumSections(); section++ {
		for _, conflict := range slices.ConflictSets(section) {
			vars := make(map[int]bool)
			for _, id := range conflict {
				for _, v := range entering[id] {
					vars[v] = true
				}
			}
			if len(vars) == 0 {
				continue
			}
			c := LinearConstraint{Relation: relation, Value: 1}
			for _, v := range sortedKeys(vars) {
				c.Terms = append(c.Terms, Term{Variable: v, Coefficient: 1})
			}
			constraints.Add(c)
		}
	}
	numConflicts := constraints.Len()

	for _, id := range slices.IDs() {
		if len(entering[id]) == 0 && len(leaving[id]) == 0 {
			continue
		}
		c := LinearConstraint{Relation: Equal, Value: 0}
		for _, v := range entering[id] {
			c.Terms = append(c.Terms, Term{Variable: v, Coefficient: 1})
		}
		for _, v := range leaving[id] {
			c.Terms = append(c.Terms, Term{Variable: v, Coefficient: -1})
		}
		constraints.Add(c)
	}

	a.log.Info().
		Int("variables", variables.Len()).
		Int("conflictConstraints", numConflicts).
		Int("continuityConstraints", constraints.Len()-numConflicts).
		Msg("problem assembled")

	return &Problem{Variables: variables, Objective: objective, Constraints: constraints}, nil
}

func sortedKeys(m map[int]bool) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
