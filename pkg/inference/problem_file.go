package inference

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// The problem file is plain text. Lines starting with # are comments.
//
//	variables N
//	<index> <coefficient>        (N lines)
//	constraints M
//	<k> <v1> <c1> ... <vk> <ck> <relation> <value>        (M lines)
//
// The solution file is
//
//	solution N
//	<index> <value>        (N lines)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteProblem serializes an objective and its constraints.
func WriteProblem(w io.Writer, objective *LinearObjective, constraints *LinearConstraints) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# minimize sum(coefficient * x), x binary")
	fmt.Fprintf(bw, "variables %d\n", objective.Size())
	for i := 0; i < objective.Size(); i++ {
		fmt.Fprintf(bw, "%d %s\n", i, formatFloat(objective.Coefficient(i)))
	}

	fmt.Fprintf(bw, "constraints %d\n", constraints.Len())
	for _, c := range constraints.All() {
		fmt.Fprintf(bw, "%d", len(c.Terms))
		for _, t := range c.Terms {
			fmt.Fprintf(bw, " %d %s", t.Variable, formatFloat(t.Coefficient))
		}
		fmt.Fprintf(bw, " %s %s\n", c.Relation, formatFloat(c.Value))
	}

	return bw.Flush()
}

// lineReader yields the non-empty, non-comment lines of a stream as fields
type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func newLineReader(r io.Reader) *lineReader {
	s := bufio.NewScanner(r)
	s.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &lineReader{scanner: s}
}

func (l *lineReader) next() ([]string, error) {
	for l.scanner.Scan() {
		l.line++
		text := strings.TrimSpace(l.scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		return strings.Fields(text), nil
	}
	if err := l.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.ErrUnexpectedEOF
}

// header reads a "<keyword> <count>" line.
func (l *lineReader) header(keyword string) (int, error) {
	fields, err := l.next()
	if err != nil {
		return 0, errors.Wrapf(err, "reading %s header", keyword)
	}
	if len(fields) != 2 || fields[0] != keyword {
		return 0, errors.Errorf("line %d: expected %q header", l.line, keyword)
	}
	n, err := strconv.Atoi(fields[1])
	if err != nil || n < 0 {
		return 0, errors.Errorf("line %d: bad %s count %q", l.line, keyword, fields[1])
	}
	return n, nil
}

// indexValue reads an "<index> <value>" line and checks the index.
func (l *lineReader) indexValue(want int) (float64, error) {
	fields, err := l.next()
	if err != nil {
		return 0, errors.Wrapf(err, "reading entry %d", want)
	}
	if len(fields) != 2 {
		return 0, errors.Errorf("line %d: expected index and value", l.line)
	}
	index, err := strconv.Atoi(fields[0])
	if err != nil || index != want {
		return 0, errors.Errorf("line %d: expected index %d, got %q", l.line, want, fields[0])
	}
	v, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return 0, errors.Wrapf(err, "line %d", l.line)
	}
	return v, nil
}

// maxPrealloc bounds the capacity reserved from a header count, which is
// not trusted until the entries have been read
const maxPrealloc = 1 << 16

// values reads n "<index> <value>" lines.
func (l *lineReader) values(n int) ([]float64, error) {
	out := make([]float64, 0, min(n, maxPrealloc))
	for i := 0; i < n; i++ {
		v, err := l.indexValue(i)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// ReadProblem parses the output of WriteProblem.
func ReadProblem(r io.Reader) (*LinearObjective, *LinearConstraints, error) {
	lr := newLineReader(r)

	n, err := lr.header("variables")
	if err != nil {
		return nil, nil, err
	}
	coefs, err := lr.values(n)
	if err != nil {
		return nil, nil, err
	}
	objective := NewLinearObjective(n)
	for i, v := range coefs {
		objective.SetCoefficient(i, v)
	}

	m, err := lr.header("constraints")
	if err != nil {
		return nil, nil, err
	}
	constraints := NewLinearConstraints()
	for i := 0; i < m; i++ {
		fields, err := lr.next()
		if err != nil {
			return nil, nil, errors.Wrapf(err, "reading constraint %d", i)
		}
		c, err := parseConstraint(fields, n)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "line %d", lr.line)
		}
		constraints.Add(c)
	}

	return objective, constraints, nil
}

func parseConstraint(fields []string, numVariables int) (LinearConstraint, error) {
	var c LinearConstraint
	if len(fields) < 3 {
		return c, errors.New("constraint too short")
	}
	k, err := strconv.Atoi(fields[0])
	if err != nil || k < 0 || len(fields) != 2*k+3 {
		return c, errors.Errorf("bad term count %q", fields[0])
	}

	for t := 0; t < k; t++ {
		v, err := strconv.Atoi(fields[1+2*t])
		if err != nil || v < 0 || v >= numVariables {
			return c, errors.Errorf("bad variable %q", fields[1+2*t])
		}
		coef, err := strconv.ParseFloat(fields[2+2*t], 64)
		if err != nil {
			return c, errors.Wrap(err, "bad coefficient")
		}
		c.Terms = append(c.Terms, Term{Variable: v, Coefficient: coef})
	}

	if c.Relation, err = ParseRelation(fields[2*k+1]); err != nil {
		return c, err
	}
	if c.Value, err = strconv.ParseFloat(fields[2*k+2], 64); err != nil {
		return c, errors.Wrap(err, "bad value")
	}
	return c, nil
}

// WriteSolution serializes one value per variable.
func WriteSolution(w io.Writer, solution *Solution) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# status %s, objective %s\n", solution.Status, formatFloat(solution.Objective))
	fmt.Fprintf(bw, "solution %d\n", len(solution.Values))
	for i, v := range solution.Values {
		fmt.Fprintf(bw, "%d %s\n", i, formatFloat(v))
	}
	return bw.Flush()
}

// ReadSolution parses a solution file. The status and objective of the
// returned solution are left for the caller to fill in.
func ReadSolution(r io.Reader) (*Solution, error) {
	lr := newLineReader(r)
	n, err := lr.header("solution")
	if err != nil {
		return nil, err
	}
	values, err := lr.values(n)
	if err != nil {
		return nil, err
	}
	return &Solution{Values: values}, nil
}
