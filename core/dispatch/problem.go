package dispatch

import "math"

// Problem is an explicit, index-addressed linear program:
//
//	minimize   sum_j cost_j * x_j
//	subject to sum_j a_ij * x_j = rhs_i   for every row i
//	           lower_j <= x_j <= upper_j
//
// It is assembled fresh for every solve and never shared.
type Problem struct {
	cols []column
	rows []row
}

type column struct {
	name  string
	hour  int
	lower float64
	upper float64 // +Inf when unbounded
	cost  float64
}

type term struct {
	col  int
	coef float64
}

type row struct {
	name  string
	hour  int
	terms []term
	rhs   float64
}

// AddColumn appends a variable and returns its index.
func (p *Problem) AddColumn(name string, hour int, lower, upper, cost float64) int {
	p.cols = append(p.cols, column{name: name, hour: hour, lower: lower, upper: upper, cost: cost})
	return len(p.cols) - 1
}

// AddRow appends an equality row. Terms on the same column are merged and
// zero coefficients are dropped.
func (p *Problem) AddRow(name string, hour int, rhs float64, terms ...term) int {
	merged := make([]term, 0, len(terms))
	for _, t := range terms {
		if t.col < 0 {
			continue
		}
		found := false
		for i := range merged {
			if merged[i].col == t.col {
				merged[i].coef += t.coef
				found = true
				break
			}
		}
		if !found {
			merged = append(merged, t)
		}
	}
	out := merged[:0]
	for _, t := range merged {
		if t.coef != 0 {
			out = append(out, t)
		}
	}
	p.rows = append(p.rows, row{name: name, hour: hour, terms: out, rhs: rhs})
	return len(p.rows) - 1
}

// NumColumns returns the number of variables.
func (p *Problem) NumColumns() int { return len(p.cols) }

// NumRows returns the number of equality rows.
func (p *Problem) NumRows() int { return len(p.rows) }

// Objective evaluates the cost of x.
func (p *Problem) Objective(x []float64) float64 {
	var f float64
	for j, c := range p.cols {
		f += c.cost * x[j]
	}
	return f
}

func bounded(v float64) bool { return !math.IsInf(v, 1) }
