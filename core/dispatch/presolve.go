package dispatch

import (
	"fmt"
	"math"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
)

// presolved is the reduced form of a Problem: columns fixed by bounds or
// singleton rows are substituted out and the rest is split into independent
// blocks. Solving every block and merging the values is exact.
type presolved struct {
	fixed  []bool
	value  []float64
	active []bool
	blocks []block
}

// block is a connected component of the row/column graph.
type block struct {
	cols []int
	rows []int
}

// hour returns the hour shared by all rows of the block, or -1.
func (b block) hour(p *Problem) int {
	h := p.rows[b.rows[0]].hour
	for _, r := range b.rows[1:] {
		if p.rows[r].hour != h {
			return -1
		}
	}
	return h
}

// stdRows is the row count of the block in standard form: one per equality
// row plus one per bounded column.
func (b block) stdRows(p *Problem) int {
	m := len(b.rows)
	for _, j := range b.cols {
		if bounded(p.cols[j].upper) {
			m++
		}
	}
	return m
}

// presolve reduces p. tol is the absolute feasibility tolerance. An empty row
// with a non-zero residual, or a singleton row that forces its column out of
// bounds, is reported as an InfeasibleError for that row's hour.
func presolve(p *Problem, tol float64) (*presolved, error) {
	ps := &presolved{
		fixed:  make([]bool, len(p.cols)),
		value:  make([]float64, len(p.cols)),
		active: make([]bool, len(p.rows)),
	}
	for j, c := range p.cols {
		if bounded(c.upper) && c.upper <= c.lower {
			ps.fix(j, c.lower)
		}
	}
	for i := range ps.active {
		ps.active[i] = true
	}

	for changed := true; changed; {
		changed = false
		for i, r := range p.rows {
			if !ps.active[i] {
				continue
			}
			free, rhs := ps.reduce(r)
			switch len(free) {
			case 0:
				if math.Abs(rhs) > tol {
					return nil, &model.InfeasibleError{
						Hour:   r.hour,
						Reason: fmt.Sprintf("%s cannot be met, %.6g kW left with no free variable", r.name, rhs),
					}
				}
				ps.active[i] = false
				changed = true
			case 1:
				t := free[0]
				c := p.cols[t.col]
				v := rhs / t.coef
				if v < c.lower-tol || (bounded(c.upper) && v > c.upper+tol) {
					return nil, &model.InfeasibleError{
						Hour:   r.hour,
						Reason: fmt.Sprintf("%s forces %s to %.6g, outside [%g, %g]", r.name, c.name, v, c.lower, c.upper),
					}
				}
				ps.fix(t.col, clamp(v, c.lower, c.upper))
				ps.active[i] = false
				changed = true
			}
		}
	}

	referenced := make([]bool, len(p.cols))
	for i, r := range p.rows {
		if !ps.active[i] {
			continue
		}
		for _, t := range r.terms {
			referenced[t.col] = true
		}
	}
	for j, c := range p.cols {
		if ps.fixed[j] || referenced[j] {
			continue
		}
		switch {
		case c.cost >= 0:
			ps.fix(j, c.lower)
		case bounded(c.upper):
			ps.fix(j, c.upper)
		default:
			return nil, &model.SolverError{
				Kind:       model.SolverNumerical,
				Diagnostic: fmt.Sprintf("column %s at hour %d is unbounded", c.name, c.hour),
			}
		}
	}

	ps.blocks = ps.split(p)
	return ps, nil
}

func (ps *presolved) fix(j int, v float64) {
	ps.fixed[j] = true
	ps.value[j] = v
}

// reduce returns the terms of r on free columns and the rhs left after the
// fixed columns are substituted.
func (ps *presolved) reduce(r row) ([]term, float64) {
	rhs := r.rhs
	var free []term
	for _, t := range r.terms {
		if ps.fixed[t.col] {
			rhs -= t.coef * ps.value[t.col]
			continue
		}
		free = append(free, t)
	}
	return free, rhs
}

// split groups the active rows into connected components with a union-find
// over their free columns. Blocks are ordered by their first row.
func (ps *presolved) split(p *Problem) []block {
	parent := make([]int, len(p.cols))
	for j := range parent {
		parent[j] = j
	}
	find := func(j int) int {
		for parent[j] != j {
			parent[j] = parent[parent[j]]
			j = parent[j]
		}
		return j
	}

	for i, r := range p.rows {
		if !ps.active[i] {
			continue
		}
		first := -1
		for _, t := range r.terms {
			if ps.fixed[t.col] {
				continue
			}
			if first < 0 {
				first = find(t.col)
				continue
			}
			if root := find(t.col); root != first {
				parent[root] = first
			}
		}
	}

	index := make(map[int]int)
	var blocks []block
	for i, r := range p.rows {
		if !ps.active[i] {
			continue
		}
		for _, t := range r.terms {
			if ps.fixed[t.col] {
				continue
			}
			root := find(t.col)
			k, ok := index[root]
			if !ok {
				k = len(blocks)
				index[root] = k
				blocks = append(blocks, block{})
			}
			blocks[k].rows = append(blocks[k].rows, i)
			break
		}
	}
	for j := range p.cols {
		if ps.fixed[j] {
			continue
		}
		if k, ok := index[find(j)]; ok {
			blocks[k].cols = append(blocks[k].cols, j)
		}
	}
	return blocks
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
