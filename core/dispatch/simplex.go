package dispatch

import (
	"context"
	"errors"
	"fmt"

	"github.com/WubeDegife/Microgrid-Optimization/core/model"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"
)

// standardForm is one block rewritten as minimize c'x, Ax = b, x >= 0.
// The first len(cols) variables are the block columns shifted by their lower
// bound; the rest are slacks of the upper-bound rows.
type standardForm struct {
	c    []float64
	a    *mat.Dense
	b    []float64
	cols []int
}

func (ps *presolved) standardForm(p *Problem, blk block) standardForm {
	pos := make(map[int]int, len(blk.cols))
	var upper []int
	for k, j := range blk.cols {
		pos[j] = k
		if bounded(p.cols[j].upper) {
			upper = append(upper, j)
		}
	}
	m := len(blk.rows) + len(upper)
	n := len(blk.cols) + len(upper)

	sf := standardForm{
		c:    make([]float64, n),
		a:    mat.NewDense(m, n, nil),
		b:    make([]float64, m),
		cols: blk.cols,
	}
	for k, j := range blk.cols {
		sf.c[k] = p.cols[j].cost
	}
	for i, ri := range blk.rows {
		r := p.rows[ri]
		rhs := r.rhs
		for _, t := range r.terms {
			if ps.fixed[t.col] {
				rhs -= t.coef * ps.value[t.col]
				continue
			}
			rhs -= t.coef * p.cols[t.col].lower
			sf.a.Set(i, pos[t.col], sf.a.At(i, pos[t.col])+t.coef)
		}
		sf.b[i] = rhs
	}
	for k, j := range upper {
		i := len(blk.rows) + k
		sf.a.Set(i, pos[j], 1)
		sf.a.Set(i, len(blk.cols)+k, 1)
		sf.b[i] = p.cols[j].upper - p.cols[j].lower
	}
	return sf
}

// solveStandard runs the simplex on a standard-form problem.
func solveStandard(c []float64, a mat.Matrix, b []float64, tol float64) ([]float64, error) {
	_, x, err := lp.Simplex(c, a, b, tol, nil)
	return x, err
}

// lpSolve points to the function used to solve a block. It can be overridden
// in tests to simulate solver failures.
var lpSolve = solveStandard

// solveBlock runs lpSolve in its own goroutine so that a cancelled context
// returns immediately. The simplex cannot be interrupted; an abandoned solve
// finishes on its own and its result is dropped.
func solveBlock(ctx context.Context, sf standardForm, tol float64) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, timeoutError(err)
	}
	m, n := sf.a.Dims()
	if m > n {
		return nil, &model.SolverError{
			Kind:       model.SolverNumerical,
			Diagnostic: fmt.Sprintf("block is overdetermined (%d rows, %d columns)", m, n),
		}
	}

	type result struct {
		x   []float64
		err error
	}
	done := make(chan result, 1)
	solve := lpSolve
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("simplex panic: %v", r)}
			}
		}()
		x, err := solve(sf.c, sf.a, sf.b, tol)
		done <- result{x: x, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, timeoutError(ctx.Err())
	case r := <-done:
		if r.err == nil && len(r.x) != n {
			r.err = fmt.Errorf("simplex returned %d values for %d columns", len(r.x), n)
		}
		return r.x, r.err
	}
}

func timeoutError(err error) error {
	return &model.SolverError{Kind: model.SolverTimeout, Diagnostic: "solve aborted by caller", Err: err}
}

// classify maps a block failure onto the error taxonomy.
func classify(err error, p *Problem, blk block) error {
	var se *model.SolverError
	if errors.As(err, &se) {
		return err
	}
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return &model.InfeasibleError{
			Hour:   blk.hour(p),
			Reason: "no dispatch satisfies the balance and bound constraints",
		}
	case errors.Is(err, lp.ErrUnbounded):
		return &model.SolverError{Kind: model.SolverNumerical, Diagnostic: "problem is unbounded", Err: err}
	default:
		return &model.SolverError{
			Kind:       model.SolverNumerical,
			Diagnostic: fmt.Sprintf("block of %d rows starting at hour %d", len(blk.rows), p.rows[blk.rows[0]].hour),
			Err:        err,
		}
	}
}
