package dispatch

import "math"

// slopeTol is the relative gap under which adjacent pieces are merged.
const slopeTol = 1e-9

type piece struct {
	width, slope float64
}

// convexPWL is a convex piecewise-linear function on [x0, end()]. It is +Inf
// outside that interval. Piece slopes never decrease.
type convexPWL struct {
	x0, f0 float64
	pieces []piece
}

func pointPWL(x float64) convexPWL { return convexPWL{x0: x} }

// flatPWL is zero on [lo, hi].
func flatPWL(lo, hi float64) convexPWL {
	f := convexPWL{x0: lo}
	f.add(hi-lo, 0)
	return f
}

func (f convexPWL) end() float64 {
	x := f.x0
	for _, p := range f.pieces {
		x += p.width
	}
	return x
}

// add appends a piece, folding it into the last one when the slopes agree.
func (f *convexPWL) add(width, slope float64) {
	if width <= 0 {
		return
	}
	if n := len(f.pieces); n > 0 {
		last := &f.pieces[n-1]
		scale := math.Max(1, math.Max(math.Abs(last.slope), math.Abs(slope)))
		if math.Abs(last.slope-slope) <= slopeTol*scale {
			w := last.width + width
			last.slope = (last.slope*last.width + slope*width) / w
			last.width = w
			return
		}
	}
	f.pieces = append(f.pieces, piece{width: width, slope: slope})
}

// eval returns f(x). Points within eps of the domain are clamped onto it.
func (f convexPWL) eval(x, eps float64) float64 {
	if x < f.x0-eps || x > f.end()+eps {
		return math.Inf(1)
	}
	v, at := f.f0, f.x0
	for _, p := range f.pieces {
		if x <= at {
			break
		}
		v += math.Min(p.width, x-at) * p.slope
		at += p.width
	}
	return v
}

// breakpoints lists x0 and the right end of every piece.
func (f convexPWL) breakpoints() []float64 {
	out := make([]float64, 0, len(f.pieces)+1)
	at := f.x0
	out = append(out, at)
	for _, p := range f.pieces {
		at += p.width
		out = append(out, at)
	}
	return out
}

// argmin returns the leftmost minimizer.
func (f convexPWL) argmin() float64 {
	at := f.x0
	for _, p := range f.pieces {
		if p.slope >= 0 {
			return at
		}
		at += p.width
	}
	return at
}

// infConv returns the infimal convolution h(z) = min over x+y=z of f(x)+g(y).
// For convex piecewise-linear inputs it merges the pieces by slope.
func infConv(f, g convexPWL) convexPWL {
	out := convexPWL{x0: f.x0 + g.x0, f0: f.f0 + g.f0}
	out.pieces = make([]piece, 0, len(f.pieces)+len(g.pieces))
	i, j := 0, 0
	for i < len(f.pieces) || j < len(g.pieces) {
		if j == len(g.pieces) || (i < len(f.pieces) && f.pieces[i].slope <= g.pieces[j].slope) {
			out.add(f.pieces[i].width, f.pieces[i].slope)
			i++
		} else {
			out.add(g.pieces[j].width, g.pieces[j].slope)
			j++
		}
	}
	return out
}

// restrict limits the domain to [lo, hi]. ok is false when the intersection
// is empty by more than eps.
func (f convexPWL) restrict(lo, hi, eps float64) (convexPWL, bool) {
	start, end := math.Max(lo, f.x0), math.Min(hi, f.end())
	if start > end+eps {
		return convexPWL{}, false
	}
	if start > end {
		start = end
	}
	out := convexPWL{x0: start, f0: f.eval(start, eps)}
	at := f.x0
	for _, p := range f.pieces {
		a, b := math.Max(at, start), math.Min(at+p.width, end)
		if b > a {
			out.add(b-a, p.slope)
		}
		at += p.width
	}
	return out, true
}
