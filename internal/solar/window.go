package solar

import (
	"sort"
	"time"
)

// Band is the half-open elevation interval [Low, High) in degrees.
type Band struct {
	Low  float64
	High float64
}

// Contains reports whether deg lies inside the band.
func (b Band) Contains(deg float64) bool { return deg >= b.Low && deg < b.High }

func (b Band) classify(deg float64) int {
	switch {
	case deg < b.Low:
		return -1
	case deg >= b.High:
		return 1
	default:
		return 0
	}
}

// Grid is the sample set start, start+step, ... over span (end exclusive).
type Grid struct {
	Start time.Time
	Span  time.Duration
	Step  time.Duration
}

func (g Grid) size() int {
	if g.Step <= 0 {
		return 0
	}
	return int(g.Span / g.Step)
}

func (g Grid) at(i int) time.Time { return g.Start.Add(time.Duration(i) * g.Step) }

// Scan evaluates every grid sample and returns the first and last in-band
// instants. ok is false when no sample falls in the band.
func Scan(elev func(time.Time) float64, g Grid, b Band) (first, last time.Time, ok bool) {
	lo, hi, ok := scanRange(elev, g, b, 0, g.size()-1)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return g.at(lo), g.at(hi), true
}

func scanRange(elev func(time.Time) float64, g Grid, b Band, from, to int) (lo, hi int, ok bool) {
	lo, hi = -1, -1
	for i := from; i <= to; i++ {
		if b.Contains(elev(g.at(i))) {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	return lo, hi, lo >= 0
}

// Bisect samples the grid every gap and refines band edges by binary search
// over grid indices, so its result equals Scan's whenever the elevation
// cannot enter and leave the band between two coarse samples.
func Bisect(elev func(time.Time) float64, g Grid, b Band, gap time.Duration) (first, last time.Time, ok bool) {
	n := g.size()
	if n == 0 {
		return time.Time{}, time.Time{}, false
	}
	stride := int(gap / g.Step)
	if stride < 1 {
		stride = 1
	}

	class := func(i int) int { return b.classify(elev(g.at(i))) }
	lo, hi := -1, -1
	mark := func(a, z int) {
		if lo < 0 {
			lo = a
		}
		hi = z
	}

	prev, prevClass := 0, class(0)
	if prevClass == 0 {
		mark(0, 0)
	}
	for next := stride; prev < n-1; next += stride {
		if next > n-1 {
			next = n - 1
		}
		nextClass := class(next)

		switch {
		case prevClass == nextClass && prevClass != 0:
		case prevClass == 0 && nextClass == 0:
			mark(prev, next)
		case nextClass == 0 && prevClass != 0:
			enter := firstIndex(prev, next, func(i int) bool { return class(i) != prevClass })
			if class(enter) == 0 {
				mark(enter, next)
			} else if a, z, found := scanRange(elev, g, b, prev+1, next); found {
				mark(a, z)
			}
		case prevClass == 0 && nextClass != 0:
			leave := firstIndex(prev, next, func(i int) bool { return class(i) != 0 })
			mark(prev, leave-1)
		default:
			if a, z, found := scanRange(elev, g, b, prev+1, next-1); found {
				mark(a, z)
			}
		}
		prev, prevClass = next, nextClass
	}

	if lo < 0 {
		return time.Time{}, time.Time{}, false
	}
	return g.at(lo), g.at(hi), true
}

// firstIndex returns the smallest i in (from, to] with pred(i), given pred(to).
func firstIndex(from, to int, pred func(int) bool) int {
	return from + 1 + sort.Search(to-from, func(k int) bool { return pred(from + 1 + k) })
}
