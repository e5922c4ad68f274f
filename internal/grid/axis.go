package grid

import "fmt"

// Point is one concrete value assignment, one float per axis.
type Point []float64

func (p Point) Clone() Point {
	c := make(Point, len(p))
	copy(c, p)
	return c
}

// Axis is either a fixed value or an evenly spaced range.
type Axis struct {
	Count int
	Min   float64
	Max   float64
}

func Fixed(v float64) Axis {
	return Axis{Count: 1, Min: v, Max: v}
}

// NewRange builds a range axis. A single-point range collapses to (min+max)/2.
func NewRange(count int, min, max float64) (Axis, error) {
	if count < 1 {
		return Axis{}, fmt.Errorf("%w: got %d", ErrInvalidCount, count)
	}
	return Axis{Count: count, Min: min, Max: max}, nil
}

func (a Axis) IsFixed() bool { return a.Count == 1 }

// Values lists the axis points in ascending index order.
func (a Axis) Values() []float64 {
	if a.Count < 1 {
		return nil
	}
	if a.Count == 1 {
		return []float64{(a.Min + a.Max) / 2}
	}
	vals := make([]float64, a.Count)
	step := (a.Max - a.Min) / float64(a.Count-1)
	for i := range vals {
		vals[i] = a.Min + float64(i)*step
	}
	vals[a.Count-1] = a.Max
	return vals
}

// Size is the number of points produced by Expand over axes.
func Size(axes []Axis) int {
	n := 1
	for _, a := range axes {
		if a.Count < 1 {
			return 0
		}
		n *= a.Count
	}
	return n
}

// Expand returns the Cartesian product of axes, last axis varying fastest.
func Expand(axes []Axis) []Point {
	n := Size(axes)
	points := make([]Point, 0, n)
	if n == 0 {
		return points
	}

	values := make([][]float64, len(axes))
	for i, a := range axes {
		values[i] = a.Values()
	}

	idx := make([]int, len(axes))
	for k := 0; k < n; k++ {
		p := make(Point, len(axes))
		for i := range axes {
			p[i] = values[i][idx[i]]
		}
		points = append(points, p)

		for i := len(idx) - 1; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(values[i]) {
				break
			}
			idx[i] = 0
		}
	}
	return points
}
