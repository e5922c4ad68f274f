package grid

import (
	"fmt"
	"sort"
)

type entry struct {
	axes   []Axis
	points []Point
}

// Set is a collection of grids tagged by id.
type Set struct {
	dim   int
	grids map[int]entry
}

// NewSet creates an empty set whose grids all have dim axes.
func NewSet(dim int) *Set {
	return &Set{dim: dim, grids: make(map[int]entry)}
}


// Add registers a grid defined by axes.
func (s *Set) Add(id int, axes []Axis) error {
	if _, ok := s.grids[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	if len(axes) != s.dim {
		return fmt.Errorf("%w %d: expected %d, got %d", ErrAxisCount, id, s.dim, len(axes))
	}
	for i, a := range axes {
		if a.Count < 1 {
			return fmt.Errorf("grid %d axis %d: %w: got %d", id, i, ErrInvalidCount, a.Count)
		}
	}
	cp := make([]Axis, len(axes))
	copy(cp, axes)
	s.grids[id] = entry{axes: cp}
	return nil
}

// AddPoints registers a grid given as an explicit list of points.
func (s *Set) AddPoints(id int, points []Point) error {
	if _, ok := s.grids[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	cp := make([]Point, len(points))
	for i, p := range points {
		if len(p) != s.dim {
			return fmt.Errorf("%w %d: point %d has %d values, expected %d", ErrAxisCount, id, i, len(p), s.dim)
		}
		cp[i] = p.Clone()
	}
	s.grids[id] = entry{points: cp}
	return nil
}

// IDs returns grid ids in ascending order.
func (s *Set) IDs() []int {
	ids := make([]int, 0, len(s.grids))
	for id := range s.grids {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// NextID is one past the largest id, or 0 for an empty set.
func (s *Set) NextID() int {
	ids := s.IDs()
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1] + 1
}

// Count returns the number of points of one grid.
func (s *Set) Count(id int) int {
	e, ok := s.grids[id]
	if !ok {
		return 0
	}
	if e.axes != nil {
		return Size(e.axes)
	}
	return len(e.points)
}

// Total is the number of points over all grids.
func (s *Set) Total() int {
	n := 0
	for id := range s.grids {
		n += s.Count(id)
	}
	return n
}

// Points expands a single grid.
func (s *Set) Points(id int) []Point {
	e, ok := s.grids[id]
	if !ok {
		return nil
	}
	if e.axes != nil {
		return Expand(e.axes)
	}
	out := make([]Point, len(e.points))
	for i, p := range e.points {
		out[i] = p.Clone()
	}
	return out
}

// Expand concatenates every grid's points in ascending grid id order.
func (s *Set) Expand() []Point {
	points := make([]Point, 0, s.Total())
	for _, id := range s.IDs() {
		points = append(points, s.Points(id)...)
	}
	return points
}
