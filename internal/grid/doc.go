// Package grid turns declarative parameter grids into ordered parameter points.
//
// A grid assigns one [Axis] to every physical parameter of the simulator, in the
// canonical order given by [Params]:
//
//   - [Fixed]: a single value
//   - [NewRange]: count evenly spaced values between min and max (inclusive)
//
// [Expand] produces the Cartesian product of the axes with the last axis varying
// fastest. A [Set] groups several grids by integer id; grids are concatenated in
// ascending id order, never cross-multiplied.
//
// # Example
//
//	eta, _ := grid.NewRange(3, 5, 7)
//	set := grid.NewSet(grid.NumParams)
//	_ = set.Add(0, grid.DefaultAxes().With("eta10", eta))
//	points := set.Expand() // 3 points, ids 0..2
package grid
