package grid

// Param describes one physical input of the simulator.
type Param struct {
	Name        string
	Description string
	Min         float64
	Max         float64
	Default     float64
}

// NumParams is the length of every Point.
const NumParams = 6

// Params is the canonical parameter order. Point[i] always holds Params[i].
var Params = [NumParams]Param{
	{Name: "eta10", Description: "baryon to photon ratio x 1e10", Min: 2, Max: 9, Default: 6.13832},
	{Name: "DeltaNnu", Description: "number of extra neutrinos", Min: -3, Max: 3, Default: 0},
	{Name: "taun", Description: "neutron lifetime [s]", Min: 876.4, Max: 882.4, Default: 879.4},
	{Name: "csinue", Description: "nu_e chemical potential", Min: -1, Max: 1, Default: 0},
	{Name: "csinux", Description: "nu_x chemical potential", Min: -1, Max: 1, Default: 0},
	{Name: "rhoLambda", Description: "cosmological constant at the BBN epoch", Min: 0, Max: 1, Default: 0},
}

// ParamIndex returns the position of the named parameter in a Point.
func ParamIndex(name string) (int, bool) {
	for i, p := range Params {
		if p.Name == name {
			return i, true
		}
	}
	return -1, false
}

// Axes is one axis per catalogue parameter.
type Axes []Axis

// DefaultAxes fixes every parameter at its catalogue default.
func DefaultAxes() Axes {
	axes := make(Axes, NumParams)
	for i, p := range Params {
		axes[i] = Fixed(p.Default)
	}
	return axes
}

// With returns a copy of a with the named parameter replaced. Unknown names are ignored.
func (a Axes) With(name string, axis Axis) Axes {
	out := make(Axes, len(a))
	copy(out, a)
	if i, ok := ParamIndex(name); ok && i < len(out) {
		out[i] = axis
	}
	return out
}

// Get returns the value of the named parameter in p.
func (p Point) Get(name string) float64 {
	i, ok := ParamIndex(name)
	if !ok || i >= len(p) {
		return 0
	}
	return p[i]
}
