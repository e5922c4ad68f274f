package card

import (
	"fmt"
	"sort"
)

// Network selects the reaction network compiled into the simulator run.
type Network string

const (
	SmallNet Network = "smallNet"
	InterNet Network = "interNet"
	ComplNet Network = "complNet"
)

var networkLimits = map[Network]struct{ nuclides, reactions int }{
	SmallNet: {nuclides: 10, reactions: 41},
	InterNet: {nuclides: 19, reactions: 74},
	ComplNet: {nuclides: 27, reactions: 101},
}

// Nuclides is the number of nuclides evolved by the network.
func (n Network) Nuclides() int { return networkLimits[n].nuclides - 1 }

// Reactions is the number of reactions whose rate can be overridden.
func (n Network) Reactions() int { return networkLimits[n].reactions - 1 }

func (n Network) Valid() bool {
	_, ok := networkLimits[n]
	return ok
}

// NuclideIndex maps nuclide names to the simulator's 1-based indices.
var NuclideIndex = map[string]int{
	"n": 1, "p": 2, "2H": 3, "3H": 4, "3He": 5, "4He": 6,
	"6Li": 7, "7Li": 8, "7Be": 9, "8Li": 10, "8B": 11, "9Be": 12,
	"10B": 13, "11B": 14, "11C": 15, "12B": 16, "12C": 17, "12N": 18,
	"13C": 19, "13N": 20, "14C": 21, "14N": 22, "14O": 23, "15N": 24,
	"15O": 25, "16O": 26,
}

// NetworkNuclides lists the nuclides evolved by n, in simulator order.
func NetworkNuclides(n Network) []string {
	names := make([]string, 0, n.Nuclides())
	for name, idx := range NuclideIndex {
		if idx <= n.Nuclides() {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return NuclideIndex[names[i]] < NuclideIndex[names[j]] })
	return names
}

// Rate correction kinds understood by the simulator.
const (
	CorrectionNone = iota
	CorrectionMinusSigma
	CorrectionPlusSigma
	CorrectionFactor
)

// RateOverride changes the rate of one reaction of the network.
type RateOverride struct {
	Reaction   int     `yaml:"reaction"`
	Correction int     `yaml:"correction"`
	Factor     float64 `yaml:"factor"`
}

// Common holds the card settings shared by every job of a batch.
type Common struct {
	Network        Network        `yaml:"network"`
	StoredNuclides []string       `yaml:"stored_nuclides"`
	Rates          []RateOverride `yaml:"changed_rates_list"`
	Overwrite      bool           `yaml:"output_overwrite"`
	OnScreen       bool           `yaml:"on_screen_output"`
	SaveNuclides   bool           `yaml:"output_save_nuclides"`
	Templates      Templates      `yaml:"templates"`
}

// DefaultCommon is the small network storing every evolved nuclide.
func DefaultCommon(t Templates) *Common {
	return &Common{
		Network:        SmallNet,
		StoredNuclides: NetworkNuclides(SmallNet),
		Overwrite:      true,
		SaveNuclides:   true,
		Templates:      t,
	}
}

// ActiveRates drops overrides that leave the rate untouched.
func (c *Common) ActiveRates() []RateOverride {
	out := make([]RateOverride, 0, len(c.Rates))
	for _, r := range c.Rates {
		if r.Correction > CorrectionNone {
			out = append(out, r)
		}
	}
	return out
}

func (c *Common) Validate() error {
	if !c.Network.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownNetwork, c.Network)
	}
	for _, n := range c.StoredNuclides {
		if _, ok := NuclideIndex[n]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownNuclide, n)
		}
	}
	for _, r := range c.Rates {
		if r.Reaction < 1 || r.Reaction > c.Network.Reactions() {
			return fmt.Errorf("%w: reaction %d not in 1..%d", ErrBadRate, r.Reaction, c.Network.Reactions())
		}
		if r.Correction < CorrectionNone || r.Correction > CorrectionFactor {
			return fmt.Errorf("%w: correction %d", ErrBadRate, r.Correction)
		}
		if r.Correction == CorrectionFactor && (r.Factor < 0 || r.Factor > 1e5) {
			return fmt.Errorf("%w: factor %g", ErrBadRate, r.Factor)
		}
	}
	return c.Templates.Validate()
}
