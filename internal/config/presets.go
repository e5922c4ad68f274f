package config

import (
	"sort"

	"github.com/san-kum/bbngrid/internal/grid"
)

func value(v float64) grid.ParamDef { return grid.ParamDef{Value: &v} }

func span(min, max float64, n int) grid.ParamDef {
	return grid.ParamDef{Min: &min, Max: &max, N: n}
}

// Presets are ready-made grid definitions.
var Presets = map[string]*grid.Definition{
	"default": {
		Name:        "default",
		Description: "single run with the default value of every parameter",
		Grids:       []grid.GridDef{{}},
	},
	"eta": {
		Name:        "eta",
		Description: "baryon density scan over the whole catalogue range",
		Grids: []grid.GridDef{{Params: map[string]grid.ParamDef{
			"eta10": span(2, 9, 15),
		}}},
	},
	"neff": {
		Name:        "neff",
		Description: "extra relativistic species at the default baryon density",
		Grids: []grid.GridDef{{Params: map[string]grid.ParamDef{
			"DeltaNnu": span(-3, 3, 13),
		}}},
	},
	"eta-neff": {
		Name:        "eta-neff",
		Description: "joint scan of baryon density and extra neutrinos",
		Grids: []grid.GridDef{{Params: map[string]grid.ParamDef{
			"eta10":    span(5, 7, 9),
			"DeltaNnu": span(-1, 1, 5),
		}}},
	},
	"lifetime": {
		Name:        "lifetime",
		Description: "neutron lifetime within its experimental range",
		Grids: []grid.GridDef{{Params: map[string]grid.ParamDef{
			"taun": span(876.4, 882.4, 7),
		}}},
	},
	"degeneracy": {
		Name:        "degeneracy",
		Description: "electron neutrino chemical potential, with and without extra species",
		Grids: []grid.GridDef{
			{Params: map[string]grid.ParamDef{
				"csinue": span(-0.1, 0.1, 5),
			}},
			{Params: map[string]grid.ParamDef{
				"csinue":   span(-0.1, 0.1, 5),
				"DeltaNnu": value(1),
			}},
		},
	},
}

func GetPreset(name string) *grid.Definition {
	def, ok := Presets[name]
	if !ok {
		return nil
	}
	return def
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
