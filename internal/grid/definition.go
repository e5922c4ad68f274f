package grid

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition is the YAML form of a set of grids.
type Definition struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Grids       []GridDef `yaml:"grids"`
}

// GridDef defines one grid. Parameters left out keep their catalogue default.
type GridDef struct {
	ID     *int                `yaml:"id"`
	Params map[string]ParamDef `yaml:"params"`
}

// ParamDef is either {value: x} or {min: a, max: b, n: k}.
type ParamDef struct {
	Value *float64 `yaml:"value,omitempty"`
	Min   *float64 `yaml:"min,omitempty"`
	Max   *float64 `yaml:"max,omitempty"`
	N     int      `yaml:"n,omitempty"`
}

// LoadDefinition reads a grid definition from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &def, nil
}

// Axis converts a parameter definition, falling back to p's default.
func (d ParamDef) Axis(p Param) (Axis, error) {
	if d.N > 0 || d.Min != nil || d.Max != nil {
		min, max := p.Min, p.Max
		if d.Min != nil {
			min = *d.Min
		}
		if d.Max != nil {
			max = *d.Max
		}
		return NewRange(d.N, min, max)
	}
	if d.Value != nil {
		return Fixed(*d.Value), nil
	}
	return Fixed(p.Default), nil
}

// Axes converts a grid definition into catalogue-ordered axes.
func (g GridDef) Axes() (Axes, error) {
	names := make([]string, 0, len(g.Params))
	for name := range g.Params {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := ParamIndex(name); !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownParam, name)
		}
	}

	axes := make(Axes, NumParams)
	for i, p := range Params {
		a, err := g.Params[p.Name].Axis(p)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %w", p.Name, err)
		}
		axes[i] = a
	}
	return axes, nil
}

// Set validates the definition and builds the grid set. Grids without an
// explicit id get the next free one, in file order.
func (d *Definition) Set() (*Set, error) {
	set := NewSet(NumParams)
	for i, g := range d.Grids {
		axes, err := g.Axes()
		if err != nil {
			return nil, fmt.Errorf("grid #%d: %w", i, err)
		}
		id := set.NextID()
		if g.ID != nil {
			id = *g.ID
		}
		if err := set.Add(id, axes); err != nil {
			return nil, err
		}
	}
	return set, nil
}
