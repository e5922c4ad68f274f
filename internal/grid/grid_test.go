package grid

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, n int, min, max float64) Axis {
	t.Helper()
	a, err := NewRange(n, min, max)
	require.NoError(t, err)
	return a
}

func TestExpandSingleRange(t *testing.T) {
	points := Expand([]Axis{mustRange(t, 2, 0, 1)})

	want := []Point{{0.0}, {1.0}}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Errorf("expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandLastAxisFastest(t *testing.T) {
	points := Expand([]Axis{mustRange(t, 2, 0, 1), mustRange(t, 3, 10, 12)})

	want := []Point{
		{0, 10}, {0, 11}, {0, 12},
		{1, 10}, {1, 11}, {1, 12},
	}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Errorf("expand mismatch (-want +got):\n%s", diff)
	}
}

func TestExpandSize(t *testing.T) {
	tests := []struct {
		name string
		axes []Axis
		want int
	}{
		{"empty", nil, 1},
		{"fixed", []Axis{Fixed(1), Fixed(2)}, 1},
		{"mixed", []Axis{mustRange(t, 4, 0, 1), Fixed(3), mustRange(t, 5, -1, 1)}, 20},
		{"six", []Axis{mustRange(t, 2, 0, 1), mustRange(t, 2, 0, 1), mustRange(t, 3, 0, 1),
			Fixed(0), mustRange(t, 2, 0, 1), Fixed(0)}, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points := Expand(tt.axes)
			assert.Len(t, points, tt.want)
			assert.Equal(t, tt.want, Size(tt.axes))
			assert.Equal(t, points, Expand(tt.axes), "expand must be deterministic")
		})
	}
}

func TestNewRangeRejectsZeroCount(t *testing.T) {
	_, err := NewRange(0, 0, 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidCount))

	_, err = NewRange(-3, 0, 1)
	assert.ErrorIs(t, err, ErrInvalidCount)
}

func TestSinglePointRangeIsMidpoint(t *testing.T) {
	a := mustRange(t, 1, 2, 4)
	assert.Equal(t, []float64{3}, a.Values())
	assert.True(t, a.IsFixed())
}

func TestSetConcatenatesInIDOrder(t *testing.T) {
	set := NewSet(2)
	require.NoError(t, set.Add(1, []Axis{Fixed(9), Fixed(9)}))
	require.NoError(t, set.Add(0, []Axis{mustRange(t, 2, 0, 1), mustRange(t, 2, 5, 6)}))

	points := set.Expand()
	require.Len(t, points, 5)
	assert.Equal(t, 5, set.Total())
	assert.Equal(t, []int{0, 1}, set.IDs())
	assert.Equal(t, 2, set.NextID())

	want := []Point{{0, 5}, {0, 6}, {1, 5}, {1, 6}, {9, 9}}
	if diff := cmp.Diff(want, points); diff != "" {
		t.Errorf("set expand mismatch (-want +got):\n%s", diff)
	}
}

func TestSetValidation(t *testing.T) {
	set := NewSet(2)
	assert.ErrorIs(t, set.Add(0, []Axis{Fixed(1)}), ErrAxisCount)
	assert.ErrorIs(t, set.Add(0, []Axis{Fixed(1), {Count: 0}}), ErrInvalidCount)
	require.NoError(t, set.Add(0, []Axis{Fixed(1), Fixed(2)}))
	assert.ErrorIs(t, set.Add(0, []Axis{Fixed(1), Fixed(2)}), ErrDuplicateID)
	assert.ErrorIs(t, set.AddPoints(1, []Point{{1}}), ErrAxisCount)
}

func TestSetExplicitPoints(t *testing.T) {
	set := NewSet(2)
	require.NoError(t, set.AddPoints(3, []Point{{1, 2}, {3, 4}}))
	require.NoError(t, set.Add(0, []Axis{Fixed(0), Fixed(0)}))

	assert.Equal(t, []Point{{0, 0}, {1, 2}, {3, 4}}, set.Expand())
	assert.Equal(t, 4, set.NextID())
}

func TestDefaultAxes(t *testing.T) {
	points := Expand(DefaultAxes())
	require.Len(t, points, 1)
	assert.InDelta(t, 6.13832, points[0].Get("eta10"), 1e-12)
	assert.InDelta(t, 879.4, points[0].Get("taun"), 1e-12)

	eta := mustRange(t, 3, 5, 7)
	points = Expand(DefaultAxes().With("eta10", eta))
	require.Len(t, points, 3)
	assert.Equal(t, 7.0, points[2].Get("eta10"))
}

func TestLoadDefinition(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grid.yaml")
	content := `name: eta scan
grids:
  - params:
      eta10: {min: 5, max: 7, n: 3}
      DeltaNnu: {value: 1}
  - id: 4
    params:
      taun: {value: 880}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	def, err := LoadDefinition(path)
	require.NoError(t, err)
	assert.Equal(t, "eta scan", def.Name)

	set, err := def.Set()
	require.NoError(t, err)
	assert.Equal(t, []int{0, 4}, set.IDs())

	points := set.Expand()
	require.Len(t, points, 4)
	assert.Equal(t, 5.0, points[0].Get("eta10"))
	assert.Equal(t, 1.0, points[0].Get("DeltaNnu"))
	assert.Equal(t, 880.0, points[3].Get("taun"))
	assert.InDelta(t, 6.13832, points[3].Get("eta10"), 1e-12)
}

func TestDefinitionErrors(t *testing.T) {
	zero := 0
	def := &Definition{Grids: []GridDef{{ID: &zero, Params: map[string]ParamDef{"eta10": {N: 0, Min: new(float64)}}}}}
	_, err := def.Set()
	assert.ErrorIs(t, err, ErrInvalidCount)

	def = &Definition{Grids: []GridDef{{Params: map[string]ParamDef{"omega": {}}}}}
	_, err = def.Set()
	assert.ErrorIs(t, err, ErrUnknownParam)
}
