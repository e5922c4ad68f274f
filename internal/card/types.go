package card

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/san-kum/bbngrid/internal/grid"
)

// TagLayout formats the batch tag embedded in every artifact name.
const TagLayout = "060102_150405"

// RemediationFilename is written next to the aggregate when jobs fail.
const RemediationFilename = "failed_instructions.txt"

// Templates holds the artifact paths of a batch. Per-job templates carry a single %d.
type Templates struct {
	Folder      string `yaml:"output_folder"`
	Tag         string `yaml:"tag"`
	Card        string `yaml:"inputcard_filename"`
	Driver      string `yaml:"driver_filename"`
	Summary     string `yaml:"output_file_parthenope"`
	Series      string `yaml:"output_file_nuclides"`
	Info        string `yaml:"output_file_info"`
	Log         string `yaml:"output_file_log"`
	Aggregate   string `yaml:"output_file_grid"`
	Remediation string `yaml:"failed_instructions"`
}

// NewTemplates lays out the artifacts of a batch inside folder. An empty tag
// uses the current time.
func NewTemplates(folder, tag string) Templates {
	if tag == "" {
		tag = time.Now().Format(TagLayout)
	}
	join := func(name string) string { return filepath.Join(folder, name) }
	return Templates{
		Folder:      folder,
		Tag:         tag,
		Card:        join("input_" + tag + "_%d.card"),
		Driver:      join("input_" + tag + "_%d.in"),
		Summary:     join("parthenope_" + tag + "_%d.out"),
		Series:      join("nuclides_" + tag + "_%d.out"),
		Info:        join("info_" + tag + "_%d.out"),
		Log:         join("fortran_output_" + tag + "_%d.out"),
		Aggregate:   join("parthenope_" + tag + ".out"),
		Remediation: join(RemediationFilename),
	}
}

func (t Templates) perJob() map[string]string {
	return map[string]string{
		"card":    t.Card,
		"driver":  t.Driver,
		"summary": t.Summary,
		"series":  t.Series,
		"info":    t.Info,
		"log":     t.Log,
	}
}

// Validate checks every per-job template carries exactly one %d and that
// the names cannot collide across jobs.
func (t Templates) Validate() error {
	seen := make(map[string]string)
	for name, tmpl := range t.perJob() {
		if strings.Count(tmpl, "%d") != 1 || strings.Count(tmpl, "%") != 1 {
			return fmt.Errorf("%w: %s=%q", ErrBadTemplate, name, tmpl)
		}
		if other, ok := seen[tmpl]; ok {
			return fmt.Errorf("%w: %s and %s share %q", ErrBadTemplate, name, other, tmpl)
		}
		seen[tmpl] = name
	}
	return nil
}

// Relative rewrites every path relative to the output folder.
func (t Templates) Relative() (Templates, error) {
	out := t
	for _, f := range pathFields(&out) {
		if *f == "" || !strings.HasPrefix(*f, t.Folder) {
			continue
		}
		r, err := filepath.Rel(t.Folder, *f)
		if err != nil {
			return Templates{}, err
		}
		*f = r
	}
	return out, nil
}

// Rooted resolves relative paths against folder, which becomes the new output folder.
func (t Templates) Rooted(folder string) Templates {
	out := t
	out.Folder = folder
	for _, f := range pathFields(&out) {
		if *f != "" && !filepath.IsAbs(*f) {
			*f = filepath.Join(folder, *f)
		}
	}
	return out
}

func pathFields(out *Templates) []*string {
	return []*string{
		&out.Card, &out.Driver, &out.Summary, &out.Series,
		&out.Info, &out.Log, &out.Aggregate, &out.Remediation,
	}
}

// Descriptor is one job: its id, its point and its concrete artifact paths.
type Descriptor struct {
	ID      int
	Point   grid.Point
	Card    string
	Driver  string
	Summary string
	Series  string
	Info    string
	Log     string
}

// Descriptor derives the paths of job id.
func (t Templates) Descriptor(id int, p grid.Point) Descriptor {
	return Descriptor{
		ID:      id,
		Point:   p.Clone(),
		Card:    fmt.Sprintf(t.Card, id),
		Driver:  fmt.Sprintf(t.Driver, id),
		Summary: fmt.Sprintf(t.Summary, id),
		Series:  fmt.Sprintf(t.Series, id),
		Info:    fmt.Sprintf(t.Info, id),
		Log:     fmt.Sprintf(t.Log, id),
	}
}

// Transient lists the artifacts removed once a job succeeded.
func (d Descriptor) Transient() []string {
	return []string{d.Card, d.Driver, d.Log}
}
