package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/grid"
)

// SettingsFile holds the definition of a batch inside its output folder.
const SettingsFile = "settings.yaml"

// ErrNoDefinition indicates a folder without a readable batch definition.
var ErrNoDefinition = errors.New("storage: no batch definition in folder")

// Store keeps batch folders under a common data directory.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Folder is the output folder of the batch with the given tag.
func (s *Store) Folder(tag string) string {
	return filepath.Join(s.baseDir, tag)
}

// GridPoints are the expanded points of one grid id.
type GridPoints struct {
	ID     int         `yaml:"id"`
	Points [][]float64 `yaml:"points,flow"`
}

// Definition is everything needed to run a batch again or read its results.
// Paths in Common are relative to the folder holding the definition.
type Definition struct {
	Tag       string       `yaml:"tag"`
	CreatedAt time.Time    `yaml:"created_at"`
	Common    card.Common  `yaml:"common"`
	Grids     []GridPoints `yaml:"grids"`
	Folder    string       `yaml:"-"`
}

// Set rebuilds the grid set of the definition.
func (d *Definition) Set() (*grid.Set, error) {
	set := grid.NewSet(grid.NumParams)
	for _, g := range d.Grids {
		points := make([]grid.Point, len(g.Points))
		for i, p := range g.Points {
			points[i] = grid.Point(p)
		}
		if err := set.AddPoints(g.ID, points); err != nil {
			return nil, fmt.Errorf("grid %d: %w", g.ID, err)
		}
	}
	return set, nil
}

// Jobs derives the descriptors of every job of the batch.
func (d *Definition) Jobs() ([]card.Descriptor, error) {
	set, err := d.Set()
	if err != nil {
		return nil, err
	}
	points := set.Expand()
	jobs := make([]card.Descriptor, len(points))
	for i, p := range points {
		jobs[i] = d.Common.Templates.Descriptor(i, p)
	}
	return jobs, nil
}

// Save writes the definition of a batch into its output folder.
func (s *Store) Save(c *card.Common, set *grid.Set) error {
	folder := c.Templates.Folder
	if err := os.MkdirAll(folder, 0755); err != nil {
		return err
	}

	rel, err := c.Templates.Relative()
	if err != nil {
		return err
	}
	common := *c
	common.Templates = rel
	common.Templates.Folder = "."

	def := Definition{
		Tag:       c.Templates.Tag,
		CreatedAt: time.Now(),
		Common:    common,
	}
	for _, id := range set.IDs() {
		g := GridPoints{ID: id}
		for _, p := range set.Points(id) {
			g.Points = append(g.Points, []float64(p))
		}
		def.Grids = append(def.Grids, g)
	}

	data, err := yaml.Marshal(&def)
	if err != nil {
		return err
	}
	path := filepath.Join(folder, SettingsFile)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return err
	}
	log.WithField("path", path).Debug("batch definition saved")
	return nil
}

// Load reads the definition stored in folder. Artifact paths are resolved
// against the folder's current location, so batches can be moved.
func Load(folder string) (*Definition, error) {
	abs, err := filepath.Abs(folder)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(abs, SettingsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNoDefinition, abs)
		}
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNoDefinition, abs, err)
	}
	def.Folder = abs
	def.Common.Templates = def.Common.Templates.Rooted(abs)
	return &def, nil
}

// BatchInfo summarizes a stored batch.
type BatchInfo struct {
	Folder    string    `json:"folder"`
	Tag       string    `json:"tag"`
	CreatedAt time.Time `json:"created_at"`
	Jobs      int       `json:"jobs"`
	Network   string    `json:"network"`
	Done      bool      `json:"done"`
	Failures  bool      `json:"failures"`
}

// List returns the batches stored under the data directory, newest first.
func (s *Store) List() ([]BatchInfo, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []BatchInfo{}, nil
		}
		return nil, err
	}

	batches := make([]BatchInfo, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		def, err := Load(filepath.Join(s.baseDir, entry.Name()))
		if err != nil {
			continue
		}

		info := BatchInfo{
			Folder:    def.Folder,
			Tag:       def.Tag,
			CreatedAt: def.CreatedAt,
			Network:   string(def.Common.Network),
			Done:      exists(def.Common.Templates.Aggregate),
			Failures:  exists(def.Common.Templates.Remediation),
		}
		for _, g := range def.Grids {
			info.Jobs += len(g.Points)
		}
		batches = append(batches, info)
	}

	sort.Slice(batches, func(i, j int) bool { return batches[i].CreatedAt.After(batches[j].CreatedAt) })
	return batches, nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
