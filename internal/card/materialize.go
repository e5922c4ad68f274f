package card

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/grid"
)

// EnsureWritable creates folder if needed and proves a file can be written in it.
func EnsureWritable(folder string) error {
	if err := os.MkdirAll(folder, 0755); err != nil {
		return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	f, err := os.CreateTemp(folder, ".writable-*")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutputNotWritable, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// RemoveStale deletes per-job artifacts left behind by an earlier batch with the same tag.
func RemoveStale(t Templates) error {
	var result *multierror.Error
	for _, tmpl := range t.perJob() {
		matches, err := filepath.Glob(strings.Replace(tmpl, "%d", "*", 1))
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		for _, m := range matches {
			if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

// Materialize derives one descriptor per point and writes its input card and
// stdin driver before returning. Either every card is written or none is left.
func Materialize(points []grid.Point, c *Common) ([]Descriptor, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := EnsureWritable(c.Templates.Folder); err != nil {
		return nil, err
	}
	if err := RemoveStale(c.Templates); err != nil {
		log.WithError(err).Warn("could not remove every stale artifact")
	}

	jobs := make([]Descriptor, 0, len(points))
	written := make([]string, 0, 2*len(points))
	var buf bytes.Buffer

	for id, p := range points {
		d := c.Templates.Descriptor(id, p)

		buf.Reset()
		if err := Render(&buf, p, c, d); err != nil {
			return nil, rollback(written, fmt.Errorf("rendering card %d: %w", id, err))
		}
		if err := os.WriteFile(d.Card, buf.Bytes(), 0644); err != nil {
			return nil, rollback(written, fmt.Errorf("%w: %v", ErrOutputNotWritable, err))
		}
		written = append(written, d.Card)

		buf.Reset()
		if err := RenderDriver(&buf, d); err != nil {
			return nil, rollback(written, err)
		}
		if err := os.WriteFile(d.Driver, buf.Bytes(), 0644); err != nil {
			return nil, rollback(written, fmt.Errorf("%w: %v", ErrOutputNotWritable, err))
		}
		written = append(written, d.Driver)

		jobs = append(jobs, d)
	}

	log.WithFields(log.Fields{
		"jobs":   len(jobs),
		"folder": c.Templates.Folder,
		"tag":    c.Templates.Tag,
	}).Info("input cards written")
	return jobs, nil
}

func rollback(paths []string, cause error) error {
	var cleanup *multierror.Error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			cleanup = multierror.Append(cleanup, err)
		}
	}
	if cleanup != nil {
		log.WithError(cleanup).Error("rollback left input cards behind")
	}
	return cause
}
