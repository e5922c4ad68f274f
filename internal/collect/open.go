package collect

import (
	"errors"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/card"
)

// Results are the datasets of a batch read back from disk.
type Results struct {
	Header []string
	Rows   []Row
	Series map[int]Table

	// Rebuilt is set when the aggregate was missing and was rebuilt from
	// the per-job summaries.
	Rebuilt bool
	Summary *Summary
}

// Open reads the results of a batch that already ran. When the aggregate is
// missing it is rebuilt from the per-job summaries, and jobs without a
// usable summary are reported as failed.
func Open(jobs []card.Descriptor, opts Options) (*Results, error) {
	res := &Results{Series: make(map[int]Table)}
	for _, d := range jobs {
		if t, err := ReadSeries(d.Series); err == nil {
			res.Series[d.ID] = t
		}
	}

	header, rows, err := ReadAggregate(opts.Templates.Aggregate)
	if err == nil {
		res.Header = header
		res.Rows = make([]Row, len(jobs))
		for i := range res.Rows {
			var r Row
			if i < len(rows) {
				r = rows[i]
			}
			res.Rows[i] = align(r, len(header))
		}
		return res, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	log.WithField("aggregate", opts.Templates.Aggregate).Info("aggregate missing, rebuilding it from single runs")
	c := New(jobs, opts)
	c.mu.Lock()
	for _, d := range jobs {
		if err := c.readSummary(d); err != nil {
			c.failed[d.ID] = FailureRecord{ID: d.ID, ExitCode: -1, Diagnostic: err.Error()}
		} else {
			c.finished[d.ID] = true
		}
	}
	c.mu.Unlock()

	s, err := c.Finalize()
	if err != nil {
		return nil, err
	}
	res.Header = s.Header
	res.Rows = s.Rows
	res.Rebuilt = true
	res.Summary = s
	return res, nil
}
