package collect

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"

	"github.com/san-kum/bbngrid/internal/card"
)

// Outcome is the classification of one completed job.
type Outcome int

const (
	// Ignored is returned for unknown ids and repeated completions.
	Ignored Outcome = iota
	Finished
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	default:
		return "ignored"
	}
}

// FailureRecord describes a job that did not complete successfully.
type FailureRecord struct {
	ID         int    `json:"id"`
	ExitCode   int    `json:"exit_code"`
	Diagnostic string `json:"diagnostic,omitempty"`
}

// Options configure a Collector.
type Options struct {
	Templates card.Templates

	// Executable is printed in re-run commands of the remediation file.
	Executable string
	Markers    Markers
}

// Collector owns the summary and time-series datasets of a batch. It is safe
// for concurrent use.
type Collector struct {
	opts Options
	jobs []card.Descriptor

	mu       sync.Mutex
	header   []string
	rows     map[int]Row
	series   map[int]Table
	finished map[int]bool
	failed   map[int]FailureRecord
}

// New returns a collector for jobs, which must be ordered by id.
func New(jobs []card.Descriptor, opts Options) *Collector {
	opts.Markers = opts.Markers.withDefaults()
	return &Collector{
		opts:     opts,
		jobs:     jobs,
		rows:     make(map[int]Row),
		series:   make(map[int]Table),
		finished: make(map[int]bool),
		failed:   make(map[int]FailureRecord),
	}
}

func (c *Collector) job(id int) (card.Descriptor, bool) {
	if id < 0 || id >= len(c.jobs) {
		return card.Descriptor{}, false
	}
	return c.jobs[id], true
}

func (c *Collector) terminal(id int) bool {
	_, failed := c.failed[id]
	return c.finished[id] || failed
}

// OnJobDone parses the artifacts of job id and classifies it. A job succeeds
// only when its log carries the success marker and its summary parsed.
// Transient artifacts of successful jobs are removed.
func (c *Collector) OnJobDone(id, exitCode int) Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()

	d, ok := c.job(id)
	if !ok || c.terminal(id) {
		log.WithField("job", id).Debug("ignoring completion of unknown or terminal job")
		return Ignored
	}
	entry := log.WithFields(log.Fields{"job": id, "exit": exitCode})

	summaryErr := c.readSummary(d)
	if t, err := ReadSeries(d.Series); err == nil {
		c.series[id] = t
	} else {
		entry.WithError(err).Debug("no time series")
	}

	lines, err := readLines(d.Log)
	if err != nil {
		entry.WithError(err).Debug("log not readable")
	}
	succeeded, diagnostic := c.opts.Markers.Classify(lines)

	if succeeded && summaryErr == nil {
		c.finished[id] = true
		for _, p := range d.Transient() {
			if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
				entry.WithError(err).Warn("could not remove transient artifact")
			}
		}
		entry.Debug("job finished")
		return Finished
	}

	rec := FailureRecord{ID: id, ExitCode: exitCode}
	switch {
	case len(diagnostic) > 0:
		rec.Diagnostic = strings.Join(diagnostic, "\n") +
			"\nPlease check also the file " + d.Info + " for more information"
	case summaryErr != nil && succeeded:
		rec.Diagnostic = summaryErr.Error()
	}
	c.failed[id] = rec
	entry.WithField("log", d.Log).Warn("run did not end properly")
	return Failed
}

func (c *Collector) readSummary(d card.Descriptor) error {
	header, row, err := ReadSummary(d.Summary)
	if err != nil {
		c.rows[d.ID] = nil
		if !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).WithField("job", d.ID).Debug("summary not usable")
		}
		return err
	}
	// The first usable summary fixes the header for the whole batch.
	if c.header == nil {
		c.header = header
	}
	c.rows[d.ID] = row
	return nil
}

func (c *Collector) headerLocked() []string {
	if c.header == nil {
		return padHeader(nil)
	}
	return append([]string(nil), c.header...)
}


func (c *Collector) rowsLocked(width int) []Row {
	rows := make([]Row, len(c.jobs))
	for i, d := range c.jobs {
		rows[i] = align(c.rows[d.ID], width)
	}
	return rows
}

// Series returns the time-series table of job id, if it was parsed.
func (c *Collector) Series(id int) (Table, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.series[id]
	return t, ok
}

// SeriesIDs lists the jobs with a parsed time series.
func (c *Collector) SeriesIDs() []int {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]int, 0, len(c.series))
	for id := range c.series {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Status is a copy of the classification so far.
type Status struct {
	Total    int             `json:"total"`
	Finished []int           `json:"finished"`
	Failed   []FailureRecord `json:"failed"`
}

// Terminal is the number of classified jobs.
func (s Status) Terminal() int { return len(s.Finished) + len(s.Failed) }

func (c *Collector) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.statusLocked()
}

func (c *Collector) statusLocked() Status {
	s := Status{Total: len(c.jobs), Finished: []int{}, Failed: []FailureRecord{}}
	for _, d := range c.jobs {
		if c.finished[d.ID] {
			s.Finished = append(s.Finished, d.ID)
		} else if rec, ok := c.failed[d.ID]; ok {
			s.Failed = append(s.Failed, rec)
		}
	}
	return s
}

// Summary is the outcome of a finalized batch.
type Summary struct {
	Status
	NotRun      []int
	Header      []string
	Rows        []Row
	Aggregate   string
	Remediation string
}

// Complete reports whether every job finished successfully.
func (s *Summary) Complete() bool {
	return len(s.Failed) == 0 && len(s.NotRun) == 0
}

// Finalize writes the aggregate table and, when some job failed or never
// ran, the remediation file. Without failures the per-job summaries are
// removed since the aggregate holds them. Calling it again rewrites the same
// bytes.
func (c *Collector) Finalize() (*Summary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	header := c.headerLocked()
	s := &Summary{
		Status:    c.statusLocked(),
		NotRun:    []int{},
		Header:    header,
		Rows:      c.rowsLocked(len(header)),
		Aggregate: c.opts.Templates.Aggregate,
	}
	for _, d := range c.jobs {
		if !c.terminal(d.ID) {
			s.NotRun = append(s.NotRun, d.ID)
		}
	}

	var result *multierror.Error
	if err := os.MkdirAll(filepath.Dir(s.Aggregate), 0755); err != nil {
		result = multierror.Append(result, err)
	}
	if err := WriteAggregate(s.Aggregate, header, s.Rows); err != nil {
		result = multierror.Append(result, err)
	}

	if s.Complete() {
		for _, d := range c.jobs {
			if err := os.Remove(d.Summary); err != nil && !os.IsNotExist(err) {
				result = multierror.Append(result, err)
			}
		}
		if err := os.Remove(c.opts.Templates.Remediation); err != nil && !os.IsNotExist(err) {
			result = multierror.Append(result, err)
		}
	} else {
		s.Remediation = c.opts.Templates.Remediation
		if err := os.WriteFile(s.Remediation, []byte(c.remediation(s).Text()), 0644); err != nil {
			result = multierror.Append(result, err)
		}
		log.WithFields(log.Fields{
			"failed":      len(s.Failed),
			"not_run":     len(s.NotRun),
			"total":       s.Total,
			"remediation": s.Remediation,
		}).Warn("some grid points could not be completed")
	}

	log.WithFields(log.Fields{
		"aggregate": s.Aggregate,
		"finished":  len(s.Finished),
		"total":     s.Total,
	}).Info("batch results written")
	return s, result.ErrorOrNil()
}

func (c *Collector) remediation(s *Summary) Remediation {
	r := Remediation{
		Total:      s.Total,
		NotRun:     s.NotRun,
		Executable: c.opts.Executable,
		Aggregate:  s.Aggregate,
		Jobs:       make(map[int]card.Descriptor, len(c.jobs)),
	}
	for _, rec := range s.Failed {
		r.Failed = append(r.Failed, rec.ID)
	}
	for _, d := range c.jobs {
		r.Jobs[d.ID] = d
	}
	return r
}
