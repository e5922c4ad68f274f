package batch

import (
	"fmt"
	"time"

	"github.com/san-kum/bbngrid/internal/collect"
)

// Phase is the lifecycle state of a batch.
type Phase int

const (
	Idle Phase = iota
	Preparing
	Running
	Completed
	Cancelled
	Aborted
)

var phaseNames = [...]string{"idle", "preparing", "running", "completed", "cancelled", "aborted"}

func (p Phase) String() string {
	if p < 0 || int(p) >= len(phaseNames) {
		return fmt.Sprintf("phase(%d)", int(p))
	}
	return phaseNames[p]
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Terminal reports whether no further transition happens without Reset.
func (p Phase) Terminal() bool {
	return p == Completed || p == Cancelled || p == Aborted
}

func allowed(from, to Phase) bool {
	switch from {
	case Idle:
		return to == Preparing
	case Preparing:
		return to == Running || to == Aborted
	case Running:
		return to == Completed || to == Cancelled
	case Completed, Cancelled, Aborted:
		return to == Idle
	}
	return false
}

// JobState is the state of one job inside a batch.
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	JobFinished
	JobFailed
)

var jobStateNames = [...]string{"pending", "running", "finished", "failed"}

func (s JobState) String() string {
	if s < 0 || int(s) >= len(jobStateNames) {
		return fmt.Sprintf("job_state(%d)", int(s))
	}
	return jobStateNames[s]
}

func (s JobState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s JobState) Terminal() bool { return s == JobFinished || s == JobFailed }

// State is the mutable record of the current batch. It is owned by the
// Controller and only read through Snapshot.
type State struct {
	Phase     Phase
	Tag       string
	Folder    string
	Jobs      []JobState
	Failures  []collect.FailureRecord
	Summary   *collect.Summary
	Err       error
	StartedAt time.Time
	EndedAt   time.Time
}

func (s *State) transition(to Phase) error {
	if !allowed(s.Phase, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Phase, to)
	}
	s.Phase = to
	return nil
}

func (s *State) setJob(id int, to JobState) {
	if id < 0 || id >= len(s.Jobs) {
		return
	}
	from := s.Jobs[id]
	if from.Terminal() || (to == JobRunning && from != JobPending) {
		return
	}
	s.Jobs[id] = to
}

func (s *State) count(js JobState) int {
	n := 0
	for _, j := range s.Jobs {
		if j == js {
			n++
		}
	}
	return n
}

// Progress is the fraction of terminal jobs. An empty batch is complete.
func (s *State) progress() float64 {
	if len(s.Jobs) == 0 {
		if s.Phase == Idle || s.Phase == Preparing {
			return 0
		}
		return 1
	}
	return float64(s.count(JobFinished)+s.count(JobFailed)) / float64(len(s.Jobs))
}

// Snapshot is a copy of the batch state safe to hand to other goroutines.
type Snapshot struct {
	Phase     Phase                   `json:"phase"`
	Tag       string                  `json:"tag,omitempty"`
	Folder    string                  `json:"folder,omitempty"`
	Total     int                     `json:"total"`
	Pending   int                     `json:"pending"`
	Running   int                     `json:"running"`
	Finished  int                     `json:"finished"`
	Failed    int                     `json:"failed"`
	Progress  float64                 `json:"progress"`
	Failures  []collect.FailureRecord `json:"failures,omitempty"`
	Error     string                  `json:"error,omitempty"`
	StartedAt time.Time               `json:"started_at,omitzero"`
	EndedAt   time.Time               `json:"ended_at,omitzero"`

	Jobs    []JobState       `json:"-"`
	Summary *collect.Summary `json:"-"`
}

func (s *State) snapshot() Snapshot {
	snap := Snapshot{
		Phase:     s.Phase,
		Tag:       s.Tag,
		Folder:    s.Folder,
		Total:     len(s.Jobs),
		Pending:   s.count(JobPending),
		Running:   s.count(JobRunning),
		Finished:  s.count(JobFinished),
		Failed:    s.count(JobFailed),
		Progress:  s.progress(),
		Failures:  append([]collect.FailureRecord(nil), s.Failures...),
		StartedAt: s.StartedAt,
		EndedAt:   s.EndedAt,
		Jobs:      append([]JobState(nil), s.Jobs...),
		Summary:   s.Summary,
	}
	if s.Err != nil {
		snap.Error = s.Err.Error()
	}
	return snap
}
