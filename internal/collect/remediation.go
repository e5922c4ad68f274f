package collect

import (
	"fmt"
	"strings"

	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/runner"
)

// Remediation lists the jobs to re-run by hand after a batch with failures.
type Remediation struct {
	Total      int
	Failed     []int
	NotRun     []int
	Executable string
	Aggregate  string
	Jobs       map[int]card.Descriptor
}

func (r Remediation) Text() string {
	ids := append(append([]int(nil), r.Failed...), r.NotRun...)

	var b strings.Builder
	fmt.Fprintf(&b, "%d runs over %d failed in the last grid run.\n", len(r.Failed), r.Total)
	if len(r.NotRun) > 0 {
		fmt.Fprintf(&b, "%d runs over %d were not run because the batch was stopped.\n", len(r.NotRun), r.Total)
	}
	b.WriteString("Edit the input cards listed below, slightly perturb one of the physical " +
		"parameters and run the simulator again by hand.\n" +
		"Running the whole grid again would repeat every point, and the failed ones " +
		"will most likely fail again.\n\n")

	b.WriteString("Input cards of the runs to repeat:\n")
	for _, id := range ids {
		b.WriteString(r.Jobs[id].Card)
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nFrom the folder containing the '%s' executable, use the matching line below:\n", r.Executable)
	for _, id := range ids {
		d := r.Jobs[id]
		b.WriteString(runner.ShellCommand(r.Executable, d.Driver, d.Log))
		b.WriteByte('\n')
	}

	fmt.Fprintf(&b, "\nOnce every point completed, remove the summary file '%s' "+
		"and open the batch again so that it is rebuilt from the single runs.\n", r.Aggregate)
	return b.String()
}
