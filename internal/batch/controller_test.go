package batch_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/bbngrid/internal/batch"
	"github.com/san-kum/bbngrid/internal/card"
	"github.com/san-kum/bbngrid/internal/collect"
	"github.com/san-kum/bbngrid/internal/grid"
	"github.com/san-kum/bbngrid/internal/runner"
)

// fakeSimulator fails for eta10 in [1,2), hangs for eta10 in [5,6) and
// otherwise writes its outputs and the success marker.
const fakeSimulator = `#!/bin/sh
read mode
read card
eta=$(awk '$1=="ETA10"{print $2}' "$card")
set -- $(awk '$1=="FILES"{print $2, $3, $4}' "$card")
echo " fake simulator, mode $mode"
case "$eta" in
1.*)
	echo " Run failed with the following error:"
	echo " integration step too small"
	echo " Please, check the info file"
	exit 1
	;;
5.*)
	sleep 30
	;;
esac
printf '#   N_nu   eta10   Y_p   H2/H   He3/H   Li7/H\n 3.044D+00 %s 2.47D-01 2.5D-05 1.0D-05 4.5D-10\n' "$eta" > "$1"
printf '# T n p\n 1.0D+01 1.5D-01 8.5D-01\n 1.0D+00 1.2D-01 8.8D-01\n' > "$2"
echo "info" > "$3"
echo " Run completed successfully"
`

type savedDefinition struct {
	mu    sync.Mutex
	calls int
	total int
}

func (s *savedDefinition) Save(c *card.Common, set *grid.Set) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.total = set.Total()
	return nil
}

func etaGrid(count int, min, max float64) *grid.Set {
	eta, err := grid.NewRange(count, min, max)
	Expect(err).NotTo(HaveOccurred())
	set := grid.NewSet(grid.NumParams)
	Expect(set.Add(0, grid.DefaultAxes().With("eta10", eta))).To(Succeed())
	return set
}

var _ = Describe("Controller", func() {
	var (
		dir   string
		spec  batch.Spec
		saver *savedDefinition
		ctrl  *batch.Controller
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "sim"), []byte(fakeSimulator), 0755)).To(Succeed())

		saver = &savedDefinition{}
		ctrl = batch.NewController(batch.WithSaver(saver), batch.WithEvents(64))
		spec = batch.Spec{
			Common:      card.DefaultCommon(card.NewTemplates(filepath.Join(dir, "out"), "t")),
			Executable:  "sim",
			WorkDir:     dir,
			MaxParallel: 2,
		}
	})

	AfterEach(func() {
		ctrl.Stop()
	})

	It("starts idle", func() {
		Expect(ctrl.Phase()).To(Equal(batch.Idle))
		Expect(ctrl.Progress()).To(BeZero())
	})

	Context("when one job succeeds and one fails", func() {
		BeforeEach(func() {
			spec.Grids = etaGrid(2, 0, 1)
		})

		It("completes and keeps the failed job's artifacts", func() {
			snap, err := ctrl.Run(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())

			Expect(snap.Phase).To(Equal(batch.Completed))
			Expect(snap.Progress).To(Equal(1.0))
			Expect(snap.Jobs).To(Equal([]batch.JobState{batch.JobFinished, batch.JobFailed}))
			Expect(snap.Summary.Finished).To(Equal([]int{0}))
			Expect(snap.Summary.Failed).To(HaveLen(1))
			Expect(snap.Summary.Failed[0].ID).To(Equal(1))
			Expect(snap.Summary.Failed[0].ExitCode).To(Equal(1))
			Expect(snap.Summary.Failed[0].Diagnostic).To(ContainSubstring("integration step too small"))

			Expect(snap.Summary.Rows).To(HaveLen(2))
			Expect(snap.Summary.Rows[0][1]).To(BeNumerically("~", 0.0))
			for _, v := range snap.Summary.Rows[1] {
				Expect(collect.IsNotAvailable(v)).To(BeTrue())
			}

			tmpl := spec.Common.Templates
			Expect(tmpl.Aggregate).To(BeARegularFile())
			Expect(tmpl.Remediation).To(BeARegularFile())
			Expect(tmpl.Descriptor(0, nil).Card).NotTo(BeAnExistingFile())
			Expect(tmpl.Descriptor(1, nil).Card).To(BeARegularFile())
			Expect(tmpl.Descriptor(1, nil).Log).To(BeARegularFile())
			Expect(saver.calls).To(Equal(1))
			Expect(saver.total).To(Equal(2))
		})

		It("emits one event per job and a final event", func() {
			Expect(ctrl.Start(context.Background(), spec)).To(Succeed())
			ctrl.Wait()

			var events []batch.Event
			for ev := range ctrl.Events() {
				events = append(events, ev)
			}
			Expect(events).To(HaveLen(3))
			Expect(events[2].ID).To(Equal(-1))
			Expect(events[2].Phase).To(Equal(batch.Completed))
			Expect([]int{events[0].ID, events[1].ID}).To(ConsistOf(0, 1))
		})
	})

	Context("when stopped while a job is still running", func() {
		BeforeEach(func() {
			spec.Grids = etaGrid(2, 0, 5)
		})

		It("cancels and still finalizes the finished job", func() {
			Expect(ctrl.Start(context.Background(), spec)).To(Succeed())
			Eventually(func() int { return ctrl.Snapshot().Finished }, "10s").Should(Equal(1))
			Expect(ctrl.Phase()).To(Equal(batch.Running))

			Expect(ctrl.Start(context.Background(), spec)).To(MatchError(batch.ErrNotIdle))
			Expect(ctrl.Reset()).To(MatchError(batch.ErrBusy))

			start := time.Now()
			ctrl.Stop()
			Expect(time.Since(start)).To(BeNumerically("<", 10*time.Second))

			snap := ctrl.Snapshot()
			Expect(snap.Phase).To(Equal(batch.Cancelled))
			Expect(snap.Summary.Finished).To(Equal([]int{0}))
			Expect(snap.Summary.NotRun).To(Equal([]int{1}))
			Expect(snap.Summary.Rows).To(HaveLen(2))
			Expect(collect.IsNotAvailable(snap.Summary.Rows[0][0])).To(BeFalse())
			Expect(collect.IsNotAvailable(snap.Summary.Rows[1][0])).To(BeTrue())
			Expect(snap.Running).To(BeZero())
			Expect(spec.Common.Templates.Remediation).To(BeARegularFile())

			ctrl.Stop()
			Expect(ctrl.Phase()).To(Equal(batch.Cancelled))
		})
	})

	Context("with two grid ids", func() {
		BeforeEach(func() {
			eta, err := grid.NewRange(4, 2, 4)
			Expect(err).NotTo(HaveOccurred())
			spec.Grids = grid.NewSet(grid.NumParams)
			Expect(spec.Grids.Add(1, grid.DefaultAxes())).To(Succeed())
			Expect(spec.Grids.Add(0, grid.DefaultAxes().With("eta10", eta))).To(Succeed())
		})

		It("runs grid 0 before grid 1 and removes per-job summaries", func() {
			snap, err := ctrl.Run(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Phase).To(Equal(batch.Completed))
			Expect(snap.Total).To(Equal(5))
			Expect(snap.Summary.Complete()).To(BeTrue())

			var etas []float64
			for _, r := range snap.Summary.Rows {
				etas = append(etas, r[1])
			}
			Expect(etas).To(HaveLen(5))
			for i, want := range []float64{2, 2 + 2.0/3, 2 + 4.0/3, 4, 6.13832} {
				Expect(etas[i]).To(BeNumerically("~", want, 1e-6))
			}

			tmpl := spec.Common.Templates
			Expect(tmpl.Descriptor(0, nil).Summary).NotTo(BeAnExistingFile())
			Expect(tmpl.Descriptor(4, nil).Series).To(BeARegularFile())
			Expect(tmpl.Remediation).NotTo(BeAnExistingFile())
		})
	})

	Context("with an empty grid", func() {
		It("completes immediately", func() {
			spec.Grids = grid.NewSet(grid.NumParams)
			snap, err := ctrl.Run(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Phase).To(Equal(batch.Completed))
			Expect(snap.Total).To(BeZero())
			Expect(snap.Progress).To(Equal(1.0))
			Expect(snap.Summary.Rows).To(BeEmpty())
			Expect(spec.Common.Templates.Aggregate).To(BeARegularFile())
			Expect(spec.Common.Templates.Remediation).NotTo(BeAnExistingFile())
		})
	})

	Context("when preparation fails", func() {
		BeforeEach(func() {
			spec.Grids = etaGrid(2, 0, 1)
		})

		It("aborts without launching when the simulator is missing", func() {
			spec.Executable = "missing"
			err := ctrl.Start(context.Background(), spec)
			Expect(err).To(MatchError(runner.ErrExecutableMissing))

			snap := ctrl.Wait()
			Expect(snap.Phase).To(Equal(batch.Aborted))
			Expect(snap.Error).NotTo(BeEmpty())
			Expect(spec.Common.Templates.Descriptor(0, nil).Card).NotTo(BeAnExistingFile())
			Expect(saver.calls).To(BeZero())

			var events []batch.Event
			for ev := range ctrl.Events() {
				events = append(events, ev)
			}
			Expect(events).To(ConsistOf(batch.Event{ID: -1, Phase: batch.Aborted}))
		})

		It("aborts when the output folder is not writable", func() {
			blocker := filepath.Join(dir, "blocker")
			Expect(os.WriteFile(blocker, nil, 0644)).To(Succeed())
			spec.Common = card.DefaultCommon(card.NewTemplates(filepath.Join(blocker, "out"), "t"))

			_, err := ctrl.Run(context.Background(), spec)
			Expect(err).To(MatchError(card.ErrOutputNotWritable))
			Expect(ctrl.Phase()).To(Equal(batch.Aborted))
		})

		It("refuses a second start until reset", func() {
			spec.Executable = "missing"
			Expect(ctrl.Start(context.Background(), spec)).NotTo(Succeed())
			Expect(ctrl.Start(context.Background(), spec)).To(MatchError(batch.ErrNotIdle))

			Expect(ctrl.Reset()).To(Succeed())
			Expect(ctrl.Phase()).To(Equal(batch.Idle))

			spec.Executable = "sim"
			snap, err := ctrl.Run(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Phase).To(Equal(batch.Completed))
		})
	})

	Context("with a job timeout", func() {
		It("reports the hung job as failed", func() {
			spec.Grids = etaGrid(1, 5, 5)
			spec.Timeout = 200 * time.Millisecond

			snap, err := ctrl.Run(context.Background(), spec)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Phase).To(Equal(batch.Completed))
			Expect(snap.Summary.Failed).To(HaveLen(1))
			Expect(snap.Summary.Failed[0].ExitCode).To(Equal(runner.TimedOutExitCode))
		})
	})
})
