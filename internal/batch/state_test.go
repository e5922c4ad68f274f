package batch

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

var _ = Describe("State", func() {
	It("follows the phase table", func() {
		s := &State{}
		Expect(s.transition(Running)).To(MatchError(ErrInvalidTransition))
		Expect(s.transition(Preparing)).To(Succeed())
		Expect(s.transition(Running)).To(Succeed())
		Expect(s.transition(Aborted)).To(MatchError(ErrInvalidTransition))
		Expect(s.transition(Cancelled)).To(Succeed())
		Expect(s.transition(Idle)).To(Succeed())
	})

	It("logs a rejected phase change and keeps the phase", func() {
		hook := test.NewGlobal()
		defer hook.Reset()

		c := NewController()
		c.state.Phase = Completed
		c.setPhase(Running)

		Expect(c.Phase()).To(Equal(Completed))
		Expect(hook.LastEntry()).NotTo(BeNil())
		Expect(hook.LastEntry().Level).To(Equal(log.ErrorLevel))
		Expect(hook.LastEntry().Message).To(Equal("phase not changed"))
	})
})
