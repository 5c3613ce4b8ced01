package sim

import (
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventLogger", func() {
	It("should log events and process lifecycle", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)

		s := MakeBuilder().WithLogger(logger).Build()
		s.AcceptHook(NewEventLogger(logger))

		_, _ = s.Schedule(noop, At(1), WithName("tick"))
		_, _ = s.Process(func(p *Process) { _, _ = p.Sleep(2) },
			WithName("worker"))

		Expect(s.RunAll()).To(Succeed())

		var dispatched []string
		var lifecycle []string
		for _, e := range logs.AllEntries() {
			switch e.Message {
			case "dispatch":
				dispatched = append(dispatched, e.Data["event"].(string))
			case "ProcessStart", "ProcessEnd":
				Expect(e.Level).To(Equal(logrus.InfoLevel))
				lifecycle = append(lifecycle, e.Message)
			}
		}

		Expect(dispatched).To(Equal([]string{"worker", "tick", "worker"}))
		Expect(lifecycle).To(Equal([]string{"ProcessStart", "ProcessEnd"}))
		Expect(logs.LastEntry().Data["outcome"]).To(Equal("fired"))
	})

	It("should log at the configured level", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(logrus.DebugLevel)

		s := MakeBuilder().WithLogger(logrus.New()).Build()
		s.AcceptHook(NewEventLogger(logger).WithLevel(logrus.DebugLevel))

		_, _ = s.Schedule(noop)
		Expect(s.RunAll()).To(Succeed())

		Expect(logs.Entries).To(HaveLen(1))
		Expect(logs.LastEntry().Level).To(Equal(logrus.DebugLevel))
	})

	It("should log at trace level", func() {
		logger, logs := test.NewNullLogger()
		logger.SetLevel(logrus.TraceLevel)

		s := MakeBuilder().WithLogger(logrus.New()).Build()
		s.AcceptHook(NewEventLogger(logger).WithLevel(logrus.TraceLevel))

		_, _ = s.Schedule(noop)
		Expect(s.RunAll()).To(Succeed())

		Expect(logs.Entries).To(HaveLen(1))
		Expect(logs.LastEntry().Level).To(Equal(logrus.TraceLevel))

		logs.Reset()
		logger.SetLevel(logrus.DebugLevel)
		_, _ = s.Schedule(noop)
		Expect(s.RunAll()).To(Succeed())
		Expect(logs.Entries).To(BeEmpty())
	})
})
