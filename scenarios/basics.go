package scenarios

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/simkernel/sim"
)

// Clock is a direct event that repeats every two seconds.
var Clock = Scenario{
	Name:        "clock",
	Description: "a repeating direct event",
	Horizon:     5,
	Setup: func(s *sim.Simulator, logger logrus.FieldLogger) error {
		_, err := s.Schedule(func(evt *sim.DirectEvent) {
			report(logger, s.Now(), fmt.Sprintf("tick %v", evt.Arg(0)))
		}, sim.WithName("clock"), sim.WithRepeat(2), sim.WithArgs("clock"))

		return err
	},
}

// Cancel wakes a sleeping process early by canceling the event it sleeps
// on.
var Cancel = Scenario{
	Name:        "cancel",
	Description: "a sleep canceled before it completes",
	Horizon:     20,
	Setup: func(s *sim.Simulator, logger logrus.FieldLogger) error {
		sleeper, err := s.Process(func(p *sim.Process) {
			outcome, _ := p.SleepUntil(10)
			report(logger, p.Now(), "sleeper wakes up: "+outcome.String())
		}, sim.WithName("sleeper"))
		if err != nil {
			return err
		}

		_, err = s.Schedule(func(*sim.DirectEvent) {
			report(logger, s.Now(), "alarm rings")

			if err := s.Cancel(sleeper.PendingEvent()); err != nil {
				logger.WithError(err).Error("cannot wake the sleeper")
			}
		}, sim.At(4), sim.WithName("alarm"))

		return err
	},
}

// Race has a process wait on a trap with a timeout twice. The first time the
// trap wins, the second time the timeout does.
var Race = Scenario{
	Name:        "race",
	Description: "waiting on the first of a trap and a timeout",
	Horizon:     20,
	Setup: func(s *sim.Simulator, logger logrus.FieldLogger) error {
		signals := []*sim.Trap{s.NewTrap("first"), s.NewTrap("second")}

		_, err := s.Process(func(p *sim.Process) {
			for _, signal := range signals {
				idx, outcome, _ := p.WaitAny(
					[]sim.Trappable{signal}, sim.WithTimeout(5))

				winner := "timeout"
				if idx >= 0 {
					winner = signal.Name()
				}

				report(logger, p.Now(),
					fmt.Sprintf("waiter released by %s: %s", winner, outcome))
			}
		}, sim.WithName("waiter"))
		if err != nil {
			return err
		}

		_, err = s.Process(func(p *sim.Process) {
			_, _ = p.Sleep(3)
			report(logger, p.Now(), "signaling first")
			signals[0].Trigger()

			_, _ = p.Sleep(10)
			report(logger, p.Now(), "signaling second")
			signals[1].Trigger()
		}, sim.WithName("signaler"))

		return err
	},
}

// FIFO schedules events at 5, 3, 3 and 7. The two events at 3 run in the
// order they were scheduled.
var FIFO = Scenario{
	Name:        "fifo",
	Description: "simultaneous events dispatched in insertion order",
	Horizon:     sim.InfiniteTime,
	Setup: func(s *sim.Simulator, logger logrus.FieldLogger) error {
		for _, e := range []struct {
			name string
			at   sim.VTimeInSec
		}{
			{"e5", 5}, {"e3a", 3}, {"e3b", 3}, {"e7", 7},
		} {
			_, err := s.Schedule(func(evt *sim.DirectEvent) {
				report(logger, s.Now(), "dispatch "+evt.Name())
			}, sim.At(e.at), sim.WithName(e.name))
			if err != nil {
				return err
			}
		}

		return nil
	},
}
