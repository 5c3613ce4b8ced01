package scenarios

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/simkernel/sim"
)

const (
	minute = sim.VTimeInSec(60)
	hour   = 60 * minute
	day    = 24 * hour
)

// Professor follows the morning routine of a professor over three days. The
// first day a traffic jam makes the professor miss the first meeting.
var Professor = Scenario{
	Name:        "professor",
	Description: "a process sleeping by offsets and until absolute times",
	Horizon:     3 * day,
	Setup: func(s *sim.Simulator, logger logrus.FieldLogger) error {
		_, err := s.Process(func(p *sim.Process) {
			professorLife(p, logger)
		}, sim.WithName("professor"))

		return err
	},
}

func clockTime(t sim.VTimeInSec) string {
	secs := int(math.Mod(float64(t), float64(day)))

	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

type professor struct {
	p      *sim.Process
	logger logrus.FieldLogger
}

func (pr professor) sleep(d sim.VTimeInSec, doing string) {
	_, _ = pr.p.Sleep(d)
	pr.say(doing)
}

func (pr professor) sleepUntil(t sim.VTimeInSec, doing string) {
	_, _ = pr.p.SleepUntil(t)
	pr.say(doing)
}

func (pr professor) say(doing string) {
	report(pr.logger, pr.p.Now(),
		"professor "+doing+" at "+clockTime(pr.p.Now()))
}

func professorLife(p *sim.Process, logger logrus.FieldLogger) {
	pr := professor{p: p, logger: logger}

	for {
		startOfDay := p.Now()

		pr.sleep(4*hour, "wakes up")
		pr.sleep(5*minute, "starts drinking coffee")
		pr.sleep(5*minute, "starts reading")
		pr.sleep(10*minute, "finishes drinking coffee")
		pr.sleep(2*hour-10*minute, "finishes reading")

		pr.sleepUntil(startOfDay+6*hour+30*minute, "breakfasts")
		pr.sleepUntil(startOfDay+6*hour+50*minute, "showers")
		pr.sleepUntil(startOfDay+7*hour+30*minute,
			"leaves home and drives to school")

		if p.Now() < day {
			pr.sleep(2*hour+45*minute, "arrives at school")

			if p.Now() < 9*hour {
				pr.sleepUntil(9*hour, "has first meeting")
				pr.sleepUntil(10*hour, "has second meeting")
			} else {
				pr.sleepUntil(11*hour, "has second meeting")
			}
		} else {
			pr.sleep(45*minute, "arrives at school")
		}

		_, _ = p.SleepUntil(startOfDay + day)
	}
}
