// Package tracing turns simulator hooks into task traces.
package tracing

import (
	"fmt"
	"reflect"

	"github.com/sarchlab/simkernel/sim"
)

// KindProcess is the kind of the tasks that represent process lifetimes.
const KindProcess = "process"

// LocationKernel is where process tasks are reported to happen.
const LocationKernel = "kernel"

// CollectTrace lets the tracer collect process tasks from the simulator.
func CollectTrace(s *sim.Simulator, tracer Tracer) {
	for _, hook := range s.Hooks() {
		hook, ok := hook.(*traceHook)
		if ok && hook.t == tracer {
			panic(fmt.Sprintf("simulator already has tracer %s",
				reflect.TypeOf(tracer)))
		}
	}

	s.AcceptHook(&traceHook{t: tracer})
}

// A traceHook reports the start, resumptions and end of each process.
type traceHook struct {
	t Tracer
}

// Func calls the tracer interfaces when the hook is triggered
func (h *traceHook) Func(ctx sim.HookCtx) {
	switch ctx.Pos {
	case sim.HookPosProcessStart:
		h.t.StartTask(processTask(ctx.Item.(*sim.Process)))
	case sim.HookPosBeforeEvent:
		evt, ok := ctx.Item.(*sim.ProcessEvent)
		if !ok || evt.Process().State() != sim.ProcessSuspended {
			return
		}

		task := processTask(evt.Process())
		task.Steps = []TaskStep{{
			Time: ctx.Now,
			What: "resume:" + evt.Outcome().String(),
		}}
		h.t.StepTask(task)
	case sim.HookPosProcessEnd:
		task := processTask(ctx.Item.(*sim.Process))
		task.Detail = ctx.Detail
		h.t.EndTask(task)
	}
}

func processTask(p *sim.Process) Task {
	return Task{
		ID:       p.ID(),
		Kind:     KindProcess,
		What:     p.Name(),
		Location: LocationKernel,
	}
}
