package bootguard

import (
	"context"

	"github.com/looplab/fsm"
)

// Validator states. A begin cycle moves init → {skipped, counting} and then
// to one of the terminal outcomes; rebooting is a pseudo-state entered just
// before the device restarts and never left.
const (
	StateInit        = "init"
	StateSkipped     = "skipped"
	StateCounting    = "counting"
	StateHealthy     = "healthy"
	StateEmergency   = "emergency"
	StateRollingBack = "rollingback"
	StateRebooting   = "rebooting"
)

const (
	// eventFactoryBoot fires when the running partition is the factory image.
	eventFactoryBoot = "event_factory_boot"
	// eventCount fires when boot counting starts for a primary slot.
	eventCount = "event_count"
	// eventProceed fires when the boot count is within thresholds.
	eventProceed = "event_proceed"
	// eventFailover fires when a fail-over is initiated, by the counter
	// threshold or by a critical-failure report from another subsystem.
	eventFailover = "event_failover"
	// eventEmergency fires when the escape hatch resets the counter and
	// lets boot continue despite repeated failures.
	eventEmergency = "event_emergency"
	// eventReboot fires immediately before the reboot call.
	eventReboot = "event_reboot"
)

// wrapEvent adapts an error-returning callback to a looplab/fsm callback.
func wrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

func newBootFSM(v *Validator) *fsm.FSM {
	events := fsm.Events{
		{Name: eventFactoryBoot, Src: []string{StateInit}, Dst: StateSkipped},
		{Name: eventCount, Src: []string{StateInit}, Dst: StateCounting},
		{Name: eventProceed, Src: []string{StateCounting}, Dst: StateHealthy},

		// A fail-over can start from the counter threshold or from any
		// subsystem reporting a critical failure after Begin returned.
		{Name: eventFailover, Src: []string{StateInit, StateSkipped, StateCounting, StateHealthy, StateEmergency}, Dst: StateRollingBack},

		{Name: eventEmergency, Src: []string{StateCounting, StateRollingBack}, Dst: StateEmergency},
		{Name: eventReboot, Src: []string{StateRollingBack}, Dst: StateRebooting},
	}

	callbacks := fsm.Callbacks{
		"enter_state": wrapEvent(v.actionLogTransition),
	}

	return fsm.NewFSM(StateInit, events, callbacks)
}

// actionLogTransition records every state change so a log observer can
// reconstruct the boot decision sequence.
func (v *Validator) actionLogTransition(ctx context.Context, e *fsm.Event) error {
	v.log.Debug("Validator state transition", "from", e.Src, "to", e.Dst, "event", e.Event)
	return nil
}

// transition fires an FSM event. Transition bookkeeping must never block the
// safety logic, so an invalid transition is logged and swallowed.
func (v *Validator) transition(event string) {
	if err := v.fsm.Event(context.Background(), event); err != nil {
		v.log.Warn("Ignored invalid validator transition", "event", event, "state", v.fsm.Current(), "reason", err.Error())
	}
}
