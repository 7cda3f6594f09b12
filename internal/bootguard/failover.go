package bootguard

import (
	"github.com/autopeer-io/bootguard/internal/pkg/metrics"
	"github.com/autopeer-io/bootguard/internal/platform"
	"github.com/autopeer-io/bootguard/pkg/nvs"
)

// failoverAction is the decision computed for a fail-over, separated from its
// side effects so the decision logic is testable without rebooting anything.
type failoverAction int

const (
	// actionSwitch redirects the next boot to the opposite primary slot.
	actionSwitch failoverAction = iota

	// actionFactory falls back to the factory/recovery image.
	actionFactory

	// actionContinue resets the counter and continues booting without a
	// reboot: both primary slots are suspect and the loop ceiling has been
	// reached, so bouncing further helps nobody.
	actionContinue
)

func (a failoverAction) String() string {
	switch a {
	case actionSwitch:
		return "switch"
	case actionFactory:
		return "factory"
	case actionContinue:
		return "continue"
	default:
		return "unknown"
	}
}

// outcome reports how a fail-over ended from the caller's point of view.
// With the system rebooter outcomeReboot is never actually observed; it
// exists so the flow is exercisable with a fake rebooter.
type outcome int

const (
	outcomeReboot outcome = iota
	outcomeContinue
)

// planFailover computes the fail-over target. It never touches storage or the
// platform beyond the find callback.
//
// The marker is the label of the most recent fail-over target. When it equals
// the freshly computed target, that exact switch was already tried and the
// device still ended up back here failing, so both primary slots are suspect:
// past the loop ceiling the plan is to stop bouncing; before it, to try the
// factory image instead of repeating the switch.
func planFailover(running platform.Partition, haveRunning bool, marker string,
	count, maxLoopCount uint32, find func(platform.Role) (platform.Partition, bool)) (failoverPlan, string) {

	if !haveRunning {
		return failoverPlan{action: actionFactory}, "running partition unresolved"
	}

	targetRole := running.Role.Opposite()
	if targetRole == platform.RoleUnknown {
		return failoverPlan{action: actionFactory}, "running partition is not a primary slot"
	}

	target, ok := find(targetRole)
	if !ok {
		return failoverPlan{action: actionFactory}, "target slot not present in partition table"
	}

	if marker != "" && marker == target.Label {
		if count > maxLoopCount {
			return failoverPlan{action: actionContinue}, "both slots failing past loop ceiling"
		}
		return failoverPlan{action: actionFactory}, "target slot already attempted, preventing ping-pong"
	}

	return failoverPlan{action: actionSwitch, target: target}, ""
}

type failoverPlan struct {
	action failoverAction
	target platform.Partition
}

// failover redirects the next boot to a different, hopefully-good partition.
// Every branch ends either in a reboot or in an explicit continue-without-
// reboot decision; there is no silent fall-through.
func (v *Validator) failover() outcome {
	v.log.Info("Initiating rollback to last known good partition")
	v.transition(eventFailover)

	running, err := v.parts.RunningPartition()
	haveRunning := err == nil
	if haveRunning {
		v.log.Info("Currently running from", "label", running.Label, "role", running.Role)
	} else {
		v.log.Error(err, "Cannot determine running partition")
	}

	marker := v.readLastPartitionMarker()

	plan, reason := planFailover(running, haveRunning, marker, v.bootCount, v.maxLoopCount, v.parts.FindPartition)
	if reason != "" {
		v.log.Warn("Fail-over decision", "action", plan.action, "reason", reason)
	}
	metrics.FailoverTotal.WithLabelValues(plan.action.String()).Inc()

	switch plan.action {
	case actionContinue:
		v.log.Warn("Both partitions failing, resetting boot count for recovery")
		v.resetBootCount()
		v.transition(eventEmergency)
		return outcomeContinue

	case actionSwitch:
		return v.switchToSlot(plan.target)

	default:
		return v.factoryFallback()
	}
}

// switchToSlot persists the fail-over bookkeeping, redirects the next boot to
// target and reboots. The marker and the counter are written before the
// redirect so that a power loss between the two cannot lose the oscillation
// evidence; the counter is zeroed for the target's own future counting.
func (v *Validator) switchToSlot(target platform.Partition) outcome {
	v.log.Info("Switching to partition", "label", target.Label, "role", target.Role,
		"address", target.Address, "size", target.Size)

	// target.Label is an owned copy; values from the partition service are
	// never borrowed across further platform calls.
	sc := v.store.Scope(BootNamespace)
	if sc.IsOpen() {
		sc.PutString(LastPartitionKey, target.Label)
		sc.PutUint(BootCounterKey, 0)
	} else {
		v.log.Warn("Cannot record fail-over target, boot namespace unavailable",
			"result", sc.LastResult().String())
	}
	sc.Close()

	if err := v.parts.SetNextBoot(target); err != nil {
		v.log.Error(err, "Failed to set boot partition", "label", target.Label)
		return v.factoryFallback()
	}

	// Read back the platform's notion of the next boot partition: a redirect
	// that silently no-ops would otherwise loop us on the same bad slot.
	next, err := v.parts.NextBootPartition()
	if err != nil || next.Label != target.Label {
		v.log.Warn("Boot partition verification failed, rebooting anyway",
			"want", target.Label)
	} else {
		v.log.Info("Boot partition verified", "label", next.Label)
	}

	v.log.Info("Rebooting to last known good partition")
	v.sleep(v.rebootDelay)
	v.transition(eventReboot)
	v.reboot.Reboot()
	return outcomeReboot
}

// factoryFallback redirects the next boot to the factory image. When the
// factory image is missing or the redirect fails it falls back to the
// platform's native rollback; when that also fails it either engages the
// escape hatch (past the loop ceiling) or reboots unconditionally, accepting
// the loop until the ceiling trips on a later attempt.
func (v *Validator) factoryFallback() outcome {
	v.log.Info("Attempting fallback to factory partition")

	if factory, ok := v.parts.FindPartition(platform.RoleFactory); ok {
		v.log.Info("Found factory partition", "label", factory.Label)

		err := v.parts.SetNextBoot(factory)
		if err == nil {
			v.log.Info("Boot partition set to factory, rebooting")
			v.sleep(v.rebootDelay)
			v.transition(eventReboot)
			v.reboot.Reboot()
			return outcomeReboot
		}
		v.log.Error(err, "Failed to set boot partition to factory")
	} else {
		v.log.Error(nil, "Factory partition not found")
	}

	v.log.Info("Trying native rollback mechanism")
	if err := v.parts.MarkImageInvalidAndReboot(); err != nil {
		v.log.Error(err, "Native rollback failed")

		if v.bootCount > v.maxLoopCount {
			v.log.Warn("Emergency recovery: resetting boot count")
			v.resetBootCount()
			v.transition(eventEmergency)
			return outcomeContinue
		}

		// No recovery path produced a reboot. Reboot anyway: the loop
		// continues until the counter trips the escape hatch above.
		v.transition(eventReboot)
		v.reboot.Reboot()
	}
	return outcomeReboot
}

// readLastPartitionMarker returns the label of the most recent fail-over
// target, or "" when none was recorded or the store is unavailable.
func (v *Validator) readLastPartitionMarker() string {
	return nvs.ReadString(v.store, BootNamespace, LastPartitionKey, "")
}
