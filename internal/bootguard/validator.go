// Package bootguard implements the boot validation and partition fail-over
// state machine.
//
// On every boot the validator counts the attempt in persistent storage. A
// firmware image that keeps crashing before the caller confirms a successful
// boot drives the counter over its threshold, at which point the validator
// redirects the next boot to the opposite primary slot, falling back to the
// factory image, and finally easing off entirely rather than letting the
// device bounce between two bad images forever.
package bootguard

import (
	"fmt"
	"time"

	"github.com/looplab/fsm"

	"github.com/autopeer-io/bootguard/internal/pkg/metrics"
	"github.com/autopeer-io/bootguard/internal/platform"
	"github.com/autopeer-io/bootguard/pkg/log"
	"github.com/autopeer-io/bootguard/pkg/nvs"
)

// Boot failure thresholds.
const (
	// DefaultMaxBootFailures is the number of failed boot attempts allowed
	// on a primary slot before fail-over.
	DefaultMaxBootFailures uint32 = 3

	// DefaultMaxBootLoopCount is the boot-loop ceiling. Past it the
	// validator resets the counter and lets boot continue, trading strict
	// validation for guaranteed liveness so an external recovery channel
	// gets a chance to run.
	DefaultMaxBootLoopCount uint32 = 10
)

// Durable storage schema. These names are shared with every firmware version
// ever flashed to a device and must never change.
const (
	BootNamespace    = "boot"
	BootCounterKey   = "boot_count"
	LastPartitionKey = "last_partition"
)

const (
	defaultRebootDelay  = 1 * time.Second
	defaultFailureDelay = 3 * time.Second
)

// Config assembles the validator's collaborators. Store, Partitions and
// Rebooter are required; zero thresholds and delays take the defaults above.
type Config struct {
	Store      *nvs.Store
	Partitions platform.PartitionService
	Rebooter   platform.Rebooter
	Logger     log.Logger

	MaxBootFailures  uint32
	MaxBootLoopCount uint32

	// RebootDelay is slept before every reboot so the preceding diagnostics
	// reach a serial observer. FailureDelay is the longer pause after a
	// critical-failure report.
	RebootDelay  time.Duration
	FailureDelay time.Duration

	// Sleep replaces time.Sleep in tests. Nil means time.Sleep.
	Sleep func(time.Duration)
}

// Validator is the boot validation state machine. Construct one per process
// with New; it is not safe for concurrent use, which holds by construction
// during the boot window.
type Validator struct {
	store *nvs.Store
	parts platform.PartitionService
	reboot platform.Rebooter
	log    log.Logger
	fsm    *fsm.FSM

	maxFailures  uint32
	maxLoopCount uint32
	rebootDelay  time.Duration
	failureDelay time.Duration
	sleep        func(time.Duration)

	bootCount   uint32
	initialized bool
}

// New creates a Validator from cfg.
func New(cfg Config) (*Validator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("bootguard: store is required")
	}
	if cfg.Partitions == nil {
		return nil, fmt.Errorf("bootguard: partition service is required")
	}
	if cfg.Rebooter == nil {
		return nil, fmt.Errorf("bootguard: rebooter is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Std()
	}

	v := &Validator{
		store:        cfg.Store,
		parts:        cfg.Partitions,
		reboot:       cfg.Rebooter,
		log:          logger.WithName("bootval"),
		maxFailures:  cfg.MaxBootFailures,
		maxLoopCount: cfg.MaxBootLoopCount,
		rebootDelay:  cfg.RebootDelay,
		failureDelay: cfg.FailureDelay,
		sleep:        cfg.Sleep,
	}
	if v.maxFailures == 0 {
		v.maxFailures = DefaultMaxBootFailures
	}
	if v.maxLoopCount == 0 {
		v.maxLoopCount = DefaultMaxBootLoopCount
	}
	if v.rebootDelay == 0 {
		v.rebootDelay = defaultRebootDelay
	}
	if v.failureDelay == 0 {
		v.failureDelay = defaultFailureDelay
	}
	if v.sleep == nil {
		v.sleep = time.Sleep
	}
	v.fsm = newBootFSM(v)

	return v, nil
}

// Begin runs the boot decision. Call it before any other subsystem
// initializes. It returns true when boot may proceed; when a fail-over is
// triggered the device reboots and, on real hardware, the call never returns.
func (v *Validator) Begin() bool {
	v.log.Info("Boot validator starting")

	running, err := v.parts.RunningPartition()
	if err != nil {
		// Counting still applies: a partition-lookup hiccup must not defeat
		// loop protection.
		v.log.Warn("Cannot determine running partition", "reason", err.Error())
	} else {
		v.log.Info("Running partition", "label", running.Label, "role", running.Role,
			"address", running.Address, "size", running.Size)

		if running.Role == platform.RoleFactory {
			v.log.Info("Running from factory partition, boot counting skipped")
			v.transition(eventFactoryBoot)
			v.initialized = true
			return true
		}
	}

	v.transition(eventCount)
	v.incrementBootCount()

	v.log.Info("Boot count", "count", v.bootCount, "max", v.maxFailures)
	metrics.BootCount.Set(float64(v.bootCount))

	if v.bootCount > v.maxFailures {
		v.log.Error(nil, "Too many boot failures, rolling back", "count", v.bootCount)
		if v.failover() == outcomeContinue {
			v.initialized = true
			return true
		}
		// Unreachable on real hardware: the device has rebooted.
		return false
	}

	if v.bootCount > v.maxLoopCount {
		v.log.Warn("Emergency recovery: boot count exceeds loop ceiling, resetting counter",
			"count", v.bootCount, "max", v.maxLoopCount)
		v.log.Warn("Continuing boot despite repeated failures")
		v.resetBootCount()
		v.transition(eventEmergency)
		v.initialized = true
		return true
	}

	v.transition(eventProceed)
	v.initialized = true
	return true
}

// MarkBootSuccessful confirms the current image. Call it only after all
// critical initialization has completed; calling it earlier defeats the
// validation entirely. It resets the boot counter and cancels any rollback
// the updater left pending.
func (v *Validator) MarkBootSuccessful() {
	if !v.initialized {
		v.log.Warn("Cannot mark boot successful before validation ran")
		return
	}

	v.log.Info("Marking boot as successful")
	v.resetBootCount()

	if err := v.parts.MarkImageValid(); err != nil {
		v.log.Error(err, "Failed to cancel pending rollback")
		return
	}
	v.log.Info("Firmware validated, pending rollback cancelled if any")
}

// OnOTAFailed reports that a just-applied update failed validation. It does
// not return on real hardware.
func (v *Validator) OnOTAFailed(message string) {
	v.OnCriticalFailure("OTA Update", message)
}

// OnCriticalFailure is the uniform entry point for any subsystem hitting an
// unrecoverable error during boot. It logs prominently, pauses so the
// diagnostics reach an observer, and fails over. It does not return on real
// hardware unless the escape hatch chose to continue booting.
func (v *Validator) OnCriticalFailure(component, message string) {
	v.log.Error(nil, "CRITICAL BOOT FAILURE", "component", component, "error", message)
	v.log.Error(nil, "Rolling back for recovery; use the recovery image to reconfigure or reinstall")
	metrics.CriticalFailureTotal.WithLabelValues(component).Inc()

	// Give a serial observer time to see the message.
	v.sleep(v.failureDelay)

	v.failover()
}

// BootCount returns the boot attempt count read during Begin.
func (v *Validator) BootCount() uint32 {
	return v.bootCount
}

// IsFactoryPartition reports whether the device is running the factory image.
func (v *Validator) IsFactoryPartition() bool {
	running, err := v.parts.RunningPartition()
	return err == nil && running.Role == platform.RoleFactory
}

// State returns the validator's current state name.
func (v *Validator) State() string {
	return v.fsm.Current()
}

// incrementBootCount bumps the persisted counter by one. A store that cannot
// be opened fails open: the counter stays at its in-memory default and boot
// proceeds, since a storage fault must never escalate to a rollback.
func (v *Validator) incrementBootCount() {
	sc := v.store.Scope(BootNamespace)
	defer sc.Close()
	if !sc.IsOpen() {
		v.log.Warn("Boot namespace unavailable, proceeding without counting",
			"result", sc.LastResult().String())
		return
	}

	v.bootCount = sc.GetUint(BootCounterKey, 0) + 1
	if res := sc.PutUint(BootCounterKey, v.bootCount); res != nvs.ResultOK {
		v.log.Warn("Failed to persist boot count", "result", res.String())
	}
}

// resetBootCount zeroes the persisted counter.
func (v *Validator) resetBootCount() {
	sc := v.store.Scope(BootNamespace)
	defer sc.Close()
	if sc.IsOpen() {
		if res := sc.PutUint(BootCounterKey, 0); res != nvs.ResultOK {
			v.log.Warn("Failed to reset boot count", "result", res.String())
		}
	}
	v.bootCount = 0
	v.log.Info("Boot counter reset")
}
