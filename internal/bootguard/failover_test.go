package bootguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/bootguard/internal/platform"
)

func findIn(table ...platform.Partition) func(platform.Role) (platform.Partition, bool) {
	return func(role platform.Role) (platform.Partition, bool) {
		for _, p := range table {
			if p.Role == role {
				return p, true
			}
		}
		return platform.Partition{}, false
	}
}

func TestPlanFailover(t *testing.T) {
	fullTable := findIn(slotA, slotB, factory)

	tests := []struct {
		name        string
		running     platform.Partition
		haveRunning bool
		marker      string
		count       uint32
		find        func(platform.Role) (platform.Partition, bool)
		wantAction  failoverAction
		wantTarget  string
	}{
		{
			name:        "slot A switches to slot B",
			running:     slotA,
			haveRunning: true,
			count:       4,
			find:        fullTable,
			wantAction:  actionSwitch,
			wantTarget:  "slot_b",
		},
		{
			name:        "slot B switches to slot A",
			running:     slotB,
			haveRunning: true,
			count:       4,
			find:        fullTable,
			wantAction:  actionSwitch,
			wantTarget:  "slot_a",
		},
		{
			name:       "unresolved running partition goes to factory",
			count:      4,
			find:       fullTable,
			wantAction: actionFactory,
		},
		{
			name:        "factory has no opposite slot",
			running:     factory,
			haveRunning: true,
			count:       4,
			find:        fullTable,
			wantAction:  actionFactory,
		},
		{
			name:        "missing target slot goes to factory",
			running:     slotA,
			haveRunning: true,
			count:       4,
			find:        findIn(slotA, factory),
			wantAction:  actionFactory,
		},
		{
			name:        "marker matching target below ceiling goes to factory",
			running:     slotA,
			haveRunning: true,
			marker:      "slot_b",
			count:       5,
			find:        fullTable,
			wantAction:  actionFactory,
		},
		{
			name:        "marker matching target past ceiling continues",
			running:     slotA,
			haveRunning: true,
			marker:      "slot_b",
			count:       11,
			find:        fullTable,
			wantAction:  actionContinue,
		},
		{
			name:        "stale marker for the other slot still switches",
			running:     slotB,
			haveRunning: true,
			marker:      "slot_b",
			count:       4,
			find:        fullTable,
			wantAction:  actionSwitch,
			wantTarget:  "slot_a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, reason := planFailover(tt.running, tt.haveRunning, tt.marker,
				tt.count, DefaultMaxBootLoopCount, tt.find)

			assert.Equal(t, tt.wantAction, plan.action)
			if tt.wantAction == actionSwitch {
				assert.Empty(t, reason)
				require.Equal(t, tt.wantTarget, plan.target.Label)
				// A fail-over must never land back on the running partition.
				assert.NotEqual(t, tt.running.Label, plan.target.Label)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestFailoverActionString(t *testing.T) {
	assert.Equal(t, "switch", actionSwitch.String())
	assert.Equal(t, "factory", actionFactory.String())
	assert.Equal(t, "continue", actionContinue.String())
	assert.Equal(t, "unknown", failoverAction(99).String())
}

// The ladder below exercises the side-effect half of the fail-over: every
// rung removed pushes the flow one step further down.

func TestFactoryFallbackLadder(t *testing.T) {
	t.Run("factory redirect fails, native rollback reboots", func(t *testing.T) {
		store := newTestStore(t)
		parts := dualSlotParts()
		parts.setNextBootErr = assert.AnError
		reb := &fakeRebooter{}

		v := newBoot(t, store, parts, reb)
		require.True(t, v.Begin())

		v.OnCriticalFailure("SensorInit", "i2c bus dead")
		// The native mechanism reboots inside the platform layer, so the
		// validator's own rebooter stays untouched.
		assert.Equal(t, 1, parts.nativeRollbacks)
		assert.Equal(t, 0, reb.calls)
	})

	t.Run("no factory partition, native rollback reboots", func(t *testing.T) {
		store := newTestStore(t)
		parts := &fakeParts{running: factory, table: []platform.Partition{slotA, slotB}}
		reb := &fakeRebooter{}

		v := newBoot(t, store, parts, reb)

		// factory role opposite is unknown, so the plan is the factory
		// fallback, and with no factory partition the native mechanism runs.
		v.bootCount = 5
		assert.Equal(t, outcomeReboot, v.failover())
		assert.Equal(t, 1, parts.nativeRollbacks)
		assert.Equal(t, 0, reb.calls)
	})

	t.Run("everything fails below ceiling, unconditional reboot", func(t *testing.T) {
		store := newTestStore(t)
		parts := &fakeParts{
			running:        slotA,
			table:          []platform.Partition{slotA}, // no slot B, no factory
			setNextBootErr: assert.AnError,
			nativeErr:      assert.AnError,
		}
		reb := &fakeRebooter{}

		v := newBoot(t, store, parts, reb)
		v.bootCount = 5
		assert.Equal(t, outcomeReboot, v.failover())
		assert.Equal(t, 1, reb.calls)
	})

	t.Run("everything fails past ceiling, escape hatch continues", func(t *testing.T) {
		store := newTestStore(t)
		parts := &fakeParts{
			running:   slotA,
			table:     []platform.Partition{slotA},
			nativeErr: assert.AnError,
		}
		reb := &fakeRebooter{}

		v := newBoot(t, store, parts, reb)
		v.bootCount = 11
		assert.Equal(t, outcomeContinue, v.failover())
		assert.Equal(t, 0, reb.calls)
		assert.Equal(t, StateEmergency, v.State())
	})
}

func TestSwitchVerificationMismatchStillReboots(t *testing.T) {
	store := newTestStore(t)
	parts := dualSlotParts()
	reb := &fakeRebooter{}

	v := newBoot(t, store, parts, reb)
	v.bootCount = 4

	// SetNextBoot succeeds but the read-back disagrees: the reboot must
	// happen regardless, a mismatch is log-only.
	parts.nextBoot = slotA
	parts.haveNextBoot = true
	parts.setNextBootErr = nil

	brokenParts := &verificationSkew{fakeParts: parts}
	v.parts = brokenParts

	assert.Equal(t, outcomeReboot, v.failover())
	assert.Equal(t, 1, reb.calls)
}

// verificationSkew accepts redirects but always reports the old partition as
// the next boot target.
type verificationSkew struct {
	*fakeParts
}

func (s *verificationSkew) SetNextBoot(platform.Partition) error { return nil }

func (s *verificationSkew) NextBootPartition() (platform.Partition, error) {
	return slotA, nil
}
