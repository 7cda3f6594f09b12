package bootguard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/bootguard/internal/platform"
)

func TestStorePartitionVersion(t *testing.T) {
	store := newTestStore(t)
	parts := dualSlotParts()

	v := newBoot(t, store, parts, &fakeRebooter{})
	v.StorePartitionVersion("2.4.1")
	assert.Equal(t, "2.4.1", v.PartitionVersion("slot_a"))
	assert.Equal(t, "", v.PartitionVersion("slot_b"))

	// Versions are per partition: slot B records its own.
	parts.running = slotB
	v.StorePartitionVersion("2.5.0")
	assert.Equal(t, "2.4.1", v.PartitionVersion("slot_a"))
	assert.Equal(t, "2.5.0", v.PartitionVersion("slot_b"))
}

func TestStorePartitionVersionNonSemver(t *testing.T) {
	store := newTestStore(t)
	parts := dualSlotParts()

	// Dev builds ship free-form strings; they are recorded all the same.
	v := newBoot(t, store, parts, &fakeRebooter{})
	v.StorePartitionVersion("nightly-20260830")
	assert.Equal(t, "nightly-20260830", v.PartitionVersion("slot_a"))
}

func TestStorePartitionVersionUnknownRunning(t *testing.T) {
	store := newTestStore(t)
	parts := dualSlotParts()
	parts.runningErr = assert.AnError

	v := newBoot(t, store, parts, &fakeRebooter{})
	v.StorePartitionVersion("2.4.1")

	parts.runningErr = nil
	assert.Equal(t, "", v.PartitionVersion("slot_a"))
}

func TestStorePartitionVersionLabelOverflow(t *testing.T) {
	store := newTestStore(t)
	parts := &fakeParts{running: factory, table: []platform.Partition{slotA, slotB, factory}}

	// "part_ver_factory" overflows the key length limit; the write degrades
	// to a log line and nothing is recorded.
	v := newBoot(t, store, parts, &fakeRebooter{})
	v.StorePartitionVersion("2.4.1")
	require.Equal(t, "", v.PartitionVersion("factory"))
}
