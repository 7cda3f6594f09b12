package bootguard

import (
	goversion "github.com/hashicorp/go-version"

	"github.com/autopeer-io/bootguard/pkg/nvs"
)

// ConfigNamespace is the store namespace owned by the configuration
// subsystem. The validator only writes the per-partition version keys there;
// everything else in it belongs to configuration.
const ConfigNamespace = "config"

// partitionVersionKeyPrefix prefixes the per-partition firmware version keys,
// e.g. "part_ver_slot_a". The prefix is durable on-device schema.
const partitionVersionKeyPrefix = "part_ver_"

// StorePartitionVersion records which firmware version is running on the
// current partition, for update version-tracking display. It is a thin
// adjunct to the validator, not part of the boot decision: failures degrade
// to a log line.
func (v *Validator) StorePartitionVersion(version string) {
	if _, err := goversion.NewVersion(version); err != nil {
		// Dev builds carry free-form version strings; record them anyway.
		v.log.Warn("Firmware version string is not a valid version", "version", version)
	}

	running, err := v.parts.RunningPartition()
	if err != nil {
		v.log.Warn("Cannot store partition version, running partition unknown", "reason", err.Error())
		return
	}

	key := partitionVersionKeyPrefix + running.Label
	if res := nvs.WriteString(v.store, ConfigNamespace, key, version); res != nvs.ResultOK {
		v.log.Warn("Failed to store partition version", "key", key, "result", res.String())
		return
	}
	v.log.Info("Stored firmware version for partition", "version", version, "label", running.Label)
}

// PartitionVersion returns the firmware version recorded for the given
// partition label, or "" when none was stored.
func (v *Validator) PartitionVersion(label string) string {
	return nvs.ReadString(v.store, ConfigNamespace, partitionVersionKeyPrefix+label, "")
}
