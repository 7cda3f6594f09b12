// Package platform defines the boundary between the boot validator and the
// device platform: the partition table, the native rollback mechanism, and
// the reboot primitive.
package platform

import "fmt"

// Role identifies what a flashable code region is used for.
type Role int

const (
	// RoleUnknown is a partition that plays no part in boot failover.
	RoleUnknown Role = iota

	// RoleSlotA is the first primary application slot.
	RoleSlotA

	// RoleSlotB is the second primary application slot.
	RoleSlotB

	// RoleFactory is the recovery image. It is never subject to boot
	// counting: it is itself the fallback and must always be reachable.
	RoleFactory
)

// String returns the canonical name of the role.
func (r Role) String() string {
	switch r {
	case RoleSlotA:
		return "SlotA"
	case RoleSlotB:
		return "SlotB"
	case RoleFactory:
		return "Factory"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	switch string(text) {
	case "SlotA":
		*r = RoleSlotA
	case "SlotB":
		*r = RoleSlotB
	case "Factory":
		*r = RoleFactory
	case "Unknown":
		*r = RoleUnknown
	default:
		return fmt.Errorf("unknown partition role %q", text)
	}
	return nil
}

// Opposite returns the other primary slot, or RoleUnknown when the role is
// not a primary slot.
func (r Role) Opposite() Role {
	switch r {
	case RoleSlotA:
		return RoleSlotB
	case RoleSlotB:
		return RoleSlotA
	default:
		return RoleUnknown
	}
}

// Partition describes one flashable code region of the device. Partition is a
// plain value: everything handed out by a PartitionService is an owned copy,
// never a reference into platform-managed memory, so holding one across later
// platform calls is always safe.
type Partition struct {
	Label   string `json:"label"`
	Role    Role   `json:"role"`
	Address uint32 `json:"address"`
	Size    uint32 `json:"size"`
}

// PartitionService exposes the device's partition table and the bootloader
// controls attached to it. Partitions are owned and enumerated exclusively by
// the service; callers only read them.
type PartitionService interface {
	// RunningPartition returns the partition the current image is executing
	// from.
	RunningPartition() (Partition, error)

	// FindPartition locates a partition by role. The second return is false
	// when the device's flash layout has no partition with that role.
	FindPartition(role Role) (Partition, bool)

	// SetNextBoot redirects the next boot to the given partition.
	SetNextBoot(p Partition) error

	// NextBootPartition returns the partition the bootloader will run next.
	// Used to verify a SetNextBoot call actually took effect.
	NextBootPartition() (Partition, error)

	// MarkImageValid cancels any pending rollback on the running image.
	// Calling it when no rollback is pending is a no-op, not an error.
	MarkImageValid() error

	// MarkImageInvalidAndReboot invokes the platform's native last-resort
	// rollback: mark the running image bad and reboot into whatever the
	// bootloader considers the previous good image. It returns only if the
	// mechanism failed to produce a reboot.
	MarkImageInvalidAndReboot() error
}
