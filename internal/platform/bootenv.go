package platform

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/autopeer-io/bootguard/pkg/log"
)

// File names under the boot environment directory. The directory stands in
// for the bootloader environment block on devices whose boot firmware exposes
// it through the filesystem, and doubles as the simulation backend on hosts.
const (
	fileTable        = "partitions.json"
	fileRunning      = "running"
	fileNextBoot     = "next_boot"
	fileValidPending = "valid_pending"
)

// BootEnv is a directory-backed PartitionService. The partition table is a
// JSON file fixed at provisioning time; the running and next-boot labels are
// one-line files maintained by the bootloader (or by the simulation harness).
type BootEnv struct {
	dir      string
	table    []Partition
	rebooter Rebooter
	log      log.Logger
}

var _ PartitionService = (*BootEnv)(nil)

// OpenBootEnv loads the boot environment rooted at dir. The rebooter is used
// by MarkImageInvalidAndReboot, the one PartitionService operation that
// restarts the device itself.
func OpenBootEnv(dir string, rebooter Rebooter, logger log.Logger) (*BootEnv, error) {
	raw, err := os.ReadFile(filepath.Join(dir, fileTable))
	if err != nil {
		return nil, fmt.Errorf("failed to read partition table: %w", err)
	}

	var table []Partition
	if err := json.Unmarshal(raw, &table); err != nil {
		return nil, fmt.Errorf("failed to parse partition table: %w", err)
	}
	if len(table) == 0 {
		return nil, fmt.Errorf("partition table at %s is empty", dir)
	}

	return &BootEnv{
		dir:      dir,
		table:    table,
		rebooter: rebooter,
		log:      logger.WithName("bootenv"),
	}, nil
}

func (e *BootEnv) readLabel(name string) (string, error) {
	raw, err := os.ReadFile(filepath.Join(e.dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func (e *BootEnv) writeLabel(name, label string) error {
	return os.WriteFile(filepath.Join(e.dir, name), []byte(label+"\n"), 0o644)
}

func (e *BootEnv) byLabel(label string) (Partition, bool) {
	for _, p := range e.table {
		if p.Label == label {
			return p, true
		}
	}
	return Partition{}, false
}

// RunningPartition returns the partition the current image booted from.
func (e *BootEnv) RunningPartition() (Partition, error) {
	label, err := e.readLabel(fileRunning)
	if err != nil {
		return Partition{}, fmt.Errorf("failed to read running partition: %w", err)
	}
	p, ok := e.byLabel(label)
	if !ok {
		return Partition{}, fmt.Errorf("running partition %q not in partition table", label)
	}
	return p, nil
}

// FindPartition locates the first partition with the given role.
func (e *BootEnv) FindPartition(role Role) (Partition, bool) {
	for _, p := range e.table {
		if p.Role == role {
			return p, true
		}
	}
	return Partition{}, false
}

// SetNextBoot redirects the next boot to the given partition.
func (e *BootEnv) SetNextBoot(p Partition) error {
	if _, ok := e.byLabel(p.Label); !ok {
		return fmt.Errorf("partition %q not in partition table", p.Label)
	}
	if err := e.writeLabel(fileNextBoot, p.Label); err != nil {
		return fmt.Errorf("failed to set next boot partition: %w", err)
	}
	e.log.Info("Next boot partition set", "label", p.Label, "role", p.Role)
	return nil
}

// NextBootPartition returns the partition the bootloader will run next. When
// no explicit redirect has been recorded it falls back to the running
// partition, matching bootloader behavior.
func (e *BootEnv) NextBootPartition() (Partition, error) {
	label, err := e.readLabel(fileNextBoot)
	if err != nil {
		if os.IsNotExist(err) {
			return e.RunningPartition()
		}
		return Partition{}, fmt.Errorf("failed to read next boot partition: %w", err)
	}
	p, ok := e.byLabel(label)
	if !ok {
		return Partition{}, fmt.Errorf("next boot partition %q not in partition table", label)
	}
	return p, nil
}

// MarkImageValid cancels a pending rollback by clearing the validation
// marker. A missing marker means no rollback was pending; that is a no-op.
func (e *BootEnv) MarkImageValid() error {
	err := os.Remove(filepath.Join(e.dir, fileValidPending))
	if err != nil {
		if os.IsNotExist(err) {
			e.log.Debug("No pending rollback to cancel")
			return nil
		}
		return fmt.Errorf("failed to cancel pending rollback: %w", err)
	}
	e.log.Info("Pending rollback cancelled, image accepted")
	return nil
}

// RollbackPending reports whether the updater left a validation marker for
// the current image.
func (e *BootEnv) RollbackPending() bool {
	_, err := os.Stat(filepath.Join(e.dir, fileValidPending))
	return err == nil
}

// MarkImageInvalidAndReboot is the native last-resort rollback: point the
// bootloader at the opposite slot (or factory when the running slot has no
// opposite) and reboot. Returns only when no alternative image exists or the
// redirect could not be recorded.
func (e *BootEnv) MarkImageInvalidAndReboot() error {
	running, err := e.RunningPartition()
	if err != nil {
		return fmt.Errorf("native rollback: %w", err)
	}

	target, ok := e.FindPartition(running.Role.Opposite())
	if !ok {
		target, ok = e.FindPartition(RoleFactory)
	}
	if !ok {
		return fmt.Errorf("native rollback: no alternative to partition %q", running.Label)
	}

	if err := e.SetNextBoot(target); err != nil {
		return fmt.Errorf("native rollback: %w", err)
	}

	e.log.Warn("Native rollback engaged", "from", running.Label, "to", target.Label)
	e.rebooter.Reboot()
	return nil
}
