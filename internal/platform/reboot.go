package platform

import (
	"os"
	"os/exec"

	"github.com/autopeer-io/bootguard/pkg/log"
)

// Rebooter restarts the device. A reboot is a point of no return: callers
// must finish all cleanup before invoking it and must not attempt further
// recovery afterwards.
type Rebooter interface {
	Reboot()
}

// SystemRebooter reboots the device through the init system. It is a thin
// shim around an irreversible process-level effect and is exercised only on
// real hardware, never in tests.
type SystemRebooter struct {
	Log log.Logger
}

var _ Rebooter = (*SystemRebooter)(nil)

// Reboot flushes filesystems and asks the init system to restart the device.
// On success control never comes back; the process is torn down by the OS.
func (r *SystemRebooter) Reboot() {
	logger := r.Log
	if logger == nil {
		logger = log.Std()
	}
	logger.Warn("Rebooting device now")

	_ = exec.Command("sync").Run()
	if err := exec.Command("reboot").Run(); err != nil {
		// Exit so a supervising init can restart the boot sequence; staying
		// alive here would leave the device wedged with no retry.
		logger.Error(err, "Reboot command failed, exiting for supervisor restart")
		os.Exit(1)
	}

	// The reboot is in flight. Block until the OS kills us.
	select {}
}
