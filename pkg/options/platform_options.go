package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*PlatformOptions)(nil)

// PlatformOptions configures access to the device platform: the boot
// environment exported by the bootloader and the reboot behavior.
type PlatformOptions struct {
	// BootEnvDir is the directory holding the partition table and the
	// bootloader's running/next-boot state.
	BootEnvDir string `json:"boot-env-dir" mapstructure:"boot-env-dir"`

	// DryRun disables the actual reboot call, logging it instead. For bench
	// setups where a fail-over loop would take the rig down.
	DryRun bool `json:"dry-run" mapstructure:"dry-run"`
}

// NewPlatformOptions creates a PlatformOptions object with default parameters.
func NewPlatformOptions() *PlatformOptions {
	return &PlatformOptions{
		BootEnvDir: "/run/bootenv",
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *PlatformOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.BootEnvDir == "" {
		errors = append(errors, fmt.Errorf("platform.boot-env-dir must not be empty"))
	}

	return errors
}

// AddFlags adds flags related to the device platform to the specified FlagSet.
func (o *PlatformOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.BootEnvDir, "platform.boot-env-dir", o.BootEnvDir, "Directory holding the bootloader environment.")
	fs.BoolVar(&o.DryRun, "platform.dry-run", o.DryRun, "Log reboots instead of performing them.")
}
