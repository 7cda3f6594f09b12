package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

var _ IOptions = (*BootOptions)(nil)

// BootOptions configures the boot validator thresholds and delays. The
// defaults match the values every shipped firmware uses; changing them on a
// fleet is a schema-compatible but behavior-visible act.
type BootOptions struct {
	// MaxBootFailures is the failed-boot threshold that triggers fail-over.
	MaxBootFailures uint32 `json:"max-boot-failures" mapstructure:"max-boot-failures"`

	// MaxBootLoopCount is the boot-loop ceiling past which the validator
	// stops rebooting and lets an external recovery channel take over.
	MaxBootLoopCount uint32 `json:"max-boot-loop-count" mapstructure:"max-boot-loop-count"`

	// RebootDelay is slept before each reboot so diagnostics reach the
	// serial console.
	RebootDelay time.Duration `json:"reboot-delay" mapstructure:"reboot-delay"`

	// FailureDelay is the longer pause after a critical-failure report.
	FailureDelay time.Duration `json:"failure-delay" mapstructure:"failure-delay"`
}

// NewBootOptions creates a BootOptions object with default parameters.
func NewBootOptions() *BootOptions {
	return &BootOptions{
		MaxBootFailures:  3,
		MaxBootLoopCount: 10,
		RebootDelay:      1 * time.Second,
		FailureDelay:     3 * time.Second,
	}
}

// Validate is used to parse and validate the parameters entered by the user at
// the command line when the program starts.
func (o *BootOptions) Validate() []error {
	if o == nil {
		return nil
	}

	errors := []error{}

	if o.MaxBootFailures == 0 {
		errors = append(errors, fmt.Errorf("boot.max-boot-failures must be positive"))
	}
	if o.MaxBootLoopCount <= o.MaxBootFailures {
		errors = append(errors, fmt.Errorf("boot.max-boot-loop-count must exceed boot.max-boot-failures"))
	}

	return errors
}

// AddFlags adds flags related to boot validation to the specified FlagSet.
func (o *BootOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.Uint32Var(&o.MaxBootFailures, "boot.max-boot-failures", o.MaxBootFailures, "Failed boot attempts allowed before fail-over.")
	fs.Uint32Var(&o.MaxBootLoopCount, "boot.max-boot-loop-count", o.MaxBootLoopCount, "Boot-loop ceiling before emergency recovery.")
	fs.DurationVar(&o.RebootDelay, "boot.reboot-delay", o.RebootDelay, "Delay before each reboot, for log observers.")
	fs.DurationVar(&o.FailureDelay, "boot.failure-delay", o.FailureDelay, "Delay after a critical failure before fail-over.")
}
