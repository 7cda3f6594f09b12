// Package orchestrator wires the boot sequence together: validate first,
// bring up the device services, then confirm the boot. Any unrecoverable
// initialization error is routed through the validator's critical-failure
// path so a broken image rolls back instead of wedging the device.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/autopeer-io/bootguard/internal/bootguard"
	"github.com/autopeer-io/bootguard/internal/debugserver"
	"github.com/autopeer-io/bootguard/internal/platform"
	"github.com/autopeer-io/bootguard/pkg/log"
	"github.com/autopeer-io/bootguard/pkg/nvs"
	"github.com/autopeer-io/bootguard/pkg/options"
	"github.com/autopeer-io/bootguard/pkg/version"
)

// Config carries the fully validated daemon configuration.
type Config struct {
	StoreOptions    *options.StoreOptions
	PlatformOptions *options.PlatformOptions
	BootOptions     *options.BootOptions
	HttpOptions     *options.HttpOptions
}

// Orchestrator owns the boot sequence of the device application.
type Orchestrator struct {
	cfg *Config

	store     *nvs.Store
	parts     platform.PartitionService
	validator *bootguard.Validator
}

// NewOrchestrator opens the platform collaborators and builds the validator.
func (cfg *Config) NewOrchestrator() (*Orchestrator, error) {
	store, err := nvs.OpenStore(cfg.StoreOptions.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open persistent store: %w", err)
	}

	var rebooter platform.Rebooter = &platform.SystemRebooter{Log: log.Std()}
	if cfg.PlatformOptions.DryRun {
		rebooter = &dryRunRebooter{}
	}

	parts, err := platform.OpenBootEnv(cfg.PlatformOptions.BootEnvDir, rebooter, log.Std())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to open boot environment: %w", err)
	}

	validator, err := bootguard.New(bootguard.Config{
		Store:            store,
		Partitions:       parts,
		Rebooter:         rebooter,
		Logger:           log.Std(),
		MaxBootFailures:  cfg.BootOptions.MaxBootFailures,
		MaxBootLoopCount: cfg.BootOptions.MaxBootLoopCount,
		RebootDelay:      cfg.BootOptions.RebootDelay,
		FailureDelay:     cfg.BootOptions.FailureDelay,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Orchestrator{
		cfg:       cfg,
		store:     store,
		parts:     parts,
		validator: validator,
	}, nil
}

// Run executes the boot sequence and then serves until ctx is cancelled.
// The validator goes first, before anything else can fail; the success
// confirmation goes last, after everything critical is up.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer o.store.Close()

	if !o.validator.Begin() {
		// Only reachable when a fail-over did not reboot (test rigs, dry
		// run); on the device Begin either returns true or never returns.
		return fmt.Errorf("boot validation did not allow startup")
	}

	o.validator.StorePartitionVersion(version.Get().GitVersion)

	server := debugserver.NewServer(o.cfg.HttpOptions, o.validator, o.parts)
	started := make(chan error, 1)
	go func() {
		started <- server.Start(ctx)
	}()

	// Reaching this point means every critical init step succeeded; the
	// image has proven itself.
	o.validator.MarkBootSuccessful()
	log.Info("Boot sequence complete", "bootCount", o.validator.BootCount(), "state", o.validator.State())

	err := <-started
	if err != nil {
		o.validator.OnCriticalFailure("DebugServer", err.Error())
		return err
	}
	return nil
}

// dryRunRebooter logs instead of rebooting, for bench setups.
type dryRunRebooter struct{}

func (*dryRunRebooter) Reboot() {
	log.Warn("Dry run: reboot suppressed")
}
