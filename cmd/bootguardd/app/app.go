package app

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/autopeer-io/bootguard/cmd/bootguardd/app/options"
	"github.com/autopeer-io/bootguard/pkg/app"
	"github.com/autopeer-io/bootguard/pkg/log"
)

const (
	commandName = "bootguardd"
	commandDesc = `The Bootguard daemon runs first in the device boot sequence. It validates
the running firmware image against the persisted boot counter, fails over to
the other slot or the factory image when the image keeps crashing, and
confirms the image once startup completes.`
)

// NewApp assembles the bootguardd application.
func NewApp() *app.App {
	opts := options.NewDaemonOptions()
	application := app.NewApp(
		commandName,
		"Launch the boot validation daemon",
		app.WithDescription(commandDesc),
		app.WithOptions(opts),
		app.WithRunFunc(run(opts)),
	)
	return application
}

func run(opts *options.DaemonOptions) app.RunFunc {
	return func() error {
		log.Init(opts.Log)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := opts.Config()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		orch, err := cfg.NewOrchestrator()
		if err != nil {
			return fmt.Errorf("failed to create orchestrator: %w", err)
		}

		return orch.Run(ctx)
	}
}
