// Package app provides the cobra/viper command frame shared by the project's
// binaries: grouped flags from option structs, optional config-file merge,
// and a version flag.
package app

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/autopeer-io/bootguard/pkg/version"
)

// RunFunc is the application's entry point, invoked after options are
// complete and validated.
type RunFunc func() error

// CliOptions is the contract an application's option aggregate implements.
type CliOptions interface {
	// AddFlags registers all flags on the command's flag set.
	AddFlags(fs *pflag.FlagSet)

	// Complete fills derived fields after flags and config are bound.
	Complete() error

	// Validate checks the final option values.
	Validate() error
}

// App assembles a runnable command-line application.
type App struct {
	name        string
	short       string
	description string
	options     CliOptions
	run         RunFunc
}

// Option configures an App.
type Option func(*App)

// WithDescription sets the long command description.
func WithDescription(desc string) Option {
	return func(a *App) { a.description = desc }
}

// WithOptions attaches the application's option aggregate.
func WithOptions(opts CliOptions) Option {
	return func(a *App) { a.options = opts }
}

// WithRunFunc sets the application's entry point.
func WithRunFunc(run RunFunc) Option {
	return func(a *App) { a.run = run }
}

// NewApp creates an App with the given name and short description.
func NewApp(name, short string, opts ...Option) *App {
	a := &App{
		name:  name,
		short: short,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Run parses the command line and executes the application. It exits the
// process with a non-zero status on error.
func (a *App) Run() {
	cmd := a.buildCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (a *App) buildCommand() *cobra.Command {
	var configFile string
	var showVersion bool

	cmd := &cobra.Command{
		Use:           a.name,
		Short:         a.short,
		Long:          a.description,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Println(version.Get().GitVersion)
				return nil
			}

			if configFile != "" {
				if err := a.mergeConfig(cmd.Flags(), configFile); err != nil {
					return err
				}
			}

			if a.options != nil {
				if err := a.options.Complete(); err != nil {
					return err
				}
				if err := a.options.Validate(); err != nil {
					return err
				}
			}

			if a.run != nil {
				return a.run()
			}
			return nil
		},
	}

	if a.options != nil {
		a.options.AddFlags(cmd.Flags())
	}
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to a YAML configuration file.")
	cmd.Flags().BoolVar(&showVersion, "version", false, "Print the version and exit.")

	return cmd
}

// mergeConfig loads the YAML config file through viper and applies its values
// to any flag the user did not set explicitly, so the precedence is
// flags > config file > defaults.
func (a *App) mergeConfig(fs *pflag.FlagSet, path string) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(strings.ToUpper(strings.ReplaceAll(a.name, "-", "_")))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var errs *multierror.Error
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Changed || !v.IsSet(f.Name) {
			return
		}
		if err := fs.Set(f.Name, v.GetString(f.Name)); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("config key %s: %w", f.Name, err))
		}
	})
	return errs.ErrorOrNil()
}

// AggregateValidation folds per-group option validation errors into one
// error.
func AggregateValidation(groups ...[]error) error {
	var errs *multierror.Error
	for _, group := range groups {
		for _, err := range group {
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}
