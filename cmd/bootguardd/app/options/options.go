package options

import (
	"github.com/spf13/pflag"

	"github.com/autopeer-io/bootguard/internal/orchestrator"
	"github.com/autopeer-io/bootguard/pkg/app"
	"github.com/autopeer-io/bootguard/pkg/log"
	"github.com/autopeer-io/bootguard/pkg/options"
)

// DaemonOptions aggregates every option group of the bootguardd daemon.
type DaemonOptions struct {
	StoreOptions    *options.StoreOptions    `json:"store" mapstructure:"store"`
	PlatformOptions *options.PlatformOptions `json:"platform" mapstructure:"platform"`
	BootOptions     *options.BootOptions     `json:"boot" mapstructure:"boot"`
	HttpOptions     *options.HttpOptions     `json:"http" mapstructure:"http"`
	Log             *log.Options             `json:"log" mapstructure:"log"`
}

var _ app.CliOptions = (*DaemonOptions)(nil)

// NewDaemonOptions creates a DaemonOptions with defaults.
func NewDaemonOptions() *DaemonOptions {
	return &DaemonOptions{
		StoreOptions:    options.NewStoreOptions(),
		PlatformOptions: options.NewPlatformOptions(),
		BootOptions:     options.NewBootOptions(),
		HttpOptions:     options.NewHttpOptions(),
		Log:             log.NewOptions(),
	}
}

// AddFlags registers all option groups on the command's flag set.
func (o *DaemonOptions) AddFlags(fs *pflag.FlagSet) {
	o.StoreOptions.AddFlags(fs)
	o.PlatformOptions.AddFlags(fs)
	o.BootOptions.AddFlags(fs)
	o.HttpOptions.AddFlags(fs)
	o.Log.AddFlags(fs)
}

// Complete fills derived option values.
func (o *DaemonOptions) Complete() error {
	return nil
}

// Validate checks all option groups.
func (o *DaemonOptions) Validate() error {
	return app.AggregateValidation(
		o.StoreOptions.Validate(),
		o.PlatformOptions.Validate(),
		o.BootOptions.Validate(),
		o.HttpOptions.Validate(),
		o.Log.Validate(),
	)
}

// Config builds the orchestrator configuration from the validated options.
func (o *DaemonOptions) Config() (*orchestrator.Config, error) {
	return &orchestrator.Config{
		StoreOptions:    o.StoreOptions,
		PlatformOptions: o.PlatformOptions,
		BootOptions:     o.BootOptions,
		HttpOptions:     o.HttpOptions,
	}, nil
}
