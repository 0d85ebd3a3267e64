package faultinject

import (
	"context"

	"github.com/kmindg/tmp-sub158/lib/config/configmap"
	"github.com/kmindg/tmp-sub158/lib/config/configstruct"
	"github.com/kmindg/tmp-sub158/lib/config/flags"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// Options configure a Registry
type Options struct {
	Enabled         bool  `config:"enabled"`
	InjectPercent   int   `config:"inject_percent"`
	InjectAllGroups bool  `config:"inject_all_groups"`
	MaxSites        int   `config:"max_sites"`
	Seed            int64 `config:"seed"`
}

// LoadOptions reads Options from m
func LoadOptions(m configmap.Getter) (opt Options, err error) {
	err = configstruct.Set(m, &opt)
	if err != nil {
		return opt, errors.Wrap(err, "fault injection options")
	}
	return opt, nil
}

// AddFlags adds the harness control flags to flagSet, storing the
// results in opt
func AddFlags(flagSet *pflag.FlagSet, opt *Options) error {
	return flags.Each(
		func() error {
			return flags.BoolVarP(flagSet, &opt.Enabled, "fault-inject", "", opt.Enabled, "Force each validation check to fail the first time it is reached")
		},
		func() error {
			return flags.IntVarP(flagSet, &opt.InjectPercent, "fault-inject-percent", "", opt.InjectPercent, "Force checks to fail at random with this percentage")
		},
		func() error {
			return flags.BoolVarP(flagSet, &opt.InjectAllGroups, "fault-inject-all-groups", "", opt.InjectAllGroups, "Inject into system raid groups as well as user ones")
		},
		func() error {
			return flags.IntVarP(flagSet, &opt.MaxSites, "fault-inject-max-sites", "", opt.MaxSites, "Maximum number of sites to record (0 is unlimited)")
		},
		func() error {
			return flags.Int64VarP(flagSet, &opt.Seed, "fault-inject-seed", "", opt.Seed, "Seed for random injection (0 picks one)")
		},
	)
}

type contextKey struct{}

// WithRegistry returns a copy of ctx carrying r
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, contextKey{}, r)
}

// FromContext returns the Registry carried by ctx or nil, which never
// injects.
func FromContext(ctx context.Context) *Registry {
	if ctx == nil {
		return nil
	}
	r, _ := ctx.Value(contextKey{}).(*Registry)
	return r
}
