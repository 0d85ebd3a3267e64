// Package traceflags implements command line flags to set up trace
// output
package traceflags

import (
	"github.com/kmindg/tmp-sub158/lib/config/flags"
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/spf13/pflag"
)

// AddFlags adds the trace flags to the flagSet, storing the results in
// opt.  Call Apply once the flags have been parsed.
func AddFlags(flagSet *pflag.FlagSet, opt *trace.Options) error {
	return flags.Each(
		func() error {
			return flags.FVarP(flagSet, &opt.Level, "log-level", "", "Trace level DEBUG|INFO|NOTICE|WARNING|ERROR|CRITICAL")
		},
		func() error {
			return flags.BoolVarP(flagSet, &opt.UseJSON, "use-json-log", "", opt.UseJSON, "Use json trace format")
		},
	)
}

// Apply installs opt as the trace configuration
func Apply(opt trace.Options) {
	trace.Configure(opt)
	trace.Debugf(nil, "Trace level %v, json %v", opt.Level, opt.UseJSON)
}
