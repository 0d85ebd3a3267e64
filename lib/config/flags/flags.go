// Package flags contains enhanced versions of spf13/pflag flag
// routines which will read from the environment also.
package flags

import (
	"os"
	"strings"

	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
)

// EnvPrefix is put in front of every environment variable name
const EnvPrefix = "RAID_"

// OptionToEnv converts an option name, eg "fault-inject-percent" into
// an environment name "RAID_FAULT_INJECT_PERCENT"
func OptionToEnv(name string) string {
	return EnvPrefix + strings.ToUpper(strings.Replace(name, "-", "_", -1))
}

// setValueFromEnv constructs a name from the flag passed in and
// sets the value and default from the environment if possible.
// The value may be overridden when the command line is parsed.
func setValueFromEnv(flags *pflag.FlagSet, name string) error {
	envKey := OptionToEnv(name)
	envValue, found := os.LookupEnv(envKey)
	if !found {
		return nil
	}
	flag := flags.Lookup(name)
	if flag == nil {
		return errors.Errorf("couldn't find flag --%q", name)
	}
	err := flags.Set(name, envValue)
	if err != nil {
		return errors.Wrapf(err, "invalid value when setting --%s from environment variable %s=%q", name, envKey, envValue)
	}
	trace.Debugf(nil, "Setting --%s %q from environment variable %s=%q", name, flag.Value, envKey, envValue)
	flag.DefValue = envValue
	return nil
}

// BoolVarP defines a flag which can be set by an environment variable
//
// It is a thin wrapper around pflag.BoolVarP
func BoolVarP(flags *pflag.FlagSet, p *bool, name, shorthand string, value bool, usage string) error {
	flags.BoolVarP(p, name, shorthand, value, usage)
	return setValueFromEnv(flags, name)
}

// IntVarP defines a flag which can be set by an environment variable
//
// It is a thin wrapper around pflag.IntVarP
func IntVarP(flags *pflag.FlagSet, p *int, name, shorthand string, value int, usage string) error {
	flags.IntVarP(p, name, shorthand, value, usage)
	return setValueFromEnv(flags, name)
}

// Int64VarP defines a flag which can be set by an environment variable
//
// It is a thin wrapper around pflag.Int64VarP
func Int64VarP(flags *pflag.FlagSet, p *int64, name, shorthand string, value int64, usage string) error {
	flags.Int64VarP(p, name, shorthand, value, usage)
	return setValueFromEnv(flags, name)
}

// FVarP defines a flag which can be set by an environment variable
//
// It is a thin wrapper around pflag.VarP
func FVarP(flags *pflag.FlagSet, value pflag.Value, name, shorthand, usage string) error {
	flags.VarP(value, name, shorthand, usage)
	return setValueFromEnv(flags, name)
}

// Each runs the flag definitions in order and returns the first error.
func Each(defs ...func() error) error {
	for _, def := range defs {
		if err := def(); err != nil {
			return err
		}
	}
	return nil
}
