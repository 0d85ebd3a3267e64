package flags

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionToEnv(t *testing.T) {
	assert.Equal(t, "RAID_FAULT_INJECT_PERCENT", OptionToEnv("fault-inject-percent"))
	assert.Equal(t, "RAID_LOG_LEVEL", OptionToEnv("log-level"))
}

func TestValueFromEnv(t *testing.T) {
	t.Setenv("RAID_WIDTH", "7")
	t.Setenv("RAID_VERBOSE", "true")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var (
		width   int
		verbose bool
		seed    int64
	)
	require.NoError(t, IntVarP(fs, &width, "width", "", 3, "group width"))
	require.NoError(t, BoolVarP(fs, &verbose, "verbose", "v", false, "verbose"))
	require.NoError(t, Int64VarP(fs, &seed, "seed", "", 42, "seed"))

	assert.Equal(t, 7, width)
	assert.Equal(t, "7", fs.Lookup("width").DefValue)
	assert.True(t, verbose)
	assert.Equal(t, int64(42), seed)

	// command line still wins
	require.NoError(t, fs.Parse([]string{"--width", "9"}))
	assert.Equal(t, 9, width)
}

func TestValueFromEnvInvalid(t *testing.T) {
	t.Setenv("RAID_COUNT", "potato")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	var count int
	err := IntVarP(fs, &count, "count", "", 1, "count")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAID_COUNT")
	assert.Equal(t, 1, count)
}

func TestEach(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := Each(
		func() error { calls++; return nil },
		func() error { calls++; return boom },
		func() error { calls++; return nil },
	)
	assert.Equal(t, boom, err)
	assert.Equal(t, 2, calls)
}
