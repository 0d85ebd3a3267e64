package traceflags

import (
	"testing"

	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFlags(t *testing.T) {
	t.Setenv("RAID_USE_JSON_LOG", "true")
	t.Cleanup(func() { trace.Configure(trace.DefaultOptions()) })

	opt := trace.DefaultOptions()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, AddFlags(fs, &opt))
	require.NoError(t, fs.Parse([]string{"--log-level", "DEBUG"}))

	assert.Equal(t, trace.LogLevelDebug, opt.Level)
	assert.True(t, opt.UseJSON)

	Apply(opt)
	assert.Equal(t, opt, trace.GetOptions())
}
