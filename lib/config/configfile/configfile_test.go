package configfile

import (
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
raid_group:
  raid_type: raid6
  width: 6
  parity_positions: [4, 5]
  journal_start: 0x10000
  sparing: false
fault_inject:
  enabled: true
  inject_percent: 25
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(testConfig))
	require.NoError(t, err)
	assert.Equal(t, []string{"fault_inject", "raid_group"}, f.Sections())

	rg := f.Section("raid_group")
	for key, want := range map[string]string{
		"raid_type":        "raid6",
		"width":            "6",
		"parity_positions": "4,5",
		"journal_start":    "65536",
		"sparing":          "false",
	} {
		got, ok := rg.Get(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}

	_, ok := f.Section("missing").Get("width")
	assert.False(t, ok)
}

func TestParseError(t *testing.T) {
	_, err := Parse([]byte("raid_group: [1, 2"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raid.yaml")
	require.NoError(t, ioutil.WriteFile(path, []byte(testConfig), 0600))

	f, err := Load(path)
	require.NoError(t, err)
	got, ok := f.Section("fault_inject").Get("inject_percent")
	assert.True(t, ok)
	assert.Equal(t, "25", got)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestGetterEnvOverride(t *testing.T) {
	f, err := Parse([]byte(testConfig))
	require.NoError(t, err)

	t.Setenv("RAID_RAID_GROUP_WIDTH", "8")
	m := f.Getter("raid_group")
	got, _ := m.Get("width")
	assert.Equal(t, "8", got)
	got, _ = m.Get("raid_type")
	assert.Equal(t, "raid6", got)
}
