package configmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	_ Mapper = Simple(nil)
	_ Getter = Simple(nil)
	_ Setter = Simple(nil)
	_ Mapper = (*Map)(nil)
	_ Getter = Env("")
)

func TestMapGet(t *testing.T) {
	m := New()

	value, found := m.Get("width")
	assert.Equal(t, "", value)
	assert.Equal(t, false, found)

	m.AddGetter(Simple{"width": "5"})
	m.AddGetter(Simple{"width": "7", "raid_type": "raid5"})

	value, found = m.Get("width")
	assert.Equal(t, "5", value)
	assert.Equal(t, true, found)

	value, found = m.Get("raid_type")
	assert.Equal(t, "raid5", value)
	assert.Equal(t, true, found)

	_, found = m.Get("sparing")
	assert.Equal(t, false, found)
}

func TestMapSet(t *testing.T) {
	m := New()
	m1 := Simple{}
	m2 := Simple{"width": "3"}
	m.AddSetter(m1).AddSetter(m2)

	m.Set("width", "6")
	assert.Equal(t, "6", m1["width"])
	assert.Equal(t, "6", m2["width"])
}

func TestSimpleString(t *testing.T) {
	assert.Equal(t, "", Simple(nil).String())
	assert.Equal(t, "a='1',b='it''s'", Simple{"b": "it's", "a": "1"}.String())
}

func TestEnv(t *testing.T) {
	assert.Equal(t, "RAID_RAID_GROUP_JOURNAL_START", Env("raid_group").Key("journal_start"))
	assert.Equal(t, "RAID_LOG_LEVEL", Env("").Key("log-level"))

	t.Setenv("RAID_FAULT_INJECT_MAX_SITES", "12")
	value, found := Env("fault_inject").Get("max_sites")
	assert.True(t, found)
	assert.Equal(t, "12", value)

	_, found = Env("fault_inject").Get("percent")
	assert.False(t, found)
}
