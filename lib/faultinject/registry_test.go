package faultinject

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/kmindg/tmp-sub158/lib/config/configmap"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRegistry(t *testing.T, opt Options) *Registry {
	if opt.Seed == 0 {
		opt.Seed = 1
	}
	r, err := NewRegistry(opt)
	require.NoError(t, err)
	return r
}

func site(line int) Site {
	return Site{File: "check.go", Line: line, Function: "example.com/raid/validate.checkParity"}
}

func TestHere(t *testing.T) {
	a := Here()
	b := Here()
	assert.Equal(t, "registry_test.go", a.File)
	assert.Equal(t, a.Line+1, b.Line)
	assert.Equal(t, a.Function, b.Function)
	assert.Contains(t, a.Function, "TestHere")
	assert.NotEqual(t, a.key(), b.key())
}

func TestSiteString(t *testing.T) {
	assert.Equal(t, "check.go:12 validate.checkParity", site(12).String())
}

func TestRegisterOrCheckIdempotent(t *testing.T) {
	r := newRegistry(t, Options{})
	for _, line := range []int{10, 20, 30} {
		first, err := r.RegisterOrCheck(site(line))
		require.NoError(t, err)
		assert.True(t, first, line)
		for i := 0; i < 5; i++ {
			first, err = r.RegisterOrCheck(site(line))
			require.NoError(t, err)
			assert.False(t, first, line)
		}
	}
	assert.Equal(t, 3, r.SitesSeen())

	// same line in a different function is a different site
	other := site(10)
	other.Function = "example.com/raid/validate.checkData"
	first, err := r.RegisterOrCheck(other)
	require.NoError(t, err)
	assert.True(t, first)

	// the file doesn't take part in the key
	renamed := site(20)
	renamed.File = "moved.go"
	first, err = r.RegisterOrCheck(renamed)
	require.NoError(t, err)
	assert.False(t, first)

	r.Reset()
	assert.Equal(t, 0, r.SitesSeen())
	first, err = r.RegisterOrCheck(site(10))
	require.NoError(t, err)
	assert.True(t, first)
}

func TestEvaluateDisabled(t *testing.T) {
	r := newRegistry(t, Options{})
	assert.False(t, r.Evaluate(false, site(1)))
	assert.True(t, r.Evaluate(true, site(1)))
	assert.Equal(t, 0, r.SitesSeen())
	assert.Equal(t, uint64(0), r.Stats().Evaluations)
}

func TestEvaluateFirstTimeOnly(t *testing.T) {
	r := newRegistry(t, Options{Enabled: true})

	assert.True(t, r.Evaluate(false, site(1)), "first sight forced")
	assert.False(t, r.Evaluate(false, site(1)), "then real predicate")
	assert.True(t, r.Evaluate(true, site(1)))
	assert.True(t, r.Evaluate(false, site(2)), "new site forced")

	stats := r.Stats()
	assert.Equal(t, 2, stats.SitesSeen)
	assert.Equal(t, uint64(4), stats.Evaluations)
	assert.Equal(t, uint64(2), stats.Injected)

	assert.Equal(t, []Site{site(1), site(2)}, r.Sites())
}

func TestEvaluateAndSetStatus(t *testing.T) {
	r := newRegistry(t, Options{Enabled: true})

	status := StatusOK
	assert.True(t, r.EvaluateAndSetStatus(false, site(1), StatusGenericFailure, &status))
	assert.Equal(t, StatusGenericFailure, status)

	status = StatusOK
	assert.False(t, r.EvaluateAndSetStatus(false, site(1), StatusGenericFailure, &status))
	assert.Equal(t, StatusOK, status)

	// a real failure leaves the caller's status alone
	assert.True(t, r.EvaluateAndSetStatus(true, site(1), StatusGenericFailure, &status))
	assert.Equal(t, StatusOK, status)
}

func TestMaxSites(t *testing.T) {
	r := newRegistry(t, Options{Enabled: true, MaxSites: 2})

	assert.True(t, r.Evaluate(false, site(1)))
	assert.True(t, r.Evaluate(false, site(2)))

	_, err := r.RegisterOrCheck(site(3))
	assert.Equal(t, ErrInsufficientResources, err)

	status := StatusOK
	assert.False(t, r.EvaluateAndSetStatus(false, site(4), StatusGenericFailure, &status))
	assert.Equal(t, StatusInsufficientResources, status)
	assert.True(t, r.Evaluate(true, site(5)), "predicate passes through")

	failed, err := r.CheckErr(false, site(6), ScopeExcludingSystemObjects, 0x200)
	assert.Equal(t, ErrInsufficientResources, err)
	assert.False(t, failed)

	// sites already recorded still answer
	first, err := r.RegisterOrCheck(site(1))
	require.NoError(t, err)
	assert.False(t, first)
	failed, err = r.CheckErr(false, site(2), ScopeExcludingSystemObjects, 0x200)
	require.NoError(t, err)
	assert.False(t, failed)
	assert.Equal(t, uint64(4), r.Stats().AllocFailures)
}

func TestScope(t *testing.T) {
	r := newRegistry(t, Options{Enabled: true})
	r.SetSystemObject(func(id uint32) bool { return id < 0x100 })

	assert.False(t, r.Check(false, site(1), ScopeExcludingSystemObjects, 0x10), "system object excluded")
	assert.True(t, r.Check(false, site(1), ScopeExcludingSystemObjects, 0x200), "user object injected")
	assert.True(t, r.Check(false, site(2), ScopeGlobal, 0x10), "global ignores object")
	assert.Equal(t, uint64(1), r.Stats().Excluded)

	require.NoError(t, r.SetRandom(100, true))
	assert.True(t, r.Check(false, site(3), ScopeExcludingSystemObjects, 0x10), "all groups")
}

func TestRandomRate(t *testing.T) {
	r := newRegistry(t, Options{Seed: 12345})
	require.NoError(t, r.SetRandom(25, false))

	const trials = 10000
	for _, expr := range []bool{false, true} {
		r.ResetStats()
		forced := 0
		for i := 0; i < trials; i++ {
			got := r.Evaluate(expr, site(7))
			if !expr && got {
				forced++
			}
		}
		injected := int(r.Stats().RandomInjected)
		// mean 2500, standard deviation ~43: allow ~6 sigma
		assert.InDelta(t, 2500, injected, 260, "expr=%v", expr)
		if !expr {
			assert.Equal(t, injected, forced)
		}
	}
	assert.Equal(t, 0, r.SitesSeen(), "random mode bypasses the registry")
}

func TestSetRandomRange(t *testing.T) {
	r := newRegistry(t, Options{})
	assert.Error(t, r.SetRandom(101, false))
	assert.Error(t, r.SetRandom(-1, false))
	assert.False(t, r.Enabled())

	_, err := NewRegistry(Options{InjectPercent: 200})
	assert.Error(t, err)
	_, err = NewRegistry(Options{MaxSites: -1})
	assert.Error(t, err)
}

func TestResetDisables(t *testing.T) {
	r := newRegistry(t, Options{Enabled: true})
	assert.True(t, r.Evaluate(false, site(1)))
	r.Reset()
	assert.False(t, r.Enabled())
	assert.False(t, r.Evaluate(false, site(1)))
	assert.Equal(t, Stats{}, r.Stats())

	r.Enable()
	assert.True(t, r.Evaluate(false, site(1)), "no leakage across reset")
	r.Disable()
	assert.False(t, r.Evaluate(false, site(2)))
	assert.Equal(t, 1, r.SitesSeen())
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	assert.False(t, r.Enabled())
	assert.False(t, r.Evaluate(false, site(1)))
	assert.True(t, r.Check(true, site(1), ScopeGlobal, 0))
	failed, err := r.CheckErr(false, site(1), ScopeGlobal, 0)
	assert.NoError(t, err)
	assert.False(t, failed)

	r.Enable()
	r.Disable()
	r.SetSystemObject(func(uint32) bool { return true })
	r.ResetStats()
	r.Reset()
	assert.Equal(t, 0, r.SitesSeen())
	assert.Nil(t, r.Sites())
	assert.Equal(t, Stats{}, r.Stats())
	assert.Error(t, r.SetRandom(10, false))
	_, err = r.RegisterOrCheck(site(1))
	assert.Error(t, err)
}

func TestConcurrentFirstSight(t *testing.T) {
	r := newRegistry(t, Options{Enabled: true})
	const workers = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		forced = map[int]int{}
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for line := 0; line < 50; line++ {
				if r.Evaluate(false, site(line)) {
					mu.Lock()
					forced[line]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, r.SitesSeen())
	for line := 0; line < 50; line++ {
		assert.Equal(t, 1, forced[line], "line %d", line)
	}
}

func TestContext(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))
	r := newRegistry(t, Options{})
	ctx := WithRegistry(context.Background(), r)
	assert.Equal(t, r, FromContext(ctx))
}

func TestLoadOptions(t *testing.T) {
	opt, err := LoadOptions(configmap.Simple{
		"enabled":           "true",
		"inject_percent":    "25",
		"inject_all_groups": "false",
		"max_sites":         "64",
		"seed":              "99",
	})
	require.NoError(t, err)
	assert.Equal(t, Options{Enabled: true, InjectPercent: 25, MaxSites: 64, Seed: 99}, opt)

	_, err = LoadOptions(configmap.Simple{"max_sites": "lots"})
	assert.Error(t, err)
}

func TestAddFlags(t *testing.T) {
	t.Setenv("RAID_FAULT_INJECT_SEED", "5")
	var opt Options
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	require.NoError(t, AddFlags(fs, &opt))
	require.NoError(t, fs.Parse([]string{"--fault-inject", "--fault-inject-percent", "10"}))
	assert.Equal(t, Options{Enabled: true, InjectPercent: 10, Seed: 5}, opt)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "generic failure", StatusGenericFailure.String())
	assert.Equal(t, "unknown status", Status(99).String())
	assert.Equal(t, "user-only", ScopeExcludingSystemObjects.String())
	assert.Equal(t, "global", fmt.Sprint(ScopeGlobal))
}
