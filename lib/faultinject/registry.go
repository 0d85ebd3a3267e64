// Package faultinject forces defensive checks down their failing branch
// so test suites can exercise every "impossible" path.
//
// Each check is identified by its call Site.  While injection is
// enabled the first evaluation of a site returns true whatever the
// real predicate was; later evaluations of the same site return the
// predicate unchanged until the registry is reset.  In random mode the
// registry is bypassed and every evaluation is forced true with a
// configured probability.
package faultinject

import (
	"container/list"
	"sync"

	"github.com/kmindg/tmp-sub158/lib/random"
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/pkg/errors"
)

// ErrInsufficientResources is returned when a new site record can't be
// created.
var ErrInsufficientResources = errors.New("fault injection: insufficient resources for site record")

var errNilRegistry = errors.New("fault injection: no registry")

// Scope selects which raid groups an evaluation may inject into
type Scope byte

// Scopes
const (
	// ScopeGlobal injects regardless of the owning object
	ScopeGlobal Scope = iota
	// ScopeExcludingSystemObjects never injects into system objects
	// unless injection on all groups has been requested
	ScopeExcludingSystemObjects
)

// String returns the scope name
func (s Scope) String() string {
	switch s {
	case ScopeGlobal:
		return "global"
	case ScopeExcludingSystemObjects:
		return "user-only"
	}
	return "unknown"
}

// Status is the outcome code written by EvaluateAndSetStatus
type Status byte

// Status values
const (
	StatusOK Status = iota
	StatusGenericFailure
	StatusInsufficientResources
	StatusDataLost
)

var statusToString = []string{
	StatusOK:                    "ok",
	StatusGenericFailure:        "generic failure",
	StatusInsufficientResources: "insufficient resources",
	StatusDataLost:              "data lost",
}

// String returns the status name
func (s Status) String() string {
	if int(s) >= len(statusToString) {
		return "unknown status"
	}
	return statusToString[s]
}

// Stats describe what the registry has done since the last reset
type Stats struct {
	SitesSeen      int    // distinct sites in the registry
	Evaluations    uint64 // calls made while enabled
	Injected       uint64 // forced true by first sight of a site
	RandomInjected uint64 // forced true by a random trial
	Excluded       uint64 // skipped because the object was out of scope
	AllocFailures  uint64 // site records which couldn't be created
}

// record is the registry entry for a site
type record struct {
	site      Site
	firstSeen bool
}

// Registry holds the sites seen so far and the injection controls.
//
// A nil *Registry never injects.  Its controls do nothing and report
// an empty registry, apart from SetRandom and RegisterOrCheck which
// return an error.
type Registry struct {
	mu        sync.Mutex
	sites     *list.List // of *record in order of first sight
	index     map[siteKey]*list.Element
	enabled   bool
	percent   int
	allGroups bool
	maxSites  int
	isSystem  func(objectID uint32) bool
	rand      *random.Rand
	stats     Stats
}

// NewRegistry makes a registry configured from opt
func NewRegistry(opt Options) (*Registry, error) {
	if opt.InjectPercent < 0 || opt.InjectPercent > 100 {
		return nil, errors.Errorf("inject percent %d out of range 0..100", opt.InjectPercent)
	}
	if opt.MaxSites < 0 {
		return nil, errors.Errorf("max sites %d must not be negative", opt.MaxSites)
	}
	rng, err := random.New(opt.Seed)
	if err != nil {
		return nil, errors.Wrap(err, "fault injection")
	}
	r := &Registry{
		sites:     list.New(),
		index:     make(map[siteKey]*list.Element),
		enabled:   opt.Enabled,
		percent:   opt.InjectPercent,
		allGroups: opt.InjectAllGroups,
		maxSites:  opt.MaxSites,
		rand:      rng,
	}
	trace.Debugf(nil, "fault injection: enabled=%v percent=%d all groups=%v seed=%d",
		r.enabled, r.percent, r.allGroups, rng.Seed())
	return r, nil
}

// SetSystemObject installs the predicate identifying system objects
// for ScopeExcludingSystemObjects.
func (r *Registry) SetSystemObject(isSystem func(objectID uint32) bool) {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.isSystem = isSystem
	r.mu.Unlock()
}

// Enable turns on injection
func (r *Registry) Enable() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.enabled = true
	r.mu.Unlock()
	trace.Infof(nil, "fault injection: enabled")
}

// Disable turns off injection.  Sites already seen stay in the
// registry.
func (r *Registry) Disable() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.enabled = false
	r.mu.Unlock()
	trace.Infof(nil, "fault injection: disabled")
}

// Enabled reports whether injection is on
func (r *Registry) Enabled() bool {
	if r == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.enabled
}

// SetRandom enables injection with the given percentage.  A percent of
// 0 returns to exactly-once mode.  allGroups allows injection into
// system objects too.
func (r *Registry) SetRandom(percent int, allGroups bool) error {
	if percent < 0 || percent > 100 {
		return errors.Errorf("inject percent %d out of range 0..100", percent)
	}
	if r == nil {
		return errNilRegistry
	}
	r.mu.Lock()
	r.enabled = true
	r.percent = percent
	r.allGroups = allGroups
	r.mu.Unlock()
	trace.Infof(nil, "fault injection: random errors %d%% all groups=%v", percent, allGroups)
	return nil
}

// RegisterOrCheck looks site up in the registry, adding it if absent.
//
// It returns true the first time a site is seen and false after that.
// If the record can't be created it returns ErrInsufficientResources.
func (r *Registry) RegisterOrCheck(site Site) (first bool, err error) {
	if r == nil {
		return false, errNilRegistry
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registerOrCheck(site)
}

// registerOrCheck must be called with mu held
func (r *Registry) registerOrCheck(site Site) (first bool, err error) {
	key := site.key()
	if el, ok := r.index[key]; ok {
		el.Value.(*record).firstSeen = false
		return false, nil
	}
	if r.maxSites > 0 && r.sites.Len() >= r.maxSites {
		r.stats.AllocFailures++
		return false, ErrInsufficientResources
	}
	r.index[key] = r.sites.PushBack(&record{site: site, firstSeen: true})
	return true, nil
}

// decide works out whether to force the failing branch.  It must be
// called with mu held.
func (r *Registry) decide(site Site, scope Scope, objectID uint32) (inject bool, err error) {
	if !r.enabled {
		return false, nil
	}
	r.stats.Evaluations++
	if scope == ScopeExcludingSystemObjects && !r.allGroups && r.isSystem != nil && r.isSystem(objectID) {
		r.stats.Excluded++
		return false, nil
	}
	if r.percent > 0 {
		if r.rand.Percent(r.percent) {
			r.stats.RandomInjected++
			return true, nil
		}
		return false, nil
	}
	first, err := r.registerOrCheck(site)
	if err != nil {
		return false, err
	}
	if first {
		r.stats.Injected++
	}
	return first, nil
}

func (r *Registry) check(expr bool, site Site, scope Scope, objectID uint32) (bool, error) {
	if r == nil {
		return expr, nil
	}
	r.mu.Lock()
	inject, err := r.decide(site, scope, objectID)
	r.mu.Unlock()
	if err != nil {
		trace.Errorf(site, "fault injection: %v", err)
		return expr, err
	}
	if inject {
		trace.Debugf(site, "fault injection: forcing failure (predicate was %v)", expr)
		return true, nil
	}
	return expr, nil
}

// Evaluate returns expr unless injection decides to force it true.
func (r *Registry) Evaluate(expr bool, site Site) bool {
	result, _ := r.check(expr, site, ScopeGlobal, 0)
	return result
}

// Check is Evaluate restricted by scope.  objectID identifies the raid
// group the check is being made for.
func (r *Registry) Check(expr bool, site Site, scope Scope, objectID uint32) bool {
	result, _ := r.check(expr, site, scope, objectID)
	return result
}

// CheckErr is Check which also returns ErrInsufficientResources if a
// record for site couldn't be created.  The result is then expr.
func (r *Registry) CheckErr(expr bool, site Site, scope Scope, objectID uint32) (bool, error) {
	return r.check(expr, site, scope, objectID)
}

// EvaluateAndSetStatus is like Evaluate but when the failing branch
// is forced it writes fallback through status so the caller's error
// code matches the forced failure.  If a site record can't be created
// status is set to StatusInsufficientResources.
func (r *Registry) EvaluateAndSetStatus(expr bool, site Site, fallback Status, status *Status) bool {
	result, err := r.check(expr, site, ScopeGlobal, 0)
	if err != nil {
		*status = StatusInsufficientResources
		return result
	}
	if result && !expr {
		*status = fallback
	}
	return result
}

// SitesSeen returns the number of distinct sites in the registry
func (r *Registry) SitesSeen() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sites.Len()
}

// Sites returns the sites seen in order of first sight
func (r *Registry) Sites() []Site {
	if r == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Site, 0, r.sites.Len())
	for el := r.sites.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*record).site)
	}
	return out
}

// Stats returns a snapshot of the registry statistics
func (r *Registry) Stats() Stats {
	if r == nil {
		return Stats{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := r.stats
	stats.SitesSeen = r.sites.Len()
	return stats
}

// ResetStats zeroes the counters but keeps the sites seen
func (r *Registry) ResetStats() {
	if r == nil {
		return
	}
	r.mu.Lock()
	r.stats = Stats{}
	r.mu.Unlock()
}

// Reset releases every site record, zeroes the statistics and
// disables injection.
func (r *Registry) Reset() {
	if r == nil {
		return
	}
	r.mu.Lock()
	n := r.sites.Len()
	r.sites.Init()
	r.index = make(map[siteKey]*list.Element)
	r.stats = Stats{}
	r.enabled = false
	r.percent = 0
	r.mu.Unlock()
	trace.Infof(nil, "fault injection: reset, released %d sites", n)
}
