// Package harness assembles everything a test run of the integrity
// checks needs from one config file: the raid group, the fault
// injection registry, trace options and metrics.
package harness

import (
	"context"

	"github.com/kmindg/tmp-sub158/lib/config/configfile"
	"github.com/kmindg/tmp-sub158/lib/config/configstruct"
	"github.com/kmindg/tmp-sub158/lib/faultinject"
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/kmindg/tmp-sub158/raid/geometry"
	"github.com/kmindg/tmp-sub158/raid/metrics"
	"github.com/kmindg/tmp-sub158/raid/validate"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// Config file sections
const (
	SectionGroup       = "raid_group"
	SectionFaultInject = "fault_inject"
	SectionTrace       = "trace"
)

// MetricsNamespace prefixes the exported metrics
const MetricsNamespace = "raid"

// Harness is a configured raid group with its fault injection registry
type Harness struct {
	Geometry *geometry.Geometry
	Registry *faultinject.Registry
	Metrics  *metrics.Metrics
	Trace    trace.Options
}

// New makes a Harness from the sections of f
func New(f *configfile.File) (*Harness, error) {
	traceOpt := trace.DefaultOptions()
	if err := configstruct.Set(f.Getter(SectionTrace), &traceOpt); err != nil {
		return nil, errors.Wrap(err, "trace options")
	}
	geo, err := geometry.Load(f.Getter(SectionGroup))
	if err != nil {
		return nil, err
	}
	fiOpt, err := faultinject.LoadOptions(f.Getter(SectionFaultInject))
	if err != nil {
		return nil, err
	}
	reg, err := faultinject.NewRegistry(fiOpt)
	if err != nil {
		return nil, err
	}
	reg.SetSystemObject(geometry.IsSystemObject)
	return &Harness{
		Geometry: geo,
		Registry: reg,
		Metrics:  metrics.NewMetrics(MetricsNamespace),
		Trace:    traceOpt,
	}, nil
}

// Load reads the config file at path and makes a Harness from it
func Load(path string) (*Harness, error) {
	f, err := configfile.Load(path)
	if err != nil {
		return nil, err
	}
	return New(f)
}

// Install applies the trace options, registers the metrics with r and
// makes them the ones the validation engine records to.
func (h *Harness) Install(r prometheus.Registerer) error {
	trace.Configure(h.Trace)
	for _, c := range h.Metrics.Collectors() {
		if err := r.Register(c); err != nil {
			return errors.Wrap(err, "failed to register metrics")
		}
	}
	metrics.DefaultMetrics = h.Metrics
	trace.Infof(h.Geometry, "harness: installed, fault injection enabled=%v", h.Registry.Enabled())
	return nil
}

// Context returns ctx carrying the harness registry
func (h *Harness) Context(ctx context.Context) context.Context {
	return faultinject.WithRegistry(ctx, h.Registry)
}

// Check validates sub against the harness raid group
func (h *Harness) Check(ctx context.Context, sub *validate.SubRequest) validate.Result {
	return validate.Check(h.Context(ctx), h.Geometry, sub)
}

// CheckLostData refuses sub if it touches lost data and the raid group
// has reject_lost_data set
func (h *Harness) CheckLostData(ctx context.Context, sub *validate.SubRequest) error {
	return validate.CheckLostData(h.Context(ctx), h.Geometry, sub)
}

// CheckData verifies the patterns of a finished sub if the raid group
// has data_checking set
func (h *Harness) CheckData(ctx context.Context, sub *validate.SubRequest) error {
	return validate.CheckData(h.Context(ctx), h.Geometry, sub)
}

// Report traces the registry statistics and resets the registry ready
// for the next run
func (h *Harness) Report() faultinject.Stats {
	stats := h.Registry.Stats()
	trace.Logf(h.Geometry, "harness: %d sites seen, %d evaluations, %d forced, %d forced at random, %d excluded, %d allocation failures",
		stats.SitesSeen, stats.Evaluations, stats.Injected, stats.RandomInjected, stats.Excluded, stats.AllocFailures)
	if stats.AllocFailures > 0 {
		trace.Warningf(h.Geometry, "harness: %d sites couldn't be recorded, raise max_sites", stats.AllocFailures)
	}
	for _, site := range h.Registry.Sites() {
		trace.Debugf(h.Geometry, "harness: site %v", site)
	}
	h.Registry.Reset()
	return stats
}
