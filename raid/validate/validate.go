// Package validate checks the stamps and checksums of the sectors a
// sub-request has written.
//
// Which rules apply depends on the kind of raid group.  Groups with no
// spare redundancy (raid 0 and the mirrors) and raid 6 parity only log
// what they find.  The other parity groups fail the sub-request on the
// first broken rule.  Each rule which can fail a request is evaluated
// through the fault injection registry carried by the context, so a
// test can force every failure branch without building real
// corruption.
package validate

import (
	"context"
	"fmt"

	"github.com/kmindg/tmp-sub158/lib/errcount"
	"github.com/kmindg/tmp-sub158/lib/faultinject"
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/kmindg/tmp-sub158/raid/geometry"
	"github.com/kmindg/tmp-sub158/raid/metrics"
	"github.com/kmindg/tmp-sub158/raid/pattern"
	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/pkg/errors"
)

// checker holds the state of one validation pass
type checker struct {
	geo      *geometry.Geometry
	sub      *SubRequest
	reg      *faultinject.Registry
	layout   pattern.Layout
	findings *errcount.ErrCount
	metrics  *metrics.Metrics
	// set when the registry couldn't record a site
	resources error
}

func newChecker(ctx context.Context, geo *geometry.Geometry, sub *SubRequest) *checker {
	return &checker{
		geo:      geo,
		sub:      sub,
		reg:      faultinject.FromContext(ctx),
		layout:   pattern.NewLayout(geo.PatternHeaderBytes),
		findings: errcount.New(),
		metrics:  metrics.DefaultMetrics,
	}
}

// String identifies the pass in traces
func (c *checker) String() string {
	return fmt.Sprintf("%v %v", c.geo, c.sub)
}

// fail returns true if the rule is broken or injection forces it to be.
//
// It also returns true if the registry couldn't record site so the
// pass stops there and hard reports insufficient resources.
func (c *checker) fail(expr bool, site faultinject.Site) bool {
	result, err := c.reg.CheckErr(expr, site, faultinject.ScopeExcludingSystemObjects, c.geo.ObjectID)
	if err != nil {
		c.resources = err
		return true
	}
	if result && !expr {
		c.metrics.Injection(site.Func())
	}
	return result
}

func (c *checker) inconsistency(kind Kind, lba uint64, s *sector.Sector) *InconsistencyError {
	return &InconsistencyError{
		Kind:       kind,
		LBA:        lba,
		Position:   c.sub.Position,
		WriteStamp: s.WriteStamp,
		TimeStamp:  s.TimeStamp,
		LBAStamp:   s.LBAStamp,
	}
}

// logInconsistency traces err with its stamps as structured values.
// The raid group only appears in JSON records.  Critical records are
// always written.
func logInconsistency(level trace.LogLevel, o interface{}, geo *geometry.Geometry, err *InconsistencyError) {
	printf := trace.LogLevelPrintf
	if level <= trace.LogLevelCritical {
		printf = trace.LogPrintf
	}
	var cause string
	if err.Err != nil {
		cause = ": " + err.Err.Error()
	}
	printf(level, o, "validate: %v at lba %v pos %v (ws %v ts %v lba stamp %v)%s%v%v",
		trace.LogValue("kind", err.Kind.String()),
		trace.LogValue("lba", fmt.Sprintf("0x%x", err.LBA)),
		trace.LogValue("position", err.Position),
		trace.LogValue("write_stamp", fmt.Sprintf("0x%x", err.WriteStamp)),
		trace.LogValue("time_stamp", fmt.Sprintf("0x%x", err.TimeStamp)),
		trace.LogValue("lba_stamp", fmt.Sprintf("0x%x", err.LBAStamp)),
		cause,
		trace.LogValueHide("raid_type", geo.Type.String()),
		trace.LogValueHide("object_id", fmt.Sprintf("0x%x", geo.ObjectID)))
}

// hard logs and returns an error which fails the sub-request
func (c *checker) hard(kind Kind, lba uint64, s *sector.Sector, cause error) error {
	err := c.inconsistency(kind, lba, s)
	err.hard = true
	if c.resources != nil {
		err.Status = faultinject.StatusInsufficientResources
		err.Err = c.resources
		trace.Errorf(c, "validate: %v check not made at lba 0x%x: %v", kind, lba, c.resources)
		return err
	}
	err.Status = faultinject.StatusGenericFailure
	err.Err = cause
	logInconsistency(trace.LogLevelCritical, c, c.geo, err)
	trace.Dump(trace.LogLevelCritical, c, sector.Dump(s))
	c.metrics.Failure(c.geo.Type.String(), kind.String())
	return err
}

// finding logs an inconsistency which doesn't fail the sub-request.
// Critical findings always dump the sector.
func (c *checker) finding(level trace.LogLevel, kind Kind, lba uint64, s *sector.Sector, what string) {
	err := c.inconsistency(kind, lba, s)
	err.Err = errors.New(what)
	c.findings.Add(err)
	logInconsistency(level, c, c.geo, err)
	if level <= trace.LogLevelCritical || c.geo.DebugSet(geometry.DebugTraceSectors) {
		trace.Dump(level, c, sector.Dump(s))
	}
	c.metrics.Finding(c.geo.Type.String(), kind.String())
}

// unstriped returns the first stamp rule broken by a sector of a group
// without parity.  Nothing writes a write or time stamp to these
// groups and the lba stamp always matches the block.
func (c *checker) unstriped(lba uint64, s *sector.Sector) (Kind, bool) {
	switch {
	case s.WriteStamp != 0:
		return KindWriteStampInvalid, false
	case s.TimeStamp != sector.InvalidTimeStamp:
		return KindTimeStampInvalid, false
	case !sector.IsLBAStampValid(s.LBAStamp, lba, c.geo.Offset):
		return KindLBAStampInvalid, false
	}
	return 0, true
}

func (c *checker) raid0(lba uint64, s *sector.Sector) {
	if kind, ok := c.unstriped(lba, s); !ok {
		c.finding(trace.LogLevelCritical, kind, lba, s, "raid 0 stamps invalid")
	}
}

func (c *checker) rawMirror(lba uint64, s *sector.Sector) {
	if kind, ok := c.unstriped(lba, s); !ok {
		c.finding(trace.LogLevelCritical, kind, lba, s, "raw mirror stamps invalid")
	}
}

func (c *checker) mirror(k geometry.KindMirror, lba uint64, s *sector.Sector) {
	if k.Sparing {
		return
	}
	if kind, ok := c.unstriped(lba, s); !ok {
		c.finding(trace.LogLevelCritical, kind, lba, s, "mirror stamps invalid")
	}
}

// parity applies the stamp rules of a striped parity group
func (c *checker) parity(k geometry.KindParity, lba uint64, s *sector.Sector, checksumOK bool) error {
	var (
		geo      = c.geo
		pos      = c.sub.Position
		bit      = geometry.PositionBit(pos)
		ws       = s.WriteStamp
		ts       = s.TimeStamp
		isParity = geo.IsParity(pos)
		outside  = !geo.InJournal(lba)
	)
	if ws&geo.ParityBitmask() != 0 || ws&^geo.WidthMask() != 0 {
		c.finding(trace.LogLevelError, KindWriteStampInvalid, lba, s, "write stamp invalid")
	}

	if k.Raid6 {
		if isParity && !checksumOK {
			c.finding(trace.LogLevelCritical, KindChecksumInvalid, lba, s, "R6 parity checksum invalid")
		}
		if !isParity && s.LBAStamp != 0 && outside {
			c.finding(trace.LogLevelCritical, KindLBAStampInvalid, lba, s, "R6 data carries an lba stamp")
		}
	} else if outside {
		if c.fail(ts == 0 && !geo.AlignmentExemptAt(pos), faultinject.Here()) {
			return c.hard(KindTimeStampInvalid, lba, s, nil)
		}
		if isParity {
			if c.fail(ws&bit != 0, faultinject.Here()) {
				return c.hard(KindWriteStampInvalid, lba, s, nil)
			}
		} else {
			if c.fail(ws != 0 && ws != bit, faultinject.Here()) {
				return c.hard(KindWriteStampInvalid, lba, s, nil)
			}
			if c.fail(ws != 0 && ts != sector.InvalidTimeStamp, faultinject.Here()) {
				return c.hard(KindStampsExclusive, lba, s, nil)
			}
			if c.fail(ts&sector.ReservedTimeStampBits != 0, faultinject.Here()) {
				return c.hard(KindTimeStampReserved, lba, s, nil)
			}
		}
	}

	if isParity {
		return nil
	}
	if c.fail(ts != sector.InvalidTimeStamp && ws != 0, faultinject.Here()) {
		return c.hard(KindStampsExclusive, lba, s, nil)
	}
	if checksumOK && !geo.InJournalHeader(lba) {
		if c.fail(!sector.IsLBAStampValid(s.LBAStamp, lba, geo.Offset), faultinject.Here()) {
			return c.hard(KindLBAStampInvalid, lba, s, nil)
		}
	}
	return nil
}

// invalidated fails a sector which is both checksum valid and encoded
// as lost data
func (c *checker) invalidated(lba uint64, s *sector.Sector, checksumOK bool) error {
	var cause error
	if checksumOK {
		cause = pattern.CheckInvalidated(s)
	}
	if c.fail(cause != nil, faultinject.Here()) {
		return c.hard(KindInvalidatedChecksumValid, lba, s, cause)
	}
	return nil
}

// checkPattern verifies a seeded pattern if the sector carries one
func (c *checker) checkPattern(lba uint64, s *sector.Sector) error {
	var cause error
	if c.layout.HasSeededPattern(s) {
		seed, ok := c.layout.HeaderSeed(s)
		if !ok {
			seed = lba
		}
		cause = c.layout.VerifySeededPattern(s, seed)
	}
	if c.fail(cause != nil, faultinject.Here()) {
		return c.hard(KindPatternMismatch, lba, s, cause)
	}
	return nil
}

// checkSector runs every rule which applies to one sector
func (c *checker) checkSector(kind geometry.Kind, lba uint64, s *sector.Sector) error {
	c.metrics.Sector(c.geo.Type.String())
	checksumOK := s.ChecksumValid()
	if err := c.invalidated(lba, s, checksumOK); err != nil {
		return err
	}
	switch k := kind.(type) {
	case geometry.KindRaid0:
		c.raid0(lba, s)
	case geometry.KindRawMirror:
		c.rawMirror(lba, s)
	case geometry.KindMirror:
		c.mirror(k, lba, s)
	case geometry.KindParity:
		if err := c.parity(k, lba, s, checksumOK); err != nil {
			return err
		}
	default:
		return errors.Errorf("validate: unhandled raid kind %T", kind)
	}
	if c.geo.DebugSet(geometry.DebugCheckPattern) && checksumOK && !c.sub.Metadata && !c.geo.IsParity(c.sub.Position) {
		return c.checkPattern(lba, s)
	}
	return nil
}

// run validates every sector of the sub-request, stopping at the first
// hard failure.
func (c *checker) run() error {
	if err := checkBlocks(c.geo, c.sub); err != nil {
		trace.Errorf(c, "validate: %v", err)
		return err
	}
	if c.geo.DebugSet(geometry.DebugCheckPattern) {
		if err := c.layout.Check(); err != nil {
			return errors.Wrapf(err, "%v", c.geo)
		}
	}
	kind := c.geo.Kind()
	err := c.sub.SG.Walk(func(i uint64, s *sector.Sector) error {
		return c.checkSector(kind, c.sub.LBA+i, s)
	})
	if summary := c.findings.Err("validate: logged inconsistencies"); summary != nil {
		trace.Infof(c, "%v", summary)
	}
	return err
}

// enabled returns true if writes to geo should be validated
func enabled(geo *geometry.Geometry, sub *SubRequest) bool {
	if !sub.Opcode.IsWrite() || !geo.DebugSet(geometry.DebugValidateOnWrite) {
		return false
	}
	// stamps are being perturbed on purpose
	return !geo.ErrorInjection
}

// Validate checks the sectors written by sub.
//
// It does nothing unless sub is a write or write-verify to a group
// with DebugValidateOnWrite set and without ErrorInjection.  It returns
// nil or a hard *InconsistencyError.  Findings which don't fail the
// request are only logged.
func Validate(ctx context.Context, geo *geometry.Geometry, sub *SubRequest) error {
	return Check(ctx, geo, sub).Err
}

// Check is Validate reporting the outcome and the number of findings
// logged.
func Check(ctx context.Context, geo *geometry.Geometry, sub *SubRequest) Result {
	if !enabled(geo, sub) {
		return Result{Outcome: Success}
	}
	c := newChecker(ctx, geo, sub)
	err := c.run()
	findings := c.findings.Count()
	return Result{
		Outcome:  Classify(err, findings),
		Findings: findings,
		Err:      err,
	}
}
