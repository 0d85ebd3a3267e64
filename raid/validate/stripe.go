package validate

import (
	"context"

	"github.com/kmindg/tmp-sub158/lib/faultinject"
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/kmindg/tmp-sub158/raid/geometry"
	"github.com/kmindg/tmp-sub158/raid/pattern"
	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ValidateStripe validates the sub-requests of one stripe write, one
// per position, concurrently.
//
// Each sub-request is validated to the end even if another fails.  The
// first hard failure is returned.
func ValidateStripe(ctx context.Context, geo *geometry.Geometry, subs []*SubRequest) error {
	var g errgroup.Group
	for _, sub := range subs {
		sub := sub
		g.Go(func() error {
			return Validate(ctx, geo, sub)
		})
	}
	return g.Wait()
}

// checkBlocks returns a hard KindSGMismatch error if sub isn't aimed
// at a position of geo or its buffers don't hold exactly sub.Blocks
// sectors
func checkBlocks(geo *geometry.Geometry, sub *SubRequest) error {
	err := sub.SG.CheckBlocks(sub.Blocks)
	if sub.Position < 0 || sub.Position >= geo.Width {
		err = errors.Errorf("position %d outside group of width %d", sub.Position, geo.Width)
	}
	if err != nil {
		return &InconsistencyError{
			Kind:     KindSGMismatch,
			Status:   faultinject.StatusGenericFailure,
			LBA:      sub.LBA,
			Position: sub.Position,
			Err:      err,
			hard:     true,
		}
	}
	return nil
}

// walk calls fn with each sector of sub and its lba
func walk(geo *geometry.Geometry, sub *SubRequest, fn func(lba uint64, s *sector.Sector) error) error {
	if err := checkBlocks(geo, sub); err != nil {
		return err
	}
	return sub.SG.Walk(func(i uint64, s *sector.Sector) error {
		return fn(sub.LBA+i, s)
	})
}

// CheckLostData refuses a read or write which touches an invalidated
// sector when the group has OptionRejectLostData set.
//
// The error returned is a hard *InconsistencyError of KindDataLost
// with StatusDataLost.  This is a configured refusal rather than
// corruption so it is only logged at notice level.
func CheckLostData(ctx context.Context, geo *geometry.Geometry, sub *SubRequest) error {
	if !geo.OptionSet(geometry.OptionRejectLostData) {
		return nil
	}
	return walk(geo, sub, func(lba uint64, s *sector.Sector) error {
		cause := pattern.CheckLost(s)
		if cause == nil {
			return nil
		}
		err := &InconsistencyError{
			Kind:       KindDataLost,
			Status:     faultinject.StatusDataLost,
			LBA:        lba,
			Position:   sub.Position,
			WriteStamp: s.WriteStamp,
			TimeStamp:  s.TimeStamp,
			LBAStamp:   s.LBAStamp,
			Err:        cause,
			hard:       true,
		}
		logInconsistency(trace.LogLevelNotice, sub, geo, err)
		return err
	})
}

// CheckData verifies the seeded patterns of a finished read or write
// when the group has OptionDataChecking set.
//
// Metadata and parity positions are not checked.  Sectors without a
// pattern or with a bad checksum are skipped.
func CheckData(ctx context.Context, geo *geometry.Geometry, sub *SubRequest) error {
	if !geo.OptionSet(geometry.OptionDataChecking) || sub.Metadata || geo.IsParity(sub.Position) {
		return nil
	}
	layout := pattern.NewLayout(geo.PatternHeaderBytes)
	if err := layout.Check(); err != nil {
		return errors.Wrapf(err, "%v", geo)
	}
	return walk(geo, sub, func(lba uint64, s *sector.Sector) error {
		if !s.ChecksumValid() || !layout.HasSeededPattern(s) {
			return nil
		}
		seed, ok := layout.HeaderSeed(s)
		if !ok {
			seed = lba
		}
		cause := layout.VerifySeededPattern(s, seed)
		if cause == nil {
			return nil
		}
		return &InconsistencyError{
			Kind:       KindPatternMismatch,
			Status:     faultinject.StatusGenericFailure,
			LBA:        lba,
			Position:   sub.Position,
			WriteStamp: s.WriteStamp,
			TimeStamp:  s.TimeStamp,
			LBAStamp:   s.LBAStamp,
			Err:        cause,
			hard:       true,
		}
	})
}
