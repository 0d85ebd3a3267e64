package pattern

import (
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidatedChecksumValid means a sector carries the lost
	// data encoding and a checksum which matches it.  Invalidated
	// sectors are always written with a bad checksum so this can't
	// happen legitimately.
	ErrInvalidatedChecksumValid = errors.New("invalidated sector has a valid checksum")

	// ErrDataLost is returned when an operation touches a sector
	// which has been invalidated because its data was lost.
	ErrDataLost = errors.New("sector data was lost")
)

// CheckInvalidated returns ErrInvalidatedChecksumValid, wrapped with
// what the payload records, if s is both checksum valid and encoded
// as lost data.
func CheckInvalidated(s *sector.Sector) error {
	info, ok := sector.DecodeInvalid(s.Data[:])
	if !ok || !s.ChecksumValid() {
		return nil
	}
	trace.Criticalf(nil, "pattern: invalidated sector with good checksum: reason %v by %v seed 0x%x",
		info.Reason, info.Who, info.Seed)
	trace.Dump(trace.LogLevelCritical, nil, sector.Dump(s))
	return errors.Wrapf(ErrInvalidatedChecksumValid, "reason %v by %v seed 0x%x", info.Reason, info.Who, info.Seed)
}

// CheckLost returns ErrDataLost, wrapped with what the payload
// records, if s is a properly invalidated sector.
func CheckLost(s *sector.Sector) error {
	if !s.IsLost() {
		return nil
	}
	info, _ := sector.DecodeInvalid(s.Data[:])
	return errors.Wrapf(ErrDataLost, "invalidated at 0x%x: %v by %v", info.Seed, info.Reason, info.Who)
}
