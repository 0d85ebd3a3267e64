// Package raidtest builds raid groups and sectors for tests.
//
// The sectors it makes are what a normal, non degraded full stripe
// write leaves behind, so any change a test makes to them is the only
// thing wrong.
package raidtest

import (
	"encoding/binary"

	"github.com/kmindg/tmp-sub158/raid/geometry"
	"github.com/kmindg/tmp-sub158/raid/pattern"
	"github.com/kmindg/tmp-sub158/raid/sector"
)

// Group settings shared by the builders
const (
	UserObjectID        uint32 = 0x10b
	SystemObjectID      uint32 = 0x5
	JournalStart        uint64 = 0x10000
	JournalHeaderBlocks uint64 = 4
	LBAStampOffset      uint64 = 0x800
)

func group(t geometry.RaidType, width int, parity ...int) *geometry.Geometry {
	geo := &geometry.Geometry{
		ObjectID:     UserObjectID,
		Type:         t,
		Width:        width,
		JournalStart: geometry.InvalidLBA,
		Offset:       LBAStampOffset,
		Debug:        geometry.DebugValidateOnWrite,
	}
	if len(parity) > 0 {
		geo.ParityPositions = geometry.Positions(parity)
		geo.JournalStart = JournalStart
		geo.JournalHeaderBlocks = JournalHeaderBlocks
	}
	if err := geo.Validate(); err != nil {
		panic(err)
	}
	return geo
}

// Raid5 returns a validated raid 5 group of width 5 with parity on
// position 4
func Raid5() *geometry.Geometry {
	return group(geometry.Raid5, 5, 4)
}

// Raid3 returns a raid 3 group of width 5 with parity on position 4
func Raid3() *geometry.Geometry {
	return group(geometry.Raid3, 5, 4)
}

// Raid6 returns a raid 6 group of width 6 with parity on 4 and 5
func Raid6() *geometry.Geometry {
	return group(geometry.Raid6, 6, 4, 5)
}

// Raid0 returns a raid 0 group of width 4
func Raid0() *geometry.Geometry {
	return group(geometry.Raid0, 4)
}

// Mirror returns a two way mirror
func Mirror() *geometry.Geometry {
	return group(geometry.Raid1, 2)
}

// RawMirror returns a three way raw mirror
func RawMirror() *geometry.Geometry {
	return group(geometry.RawMirror, 3)
}

// All returns one group of every kind
func All() []*geometry.Geometry {
	return []*geometry.Geometry{Raid0(), Mirror(), RawMirror(), Raid3(), Raid5(), Raid6()}
}

// DataSector returns a well formed sector for a data position at lba
// holding a seeded pattern for seed
func DataSector(geo *geometry.Geometry, lba, seed uint64) sector.Sector {
	var s sector.Sector
	pattern.NewLayout(geo.PatternHeaderBytes).Fill(&s, seed, 0)
	s.WriteStamp = 0
	s.TimeStamp = sector.InvalidTimeStamp
	if geo.Type != geometry.Raid6 {
		s.LBAStamp = sector.GenerateLBAStamp(lba, geo.Offset)
	}
	return s
}

// ParitySector returns a well formed parity sector at lba.  The
// payload is not a seeded pattern.
func ParitySector(geo *geometry.Geometry, lba uint64) sector.Sector {
	var s sector.Sector
	for i := 0; i < sector.WordsPerBlock; i++ {
		binary.LittleEndian.PutUint32(s.Data[i*sector.BytesPerWord:], uint32(lba)*0x01000193^uint32(i)<<24)
	}
	s.SetChecksum()
	s.TimeStamp = sector.InvalidTimeStamp
	return s
}

// Sectors returns blocks well formed sectors for position pos starting
// at lba.  Data sectors are seeded with their own lba.
func Sectors(geo *geometry.Geometry, pos int, lba, blocks uint64) []sector.Sector {
	out := make([]sector.Sector, blocks)
	for i := range out {
		l := lba + uint64(i)
		if geo.IsParity(pos) {
			out[i] = ParitySector(geo, l)
		} else {
			out[i] = DataSector(geo, l, l)
		}
	}
	return out
}

// Invalidated returns a sector at lba holding the lost data encoding.
// If checksumValid is set the checksum is recomputed to match it,
// which no correct writer ever does.
func Invalidated(geo *geometry.Geometry, lba uint64, checksumValid bool) sector.Sector {
	var s sector.Sector
	sector.FillInvalid(&s, lba, geo.Offset, sector.ReasonDataLost, sector.ByRaid)
	if checksumValid {
		s.SetChecksum()
	}
	return s
}
