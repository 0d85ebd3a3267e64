// Package geometry describes the raid group a sub-request belongs to,
// as far as the integrity checks need to know it.
//
// The geometry is owned by the raid group object and is only read
// here.
package geometry

import (
	"fmt"

	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/pkg/errors"
)

// InvalidLBA marks an unset lba such as a group without a journal
const InvalidLBA = ^uint64(0)

// FirstUserObjectID is the first object id which isn't a system
// object.  System raid groups hold the array's own metadata.
const FirstUserObjectID uint32 = 0x100

// IsSystemObject returns true for the ids of system raid groups
func IsSystemObject(objectID uint32) bool {
	return objectID < FirstUserObjectID
}

// DebugFlags control optional checking on a raid group
type DebugFlags uint32

// Debug flags
const (
	// DebugValidateOnWrite checks stamps on every write and write-verify
	DebugValidateOnWrite DebugFlags = 1 << iota
	// DebugCheckPattern verifies seeded test patterns while validating
	DebugCheckPattern
	// DebugTraceSectors dumps each sector which fails a check
	DebugTraceSectors
)

// OptionFlags change how a raid group treats its data
type OptionFlags uint32

// Option flags
const (
	// OptionRejectLostData refuses reads and writes which touch
	// invalidated sectors
	OptionRejectLostData OptionFlags = 1 << iota
	// OptionDataChecking verifies seeded patterns once a read or
	// write has completed
	OptionDataChecking
)

// Geometry of one raid group
type Geometry struct {
	ObjectID            uint32
	Type                RaidType
	Width               int
	ParityPositions     Positions // one for raid 3/5, two for raid 6
	Sparing             bool      // mirror member is a copy target
	JournalStart        uint64    // first journal lba or InvalidLBA
	JournalHeaderBlocks uint64
	Offset              uint64 // salt for the lba stamp
	AlignmentExempt     uint16 // positions allowed a zero time stamp
	PatternHeaderBytes  int    // 0 uses the default pattern layout
	Debug               DebugFlags
	Options             OptionFlags
	ErrorInjection      bool // stamps are being perturbed on purpose
}

// String identifies the group in traces
func (g *Geometry) String() string {
	return fmt.Sprintf("rg 0x%x %v width %d", g.ObjectID, g.Type, g.Width)
}

// Validate checks the geometry is self consistent
func (g *Geometry) Validate() error {
	if g.Width < 1 || g.Width > sector.MaxGroupWidth {
		return errors.Errorf("%v: width %d out of range 1..%d", g, g.Width, sector.MaxGroupWidth)
	}
	want := g.Type.parityCount()
	if len(g.ParityPositions) != want {
		return errors.Errorf("%v: %d parity positions configured, need %d", g, len(g.ParityPositions), want)
	}
	seen := uint16(0)
	for _, pos := range g.ParityPositions {
		if pos < 0 || pos >= g.Width {
			return errors.Errorf("%v: parity position %d out of range", g, pos)
		}
		if seen&PositionBit(pos) != 0 {
			return errors.Errorf("%v: parity position %d repeated", g, pos)
		}
		seen |= PositionBit(pos)
	}
	if want > 0 && g.Width <= want {
		return errors.Errorf("%v: no data positions", g)
	}
	if g.Sparing && !g.Type.IsMirror() {
		return errors.Errorf("%v: sparing is only valid on a mirror", g)
	}
	if g.AlignmentExempt&^g.WidthMask() != 0 {
		return errors.Errorf("%v: alignment exempt mask 0x%x beyond width", g, g.AlignmentExempt)
	}
	if g.PatternHeaderBytes < 0 || g.PatternHeaderBytes%8 != 0 {
		return errors.Errorf("%v: pattern header bytes %d must be a non-negative multiple of 8", g, g.PatternHeaderBytes)
	}
	return nil
}

// PositionBit returns the write stamp bit for pos
func PositionBit(pos int) uint16 {
	return uint16(1) << uint(pos)
}

// WidthMask returns the write stamp bits of every position in the
// group
func (g *Geometry) WidthMask() uint16 {
	if g.Width >= 16 {
		return ^uint16(0)
	}
	return PositionBit(g.Width) - 1
}

// ParityBitmask returns the write stamp bits of the parity positions
func (g *Geometry) ParityBitmask() uint16 {
	var mask uint16
	for _, pos := range g.ParityPositions {
		mask |= PositionBit(pos)
	}
	return mask
}

// IsParity returns true if pos holds parity
func (g *Geometry) IsParity(pos int) bool {
	return g.ParityBitmask()&PositionBit(pos) != 0
}

// AlignmentExemptAt returns true if pos may carry a zero time stamp
func (g *Geometry) AlignmentExemptAt(pos int) bool {
	return g.AlignmentExempt&PositionBit(pos) != 0
}

// HasJournal returns true if the group has a write journal
func (g *Geometry) HasJournal() bool {
	return g.JournalStart != InvalidLBA
}

// InJournal returns true if lba is in the write journal region
func (g *Geometry) InJournal(lba uint64) bool {
	return g.HasJournal() && lba >= g.JournalStart
}

// InJournalHeader returns true if lba is one of the journal header
// blocks, which carry no meaningful lba stamp.
func (g *Geometry) InJournalHeader(lba uint64) bool {
	return g.InJournal(lba) && lba-g.JournalStart < g.JournalHeaderBlocks
}

// DebugSet returns true if all of flags are set
func (g *Geometry) DebugSet(flags DebugFlags) bool {
	return g.Debug&flags == flags
}

// OptionSet returns true if all of flags are set
func (g *Geometry) OptionSet(flags OptionFlags) bool {
	return g.Options&flags == flags
}
