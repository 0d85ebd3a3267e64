package geometry

import (
	"github.com/kmindg/tmp-sub158/lib/config/configmap"
	"github.com/kmindg/tmp-sub158/lib/config/configstruct"
	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/pkg/errors"
)

// Options describe a raid group in config
type Options struct {
	ObjectID            uint32    `config:"object_id"`
	RaidType            RaidType  `config:"raid_type"`
	Width               int       `config:"width"`
	ParityPositions     Positions `config:"parity_positions"`
	Sparing             bool      `config:"sparing"`
	JournalStart        uint64    `config:"journal_start"`
	JournalHeaderBlocks uint64    `config:"journal_header_blocks"`
	LBAStampOffset      uint64    `config:"lba_stamp_offset"`
	AlignmentExempt     uint16    `config:"alignment_exempt"`
	PatternHeaderBytes  int       `config:"pattern_header_bytes"`
	ValidateOnWrite     bool      `config:"validate_on_write"`
	CheckPattern        bool      `config:"check_pattern"`
	TraceSectors        bool      `config:"trace_sectors"`
	RejectLostData      bool      `config:"reject_lost_data"`
	DataChecking        bool      `config:"data_checking"`
	ErrorInjection      bool      `config:"error_injection"`
}

// DefaultOptions returns the options of a group with no journal
func DefaultOptions() Options {
	return Options{
		RaidType:     Raid0,
		Width:        1,
		JournalStart: InvalidLBA,
	}
}

// LoadOptions reads Options from m on top of the defaults
func LoadOptions(m configmap.Getter) (Options, error) {
	opt := DefaultOptions()
	if err := configstruct.Set(m, &opt); err != nil {
		return opt, errors.Wrap(err, "raid group options")
	}
	return opt, nil
}

// New makes a validated Geometry from opt
func New(opt Options) (*Geometry, error) {
	g := &Geometry{
		ObjectID:            opt.ObjectID,
		Type:                opt.RaidType,
		Width:               opt.Width,
		ParityPositions:     opt.ParityPositions,
		Sparing:             opt.Sparing,
		JournalStart:        opt.JournalStart,
		JournalHeaderBlocks: opt.JournalHeaderBlocks,
		Offset:              opt.LBAStampOffset,
		AlignmentExempt:     opt.AlignmentExempt,
		PatternHeaderBytes:  opt.PatternHeaderBytes,
		ErrorInjection:      opt.ErrorInjection,
	}
	for _, flag := range []struct {
		set  bool
		flag DebugFlags
	}{
		{opt.ValidateOnWrite, DebugValidateOnWrite},
		{opt.CheckPattern, DebugCheckPattern},
		{opt.TraceSectors, DebugTraceSectors},
	} {
		if flag.set {
			g.Debug |= flag.flag
		}
	}
	if opt.RejectLostData {
		g.Options |= OptionRejectLostData
	}
	if opt.DataChecking {
		g.Options |= OptionDataChecking
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	trace.Debugf(g, "geometry: parity %v journal 0x%x+%d debug 0x%x options 0x%x",
		g.ParityPositions, g.JournalStart, g.JournalHeaderBlocks, uint32(g.Debug), uint32(g.Options))
	return g, nil
}

// Load reads options from m and makes a Geometry from them
func Load(m configmap.Getter) (*Geometry, error) {
	opt, err := LoadOptions(m)
	if err != nil {
		return nil, err
	}
	return New(opt)
}
