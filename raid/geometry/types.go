package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// RaidType is the redundancy scheme of a raid group
type RaidType byte

// Raid types
const (
	Raid0 RaidType = iota
	Raid1
	Raid3
	Raid5
	Raid6
	Raid10
	Mirror
	RawMirror
)

var raidTypeToString = []string{
	Raid0:     "raid0",
	Raid1:     "raid1",
	Raid3:     "raid3",
	Raid5:     "raid5",
	Raid6:     "raid6",
	Raid10:    "raid10",
	Mirror:    "mirror",
	RawMirror: "raw-mirror",
}

// String turns a RaidType into a string
func (t RaidType) String() string {
	if int(t) >= len(raidTypeToString) {
		return fmt.Sprintf("RaidType(%d)", t)
	}
	return raidTypeToString[t]
}

// Set a RaidType
func (t *RaidType) Set(s string) error {
	for n, name := range raidTypeToString {
		if strings.EqualFold(s, name) {
			*t = RaidType(n)
			return nil
		}
	}
	return errors.Errorf("unknown raid type %q from: %s", s, strings.Join(raidTypeToString, ", "))
}

// Type of the value
func (t *RaidType) Type() string {
	return strings.Join(raidTypeToString, "|")
}

// Scan implements the fmt.Scanner interface
func (t *RaidType) Scan(s fmt.ScanState, ch rune) error {
	token, err := s.Token(true, nil)
	if err != nil {
		return err
	}
	return t.Set(string(token))
}

// IsParity returns true for the striped parity types
func (t RaidType) IsParity() bool {
	return t == Raid3 || t == Raid5 || t == Raid6
}

// IsMirror returns true for the mirrored types
func (t RaidType) IsMirror() bool {
	return t == Raid1 || t == Raid10 || t == Mirror
}

func (t RaidType) parityCount() int {
	switch t {
	case Raid3, Raid5:
		return 1
	case Raid6:
		return 2
	}
	return 0
}

// Positions is a list of group positions, written as "3,4"
type Positions []int

// String returns the positions comma separated
func (p Positions) String() string {
	parts := make([]string, len(p))
	for i, pos := range p {
		parts[i] = strconv.Itoa(pos)
	}
	return strings.Join(parts, ",")
}

// Set the positions from a comma separated list
func (p *Positions) Set(s string) error {
	var out Positions
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pos, err := strconv.Atoi(part)
		if err != nil {
			return errors.Wrapf(err, "bad position %q", part)
		}
		out = append(out, pos)
	}
	*p = out
	return nil
}

// Type of the value
func (p *Positions) Type() string {
	return "positions"
}

// Scan implements the fmt.Scanner interface
func (p *Positions) Scan(s fmt.ScanState, ch rune) error {
	token, err := s.Token(true, nil)
	if err != nil {
		return err
	}
	return p.Set(string(token))
}

// Kind selects which integrity rules apply to a group.  It is one of
// KindRaid0, KindRawMirror, KindMirror or KindParity.
type Kind interface {
	isKind()
}

// KindRaid0 has no redundancy
type KindRaid0 struct{}

// KindRawMirror is a mirror without a raid group object above it
type KindRawMirror struct{}

// KindMirror is a mirror member
type KindMirror struct {
	Sparing bool
}

// KindParity is a striped parity group
type KindParity struct {
	Raid6     bool
	Positions Positions
}

func (KindRaid0) isKind()     {}
func (KindRawMirror) isKind() {}
func (KindMirror) isKind()    {}
func (KindParity) isKind()    {}

// Kind returns the rule set for the group
func (g *Geometry) Kind() Kind {
	switch {
	case g.Type == RawMirror:
		return KindRawMirror{}
	case g.Type.IsMirror():
		return KindMirror{Sparing: g.Sparing}
	case g.Type.IsParity():
		return KindParity{Raid6: g.Type == Raid6, Positions: g.ParityPositions}
	}
	return KindRaid0{}
}
