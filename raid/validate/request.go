package validate

import (
	"fmt"

	"github.com/kmindg/tmp-sub158/raid/sgl"
)

// Opcode is the operation a sub-request performs
type Opcode byte

// Opcodes
const (
	OpRead Opcode = iota
	OpWrite
	OpWriteVerify
)

func (o Opcode) String() string {
	switch o {
	case OpRead:
		return "read"
	case OpWrite:
		return "write"
	case OpWriteVerify:
		return "write-verify"
	}
	return fmt.Sprintf("Opcode(%d)", o)
}

// IsWrite returns true for the opcodes which modify the media
func (o Opcode) IsWrite() bool {
	return o == OpWrite || o == OpWriteVerify
}

// SubRequest is the part of an I/O aimed at one position of a raid
// group.  The sectors in SG are owned by the caller.
type SubRequest struct {
	Opcode   Opcode
	LBA      uint64 // disk lba of the first sector
	Blocks   uint64
	Position int
	Metadata bool // raid bookkeeping rather than user data
	SG       sgl.List
}

// String identifies the sub-request in traces
func (s *SubRequest) String() string {
	return fmt.Sprintf("%v pos %d lba 0x%x blocks 0x%x", s.Opcode, s.Position, s.LBA, s.Blocks)
}
