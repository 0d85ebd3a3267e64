// Package sector defines the per-sector redundancy metadata which every
// RAID integrity check is built on: the payload, the checksum and the
// write, time and lba stamps.
package sector

import (
	"encoding/binary"
	"fmt"
	"math/bits"
)

// Layout constants
const (
	BytesPerBlock  = 512                          // payload bytes in a sector
	BytesPerWord   = 4                            // checksum and dump word
	WordsPerBlock  = BytesPerBlock / BytesPerWord // 32-bit words in a payload
	BytesPerChunk  = 32                           // pattern comparison unit
	ChunksPerBlock = BytesPerBlock / BytesPerChunk
	MaxGroupWidth  = 16 // bounds the write stamp bitmask
)

// Stamp constants
const (
	// InvalidTimeStamp means the sector carries no active time stamp
	InvalidTimeStamp uint32 = 0x7FFF

	// AllTimeStamps is set on parity when every data position shares
	// the parity time stamp.  Data sectors must never carry it.
	AllTimeStamps uint32 = 0x8000

	// ReservedTimeStampBits may never be set on a data sector
	ReservedTimeStampBits = ^InvalidTimeStamp

	// InvalidChecksum is written to the checksum of an invalidated
	// sector so that it can never be read back as good data.
	InvalidChecksum uint16 = 0xA112
)

// checksumSeed starts the checksum fold so an all zero payload does
// not checksum to zero.
const checksumSeed uint32 = 0x0000AF76

// Sector is one block of payload plus its redundancy trailer
type Sector struct {
	Data       [BytesPerBlock]byte
	Checksum   uint16
	WriteStamp uint16 // one bit per group position
	TimeStamp  uint32
	LBAStamp   uint16
}

// Checksum computes the 16 bit checksum of a payload.
//
// Each 32 bit word is folded in and the running sum rotated, so a
// swapped pair of words changes the result, then the two halves are
// folded together.
func Checksum(data []byte) uint16 {
	sum := checksumSeed
	for i := 0; i+BytesPerWord <= len(data); i += BytesPerWord {
		sum ^= binary.LittleEndian.Uint32(data[i:])
		sum = bits.RotateLeft32(sum, 1)
	}
	return uint16(sum>>16) ^ uint16(sum)
}

// ComputeChecksum returns the checksum the payload should carry
func (s *Sector) ComputeChecksum() uint16 {
	return Checksum(s.Data[:])
}

// ChecksumValid returns true if the stored checksum matches the payload
func (s *Sector) ChecksumValid() bool {
	return s.Checksum == s.ComputeChecksum()
}

// SetChecksum stores the checksum of the current payload
func (s *Sector) SetChecksum() {
	s.Checksum = s.ComputeChecksum()
}

// Word returns the 32 bit payload word at index i
func (s *Sector) Word(i int) uint32 {
	return binary.LittleEndian.Uint32(s.Data[i*BytesPerWord:])
}

// String summarises the trailer
func (s *Sector) String() string {
	return fmt.Sprintf("crc: 0x%04x ts: 0x%x ws: 0x%x lba stamp: 0x%x", s.Checksum, s.TimeStamp, s.WriteStamp, s.LBAStamp)
}

// GenerateLBAStamp returns the lba stamp for lba in a group whose
// stamps are salted with offset.
func GenerateLBAStamp(lba, offset uint64) uint16 {
	lba += offset
	return uint16(lba ^ (lba >> 16) ^ (lba >> 32) ^ (lba >> 48))
}

// IsLBAStampValid checks stamp against lba.  A zero stamp is always
// accepted since writers are allowed to shed it.
func IsLBAStampValid(stamp uint16, lba, offset uint64) bool {
	return stamp == 0 || stamp == GenerateLBAStamp(lba, offset)
}

// Dump renders the sector for a trace, four words per line followed by
// the trailer.
func Dump(s *Sector) []string {
	const wordsPerLine = 4
	lines := make([]string, 0, WordsPerBlock/wordsPerLine+1)
	for i := 0; i < WordsPerBlock; i += wordsPerLine {
		lines = append(lines, fmt.Sprintf("%04x: %08x %08x %08x %08x",
			i*BytesPerWord, s.Word(i), s.Word(i+1), s.Word(i+2), s.Word(i+3)))
	}
	lines = append(lines, s.String())
	return lines
}
