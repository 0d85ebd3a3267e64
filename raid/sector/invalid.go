package sector

import (
	"encoding/binary"
	"fmt"
	"time"
)

// InvalidReason records why a sector was invalidated
type InvalidReason uint32

// Invalidation reasons
const (
	ReasonUnknown InvalidReason = iota
	ReasonDataLost
	ReasonCorruptData
	ReasonVerify
	ReasonCorruptCRC
	ReasonDHInvalidated
	ReasonMetadataInvalid
	ReasonCopyInvalidated
)

var reasonToString = []string{
	ReasonUnknown:         "unknown",
	ReasonDataLost:        "data lost",
	ReasonCorruptData:     "corrupt data",
	ReasonVerify:          "verify",
	ReasonCorruptCRC:      "corrupt crc",
	ReasonDHInvalidated:   "drive handler invalidated",
	ReasonMetadataInvalid: "metadata invalid",
	ReasonCopyInvalidated: "copy invalidated",
}

func (r InvalidReason) String() string {
	if int(r) >= len(reasonToString) {
		return fmt.Sprintf("InvalidReason(%d)", uint32(r))
	}
	return reasonToString[r]
}

// InvalidatedBy records who invalidated a sector
type InvalidatedBy uint32

// Invalidators
const (
	ByRaid InvalidatedBy = iota
	ByClient
	ByErrorInjection
	ByDrive
)

var byToString = []string{
	ByRaid:           "raid",
	ByClient:         "client",
	ByErrorInjection: "error injection",
	ByDrive:          "drive",
}

func (b InvalidatedBy) String() string {
	if int(b) >= len(byToString) {
		return fmt.Sprintf("InvalidatedBy(%d)", uint32(b))
	}
	return byToString[b]
}

// Lost data payload layout
const (
	invalidMagic0 uint64 = 0x53444948534F4C21
	invalidMagic1 uint64 = 0x4154414454534F4C

	invalidReasonOffset = 16
	invalidWhoOffset    = 20
	invalidSeedOffset   = 24
	invalidTimeOffset   = 32
	invalidPadOffset    = 40
)

// InvalidInfo is what an invalidated payload records
type InvalidInfo struct {
	Reason InvalidReason
	Who    InvalidatedBy
	Seed   uint64 // lba the sector was invalidated at
	Time   time.Time
}

// now is replaced in tests
var now = time.Now

// FillInvalid overwrites s with the lost data encoding.
//
// The stamps are set as for freshly written data at lba and the
// checksum is set to InvalidChecksum, which never matches the payload.
func FillInvalid(s *Sector, lba, offset uint64, reason InvalidReason, who InvalidatedBy) {
	s.Data = [BytesPerBlock]byte{}
	binary.LittleEndian.PutUint64(s.Data[0:], invalidMagic0)
	binary.LittleEndian.PutUint64(s.Data[8:], invalidMagic1)
	binary.LittleEndian.PutUint32(s.Data[invalidReasonOffset:], uint32(reason))
	binary.LittleEndian.PutUint32(s.Data[invalidWhoOffset:], uint32(who))
	binary.LittleEndian.PutUint64(s.Data[invalidSeedOffset:], lba)
	binary.LittleEndian.PutUint64(s.Data[invalidTimeOffset:], uint64(now().Unix()))
	for s.ComputeChecksum() == InvalidChecksum {
		s.Data[invalidPadOffset]++
	}
	s.Checksum = InvalidChecksum
	s.LBAStamp = GenerateLBAStamp(lba, offset)
	s.TimeStamp = InvalidTimeStamp
	s.WriteStamp = 0
}

// IsInvalidatedPayload returns true if data carries the lost data
// encoding, whatever the checksum says.
func IsInvalidatedPayload(data []byte) bool {
	if len(data) < BytesPerBlock {
		return false
	}
	return binary.LittleEndian.Uint64(data[0:]) == invalidMagic0 &&
		binary.LittleEndian.Uint64(data[8:]) == invalidMagic1
}

// DecodeInvalid returns what an invalidated payload records
func DecodeInvalid(data []byte) (info InvalidInfo, ok bool) {
	if !IsInvalidatedPayload(data) {
		return info, false
	}
	info.Reason = InvalidReason(binary.LittleEndian.Uint32(data[invalidReasonOffset:]))
	info.Who = InvalidatedBy(binary.LittleEndian.Uint32(data[invalidWhoOffset:]))
	info.Seed = binary.LittleEndian.Uint64(data[invalidSeedOffset:])
	info.Time = time.Unix(int64(binary.LittleEndian.Uint64(data[invalidTimeOffset:])), 0)
	return info, true
}

// IsLost returns true for a properly invalidated sector: the lost data
// encoding with a checksum which does not match it.
func (s *Sector) IsLost() bool {
	return IsInvalidatedPayload(s.Data[:]) && !s.ChecksumValid()
}
