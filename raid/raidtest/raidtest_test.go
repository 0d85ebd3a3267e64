package raidtest

import (
	"testing"

	"github.com/kmindg/tmp-sub158/raid/geometry"
	"github.com/kmindg/tmp-sub158/raid/pattern"
	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/stretchr/testify/assert"
)

func TestGroups(t *testing.T) {
	for _, geo := range All() {
		assert.NoError(t, geo.Validate(), geo.String())
		assert.True(t, geo.DebugSet(geometry.DebugValidateOnWrite))
		assert.Equal(t, geo.Type.IsParity(), geo.HasJournal(), geo.String())
	}
}

func TestSectors(t *testing.T) {
	geo := Raid5()
	for pos := 0; pos < geo.Width; pos++ {
		for i, s := range Sectors(geo, pos, 0x20, 3) {
			lba := uint64(0x20 + i)
			assert.True(t, s.ChecksumValid())
			assert.Equal(t, uint16(0), s.WriteStamp)
			assert.Equal(t, sector.InvalidTimeStamp, s.TimeStamp)
			assert.Equal(t, !geo.IsParity(pos), pattern.HasSeededPattern(&s), "pos %d", pos)
			if !geo.IsParity(pos) {
				assert.Equal(t, sector.GenerateLBAStamp(lba, LBAStampOffset), s.LBAStamp)
				assert.NoError(t, pattern.VerifySeededPattern(&s, lba))
			}
		}
	}

	s := DataSector(Raid6(), 0x20, 0x20)
	assert.Equal(t, uint16(0), s.LBAStamp)
}

func TestInvalidated(t *testing.T) {
	geo := Mirror()
	s := Invalidated(geo, 0x40, false)
	assert.True(t, s.IsLost())
	s = Invalidated(geo, 0x40, true)
	assert.False(t, s.IsLost())
	assert.True(t, sector.IsInvalidatedPayload(s.Data[:]))
}
