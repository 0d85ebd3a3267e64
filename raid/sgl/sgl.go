// Package sgl describes the caller owned sector buffers of one
// sub-request as a scatter-gather list.
package sgl

import (
	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/pkg/errors"
)

// Element is one contiguous run of sectors
type Element struct {
	Sectors []sector.Sector
}

// List is a scatter-gather list.  Sectors are visited in element
// order, which is ascending lba order.
type List []Element

// ErrNoBlocks is returned for a sub-request with no blocks
var ErrNoBlocks = errors.New("sg list: block count is zero")

// New makes a List with a single element holding sectors
func New(sectors []sector.Sector) List {
	return List{{Sectors: sectors}}
}

// Blocks returns the number of sectors described by the list
func (l List) Blocks() uint64 {
	var n uint64
	for i := range l {
		n += uint64(len(l[i].Sectors))
	}
	return n
}

// CheckBlocks checks the list describes exactly blocks sectors
func (l List) CheckBlocks(blocks uint64) error {
	if blocks == 0 {
		return ErrNoBlocks
	}
	if got := l.Blocks(); got != blocks {
		return errors.Errorf("sg list: describes %d blocks, expected %d", got, blocks)
	}
	return nil
}

// Walk calls fn for each sector in order with its index from the
// start of the list.  It stops at the first error fn returns.
func (l List) Walk(fn func(i uint64, s *sector.Sector) error) error {
	var i uint64
	for e := range l {
		sectors := l[e].Sectors
		for j := range sectors {
			if err := fn(i, &sectors[j]); err != nil {
				return err
			}
			i++
		}
	}
	return nil
}
