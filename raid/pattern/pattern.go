// Package pattern recognises the synthetic payloads written by test
// tooling and the lost data encoding written when data can't be
// recovered.
//
// A seeded payload starts with a header carrying the seed, followed
// by a repeating pair of 64 bit tokens derived from the seed.  Since
// the seed is the logical block address the data was written for, a
// payload found at the wrong place or never written at all shows up
// even though the checker only knows physical addresses.
package pattern

import (
	"encoding/binary"
	"fmt"

	"github.com/kmindg/tmp-sub158/lib/trace"
	"github.com/kmindg/tmp-sub158/raid/sector"
	"github.com/pkg/errors"
)

const (
	bytesPerToken  = 8
	tokensPerBlock = sector.BytesPerBlock / bytesPerToken
	tokensPerChunk = sector.BytesPerChunk / bytesPerToken

	headerMagic uint64 = 0x3154504445444553
	tokenSalt   uint64 = 0x9E3779B97F4A7C15
)

// Layout describes where the pattern lives in a payload
type Layout struct {
	HeaderBytes int // leading bytes holding the pattern metadata
	Pieces      int // number of pieces scanned when detecting
}

// DefaultLayout is a 16 byte header scanned in six pieces
var DefaultLayout = Layout{HeaderBytes: 16, Pieces: 6}

// NewLayout returns the default layout with the header size changed.
// A headerBytes of 0 keeps the default.
func NewLayout(headerBytes int) Layout {
	l := DefaultLayout
	if headerBytes > 0 {
		l.HeaderBytes = headerBytes
	}
	return l
}

// Check the layout can hold a detectable pattern
func (l Layout) Check() error {
	if l.HeaderBytes < 0 || l.HeaderBytes%bytesPerToken != 0 {
		return errors.Errorf("pattern header of %d bytes is not a whole number of tokens", l.HeaderBytes)
	}
	if l.Pieces < 2 || l.Pieces > sector.ChunksPerBlock {
		return errors.Errorf("pattern pieces %d out of range 2..%d", l.Pieces, sector.ChunksPerBlock)
	}
	if l.HeaderBytes+2*bytesPerToken > l.pieceTokens()*bytesPerToken {
		return errors.Errorf("pattern header of %d bytes leaves no token pair in the first piece", l.HeaderBytes)
	}
	return nil
}

func (l Layout) headerTokens() int {
	return l.HeaderBytes / bytesPerToken
}

// pieceTokens returns the tokens in each piece: a whole number of
// chunks.
func (l Layout) pieceTokens() int {
	return (sector.ChunksPerBlock / l.Pieces) * tokensPerChunk
}

func token(data []byte, i int) uint64 {
	return binary.LittleEndian.Uint64(data[i*bytesPerToken:])
}

func putToken(data []byte, i int, v uint64) {
	binary.LittleEndian.PutUint64(data[i*bytesPerToken:], v)
}

// Tokens returns the repeating token pair for seed and pass
func Tokens(seed uint64, pass uint32) (a, b uint64) {
	a = (seed ^ uint64(pass)<<48) * tokenSalt
	return a, ^a
}

// Fill writes a seeded pattern into the payload of s and sets the
// checksum to match.
func (l Layout) Fill(s *sector.Sector, seed uint64, pass uint32) {
	data := s.Data[:]
	header := []uint64{headerMagic, seed, uint64(pass)}
	hw := l.headerTokens()
	for i := 0; i < hw; i++ {
		var v uint64
		if i < len(header) {
			v = header[i]
		}
		putToken(data, i, v)
	}
	a, b := Tokens(seed, pass)
	for i := hw; i < tokensPerBlock; i++ {
		if (i-hw)%2 == 0 {
			putToken(data, i, a)
		} else {
			putToken(data, i, b)
		}
	}
	s.SetChecksum()
}

// HeaderSeed returns the seed recorded in the pattern header
func (l Layout) HeaderSeed(s *sector.Sector) (seed uint64, ok bool) {
	if l.headerTokens() < 2 || token(s.Data[:], 0) != headerMagic {
		return 0, false
	}
	return token(s.Data[:], 1), true
}

// headerPass returns the pass recorded in the pattern header.  Only
// headers of three or more tokens have room for it.
func (l Layout) headerPass(s *sector.Sector) (pass uint32, ok bool) {
	if l.headerTokens() < 3 || token(s.Data[:], 0) != headerMagic {
		return 0, false
	}
	return uint32(token(s.Data[:], 2)), true
}

// HasSeededPattern returns true if the payload of s looks like a
// seeded pattern.  l must pass Check.
//
// The token pair following the header in the first piece must be non
// zero and must recur in every other piece.
func (l Layout) HasSeededPattern(s *sector.Sector) bool {
	data := s.Data[:]
	hw := l.headerTokens()
	a, b := token(data, hw), token(data, hw+1)
	if a == 0 && b == 0 {
		return false
	}
	piece := l.pieceTokens()
	for p := 1; p < l.Pieces; p++ {
		start, end := p*piece, (p+1)*piece
		found := false
		for i := start; i+1 < end; i++ {
			if token(data, i) == a && token(data, i+1) == b {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MismatchError describes where a seeded pattern broke
type MismatchError struct {
	Chunk    int    // 32 byte chunk holding the bad token
	Word     int    // token index within the chunk
	Expected uint64 // token from the predecessor chunk
	Received uint64
	Seed     uint64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("pattern mismatch at chunk %d word %d: expected 0x%016x received 0x%016x seed 0x%x",
		e.Chunk, e.Word, e.Expected, e.Received, e.Seed)
}

// VerifySeededPattern checks s holds an intact pattern for seed.
//
// Every chunk after the first is compared with its predecessor.  Where
// the predecessor token is part of the header the nearest earlier
// token of the same phase is used instead, and the first token pair is
// compared with the pair the header's seed and pass generate.  The
// first discrepancy is traced with a sector dump and returned as a
// *MismatchError.
func (l Layout) VerifySeededPattern(s *sector.Sector, seed uint64) error {
	data := s.Data[:]
	if got, ok := l.HeaderSeed(s); ok && got != seed {
		err := &MismatchError{Chunk: 0, Word: 1, Expected: seed, Received: got, Seed: seed}
		l.traceMismatch(s, err)
		return err
	}
	hw := l.headerTokens()
	pass, havePass := l.headerPass(s)
	a, b := Tokens(seed, pass)
	for i := tokensPerChunk; i < tokensPerBlock; i++ {
		if i < hw {
			continue
		}
		prev := i - tokensPerChunk
		for prev < hw {
			prev += 2
		}
		var expected uint64
		switch {
		case prev < i:
			expected = token(data, prev)
		case !havePass:
			continue
		case (i-hw)%2 == 0:
			expected = a
		default:
			expected = b
		}
		if received := token(data, i); received != expected {
			err := &MismatchError{
				Chunk:    i / tokensPerChunk,
				Word:     i % tokensPerChunk,
				Expected: expected,
				Received: received,
				Seed:     seed,
			}
			l.traceMismatch(s, err)
			return err
		}
	}
	return nil
}

func (l Layout) traceMismatch(s *sector.Sector, err *MismatchError) {
	trace.Errorf(nil, "pattern: seed %v chunk %v word %v expected %v received %v",
		trace.LogValue("seed", fmt.Sprintf("0x%x", err.Seed)),
		trace.LogValue("chunk", err.Chunk),
		trace.LogValue("word", err.Word),
		trace.LogValue("expected", fmt.Sprintf("0x%016x", err.Expected)),
		trace.LogValue("received", fmt.Sprintf("0x%016x", err.Received)))
	trace.Dump(trace.LogLevelError, nil, sector.Dump(s))
}

// Fill writes a seeded pattern using DefaultLayout
func Fill(s *sector.Sector, seed uint64, pass uint32) {
	DefaultLayout.Fill(s, seed, pass)
}

// HasSeededPattern checks for a pattern using DefaultLayout
func HasSeededPattern(s *sector.Sector) bool {
	return DefaultLayout.HasSeededPattern(s)
}

// VerifySeededPattern verifies a pattern using DefaultLayout
func VerifySeededPattern(s *sector.Sector, seed uint64) error {
	return DefaultLayout.VerifySeededPattern(s, seed)
}
