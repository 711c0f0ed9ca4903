/*
DESCRIPTION
  vlctab.go builds the runtime decode tables the bit reader's ReadVLC
  consumes (flat max-length-wide lookup tables) from a profile's
  (code, bit_length) alphabets. Profiles own the alphabet data (C1);
  this package only builds the derived lookup structure, so it is
  rebuilt whenever the active CID changes and cached otherwise.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package vlctab builds decode-side VLC lookup tables from a profile's
// alphabet data, and caches one set per CID.
package vlctab

import (
	"fmt"
	"sync"

	"github.com/ausocean/dnxhd/codec/dnxhd/bits"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
)

// Tables holds the three decode tables a coding unit needs.
type Tables struct {
	AC  bits.VLCTable
	DC  bits.VLCTable
	Run bits.VLCTable
}

// build constructs a flat max-length-wide VLCTable from parallel
// (code, length) slices. Every full MaxLen-bit window whose top "length"
// bits equal a codeword maps to that codeword's symbol, matching
// ReadVLC's one-shot full-width lookup.
func build(maxLen int, codes []uint16, lens []uint8) bits.VLCTable {
	size := 1 << uint(maxLen)
	t := bits.VLCTable{MaxLen: maxLen, Symbol: make([]int, size), Len: make([]int, size)}
	for sym, length := range lens {
		if length == 0 {
			continue
		}
		code := codes[sym]
		shift := uint(maxLen) - uint(length)
		base := int(code) << shift
		for fill := 0; fill < 1<<shift; fill++ {
			idx := base + fill
			t.Symbol[idx] = sym
			t.Len[idx] = int(length)
		}
	}
	return t
}

// Build constructs decode Tables for p's AC, DC, and run alphabets.
func Build(p *profile.Profile) *Tables {
	acCodes := make([]uint16, len(p.AC))
	acLens := make([]uint8, len(p.AC))
	for i, e := range p.AC {
		acCodes[i] = e.Code
		acLens[i] = e.Len
	}
	dcCodes := make([]uint16, len(p.DC))
	dcLens := make([]uint8, len(p.DC))
	for i, e := range p.DC {
		dcCodes[i] = e.Code
		dcLens[i] = e.Len
	}
	runCodes := make([]uint16, len(p.Run))
	runLens := make([]uint8, len(p.Run))
	for i, e := range p.Run {
		runCodes[i] = e.Code
		runLens[i] = e.Len
	}

	return &Tables{
		AC:  build(9, acCodes, acLens),
		DC:  build(7, dcCodes, dcLens),
		Run: build(9, runCodes, runLens),
	}
}

var (
	cacheMu sync.Mutex
	cache   = map[uint32]*Tables{}
)

// ForCID returns the cached Tables for cid, building and caching them
// on first use.
func ForCID(cid uint32) (*Tables, error) {
	cacheMu.Lock()
	defer cacheMu.Unlock()
	if t, ok := cache[cid]; ok {
		return t, nil
	}
	p, err := profile.Lookup(cid)
	if err != nil {
		return nil, fmt.Errorf("vlctab: %w", err)
	}
	t := Build(p)
	cache[cid] = t
	return t, nil
}
