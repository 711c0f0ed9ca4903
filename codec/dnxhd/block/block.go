/*
DESCRIPTION
  block.go codes a single 8x8 DCT block: DC differential plus AC
  run/level pairs terminated by an end-of-block symbol. Decode consumes
  a bit reader and a VLC-built decode table; encode consumes a
  quantized, scanned coefficient block and a bit writer.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package block encodes and decodes single 8x8 DCT blocks: DC
// differential plus AC run/level pairs.
package block

import (
	"fmt"

	"github.com/ausocean/dnxhd/codec/dnxhd/bits"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/codec/dnxhd/quant"
	"github.com/ausocean/dnxhd/codec/dnxhd/scan"
	"github.com/ausocean/dnxhd/codec/dnxhd/vlctab"
)

// ErrDamaged marks a block whose AC stream could not be fully decoded;
// callers abort the containing slice and leave the remaining
// coefficients (and those of subsequent blocks in the slice) zeroed.
var ErrDamaged = fmt.Errorf("block: damaged AC stream")

// Weight selects which of a profile's weight tables (and hence which
// scaled quant matrix) a block position uses.
type Weight int

const (
	Luma Weight = iota
	Chroma
)

// Decode reads one 8x8 block from r using tabs (the profile's built VLC
// tables) and scn (the composed scan table), writing natural-order
// coefficients into dst. lastDC is the running DC predictor for this
// block's component; Decode returns the updated predictor.
//
// dst is assumed zeroed by the caller; on ErrDamaged, dst holds
// whatever coefficients were successfully decoded before the fault and
// the caller should treat the rest of the slice as abandoned.
func Decode(r *bits.Reader, p *profile.Profile, tabs *vlctab.Tables, scn scan.Table, w Weight, qscale int, lastDC int32, dst *[64]int32) (int32, error) {
	dcSym, err := r.ReadVLC(&tabs.DC)
	if err != nil {
		return lastDC, ErrDamaged
	}
	dc := lastDC
	nbits := dcSym
	if nbits > 0 {
		v, err := r.ReadBits(nbits)
		if err != nil {
			return lastDC, ErrDamaged
		}
		// Extend: a clear top bit marks a negative differential stored
		// ones'-complement style (see the matching encode-side diff--).
		diff := int32(v)
		if v>>uint(nbits-1) == 0 {
			diff = int32(v) - (1 << uint(nbits)) + 1
		}
		dc += diff
	}
	dst[0] = dc

	weight := &p.LumaWeight
	if w == Chroma {
		weight = &p.ChromaWeight
	}

	// i runs 1..63 addressing AC scan positions, matching the reference
	// decoder's for(i=1;;i++) loop: a run VLC advances i by more than
	// one before the current symbol is placed.
	i := 1
	for {
		sym, err := r.ReadVLC(&tabs.AC)
		if err != nil {
			return dc, ErrDamaged
		}
		if sym == p.EOBIndex {
			break
		}
		entry := p.AC[sym]

		signBit, err := r.ReadBits(1)
		if err != nil {
			return dc, ErrDamaged
		}

		level := int(entry.Level)
		if entry.Ext {
			extra, err := r.ReadBits(p.IndexBits)
			if err != nil {
				return dc, ErrDamaged
			}
			level = p.DecodeLevel(sym, uint32(extra))
		}
		if signBit != 0 {
			level = -level
		}

		if entry.Run {
			rsym, err := r.ReadVLC(&tabs.Run)
			if err != nil {
				return dc, ErrDamaged
			}
			i += int(p.Run[rsym].Run)
		}

		if i > 63 {
			return dc, ErrDamaged
		}

		j := scn[i]
		dst[j] = quant.Dequantize(int32(level), qscale, weight[j], p.BitDepth)
		i++
	}
	return dc, nil
}

// log2_16bit returns floor(log2(v)) (0 for v==0), used to size a DC
// differential's raw magnitude field.
func log2_16bit(v uint32) int {
	n := 0
	for v > 1 {
		v >>= 1
		n++
	}
	return n
}

// dcField returns the size class and raw field value coding the DC
// differential: nbits = floor(log2(2|diff|)), positives stored as-is
// (top bit set by construction), negatives stored as (diff-1)'s low
// bits (top bit clear), the ones'-complement split that keeps the two
// ranges disjoint within nbits bits.
func dcField(diff int32) (nbits int, raw uint32) {
	adiff := diff
	stored := diff
	if diff < 0 {
		adiff = -diff
		stored = diff - 1
	}
	nbits = log2_16bit(uint32(2 * adiff))
	if nbits == 0 {
		return 0, 0
	}
	return nbits, uint32(stored) & ((1 << uint(nbits)) - 1)
}

// Encode quantizes and writes one 8x8 natural-order block (post-FDCT)
// to w, using qmat (the qscale-scaled weight table in natural order, see
// quant.BuildMatrix) and quantBias (QMatShift fixed-point dead-zone
// bias). lastDC is the running DC predictor for this block's component;
// Encode returns the updated predictor.
func Encode(w *bits.Writer, p *profile.Profile, scn scan.Table, qmat *quant.Matrix, quantBias int64, lastDC int32, block *[64]int32) (int32, error) {
	dcQ := quant.QuantizeDC(block[0], p.BitDepth)
	diff := dcQ - lastDC
	nbits, raw := dcField(diff)
	if nbits >= len(p.DC) {
		return lastDC, fmt.Errorf("block: DC differential %d too large for profile", diff)
	}
	dcEntry := p.DC[nbits]
	w.PutBits(uint32(dcEntry.Code), int(dcEntry.Len))
	if nbits > 0 {
		w.PutBits(raw, nbits)
	}

	lastNonZero := 0
	for i := 1; i < 64; i++ {
		j := scn[i]
		lvl := quant.Quantize(block[j], int64(qmat[j]), quantBias)
		if lvl == 0 {
			continue
		}
		run := i - lastNonZero - 1
		abslvl := clampLevel(lvl, p.MaxLevel())
		sym, offset, ext, err := p.EncodeLevel(abslvl, run > 0)
		if err != nil {
			return lastDC, err
		}
		e := p.AC[sym]
		w.PutBits(uint32(e.Code), int(e.Len))
		if lvl < 0 {
			w.PutBits(1, 1)
		} else {
			w.PutBits(0, 1)
		}
		if ext {
			w.PutBits(offset, p.IndexBits)
		}
		if run > 0 {
			rsym := run - 1
			re := p.Run[rsym]
			w.PutBits(uint32(re.Code), int(re.Len))
		}
		lastNonZero = i
	}

	eob := p.AC[p.EOBIndex]
	w.PutBits(uint32(eob.Code), int(eob.Len))

	return dcQ, nil
}

// clampLevel returns |lvl| saturated to maxLevel-1, the alphabet's
// representable ceiling. Quantized levels only reach the ceiling for
// pathological blocks at very low qscale; saturating there costs a
// little reconstruction accuracy instead of failing the slice.
func clampLevel(lvl int32, maxLevel int) int {
	a := int(lvl)
	if a < 0 {
		a = -a
	}
	if a >= maxLevel {
		a = maxLevel - 1
	}
	return a
}

// Bits computes the bit cost of encoding one 8x8 natural-order block at
// a given qscale without writing a bitstream, for the rate controller's
// per-(qscale, block) cost precompute. It returns the bit count and the
// DC predictor Encode would leave behind.
func Bits(p *profile.Profile, scn scan.Table, qmat *quant.Matrix, quantBias int64, lastDC int32, block *[64]int32) (int, int32, error) {
	dcQ := quant.QuantizeDC(block[0], p.BitDepth)
	diff := dcQ - lastDC
	nbits, _ := dcField(diff)
	if nbits >= len(p.DC) {
		return 0, lastDC, fmt.Errorf("block: DC differential %d too large for profile", diff)
	}
	total := int(p.DC[nbits].Len) + nbits

	lastNonZero := 0
	for i := 1; i < 64; i++ {
		j := scn[i]
		lvl := quant.Quantize(block[j], int64(qmat[j]), quantBias)
		if lvl == 0 {
			continue
		}
		run := i - lastNonZero - 1
		abslvl := clampLevel(lvl, p.MaxLevel())
		sym, _, ext, err := p.EncodeLevel(abslvl, run > 0)
		if err != nil {
			return 0, lastDC, err
		}
		total += int(p.AC[sym].Len) + 1 // +1 sign bit
		if ext {
			total += p.IndexBits
		}
		if run > 0 {
			total += int(p.Run[run-1].Len)
		}
		lastNonZero = i
	}
	total += int(p.AC[p.EOBIndex].Len)
	return total, dcQ, nil
}

// Distortion is Bits plus the sum of squared reconstruction error this
// block would incur at qscale, for the Lagrangian RD path's per-
// (qscale, block) cost precompute. Reconstruction reuses
// quant.Dequantize on the just-computed quantized levels rather than
// re-deriving it, which is exactly the "reversible for rate-distortion
// estimation" property the dead-zone quantizer is built for (see
// package quant's doc comment).
func Distortion(p *profile.Profile, scn scan.Table, qmat *quant.Matrix, weight *[64]uint16, quantBias int64, qscale int, lastDC int32, block *[64]int32) (bitsOut int, ssd int64, newDC int32, err error) {
	dcQ := quant.QuantizeDC(block[0], p.BitDepth)
	diff := dcQ - lastDC
	nbits, _ := dcField(diff)
	if nbits >= len(p.DC) {
		return 0, 0, lastDC, fmt.Errorf("block: DC differential %d too large for profile", diff)
	}
	total := int(p.DC[nbits].Len) + nbits

	// The block arrives in the lifted transform domain (see
	// dsp.GetPixels); dequantized levels come back on sample scale, so
	// both reconstruction terms are re-lifted before differencing.
	scaleShift := uint(3)
	if p.BitDepth == 10 {
		scaleShift = 2
	}
	d0 := int64(block[0]) - int64(dcQ)<<scaleShift
	ssd = d0 * d0

	lastNonZero := 0
	for i := 1; i < 64; i++ {
		j := scn[i]
		lvl := quant.Quantize(block[j], int64(qmat[j]), quantBias)
		if lvl == 0 {
			d := int64(block[j])
			ssd += d * d
			continue
		}
		run := i - lastNonZero - 1
		abslvl := clampLevel(lvl, p.MaxLevel())
		sym, _, ext, err := p.EncodeLevel(abslvl, run > 0)
		if err != nil {
			return 0, 0, lastDC, err
		}
		total += int(p.AC[sym].Len) + 1 // +1 sign bit
		if ext {
			total += p.IndexBits
		}
		if run > 0 {
			total += int(p.Run[run-1].Len)
		}
		recon := int64(quant.Dequantize(lvl, qscale, weight[j], p.BitDepth)) << scaleShift
		d := int64(block[j]) - recon
		ssd += d * d
		lastNonZero = i
	}
	total += int(p.AC[p.EOBIndex].Len)
	return total, ssd, dcQ, nil
}
