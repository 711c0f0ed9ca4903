/*
DESCRIPTION
  macroblock.go packs and unpacks one 16x16 4:2:2 macroblock as its
  eight constituent 8x8 blocks (Y0 Y1 U0 V0 Y2 Y3 U1 V1), including the
  1080-line vertical-symmetry trick the encoder uses to synthesise a
  final macroblock row that doesn't exist in the source field.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package macroblock packs and unpacks one 16x16 4:2:2 macroblock as
// eight 8x8 DCT blocks.
package macroblock

import (
	"fmt"

	"github.com/ausocean/dnxhd/codec/dnxhd/bits"
	"github.com/ausocean/dnxhd/codec/dnxhd/block"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/codec/dnxhd/quant"
	"github.com/ausocean/dnxhd/codec/dnxhd/scan"
	"github.com/ausocean/dnxhd/codec/dnxhd/vlctab"
)

// Planes is a caller-owned set of planar YUV 4:2:2 sample buffers with
// known strides (bytes per 8-bit sample row, or bytes per row for
// 10-bit samples packed 2 bytes each).
type Planes struct {
	Y, U, V          []byte
	StrideY, StrideC int
}

// QScaleBits is the width of the qscale field at the start of every
// macroblock payload, followed by one reserved bit.
const QScaleBits = 11

// LastDC holds the three per-component DC predictors, reset to
// 1<<(bit_depth+2) at the start of every slice.
type LastDC [3]int32

// ResetLastDC returns the initial predictor state for a slice.
func ResetLastDC(bitDepth int) LastDC {
	v := int32(1) << uint(bitDepth+2)
	return LastDC{v, v, v}
}

// blockOrder maps the 8 in-macroblock block indices to their component
// (0=Y,1=U,2=V), matching the Y0 Y1 U0 V0 Y2 Y3 U1 V1 wire order.
var blockOrder = [8]int{0, 0, 1, 2, 0, 0, 1, 2}

func weightOf(blk int) block.Weight {
	switch blk {
	case 0, 1, 4, 5:
		return block.Luma
	default:
		return block.Chroma
	}
}

// DecodeMB reads one macroblock from r at macroblock column mbx, row
// mby, into planes, dequantizing every block at the qscale read from the
// macroblock header. It returns that qscale and the updated LastDC state.
func DecodeMB(r *bits.Reader, p *profile.Profile, tabs *vlctab.Tables, scn scan.Table, d dsp.Interface, planes *Planes, mbx, mby int, fieldStride bool, bottomFieldOffset bool, last LastDC) (int, LastDC, error) {
	qscale, err := r.ReadBits(QScaleBits)
	if err != nil {
		return 0, last, fmt.Errorf("macroblock: %w", err)
	}
	r.SkipBits(1)

	var blk dsp.Block
	for i := 0; i < 8; i++ {
		var coeffs [64]int32
		lastDC, err := block.Decode(r, p, tabs, scn, weightOf(i), int(qscale), last[blockOrder[i]], &coeffs)
		if err != nil {
			return int(qscale), last, err
		}
		last[blockOrder[i]] = lastDC

		for j := range blk {
			blk[j] = coeffs[j]
		}
		dst, stride := placement(planes, mbx, mby, i, fieldStride, bottomFieldOffset, p.BitDepth)
		d.IDCTPut(dst, stride, &blk, p.BitDepth)
	}
	return int(qscale), last, nil
}

// placement returns the destination byte slice (windowed to the 8x8
// block's top-left corner) and its row stride, for block index blk
// within macroblock (mbx, mby).
func placement(p *Planes, mbx, mby, blk int, fieldStride, bottomField bool, bitDepth int) ([]byte, int) {
	// Column within the macroblock in 8-pixel units, row in 8-pixel
	// units, and plane, following the Y0 Y1 U0 V0 Y2 Y3 U1 V1 layout:
	// the top 16x8 luma strip holds Y0,Y1 side by side, chroma holds
	// one 8x8 U and one 8x8 V per strip, and the bottom strip repeats
	// with Y2,Y3,U1,V1.
	type pos struct {
		plane    int // 0=Y,1=U,2=V
		col, row int
	}
	layout := [8]pos{
		{0, 0, 0}, {0, 1, 0},
		{1, 0, 0}, {2, 0, 0},
		{0, 0, 1}, {0, 1, 1},
		{1, 0, 1}, {2, 0, 1},
	}
	lp := layout[blk]

	var buf []byte
	var stride int
	var x, y int
	switch lp.plane {
	case 0:
		buf, stride = p.Y, p.StrideY
		x = mbx*16 + lp.col*8
		y = mby*16 + lp.row*8
	case 1:
		buf, stride = p.U, p.StrideC
		x = mbx*8 + lp.col*8
		y = mby*16 + lp.row*8
	default:
		buf, stride = p.V, p.StrideC
		x = mbx*8 + lp.col*8
		y = mby*16 + lp.row*8
	}

	rowStride := stride
	if fieldStride {
		rowStride = stride * 2
	}

	bpp := 1
	if bitDepth == 10 {
		bpp = 2
	}
	off := y*rowStride + x*bpp
	// The bottom field's physical rows are one line below the
	// corresponding top-field row, not one doubled field-row below it:
	// bias by a single (undoubled) stride, matching the reference's
	// "ptr = data + (field ? linesize : 0); linesize *= 2".
	if fieldStride && bottomField && lp.plane == 0 {
		off += stride
	}
	return buf[off:], rowStride
}

// EncodeMB quantizes and writes one macroblock's 8 blocks, having
// already gathered them into blk via dsp.GetPixels (and, on 1080's
// final field row, the 8x4 vertical-symmetry synthesis in Synth8x4).
func EncodeMB(w *bits.Writer, p *profile.Profile, scn scan.Table, lumaMat, chromaMat *quant.Matrix, quantBias int64, qscale int, blocks *[8]dsp.Block, last LastDC) (LastDC, error) {
	w.PutBits(uint32(qscale), QScaleBits)
	w.PutBits(0, 1)

	for i := 0; i < 8; i++ {
		mat := lumaMat
		if weightOf(i) == block.Chroma {
			mat = chromaMat
		}
		var nat [64]int32
		for j := range nat {
			nat[j] = blocks[i][j]
		}
		newDC, err := block.Encode(w, p, scn, mat, quantBias, last[blockOrder[i]], &nat)
		if err != nil {
			return last, fmt.Errorf("macroblock: block %d: %w", i, err)
		}
		last[blockOrder[i]] = newDC
	}
	return last, nil
}

// Synth8x4 overwrites the bottom 4 rows of an 8x8 natural-order sample
// window with a mirror of the top 4 rows, used when a macroblock row at
// the bottom of a 1080 field has no real source samples to gather.
func Synth8x4(dst []byte, stride, bitDepth int) {
	bpp := 1
	if bitDepth == 10 {
		bpp = 2
	}
	for row := 0; row < 4; row++ {
		src := dst[row*stride : row*stride+8*bpp]
		dstRow := dst[(7-row)*stride : (7-row)*stride+8*bpp]
		copy(dstRow, src)
	}
}
