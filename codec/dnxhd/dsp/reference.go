/*
DESCRIPTION
  reference.go is the correctness-first Interface implementation: a
  separable fixed-point 8-point DCT-II/DCT-III pair with no coefficient
  permutation.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package dsp

import "math"

// Reference is a straightforward, correctness-first implementation of
// Interface using a separable 8-point DCT-II/DCT-III pair in fixed-point
// arithmetic. It requires no coefficient permutation (IDCTPermutation is
// the identity), so the scan table built from it is the plain zig-zag
// scan.
//
// This is implemented directly on basic arithmetic rather than imported
// from an ecosystem DSP library: the pack's only DSP/transform
// dependency, mjibson/go-dsp, offers FFT-oriented routines over float64
// and has no notion of the fixed-point, saturating, bit-exact-per-profile
// transform this codec's round-trip and rate-control invariants depend
// on, so adopting it would trade correctness for dependency count.
type Reference struct{}

const (
	fixShift = 14
	fixOne   = 1 << fixShift
)

// basis[u][x] holds round(fixOne * C(u) * cos((2x+1)u*pi/16)) so that the
// forward and inverse transforms are simple fixed-point matrix multiplies.
var basis [8][8]int32

func init() {
	for u := 0; u < 8; u++ {
		cu := 1.0
		if u == 0 {
			cu = 1.0 / math.Sqrt2
		}
		for x := 0; x < 8; x++ {
			v := cu * math.Cos((2*float64(x)+1)*float64(u)*math.Pi/16)
			basis[u][x] = int32(math.Round(v * fixOne))
		}
	}
}

// FDCT implements Interface.
func (Reference) FDCT(block *Block) {
	var tmp [64]int64
	// Rows: 1D DCT along x for each of the 8 rows.
	for y := 0; y < 8; y++ {
		for u := 0; u < 8; u++ {
			var sum int64
			for x := 0; x < 8; x++ {
				sum += int64(block[y*8+x]) * int64(basis[u][x])
			}
			tmp[y*8+u] = sum
		}
	}
	// Columns: 1D DCT along y for each of the 8 columns, producing the
	// final 2D coefficients scaled by 0.5 per axis as DCT-II convention.
	for u := 0; u < 8; u++ {
		for v := 0; v < 8; v++ {
			var sum int64
			for y := 0; y < 8; y++ {
				sum += tmp[y*8+u] * int64(basis[v][y])
			}
			// Two fixShift factors from the two 1D passes, plus the 0.5
			// per axis DCT-II normalisation (an extra /4 total).
			block[v*8+u] = int32((sum + (1 << uint(2*fixShift+1))) >> uint(2*fixShift+2))
		}
	}
}

// IDCT implements Interface.
func (Reference) IDCT(block *Block) {
	var tmp [64]int64
	for v := 0; v < 8; v++ {
		for x := 0; x < 8; x++ {
			var sum int64
			for u := 0; u < 8; u++ {
				sum += int64(block[v*8+u]) * int64(basis[u][x])
			}
			tmp[v*8+x] = sum
		}
	}
	for x := 0; x < 8; x++ {
		for y := 0; y < 8; y++ {
			var sum int64
			for v := 0; v < 8; v++ {
				sum += tmp[v*8+x] * int64(basis[v][y])
			}
			block[y*8+x] = int32((sum + (1 << uint(2*fixShift+1))) >> uint(2*fixShift+2))
		}
	}
}

func clampSample(v int32, bitDepth int) int32 {
	max := int32(1<<uint(bitDepth)) - 1
	switch {
	case v < 0:
		return 0
	case v > max:
		return max
	default:
		return v
	}
}

// IDCTPut implements Interface.
func (r Reference) IDCTPut(dst []byte, stride int, block *Block, bitDepth int) {
	b := *block
	r.IDCT(&b)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			v := clampSample(b[y*8+x], bitDepth)
			if bitDepth == 8 {
				dst[y*stride+x] = byte(v)
			} else {
				off := y*stride + 2*x
				dst[off] = byte(v)
				dst[off+1] = byte(v >> 8)
			}
		}
	}
}

// GetPixels implements Interface. Samples are lifted into the transform
// working range (<<3 at 8-bit, <<2 at 10-bit) so that the DC and AC
// quantizer constants land back on sample scale after their shifts.
func (Reference) GetPixels(dst *Block, src []byte, stride int, bitDepth int) {
	shift := uint(3)
	if bitDepth == 10 {
		shift = 2
	}
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if bitDepth == 8 {
				dst[y*8+x] = int32(src[y*stride+x]) << shift
			} else {
				off := y*stride + 2*x
				dst[y*8+x] = (int32(src[off]) | int32(src[off+1])<<8) << shift
			}
		}
	}
}

// ClearBlock implements Interface.
func (Reference) ClearBlock(dst *Block) {
	for i := range dst {
		dst[i] = 0
	}
}

// PixSum implements Interface.
func (Reference) PixSum(src []byte, stride int, bitDepth int) int64 {
	var sum int64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			if bitDepth == 8 {
				sum += int64(src[y*stride+x])
			} else {
				off := y*stride + 2*x
				sum += int64(src[off]) | int64(src[off+1])<<8
			}
		}
	}
	return sum
}

// PixNorm1 implements Interface.
func (Reference) PixNorm1(src []byte, stride int, bitDepth int) int64 {
	var sum int64
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			var v int64
			if bitDepth == 8 {
				v = int64(src[y*stride+x])
			} else {
				off := y*stride + 2*x
				v = int64(src[off]) | int64(src[off+1])<<8
			}
			sum += v * v
		}
	}
	return sum
}

// IDCTPermutation implements Interface; Reference needs no permutation.
func (Reference) IDCTPermutation() [64]uint8 {
	var p [64]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	return p
}
