/*
DESCRIPTION
  scan.go composes the canonical zig-zag scan order with a DSP-supplied
  IDCT coefficient permutation, producing the single scan table consumed
  by the block codec (C6) when it addresses natural 8x8 block positions.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package scan builds the zig-zag/IDCT-permutation composed scan table
// used to address 8x8 DCT block coefficients in bitstream order.
package scan

// ZigZag is the canonical 8x8 zig-zag scan: ZigZag[i] is the natural
// (row-major) position of the i-th coefficient in zig-zag order.
var ZigZag = [64]uint8{
	0, 1, 8, 16, 9, 2, 3, 10,
	17, 24, 32, 25, 18, 11, 4, 5,
	12, 19, 26, 33, 40, 48, 41, 34,
	27, 20, 13, 6, 7, 14, 21, 28,
	35, 42, 49, 56, 57, 50, 43, 36,
	29, 22, 15, 23, 30, 37, 44, 51,
	58, 59, 52, 45, 38, 31, 39, 46,
	53, 60, 61, 54, 47, 55, 62, 63,
}

// Table is the composed scan: Table[0] addresses the DC coefficient, and
// Table[i] for i>0 addresses the natural-order position holding the i-th
// AC coefficient in zig-zag order, after applying the target IDCT's
// coefficient permutation.
type Table [64]uint8

// Build composes ZigZag with idctPermutation (a DSP-supplied 64-entry
// permutation of natural block positions) to produce the scan table used
// throughout the block and macroblock codecs. It is the "permute" step of
// the reference codec: Table[i] = idctPermutation[ZigZag[i]].
func Build(idctPermutation [64]uint8) Table {
	var t Table
	for i, z := range ZigZag {
		t[i] = idctPermutation[z]
	}
	return t
}

// Identity returns the permutation that leaves natural block order
// unchanged, for IDCT implementations that require no coefficient
// reordering (FF_NO_IDCT_PERM in the reference codec).
func Identity() [64]uint8 {
	var p [64]uint8
	for i := range p {
		p[i] = uint8(i)
	}
	return p
}
