/*
DESCRIPTION
  dsp.go defines the DSP contract consumed by the codec core (forward and
  inverse 8x8 DCT, pixel gather/scatter, and the reductions the rate
  controller's fast path needs) and provides a reference, pure-Go
  implementation of it.

  The core treats this contract as an external collaborator (the codec is
  defined by its CID-table-driven weighting, not by transform internals),
  so Reference here is a correctness-first implementation rather than a
  tuned one; a platform build is free to supply an Interface backed by
  SIMD without touching any other package.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dsp defines the external DSP contract the DNxHD core is built
// against (8x8 integer DCT/IDCT, pixel gather/scatter, block reductions)
// and ships a reference implementation of it.
package dsp

// Block is a natural-order 8x8 transform block, 64 entries, row-major.
type Block [64]int32

// Interface is the DSP contract the codec core consumes. Implementations
// need not be bit-exact to any particular reference decoder's transform;
// the core only requires that FDCT and IDCT form a consistent forward/
// inverse pair and that IDCTPermutation matches whatever coefficient
// reordering IDCT expects of its input.
type Interface interface {
	// FDCT performs a forward 8x8 DCT on block, in place.
	FDCT(block *Block)

	// IDCT performs an inverse 8x8 DCT on block, in place.
	IDCT(block *Block)

	// IDCTPut performs an inverse 8x8 DCT on block and writes the result,
	// clamped to the sample range implied by bitDepth (8 or 10), into dst
	// at the given byte stride. 10-bit samples are written as 2 bytes
	// each, little-endian, low byte first.
	IDCTPut(dst []byte, stride int, block *Block, bitDepth int)

	// GetPixels copies an 8x8 region from src (at stride) into dst,
	// lifting samples into the transform working range: <<3 at 8-bit,
	// <<2 at 10-bit. The lift is what makes the DC quantizer's
	// (round, shift) pairs and the dequantizer's level shifts land
	// reconstructed coefficients back on sample scale.
	GetPixels(dst *Block, src []byte, stride int, bitDepth int)

	// ClearBlock zeroes all 64 entries of dst.
	ClearBlock(dst *Block)

	// PixSum returns the sum of an 8x8 region's samples.
	PixSum(src []byte, stride int, bitDepth int) int64

	// PixNorm1 returns the sum of squares of an 8x8 region's samples.
	PixNorm1(src []byte, stride int, bitDepth int) int64

	// IDCTPermutation returns the coefficient permutation IDCT/IDCTPut
	// expect of their input blocks; the scan builder composes this with
	// the zig-zag scan (see package scan). An identity permutation means
	// IDCT consumes natural-order blocks unchanged.
	IDCTPermutation() [64]uint8
}
