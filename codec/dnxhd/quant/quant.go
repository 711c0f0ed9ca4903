/*
DESCRIPTION
  quant.go implements the dead-zone scalar quantizer and its matching
  dequantizer: per-qscale scaled weighting tables, forward quantization
  with the unsigned dead-zone threshold trick, and the asymmetric
  inverse used both by the block decoder and by RD-mode distortion
  estimation.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package quant implements the DNxHD dead-zone scalar quantizer and its
// inverse.
package quant

const (
	// QMatShift is the fixed-point shift used throughout quantization.
	QMatShift = 18
	// QuantBiasShift scales the configurable quant_bias into QMatShift
	// fixed point.
	QuantBiasShift = 8
	// DefaultQuantBias is 3 << (QuantBiasShift-3), the reference
	// codec's default intra quantization bias.
	DefaultQuantBias = 3 << (QuantBiasShift - 3)
)

// Matrix is a qscale-scaled weighting table in natural 8x8 order.
type Matrix [64]int64

// BuildMatrix builds qmatrix[q][i] = (num << QMatShift) / (q * weight[i])
// for the given bit depth (num=4 for 8-bit, num=2 for 10-bit).
func BuildMatrix(weight *[64]uint16, qscale, bitDepth int) Matrix {
	num := int64(4)
	if bitDepth == 10 {
		num = 2
	}
	var m Matrix
	for i, w := range weight {
		denom := int64(qscale) * int64(w)
		m[i] = (num << QMatShift) / denom
	}
	return m
}

// Quantize forward-quantizes one coefficient: level = coeff * qmatrix[i],
// then applies the dead-zone threshold test and returns the signed
// integer level (0 if the coefficient falls in the dead zone).
func Quantize(coeff int32, qmat int64, quantBias int64) int32 {
	level := int64(coeff) * qmat
	bias := quantBias << (QMatShift - QuantBiasShift)

	threshold1 := (int64(1) << QMatShift) - bias - 1
	threshold2 := 2 * threshold1

	if level >= 0 {
		if uint64(level+threshold1) > uint64(threshold2) {
			return int32((level + bias) >> QMatShift)
		}
		return 0
	}
	if uint64(-level+threshold1) > uint64(threshold2) {
		return -int32(((-level) + bias) >> QMatShift)
	}
	return 0
}

// QuantizeDC quantizes the DC coefficient: (coeff+round)>>shift, with
// (round, shift) = (4, 3) for 8-bit and (2, 2) for 10-bit.
func QuantizeDC(coeff int32, bitDepth int) int32 {
	round, shift := int32(4), uint(3)
	if bitDepth == 10 {
		round, shift = 2, 2
	}
	return (coeff + round) >> shift
}

// Dequantize is the asymmetric inverse quantizer used by both the block
// decoder and RD-mode distortion estimation: for magnitude m and sign
// s, out = s * (((2m+1)*q*weight + levelBias) >> levelShift), where
// levelBias is skipped (added as 0) when weight equals the canonical
// levelBias value (32 for 8-bit, 8 for 10-bit) -- this is the same
// "skip bias when weight==level_bias" branch the block decoder applies
// directly during AC reconstruction.
func Dequantize(level int32, qscale int, weight uint16, bitDepth int) int32 {
	levelBias, shift := int64(32), uint(6)
	if bitDepth == 10 {
		levelBias, shift = 8, 4
	}
	sign := int64(1)
	m := int64(level)
	if m < 0 {
		sign = -1
		m = -m
	}
	bias := levelBias
	if uint16(levelBias) == weight {
		bias = 0
	}
	out := ((2*m+1)*int64(qscale)*int64(weight) + bias) >> shift
	return int32(sign * out)
}
