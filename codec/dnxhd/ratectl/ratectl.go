/*
DESCRIPTION
  ratectl.go implements per-macroblock qscale selection under a
  frame-size budget: a variance-based fast path (binary search plus a
  4-pass radix sort promoting the highest-variance macroblocks to a
  higher qscale) and a Lagrangian rate-distortion path (bisection over
  lambda). Both operate on caller-supplied per-(qscale, macroblock) bit
  cost and SSD tables; this package owns only the search, not the
  per-block cost measurement (see package block's Bits and Distortion
  helpers for cost inputs, and Variance below, which package frame feeds
  with 16x16 luma samples, for the variance input).

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package ratectl selects a per-macroblock qscale under a frame-size
// budget, via a variance-based fast path or a Lagrangian R-D search.
package ratectl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// ErrInfeasible is returned when no qscale in [1, qmax] meets the
// frame-size budget; callers should retry with a higher qmax.
var ErrInfeasible = fmt.Errorf("ratectl: rate control infeasible at this qmax")

// LambdaFracBits is the fixed-point shift applied to the Lagrangian
// multiplier and its SSD-side weighting term.
const LambdaFracBits = 10

// MinPaddingNitris is the slack, in bits, the fast path reserves per
// coding unit when Nitris-compat mode is enabled.
const MinPaddingNitris = 1600

// FrameBits returns the usable payload bit budget for a coding unit of
// codingUnitSize bytes, reserving the 640-byte header, 4-byte trailer,
// and minPadding bits of slack.
func FrameBits(codingUnitSize int, nitrisCompat bool) int {
	minPadding := 0
	if nitrisCompat {
		minPadding = MinPaddingNitris
	}
	return (codingUnitSize-640-4)*8 - minPadding
}

// pad32 rounds a bit count up to the next 32-bit boundary.
func pad32(bits int) int {
	return (bits + 31) &^ 31
}

// RowBits is a helper: given per-macroblock bit costs at a single
// qscale, returns the slice's total bits after per-slice 32-bit
// padding (slices are padded once as a whole, not per macroblock).
func RowBits(mbBits []int) int {
	total := 0
	for _, b := range mbBits {
		total += b
	}
	return pad32(total)
}

// TotalBits sums pad32(row bits) across all rows of a per-macroblock
// bit-cost slice laid out row-major at mbWidth macroblocks per row.
func TotalBits(mbBits []int, mbWidth int) int {
	total := 0
	rows := len(mbBits) / mbWidth
	for row := 0; row < rows; row++ {
		total += RowBits(mbBits[row*mbWidth : (row+1)*mbWidth])
	}
	return total
}

// FindQScale performs the fast path's initial binary search: the
// smallest q in [1, qmax] such that the whole frame's padded bit total
// at uniform qscale q is <= frameBits. bitsFor(q) returns the per-
// macroblock bit costs at uniform qscale q; it is invoked only for the
// qscales the search probes, so callers can measure costs lazily.
// FindQScale returns qmax (over budget) if no feasible q exists,
// matching the reference codec's "still try qmax, then fall through to
// promotion" behaviour.
func FindQScale(bitsFor func(q int) []int, mbWidth, qmax, frameBits int) int {
	lo, hi := 1, qmax
	best := qmax
	for lo <= hi {
		mid := (lo + hi) / 2
		if TotalBits(bitsFor(mid), mbWidth) <= frameBits {
			best = mid
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return best
}

// Variance returns the population variance of samples, used as the
// per-macroblock promotion key in the fast path (the reference codec
// computes the same quantity by hand per 16x16, or 16x16-plus-chroma
// at 10-bit, macroblock).
func Variance(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	mean := stat.Mean(samples, nil)
	var sum float64
	for _, s := range samples {
		d := s - mean
		sum += d * d
	}
	return sum / float64(len(samples))
}

// RadixSortDescending sorts mb indices by keys in descending order
// using a 4-pass, 8-bit-bucket radix sort (matching the reference
// codec's radix_sort: counting passes over bytes 0..3 of each 32-bit
// key, inverting the bucket index within each pass to produce a
// descending rather than ascending order).
func RadixSortDescending(keys []uint32) []int {
	n := len(keys)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if n == 0 {
		return idx
	}

	src := make([]int, n)
	copy(src, idx)
	dst := make([]int, n)

	for pass := 0; pass < 4; pass++ {
		shift := uint(8 * pass)
		var count [257]int
		for _, i := range src {
			b := byte(keys[i] >> shift)
			count[255-int(b)+1]++
		}
		for i := 1; i < 257; i++ {
			count[i] += count[i-1]
		}
		for _, i := range src {
			b := byte(keys[i] >> shift)
			bucket := 255 - int(b)
			dst[count[bucket]] = i
			count[bucket]++
		}
		src, dst = dst, src
	}
	return src
}

// PromoteByVariance implements the fast path's budget-closing step:
// given per-MB bit costs at the current qscale assignment and a
// descending-variance MB order, walks the order once, bumping each
// macroblock still below qmax by 1 until the frame fits frameBits; it
// returns ErrInfeasible if the frame still does not fit after that one
// pass. bitsAt(mb, q) must return the bit cost of macroblock mb at
// qscale q.
func PromoteByVariance(order []int, qscalePerMB []int, qmax int, mbWidth int, bitsAt func(mb, q int) int, frameBits int) error {
	rows := len(qscalePerMB) / mbWidth
	rowBits := make([]int, rows)
	for row := 0; row < rows; row++ {
		sum := 0
		for c := 0; c < mbWidth; c++ {
			mb := row*mbWidth + c
			sum += bitsAt(mb, qscalePerMB[mb])
		}
		rowBits[row] = sum
	}
	total := func() int {
		t := 0
		for _, b := range rowBits {
			t += pad32(b)
		}
		return t
	}

	for _, mb := range order {
		if total() <= frameBits {
			return nil
		}
		q := qscalePerMB[mb]
		if q >= qmax {
			continue
		}
		row := mb / mbWidth
		before := bitsAt(mb, q)
		after := bitsAt(mb, q+1)
		rowBits[row] += after - before
		qscalePerMB[mb] = q + 1
	}
	if total() <= frameBits {
		return nil
	}
	return ErrInfeasible
}

// RDSearch runs the Lagrangian bisection: bitsSSD[q][mb] gives the
// (bits, ssd) pair for macroblock mb at qscale index q (0-based,
// representing qscale q+1). It returns the chosen qscale per macroblock
// and the lambda the search converged on.
func RDSearch(bitsSSD [][]Cost, mbWidth, qmax, frameBits int) ([]int, int, error) {
	nmb := len(bitsSSD[0])
	lambda := 2 << LambdaFracBits
	lowerLambda, higherLambda := -1, -1
	downStep, upStep := 1<<LambdaFracBits, 1<<LambdaFracBits

	var choose func(lambda int) ([]int, int)
	choose = func(lambda int) ([]int, int) {
		qPerMB := make([]int, nmb)
		totalBits := 0
		rows := nmb / mbWidth
		rowBits := make([]int, rows)
		for mb := 0; mb < nmb; mb++ {
			bestQ := 0
			bestCost := math.MaxInt64
			for q := 0; q < qmax; q++ {
				c := bitsSSD[q][mb]
				cost := int64(c.Bits)*int64(lambda) + c.SSD*(1<<LambdaFracBits)
				if cost < int64(bestCost) {
					bestCost = int(cost)
					bestQ = q
				}
			}
			qPerMB[mb] = bestQ + 1
			row := mb / mbWidth
			rowBits[row] += bitsSSD[bestQ][mb].Bits
		}
		for _, b := range rowBits {
			totalBits += pad32(b)
		}
		return qPerMB, totalBits
	}

	var lastQ []int
	for iter := 0; iter < 64; iter++ {
		q, total := choose(lambda)
		lastQ = q
		if total <= frameBits {
			higherLambda = lambda
			if lowerLambda >= 0 && higherLambda-lowerLambda <= 1 {
				return q, lambda, nil
			}
			if lowerLambda < 0 {
				lambda -= downStep
				downStep *= 5
				if lambda < 1 {
					lambda = 1
				}
			} else {
				lambda = (lowerLambda + higherLambda) / 2
			}
		} else {
			lowerLambda = lambda
			if higherLambda >= 0 && higherLambda-lowerLambda <= 1 {
				return lastQ, lambda, ErrInfeasible
			}
			if higherLambda < 0 {
				lambda += upStep
				upStep *= 5
			} else {
				lambda = (lowerLambda + higherLambda) / 2
			}
		}
	}
	return lastQ, lambda, ErrInfeasible
}

// Cost is one macroblock's bit cost and distortion at a given qscale,
// the shape callers build RDSearch's bits/ssd table from.
type Cost struct {
	Bits int
	SSD  int64
}

// NewCost constructs a Cost.
func NewCost(bits int, ssd int64) Cost {
	return Cost{Bits: bits, SSD: ssd}
}
