/*
NAME
  dnxhdplot/main.go

DESCRIPTION
  dnxhdplot renders a bits-vs-qscale and SSD-vs-qscale rate-distortion
  curve for one 8x8 luma block sampled from a raw planar frame, the
  same per-(qscale, block) cost table package ratectl's Lagrangian
  search walks (see block.Distortion), as an offline diagnostic for
  picking qmax/nitris_compat before committing to a capture or batch
  encode run.

  Specify the input raw 4:2:2 frame with the in flag, its CID with the
  cid flag (this fixes width/height/bit depth and the luma weight
  table), and the top-left pixel of the 8x8 block to sample with the x
  and y flags. The output PNG path is given by the out flag.

AUTHOR
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/ausocean/dnxhd/codec/dnxhd/block"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp/dspmmx"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/codec/dnxhd/quant"
	"github.com/ausocean/dnxhd/codec/dnxhd/scan"
)

// Consts describing flag usage.
const (
	inUsage   = "path to a raw planar 4:2:2 frame matching -cid's geometry"
	cidUsage  = "DNxHD/VC-3 CID the sampled block's weight table and bit depth are taken from"
	xUsage    = "column, in pixels, of the 8x8 luma block to sample"
	yUsage    = "row, in pixels, of the 8x8 luma block to sample"
	outUsage  = "output PNG path for the rate-distortion curve"
	qmaxUsage = "largest qscale to plot"
)

func main() {
	var (
		inPath = flag.String("in", "", inUsage)
		cid    = flag.Uint("cid", uint(profile.CID1237), cidUsage)
		x      = flag.Int("x", 0, xUsage)
		y      = flag.Int("y", 0, yUsage)
		outPath = flag.String("out", "rd.png", outUsage)
		qmax   = flag.Int("qmax", 64, qmaxUsage)
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal("no input file provided (-in)")
	}

	if err := run(*inPath, uint32(*cid), *x, *y, *qmax, *outPath); err != nil {
		log.Fatal(err)
	}
}

func run(inPath string, cid uint32, x, y, qmax int, outPath string) error {
	p, err := profile.Lookup(cid)
	if err != nil {
		return fmt.Errorf("dnxhdplot: %w", err)
	}

	bpp := 1
	if p.BitDepth == 10 {
		bpp = 2
	}
	stride := p.Width * bpp

	raw, err := os.ReadFile(inPath)
	if err != nil {
		return fmt.Errorf("dnxhdplot: could not read input: %w", err)
	}
	off := y*stride + x*bpp
	if off+7*stride+8*bpp > len(raw) {
		return fmt.Errorf("dnxhdplot: sample block at (%d,%d) exceeds input size", x, y)
	}

	var d dsp.Interface = dspmmx.Fast{}
	var samples dsp.Block
	d.GetPixels(&samples, raw[off:], stride, p.BitDepth)
	d.FDCT(&samples)

	scn := scan.Build(d.IDCTPermutation())

	bitsPts := make(plotter.XYs, qmax)
	ssdPts := make(plotter.XYs, qmax)
	for q := 1; q <= qmax; q++ {
		mat := quant.BuildMatrix(&p.LumaWeight, q, p.BitDepth)
		blk := samples
		nbits, ssd, _, err := block.Distortion(p, scn, &mat, &p.LumaWeight, quant.DefaultQuantBias, q, 0, (*[64]int32)(&blk))
		if err != nil {
			return fmt.Errorf("dnxhdplot: computing cost at qscale %d: %w", q, err)
		}
		bitsPts[q-1] = plotter.XY{X: float64(q), Y: float64(nbits)}
		ssdPts[q-1] = plotter.XY{X: float64(q), Y: float64(ssd)}
	}

	plt := plot.New()
	plt.Title.Text = fmt.Sprintf("CID %d block (%d,%d): bits and SSD vs qscale", cid, x, y)
	plt.X.Label.Text = "qscale"
	plt.Y.Label.Text = "bits / SSD"

	bitsLine, err := plotter.NewLine(bitsPts)
	if err != nil {
		return fmt.Errorf("dnxhdplot: building bits line: %w", err)
	}
	bitsLine.Color = color.RGBA{B: 200, A: 255}

	ssdLine, err := plotter.NewLine(ssdPts)
	if err != nil {
		return fmt.Errorf("dnxhdplot: building ssd line: %w", err)
	}
	ssdLine.Color = color.RGBA{R: 200, A: 255}
	ssdLine.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}

	plt.Add(bitsLine, ssdLine)
	plt.Legend.Add("bits", bitsLine)
	plt.Legend.Add("ssd", ssdLine)

	if err := plt.Save(6*vg.Inch, 4*vg.Inch, outPath); err != nil {
		return fmt.Errorf("dnxhdplot: saving plot: %w", err)
	}
	return nil
}
