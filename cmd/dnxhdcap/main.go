/*
NAME
  dnxhdcap/main.go

DESCRIPTION
  dnxhdcap captures frames from a video device via gocv, the same
  capture path exp/gocv-exp demonstrates, converts each to planar 4:2:2
  YUV, and encodes them to DNxHD/VC-3, appending each coding unit to an
  output file.

  Specify the capture device with the device flag (an index such as
  "0", or a gocv-compatible URI) and the output file with the out
  flag. The CID flag selects the target resolution; the device's
  captured frames are resized to match it. Frames are always built with
  8-bit samples, so the encoder rejects a 10-bit CID.

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
	"image"
	"image/color"
	"log"
	"os"

	"github.com/ausocean/dnxhd/codec/dnxhd"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/utils/logging"
	"gocv.io/x/gocv"
)

// Consts describing flag usage.
const (
	deviceUsage = "capture device index or URI passed to gocv.OpenVideoCapture"
	outUsage    = "output file that encoded coding units are appended to"
	cidUsage    = "target DNxHD/VC-3 CID (see package profile)"
	framesUsage = "number of frames to capture; 0 captures until the device closes"
	rdUsage     = "use the Lagrangian rate-distortion search instead of the variance fast path"
	qmaxUsage   = "largest qscale the rate controller may choose (0 selects the per-mode default)"
)

func main() {
	var (
		device  = flag.String("device", "0", deviceUsage)
		outPath = flag.String("out", "capture.dnxhd", outUsage)
		cid     = flag.Uint("cid", uint(profile.CID1252), cidUsage)
		frames  = flag.Int("frames", 0, framesUsage)
		rd      = flag.Bool("rd", false, rdUsage)
		qmax    = flag.Int("qmax", 0, qmaxUsage)
	)
	flag.Parse()

	lg := logging.New(logging.Info, os.Stderr, false)

	if err := run(*device, *outPath, uint32(*cid), *frames, *rd, *qmax, lg); err != nil {
		log.Fatal(err)
	}
}

func run(device, outPath string, cid uint32, frames int, rd bool, qmax int, lg logging.Logger) error {
	p, err := profile.Lookup(cid)
	if err != nil {
		return fmt.Errorf("dnxhdcap: %w", err)
	}

	webcam, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return fmt.Errorf("dnxhdcap: could not open capture device %q: %w", device, err)
	}
	defer webcam.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("dnxhdcap: could not create output: %w", err)
	}
	defer out.Close()

	encOpts := []dnxhd.Option{dnxhd.WithRateControl(rd)}
	if qmax > 0 {
		encOpts = append(encOpts, dnxhd.WithQMax(qmax))
	}
	enc, err := dnxhd.NewEncoder(cid, dsp.Reference{}, encOpts...)
	if err != nil {
		return fmt.Errorf("dnxhdcap: could not create dnxhd encoder: %w", err)
	}

	strideY := p.Width
	strideC := p.Width / 2
	planes := dnxhd.Planes{
		Y: make([]byte, strideY*p.Height),
		U: make([]byte, strideC*p.Height),
		V: make([]byte, strideC*p.Height),
		StrideY: strideY, StrideC: strideC,
	}
	fr := &dnxhd.Frame{
		CID: cid, Width: p.Width, Height: p.Height,
		BitDepth: 8, Interlaced: false, TopFieldFirst: true,
		Planes: planes,
	}
	dst := make([]byte, 2*p.CodingUnitSize+8)

	img := gocv.NewMat()
	defer img.Close()

	count := 0
	for frames <= 0 || count < frames {
		if ok := webcam.Read(&img); !ok {
			lg.Info("capture device closed", "frames", count)
			break
		}
		if img.Empty() {
			continue
		}
		gocv.Resize(img, &img, image.Pt(p.Width, p.Height), 0, 0, gocv.InterpolationLinear)

		pix, err := img.ToImage()
		if err != nil {
			return fmt.Errorf("dnxhdcap: could not convert captured frame: %w", err)
		}
		toPlanarYUV422(pix, &fr.Planes)

		n, err := enc.Encode(fr, dst)
		if err != nil {
			return fmt.Errorf("dnxhdcap: could not encode frame %d: %w", count, err)
		}
		if _, err := out.Write(dst[:n]); err != nil {
			return fmt.Errorf("dnxhdcap: could not write frame %d: %w", count, err)
		}
		count++
	}

	lg.Info("captured and encoded frames", "count", count, "out", outPath)
	return nil
}

// toPlanarYUV422 fills p's Y/U/V planes from img, subsampling chroma
// 2:1 horizontally by averaging adjacent column pairs, matching the
// 4:2:2 layout package dnxhd expects.
func toPlanarYUV422(img image.Image, p *dnxhd.Planes) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			r, g, bl, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			yy, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(bl>>8))
			p.Y[y*p.StrideY+x] = yy
			if x%2 == 0 {
				p.U[y*p.StrideC+x/2] = cb
				p.V[y*p.StrideC+x/2] = cr
			} else {
				p.U[y*p.StrideC+x/2] = avgByte(p.U[y*p.StrideC+x/2], cb)
				p.V[y*p.StrideC+x/2] = avgByte(p.V[y*p.StrideC+x/2], cr)
			}
		}
	}
}

func avgByte(a, b uint8) uint8 { return uint8((uint16(a) + uint16(b)) / 2) }
