/*
NAME
  dnxhd2ts/main.go

DESCRIPTION
  dnxhd2ts reads a sequence of raw planar 4:2:2 YUV frames from a file,
  encodes each to DNxHD/VC-3, and packetises the resulting coding units
  into an MPEG-TS file using container/mts, the same way revid's own
  tools wrap encoded access units for delivery.

  Specify the input file with the in flag and the output MPEG-TS file
  with the out flag. The target CID selects resolution, bit depth and
  chroma layout (see package profile); frame geometry is derived from
  it, so the input must already be at that size.

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
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/ausocean/dnxhd/codec/dnxhd"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/container/mts"
	"github.com/ausocean/utils/logging"
)

// Consts describing flag usage.
const (
	inUsage     = "path to a file of concatenated raw planar 4:2:2 frames"
	outUsage    = "output MPEG-TS file path"
	cidUsage    = "target DNxHD/VC-3 CID (see package profile)"
	rateUsage   = "frame rate, used for MTS timestamps and access unit pacing"
	rdUsage     = "use the Lagrangian rate-distortion search instead of the variance fast path"
	qmaxUsage   = "largest qscale the rate controller may choose (0 selects the per-mode default)"
	verboseFlag = "enable debug logging"
)

// psiInterval is how often PAT/PMT are re-sent; DNxHD coding units
// carry no SPS-like marker to key NAL-based PSI insertion off, so we
// use time based insertion as container/mts does for non-NAL codecs.
const psiInterval = 2 * time.Second

func main() {
	var (
		inPath  = flag.String("in", "", inUsage)
		outPath = flag.String("out", "out.ts", outUsage)
		cid     = flag.Uint("cid", uint(profile.CID1252), cidUsage)
		rate    = flag.Float64("rate", 25, rateUsage)
		rd      = flag.Bool("rd", false, rdUsage)
		qmax    = flag.Int("qmax", 0, qmaxUsage)
		verbose = flag.Bool("v", false, verboseFlag)
	)
	flag.Parse()

	if *inPath == "" {
		log.Fatal("no input file provided (-in)")
	}

	level := logging.Info
	if *verbose {
		level = logging.Debug
	}
	lg := logging.New(level, os.Stderr, false)

	if err := run(*inPath, *outPath, uint32(*cid), *rate, *rd, *qmax, lg); err != nil {
		log.Fatal(err)
	}
}

func run(inPath, outPath string, cid uint32, rate float64, rd bool, qmax int, lg logging.Logger) error {
	p, err := profile.Lookup(cid)
	if err != nil {
		return fmt.Errorf("dnxhd2ts: %w", err)
	}

	in, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("dnxhd2ts: could not open input: %w", err)
	}
	defer in.Close()

	out, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("dnxhd2ts: could not create output: %w", err)
	}

	mtsOpts := []func(*mts.Encoder) error{
		mts.MediaType(mts.EncodeDNxHD),
		mts.TimeBasedPSI(psiInterval),
	}
	if rate >= 1 && rate <= 60 {
		mtsOpts = append(mtsOpts, mts.Rate(rate))
	}
	tsEnc, err := mts.NewEncoder(out, lg, mtsOpts...)
	if err != nil {
		return fmt.Errorf("dnxhd2ts: could not create mts encoder: %w", err)
	}
	defer tsEnc.Close()

	encOpts := []dnxhd.Option{
		dnxhd.WithLogger(&loggerAdapter{lg}),
		dnxhd.WithRateControl(rd),
	}
	if qmax > 0 {
		encOpts = append(encOpts, dnxhd.WithQMax(qmax))
	}
	enc, err := dnxhd.NewEncoder(cid, dsp.Reference{}, encOpts...)
	if err != nil {
		return fmt.Errorf("dnxhd2ts: could not create dnxhd encoder: %w", err)
	}

	bpp := 1
	if p.BitDepth == 10 {
		bpp = 2
	}
	strideY := p.Width * bpp
	strideC := (p.Width / 2) * bpp
	ySize := strideY * p.Height
	cSize := strideC * p.Height
	frameSize := ySize + 2*cSize
	raw := make([]byte, frameSize)

	// dst must hold the largest coding unit this profile can produce;
	// interlaced profiles encode two fields into one buffer.
	dst := make([]byte, 2*p.CodingUnitSize+8)

	count := 0
	for {
		_, err := io.ReadFull(in, raw)
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			lg.Warning("dropping trailing partial frame", "bytes", len(raw))
			break
		}
		if err != nil {
			return fmt.Errorf("dnxhd2ts: could not read frame %d: %w", count, err)
		}

		fr := &dnxhd.Frame{
			CID: cid, Width: p.Width, Height: p.Height,
			BitDepth: p.BitDepth, Interlaced: p.Interlaced, TopFieldFirst: true,
			Planes: dnxhd.Planes{
				Y: raw[:ySize], U: raw[ySize : ySize+cSize], V: raw[ySize+cSize:],
				StrideY: strideY, StrideC: strideC,
			},
		}

		n, err := enc.Encode(fr, dst)
		if err != nil {
			return fmt.Errorf("dnxhd2ts: could not encode frame %d: %w", count, err)
		}

		_, err = tsEnc.Write(dst[:n])
		if err != nil {
			return fmt.Errorf("dnxhd2ts: could not write access unit %d: %w", count, err)
		}

		count++
	}

	lg.Info("encoded frames to MPEG-TS", "count", count, "out", outPath)
	return nil
}

// loggerAdapter maps the ausocean/utils/logging.Logger contract onto
// dnxhd.Logger's smaller SetLevel/Log surface.
type loggerAdapter struct {
	l logging.Logger
}

func (a *loggerAdapter) SetLevel(level int8) { a.l.SetLevel(level) }

func (a *loggerAdapter) Log(level int8, message string, params ...interface{}) {
	switch level {
	case dnxhd.LevelError:
		a.l.Error(message, params...)
	case dnxhd.LevelWarning:
		a.l.Warning(message, params...)
	case dnxhd.LevelInfo:
		a.l.Info(message, params...)
	default:
		a.l.Debug(message, params...)
	}
}
