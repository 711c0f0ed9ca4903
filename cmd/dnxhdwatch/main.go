/*
NAME
  dnxhdwatch/main.go

DESCRIPTION
  dnxhdwatch watches a drop folder for raw planar 4:2:2 frame files
  (".yuv" for 8-bit, ".y10" for 10-bit) and encodes each to DNxHD/VC-3
  as it lands, appending the coding unit to a single output file. This
  plays the role device/file's directory polling does elsewhere in the
  repo, but event-driven via fsnotify rather than polled.

  Specify the watched directory with the dir flag and the output file
  with the out flag. The CID flag selects resolution and bit depth;
  files must already be raw frames at that geometry.

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
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/ausocean/dnxhd/codec/dnxhd"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/utils/logging"
)

// Consts describing flag usage.
const (
	dirUsage  = "directory to watch for dropped raw frame files"
	outUsage  = "output file that encoded coding units are appended to"
	cidUsage  = "target DNxHD/VC-3 CID (see package profile)"
	rdUsage   = "use the Lagrangian rate-distortion search instead of the variance fast path"
	qmaxUsage = "largest qscale the rate controller may choose (0 selects the per-mode default)"
)

func main() {
	var (
		dir     = flag.String("dir", ".", dirUsage)
		outPath = flag.String("out", "watch.dnxhd", outUsage)
		cid     = flag.Uint("cid", uint(profile.CID1252), cidUsage)
		rd      = flag.Bool("rd", false, rdUsage)
		qmax    = flag.Int("qmax", 0, qmaxUsage)
	)
	flag.Parse()

	lg := logging.New(logging.Info, os.Stderr, false)

	if err := run(*dir, *outPath, uint32(*cid), *rd, *qmax, lg); err != nil {
		log.Fatal(err)
	}
}

// frameExt returns the raw-frame file extension this CID's bit depth
// expects.
func frameExt(p *profile.Profile) string {
	if p.BitDepth == 10 {
		return ".y10"
	}
	return ".yuv"
}

func run(dir, outPath string, cid uint32, rd bool, qmax int, lg logging.Logger) error {
	p, err := profile.Lookup(cid)
	if err != nil {
		return fmt.Errorf("dnxhdwatch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dnxhdwatch: could not create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("dnxhdwatch: could not watch %q: %w", dir, err)
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("dnxhdwatch: could not open output: %w", err)
	}
	defer out.Close()

	encOpts := []dnxhd.Option{dnxhd.WithLogger(&loggerAdapter{lg}), dnxhd.WithRateControl(rd)}
	if qmax > 0 {
		encOpts = append(encOpts, dnxhd.WithQMax(qmax))
	}
	enc, err := dnxhd.NewEncoder(cid, dsp.Reference{}, encOpts...)
	if err != nil {
		return fmt.Errorf("dnxhdwatch: could not create dnxhd encoder: %w", err)
	}

	ext := frameExt(p)
	bpp := 1
	if p.BitDepth == 10 {
		bpp = 2
	}
	strideY := p.Width * bpp
	strideC := (p.Width / 2) * bpp
	ySize := strideY * p.Height
	cSize := strideC * p.Height
	frameSize := ySize + 2*cSize
	dst := make([]byte, 2*p.CodingUnitSize+8)

	// Drain any frames already sitting in the directory before
	// listening for new ones, so a batch dropped before dnxhdwatch
	// started isn't missed.
	if err := drainExisting(dir, ext, func(path string) error {
		return encodeFile(path, cid, p, frameSize, ySize, cSize, strideY, strideC, enc, dst, out, lg)
	}); err != nil {
		return err
	}

	lg.Info("watching for frames", "dir", dir, "ext", ext)
	for {
		select {
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || filepath.Ext(ev.Name) != ext {
				continue
			}
			if err := encodeFile(ev.Name, cid, p, frameSize, ySize, cSize, strideY, strideC, enc, dst, out, lg); err != nil {
				lg.Warning("could not encode dropped frame", "path", ev.Name, "error", err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			lg.Error("watcher error", "error", err.Error())
		}
	}
}

func drainExisting(dir, ext string, encode func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("dnxhdwatch: could not list %q: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ext) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, n := range names {
		if err := encode(filepath.Join(dir, n)); err != nil {
			return fmt.Errorf("dnxhdwatch: could not encode %q: %w", n, err)
		}
	}
	return nil
}

func encodeFile(path string, cid uint32, p *profile.Profile, frameSize, ySize, cSize, strideY, strideC int, enc *dnxhd.Encoder, dst []byte, out *os.File, lg logging.Logger) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if len(raw) != frameSize {
		return fmt.Errorf("frame size %d does not match CID %d's expected %d bytes", len(raw), cid, frameSize)
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
		return err
	}
	if _, err := out.Write(dst[:n]); err != nil {
		return err
	}
	lg.Info("encoded dropped frame", "path", path, "bytes", n)
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
