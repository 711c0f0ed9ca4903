/*
NAME
  dnxhdd/main.go

DESCRIPTION
  dnxhdd is a long-running encode daemon: it watches a drop directory
  for raw planar 4:2:2 frame files the same way dnxhdwatch does, but is
  built for the always-on capture-node deployment model the rest of
  the repo's device/cmd tools (device/raspivid, revid) run under --
  log output rotates through lumberjack rather than growing without
  bound, and the process signals readiness and periodic liveness to
  systemd when run as a unit.

  Specify the watched directory with the dir flag, the output file with
  the out flag, and the rotated log file path with the logfile flag.

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
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/daemon"
	"github.com/coreos/go-systemd/journal"
	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ausocean/dnxhd/codec/dnxhd"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/utils/logging"
)

// Log rotation parameters, matching the values cmd/rv uses elsewhere
// in the AusOcean toolkit for its own lumberjack logger.
const (
	logMaxSize   = 500 // MB
	logMaxBackup = 10
	logMaxAge    = 28 // days
)

// watchdogInterval is how often the daemon pings systemd's watchdog
// once WATCHDOG_USEC has enabled it; chosen well inside any reasonable
// WatchdogSec= unit setting.
const watchdogInterval = 15 * time.Second

// Consts describing flag usage.
const (
	dirUsage     = "directory to watch for dropped raw frame files"
	outUsage     = "output file that encoded coding units are appended to"
	cidUsage     = "target DNxHD/VC-3 CID (see package profile)"
	logFileUsage = "rotated log file path"
	verboseUsage = "enable debug logging"
)

func main() {
	var (
		dir     = flag.String("dir", ".", dirUsage)
		outPath = flag.String("out", "daemon.dnxhd", outUsage)
		cid     = flag.Uint("cid", uint(profile.CID1252), cidUsage)
		logPath = flag.String("logfile", "dnxhdd.log", logFileUsage)
		verbose = flag.Bool("v", false, verboseUsage)
	)
	flag.Parse()

	fileLog := &lumberjack.Logger{
		Filename:   *logPath,
		MaxSize:    logMaxSize,
		MaxBackups: logMaxBackup,
		MaxAge:     logMaxAge,
	}
	defer fileLog.Close()

	level := logging.Info
	if *verbose {
		level = logging.Debug
	}
	lg := logging.New(level, io.MultiWriter(fileLog, journalWriter{}), false)

	lg.Info("starting dnxhdd", "dir", *dir, "cid", *cid, "out", *outPath)

	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		lg.Warning("systemd notify failed", "error", err.Error())
	} else if sent {
		lg.Debug("sent systemd ready notification")
	}

	ctx, cancel := signalContext()
	defer cancel()

	if err := run(ctx, *dir, *outPath, uint32(*cid), lg); err != nil {
		lg.Error("dnxhdd exiting on error", "error", err.Error())
		daemon.SdNotify(false, daemon.SdNotifyStopping)
		log.Fatal(err)
	}
	daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// signalContext returns a channel closed on SIGINT/SIGTERM, the daemon's
// cue to stop watching and return cleanly.
func signalContext() (<-chan struct{}, func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-sigCh
		close(done)
	}()
	return done, func() { signal.Stop(sigCh) }
}

func run(stop <-chan struct{}, dir, outPath string, cid uint32, lg logging.Logger) error {
	p, err := profile.Lookup(cid)
	if err != nil {
		return fmt.Errorf("dnxhdd: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("dnxhdd: could not create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("dnxhdd: could not watch %q: %w", dir, err)
	}

	out, err := os.OpenFile(outPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("dnxhdd: could not open output: %w", err)
	}
	defer out.Close()

	enc, err := dnxhd.NewEncoder(cid, dsp.Reference{}, dnxhd.WithLogger(&loggerAdapter{lg}))
	if err != nil {
		return fmt.Errorf("dnxhdd: could not create dnxhd encoder: %w", err)
	}

	ext := ".yuv"
	if p.BitDepth == 10 {
		ext = ".y10"
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
	dst := make([]byte, 2*p.CodingUnitSize+8)

	watchdogUsec := os.Getenv("WATCHDOG_USEC")
	var watchdogTick <-chan time.Time
	if watchdogUsec != "" {
		ticker := time.NewTicker(watchdogInterval)
		defer ticker.Stop()
		watchdogTick = ticker.C
	}

	count := 0
	for {
		select {
		case <-stop:
			lg.Info("dnxhdd stopping", "encoded", count)
			return nil
		case <-watchdogTick:
			daemon.SdNotify(false, daemon.SdNotifyWatchdog)
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write) == 0 || !strings.EqualFold(filepath.Ext(ev.Name), ext) {
				continue
			}
			raw, err := os.ReadFile(ev.Name)
			if err != nil {
				lg.Warning("could not read dropped frame", "path", ev.Name, "error", err.Error())
				continue
			}
			if len(raw) != frameSize {
				lg.Warning("dropped frame wrong size", "path", ev.Name, "size", len(raw), "want", frameSize)
				continue
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
				lg.Warning("could not encode dropped frame", "path", ev.Name, "error", err.Error())
				continue
			}
			if _, err := out.Write(dst[:n]); err != nil {
				return fmt.Errorf("dnxhdd: could not write coding unit: %w", err)
			}
			count++
			lg.Debug("encoded frame", "path", ev.Name, "bytes", n, "total", count)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			lg.Error("watcher error", "error", err.Error())
		}
	}
}

// journalWriter adapts the systemd journal as an io.Writer for
// io.MultiWriter, so every log line reaches both the rotated file and
// the journal when running as a unit.
type journalWriter struct{}

func (journalWriter) Write(p []byte) (int, error) {
	if err := journal.Send(string(p), journal.PriInfo, nil); err != nil {
		return 0, err
	}
	return len(p), nil
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
