/*
DESCRIPTION
  dnxhd.go is the package root: Decoder and Encoder wrap package frame's
  orchestrator behind the functional-options configuration surface and
  the caller-facing sentinel errors.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package dnxhd implements an intra-only DNxHD/VC-3 decoder and
// encoder: 8-bit and 10-bit 4:2:2 planar YUV, progressive or
// interlaced, at the CIDs registered in package profile.
package dnxhd

import (
	"github.com/ausocean/dnxhd/codec/dnxhd/block"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/frame"
	"github.com/ausocean/dnxhd/codec/dnxhd/header"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/codec/dnxhd/quant"
	"github.com/ausocean/dnxhd/codec/dnxhd/ratectl"
)

// Sentinel errors surfaced to callers, per the caller-facing error
// kinds this codec distinguishes.
var (
	ErrUnsupportedCID         = profile.ErrUnsupportedCID
	ErrShortBuffer            = header.ErrShortBuffer
	ErrHeaderMismatch         = header.ErrHeaderMismatch
	ErrMBHeightOutOfRange     = header.ErrMBHeightOutOfRange
	ErrScanIndexOutOfRange    = header.ErrScanIndexOutOfRange
	ErrDamagedSlice           = block.ErrDamaged
	ErrUnsupportedPixelFormat = frame.ErrUnsupportedPixelFormat
	ErrUnsupportedResolution  = frame.ErrUnsupportedResolution
	ErrRateControlInfeasible  = ratectl.ErrInfeasible
	ErrOutputBufferTooSmall   = frame.ErrOutputBufferTooSmall
)

// Logger is the logging contract Decoder and Encoder consume,
// identical to the interface github.com/ausocean/utils/logging
// implements.
type Logger = frame.Logger

// Log levels passed to Logger.Log.
const (
	LevelDebug   = frame.LevelDebug
	LevelInfo    = frame.LevelInfo
	LevelWarning = frame.LevelWarning
	LevelError   = frame.LevelError
)

// Frame is a decoded or to-be-encoded picture.
type Frame = frame.Frame

// Planes is a Frame's planar YUV 4:2:2 (plus optional alpha) sample
// buffers.
type Planes = frame.Planes

// Decoder decodes DNxHD coding units into Frames.
type Decoder struct {
	inner *frame.Decoder
}

// Option configures a Decoder or Encoder; both share the same option
// type so WithLogger and WithThreads apply to either.
type Option func(*config)

type config struct {
	logger       Logger
	threads      int
	qmax         int
	qmaxSet      bool
	nitrisCompat bool
	quantBias    *int64
	rdMode       bool
}

func newConfig() *config {
	return &config{threads: 1, qmax: 1024}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithThreads sets how many macroblock rows are processed concurrently.
func WithThreads(n int) Option {
	return func(c *config) { c.threads = n }
}

// WithQMax sets the largest qscale the rate controller may choose.
// Encoder-only; ignored by NewDecoder. Leaving it unset defaults to
// 1024 for the fast path, or 31 when WithRateControl(true) selects the
// Lagrangian RD path (matching the reference codec's mb_decision-
// dependent qmax default).
func WithQMax(n int) Option {
	return func(c *config) { c.qmax = n; c.qmaxSet = true }
}

// WithNitrisCompat reserves 1600 bits of slack per coding unit for the
// Avid Nitris hardware decoder. Encoder-only; ignored by NewDecoder.
func WithNitrisCompat() Option {
	return func(c *config) { c.nitrisCompat = true }
}

// WithIntraQuantBias overrides the default quantizer rounding bias.
// Encoder-only; ignored by NewDecoder.
func WithIntraQuantBias(b int64) Option {
	return func(c *config) { c.quantBias = &b }
}

// WithRateControl selects the Lagrangian R-D search (rd=true) over the
// variance-based fast path (rd=false, the default). Encoder-only;
// ignored by NewDecoder.
func WithRateControl(rd bool) Option {
	return func(c *config) { c.rdMode = rd }
}

func applyOptions(opts []Option) *config {
	c := newConfig()
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewDecoder returns a Decoder that reconstructs pixels via d. d is
// typically dsp.Reference, or a platform-specific implementation of
// dsp.Interface.
func NewDecoder(d dsp.Interface, opts ...Option) *Decoder {
	c := applyOptions(opts)
	var dopts []frame.DecoderOption
	if c.logger != nil {
		dopts = append(dopts, frame.WithDecoderLogger(c.logger))
	}
	dopts = append(dopts, frame.WithDecoderThreads(c.threads))
	return &Decoder{inner: frame.NewDecoder(d, dopts...)}
}

// Decode parses one frame (one or two field coding units, plus an
// optional trailing alpha pair) from buf.
func (d *Decoder) Decode(buf []byte) (*Frame, error) {
	return d.inner.Decode(buf)
}

// Encoder encodes Frames into DNxHD coding units at a fixed CID.
type Encoder struct {
	inner *frame.Encoder
}

// NewEncoder returns an Encoder targeting cid (see package profile for
// the registered CIDs), transforming pixels via d.
func NewEncoder(cid uint32, d dsp.Interface, opts ...Option) (*Encoder, error) {
	c := applyOptions(opts)
	qmax := c.qmax
	if c.rdMode && !c.qmaxSet {
		qmax = 31
	}
	eopts := []frame.EncoderOption{
		frame.WithEncoderThreads(c.threads),
		frame.WithQMax(qmax),
		frame.WithRateControl(c.rdMode),
	}
	if c.logger != nil {
		eopts = append(eopts, frame.WithEncoderLogger(c.logger))
	}
	if c.nitrisCompat {
		eopts = append(eopts, frame.WithNitrisCompat())
	}
	if c.quantBias != nil {
		eopts = append(eopts, frame.WithIntraQuantBias(*c.quantBias))
	} else {
		eopts = append(eopts, frame.WithIntraQuantBias(quant.DefaultQuantBias))
	}
	inner, err := frame.NewEncoder(cid, d, eopts...)
	if err != nil {
		return nil, err
	}
	return &Encoder{inner: inner}, nil
}

// Encode writes fr into dst, returning the number of bytes written.
func (e *Encoder) Encode(fr *Frame, dst []byte) (int, error) {
	return e.inner.Encode(fr, dst)
}

// BitRate returns the approximate bit rate, in bits per second, that
// encoding at cid and frameRate implies, derived from the profile's
// coding-unit size: interlaced profiles emit two coding units per
// frame, so they carry twice the per-frame payload.
func BitRate(cid uint32, frameRate float64) (float64, error) {
	p, err := profile.Lookup(cid)
	if err != nil {
		return 0, err
	}
	units := 1.0
	if p.Interlaced {
		units = 2.0
	}
	return float64(p.CodingUnitSize) * 8 * units * frameRate, nil
}
