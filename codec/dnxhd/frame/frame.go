/*
DESCRIPTION
  frame.go orchestrates one DNxHD frame's worth of coding units: for
  decode, parsing headers, rebuilding CID tables on change, and
  dispatching one row job per macroblock row; for encode, running rate
  control, filling the scan-index table, dispatching row emission, and
  stitching field and alpha coding units together. This is the state
  machine described for the encoder's field/alpha passes, and the
  corresponding linear pass for decode.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package frame drives whole-frame decode and encode: header parsing,
// per-row dispatch through package sched, rate control through package
// ratectl, and the field/alpha coding-unit bookkeeping.
package frame

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/ausocean/dnxhd/codec/dnxhd/bits"
	"github.com/ausocean/dnxhd/codec/dnxhd/block"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/header"
	"github.com/ausocean/dnxhd/codec/dnxhd/macroblock"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/codec/dnxhd/quant"
	"github.com/ausocean/dnxhd/codec/dnxhd/ratectl"
	"github.com/ausocean/dnxhd/codec/dnxhd/scan"
	"github.com/ausocean/dnxhd/codec/dnxhd/sched"
	"github.com/ausocean/dnxhd/codec/dnxhd/vlctab"
)

// Trailer is the 4-byte literal that closes every coding unit.
var Trailer = [4]byte{0x60, 0x0D, 0xC0, 0xDE}

// AlphaMarker is the 4-byte literal that follows the video coding
// unit(s) when an alpha coding unit follows.
var AlphaMarker = [4]byte{0x00, 0x09, 0x40, 0x00}

// ErrUnsupportedPixelFormat is returned when a frame's plane layout
// doesn't match any supported profile's expectations.
var ErrUnsupportedPixelFormat = fmt.Errorf("frame: unsupported pixel format")

// ErrUnsupportedResolution is returned when a frame's geometry doesn't
// match a registered profile.
var ErrUnsupportedResolution = fmt.Errorf("frame: unsupported resolution")

// ErrOutputBufferTooSmall is returned when Encode's destination buffer
// can't hold the coding units this frame requires.
var ErrOutputBufferTooSmall = fmt.Errorf("frame: output buffer too small")

// Logger is the minimal logging contract the orchestrator logs
// through, matching the interface revid.Revid and mts.Encoder consume.
type Logger interface {
	SetLevel(level int8)
	Log(level int8, message string, params ...interface{})
}

type nopLogger struct{}

func (nopLogger) SetLevel(int8)                           {}
func (nopLogger) Log(int8, string, ...interface{}) {}

// Logging levels, matching github.com/ausocean/utils/logging's scale.
const (
	LevelDebug int8 = iota
	LevelInfo
	LevelWarning
	LevelError
)

// Planes is one field or frame's worth of planar YUV 4:2:2 samples,
// plus an optional alpha plane.
type Planes struct {
	Y, U, V          []byte
	StrideY, StrideC int

	Alpha       []byte
	StrideAlpha int
}

// Frame is a decoded or to-be-encoded picture.
type Frame struct {
	CID           uint32
	Width, Height int
	BitDepth      int
	Interlaced    bool
	TopFieldFirst bool
	Planes        Planes
}

// tableCache holds the profile and VLC/scan state rebuilt whenever the
// CID in use changes; shared by Decoder and Encoder.
type tableCache struct {
	cid  uint32
	prof *profile.Profile
	tabs *vlctab.Tables
	scn  scan.Table
}

func (c *tableCache) ensure(cid uint32, d dsp.Interface) error {
	if c.prof != nil && c.cid == cid {
		return nil
	}
	prof, err := profile.Lookup(cid)
	if err != nil {
		return err
	}
	tabs, err := vlctab.ForCID(cid)
	if err != nil {
		return err
	}
	c.cid = cid
	c.prof = prof
	c.tabs = tabs
	c.scn = scan.Build(d.IDCTPermutation())
	return nil
}

// Decoder decodes DNxHD coding units into Frames.
type Decoder struct {
	dsp     dsp.Interface
	threads *sched.Pool
	log     Logger
	cache   tableCache
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithDecoderLogger sets the logger a Decoder reports damaged slices
// and table rebuilds through.
func WithDecoderLogger(l Logger) DecoderOption {
	return func(d *Decoder) { d.log = l }
}

// WithDecoderThreads sets how many row jobs a Decoder runs concurrently.
func WithDecoderThreads(n int) DecoderOption {
	return func(d *Decoder) { d.threads = sched.NewPool(n) }
}

// NewDecoder returns a Decoder that reconstructs pixels via d.
func NewDecoder(d dsp.Interface, opts ...DecoderOption) *Decoder {
	dec := &Decoder{dsp: d, threads: sched.NewPool(1), log: nopLogger{}}
	for _, opt := range opts {
		opt(dec)
	}
	return dec
}

// Decode parses one or more coding units from buf into a Frame: the
// primary field (or frame, if progressive), a second field if the
// header marks the content interlaced, and a trailing alpha coding
// unit (or field pair) if one follows the video trailer.
func (d *Decoder) Decode(buf []byte) (*Frame, error) {
	h, err := header.Decode(buf)
	if err != nil {
		return nil, errors.Wrap(err, "frame: decoding header")
	}
	if err := d.cache.ensure(h.CID, d.dsp); err != nil {
		return nil, errors.Wrap(err, "frame: resolving CID")
	}
	prof := d.cache.prof
	unit := prof.CodingUnitSize
	if len(buf) < unit {
		return nil, header.ErrShortBuffer
	}
	if err := h.Validate(unit); err != nil {
		return nil, err
	}

	fr := &Frame{
		CID:           h.CID,
		Width:         int(h.Width),
		Height:        prof.Height,
		BitDepth:      prof.BitDepth,
		Interlaced:    h.Interlaced,
		TopFieldFirst: h.CurrentField == 0,
	}
	allocPlanes(&fr.Planes, prof, h.Interlaced)

	if err := d.decodeField(buf[:unit], h, prof, fr, 0); err != nil {
		return nil, err
	}

	used := unit
	if h.Interlaced {
		if len(buf) < 2*unit {
			return nil, header.ErrShortBuffer
		}
		h2, err := header.Decode(buf[unit:])
		if err != nil {
			return nil, errors.Wrap(err, "frame: decoding second field header")
		}
		if err := d.decodeField(buf[unit:2*unit], h2, prof, fr, 1); err != nil {
			return nil, err
		}
		used = 2 * unit
	}

	// Alpha-bearing output carries one more coding unit (or field pair)
	// after the video units, closed by the alpha marker.
	if len(buf)-used < unit+4 || !matchesMarker(buf[len(buf)-4:]) {
		return fr, nil
	}
	if err := d.decodeAlpha(buf[used:len(buf)-4], h, prof, fr); err != nil {
		return nil, errors.Wrap(err, "frame: decoding alpha coding unit")
	}
	return fr, nil
}

func hasTrailer(b []byte) bool {
	return b[0] == Trailer[0] && b[1] == Trailer[1] && b[2] == Trailer[2] && b[3] == Trailer[3]
}

func matchesMarker(b []byte) bool {
	return b[0] == AlphaMarker[0] && b[1] == AlphaMarker[1] && b[2] == AlphaMarker[2] && b[3] == AlphaMarker[3]
}

// allocPlanes allocates planes rounded up to whole macroblock rows
// (1088 lines for 1080 content), so the last macroblock row's IDCT
// output always has somewhere to land; Frame.Height still reports the
// true picture height.
func allocPlanes(p *Planes, prof *profile.Profile, interlaced bool) {
	bpp := 1
	if prof.BitDepth == 10 {
		bpp = 2
	}
	rows := prof.MBRows(interlaced) * 16
	if interlaced {
		rows *= 2
	}
	p.StrideY = prof.Width * bpp
	p.StrideC = (prof.Width / 2) * bpp
	p.Y = make([]byte, p.StrideY*rows)
	p.U = make([]byte, p.StrideC*rows)
	p.V = make([]byte, p.StrideC*rows)
}

// decodeField decodes one coding unit's slices into fr's planes, at
// field index (0 or 1) when the content is interlaced.
func (d *Decoder) decodeField(unit []byte, h *header.Header, prof *profile.Profile, fr *Frame, field int) error {
	payload := unit[header.PayloadBase:]
	fieldStride := h.Interlaced
	bottomField := field == 1

	d.threads.ParallelFor(h.MBHeight, func(row, _ int) {
		start := h.ScanIndex[row]
		end := uint32(len(payload))
		if row+1 < len(h.ScanIndex) {
			end = h.ScanIndex[row+1]
		}
		if int(start) > len(payload) || int(end) > len(payload) || end < start {
			d.log.Log(LevelError, "damaged slice: bad scan index", "row", row)
			return
		}
		r := bits.NewReader(payload[start:end])
		last := macroblock.ResetLastDC(prof.BitDepth)
		my := row
		for mbx := 0; mbx < prof.MBWidth; mbx++ {
			_, last2, err := macroblock.DecodeMB(r, prof, d.cache.tabs, d.cache.scn, d.dsp, &macroblock.Planes{
				Y: fr.Planes.Y, U: fr.Planes.U, V: fr.Planes.V,
				StrideY: fr.Planes.StrideY, StrideC: fr.Planes.StrideC,
			}, mbx, my, fieldStride, bottomField, last)
			last = last2
			if err != nil {
				if errors.Is(err, block.ErrDamaged) {
					d.log.Log(LevelWarning, "damaged slice", "row", row, "mbx", mbx)
					return
				}
				d.log.Log(LevelError, "slice decode error", "row", row, "mbx", mbx, "err", err)
				return
			}
		}
	})
	return nil
}

// decodeAlpha decodes a trailing alpha coding unit (or field pair) into
// fr.Planes.Alpha, treating the alpha plane as luma-only with flat
// chroma, per the encode-side convention.
func (d *Decoder) decodeAlpha(buf []byte, h *header.Header, prof *profile.Profile, fr *Frame) error {
	unit := prof.CodingUnitSize
	if len(buf) < unit {
		return header.ErrShortBuffer
	}
	ah, err := header.Decode(buf)
	if err != nil {
		return err
	}
	fr.Planes.StrideAlpha = fr.Planes.StrideY
	fr.Planes.Alpha = make([]byte, len(fr.Planes.Y))

	alphaPlanes := Planes{Y: fr.Planes.Alpha, U: make([]byte, len(fr.Planes.U)), V: make([]byte, len(fr.Planes.V)), StrideY: fr.Planes.StrideAlpha, StrideC: fr.Planes.StrideC}
	tmp := &Frame{Planes: alphaPlanes}
	if err := d.decodeField(buf[:unit], ah, prof, tmp, 0); err != nil {
		return err
	}
	if h.Interlaced && len(buf) >= 2*unit {
		ah2, err := header.Decode(buf[unit:])
		if err != nil {
			return err
		}
		return d.decodeField(buf[unit:2*unit], ah2, prof, tmp, 1)
	}
	return nil
}

// Encoder encodes Frames into DNxHD coding units.
type Encoder struct {
	dsp          dsp.Interface
	threads      *sched.Pool
	log          Logger
	cache        tableCache
	qmax         int
	nitrisCompat bool
	quantBias    int64
	rdMode       bool
}

// EncoderOption configures an Encoder.
type EncoderOption func(*Encoder)

// WithEncoderLogger sets the logger an Encoder reports rate-control and
// slice emission diagnostics through.
func WithEncoderLogger(l Logger) EncoderOption {
	return func(e *Encoder) { e.log = l }
}

// WithEncoderThreads sets how many row jobs an Encoder runs concurrently.
func WithEncoderThreads(n int) EncoderOption {
	return func(e *Encoder) { e.threads = sched.NewPool(n) }
}

// WithQMax sets the largest qscale the rate controller may choose, in
// [1, 1024].
func WithQMax(n int) EncoderOption {
	return func(e *Encoder) { e.qmax = n }
}

// WithNitrisCompat reserves 1600 bits of slack per coding unit to
// satisfy the Avid Nitris hardware decoder's minimum-padding requirement.
func WithNitrisCompat() EncoderOption {
	return func(e *Encoder) { e.nitrisCompat = true }
}

// WithIntraQuantBias sets the rounding bias quant.Quantize applies,
// overriding quant.DefaultQuantBias.
func WithIntraQuantBias(b int64) EncoderOption {
	return func(e *Encoder) { e.quantBias = b }
}

// WithRateControl selects the Lagrangian R-D search (rd=true) over the
// default variance-based fast path (rd=false).
func WithRateControl(rd bool) EncoderOption {
	return func(e *Encoder) { e.rdMode = rd }
}

// NewEncoder returns an Encoder targeting cid, transforming pixels via d.
func NewEncoder(cid uint32, d dsp.Interface, opts ...EncoderOption) (*Encoder, error) {
	e := &Encoder{
		dsp: d, threads: sched.NewPool(1), log: nopLogger{},
		qmax: 1024, quantBias: quant.DefaultQuantBias,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.cache.ensure(cid, d); err != nil {
		return nil, err
	}
	if e.qmax < 1 || e.qmax > 1024 {
		return nil, fmt.Errorf("frame: qmax %d out of range [1,1024]", e.qmax)
	}
	return e, nil
}

// Encode writes fr as one or two field coding units (interlaced doubles
// it), plus one alpha coding unit per video field followed by the 4-byte
// alpha marker when fr.Planes.Alpha is set, into dst, returning the
// number of bytes written.
func (e *Encoder) Encode(fr *Frame, dst []byte) (int, error) {
	prof := e.cache.prof
	if fr.Width != prof.Width || fr.Height != prof.Height {
		return 0, ErrUnsupportedResolution
	}
	if fr.BitDepth != prof.BitDepth {
		return 0, ErrUnsupportedPixelFormat
	}

	if fr.Interlaced && !prof.Interlaced {
		return 0, ErrUnsupportedResolution
	}

	unit := prof.CodingUnitSize
	fields := 1
	if fr.Interlaced {
		fields = 2
	}
	hasAlpha := fr.Planes.Alpha != nil
	need := unit * fields
	if hasAlpha {
		need += unit*fields + 4
	}
	if len(dst) < need {
		return 0, ErrOutputBufferTooSmall
	}

	off := 0
	for field := 0; field < fields; field++ {
		n, err := e.encodeField(fr, dst[off:off+unit], field, fr.Interlaced)
		if err != nil {
			return 0, err
		}
		off += n
	}
	if !hasAlpha {
		return off, nil
	}

	alphaFrame := &Frame{
		Width: fr.Width, Height: fr.Height, BitDepth: fr.BitDepth, Interlaced: fr.Interlaced,
		Planes: Planes{
			Y: fr.Planes.Alpha, StrideY: fr.Planes.StrideAlpha,
			U: flatChroma(fr.Planes.StrideC, fr.Height, fr.BitDepth),
			V: flatChroma(fr.Planes.StrideC, fr.Height, fr.BitDepth),
			StrideC: fr.Planes.StrideC,
		},
	}
	for field := 0; field < fields; field++ {
		n, err := e.encodeField(alphaFrame, dst[off:off+unit], field, fr.Interlaced)
		if err != nil {
			return 0, err
		}
		off += n
	}
	copy(dst[off:off+4], AlphaMarker[:])
	off += 4
	return off, nil
}

// flatChroma returns a chroma plane filled with the flat mid-level
// value (128 at 8-bit, 512 at 10-bit) used for alpha coding units.
func flatChroma(stride, height, bitDepth int) []byte {
	buf := make([]byte, stride*height)
	if bitDepth == 8 {
		for i := range buf {
			buf[i] = 128
		}
		return buf
	}
	for i := 0; i+1 < len(buf); i += 2 {
		buf[i] = 0
		buf[i+1] = 2 // 512 in the little-endian 2-byte sample layout dsp reads.
	}
	return buf
}

// encodeField runs rate control and emits one coding unit for the
// given field index into unit, returning the number of bytes written
// (always len(unit)).
func (e *Encoder) encodeField(fr *Frame, unit []byte, field int, interlaced bool) (int, error) {
	prof := e.cache.prof
	mbRows := prof.MBRows(interlaced)
	nmb := prof.MBWidth * mbRows

	// Per-qscale state is measured lazily: the fast path's binary
	// search only probes O(log qmax) qscales, so building bit/SSD
	// tables for every qscale up front would be three orders of
	// magnitude more transform work than the search consumes.
	lumaMats := map[int]*quant.Matrix{}
	chromaMats := map[int]*quant.Matrix{}
	matsFor := func(q int) (*quant.Matrix, *quant.Matrix) {
		if m, ok := lumaMats[q]; ok {
			return m, chromaMats[q]
		}
		lm := quant.BuildMatrix(&prof.LumaWeight, q, prof.BitDepth)
		cm := quant.BuildMatrix(&prof.ChromaWeight, q, prof.BitDepth)
		lumaMats[q] = &lm
		chromaMats[q] = &cm
		return &lm, &cm
	}

	bitsCache := map[int][]int{}
	ssdCache := map[int][]int64{}
	measure := func(q int) ([]int, []int64) {
		if b, ok := bitsCache[q]; ok {
			return b, ssdCache[q]
		}
		lm, cm := matsFor(q)
		bitsQ := make([]int, nmb)
		ssdQ := make([]int64, nmb)
		e.threads.ParallelFor(mbRows, func(row, _ int) {
			last := macroblock.ResetLastDC(prof.BitDepth)
			for mbx := 0; mbx < prof.MBWidth; mbx++ {
				blocks := gatherMB(fr, prof, row, mbx, field, interlaced, e.dsp)
				total := 0
				var ssd int64
				for i := 0; i < 8; i++ {
					mat := lm
					weight := &prof.LumaWeight
					if i == 2 || i == 3 || i == 6 || i == 7 {
						mat = cm
						weight = &prof.ChromaWeight
					}
					n, bssd, newDC, err := block.Distortion(prof, e.cache.scn, mat, weight, e.quantBias, q, last[blockComponent(i)], (*[64]int32)(&blocks[i]))
					if err != nil {
						continue
					}
					last[blockComponent(i)] = newDC
					total += n
					ssd += bssd
				}
				bitsQ[row*prof.MBWidth+mbx] = total
				ssdQ[row*prof.MBWidth+mbx] = ssd
			}
		})
		bitsCache[q] = bitsQ
		ssdCache[q] = ssdQ
		return bitsQ, ssdQ
	}

	frameBits := ratectl.FrameBits(prof.CodingUnitSize, e.nitrisCompat)
	qscalePerMB := make([]int, nmb)

	if !e.rdMode {
		bitsFor := func(q int) []int {
			b, _ := measure(q)
			return b
		}
		q0 := ratectl.FindQScale(bitsFor, prof.MBWidth, e.qmax, frameBits)
		if ratectl.TotalBits(bitsFor(q0), prof.MBWidth) > frameBits {
			return 0, ratectl.ErrInfeasible
		}
		// q0 is the smallest uniform qscale that fits. Start everyone one
		// step finer (over budget by q0's minimality) and promote the
		// highest-variance macroblocks back up to q0 until the budget is
		// met, spending the surplus where it is least visible.
		start := q0
		if q0 > 1 {
			start = q0 - 1
		}
		for i := range qscalePerMB {
			qscalePerMB[i] = start
		}
		if start < q0 {
			keys := make([]uint32, nmb)
			for mb := range keys {
				keys[mb] = varianceKey(fr, prof, mb)
			}
			order := ratectl.RadixSortDescending(keys)
			bitsAt := func(mb, q int) int { return bitsFor(q)[mb] }
			if err := ratectl.PromoteByVariance(order, qscalePerMB, q0, prof.MBWidth, bitsAt, frameBits); err != nil {
				return 0, ratectl.ErrInfeasible
			}
		}
	} else {
		costs := make([][]ratectl.Cost, e.qmax)
		for q := range costs {
			bitsQ, ssdQ := measure(q + 1)
			costs[q] = make([]ratectl.Cost, nmb)
			for mb := range costs[q] {
				costs[q][mb] = ratectl.NewCost(bitsQ[mb], ssdQ[mb])
			}
		}
		q, _, err := ratectl.RDSearch(costs, prof.MBWidth, e.qmax, frameBits)
		if err != nil {
			return 0, ratectl.ErrInfeasible
		}
		qscalePerMB = q
	}

	// Matrices for every chosen qscale are built here, single-threaded,
	// so the emission jobs below only ever read the maps.
	for _, q := range qscalePerMB {
		matsFor(q)
	}

	sliceSize := make([]int, mbRows)
	sliceOff := make([]uint32, mbRows)
	sliceBuf := make([][]byte, mbRows)

	e.threads.ParallelFor(mbRows, func(row, _ int) {
		scratch := make([]byte, prof.CodingUnitSize)
		w := bits.NewWriter(scratch)
		last := macroblock.ResetLastDC(prof.BitDepth)
		for mbx := 0; mbx < prof.MBWidth; mbx++ {
			q := qscalePerMB[row*prof.MBWidth+mbx]
			blocks := gatherMB(fr, prof, row, mbx, field, interlaced, e.dsp)
			mat := lumaMats[q]
			cmat := chromaMats[q]
			newLast, err := macroblock.EncodeMB(w, prof, e.cache.scn, mat, cmat, e.quantBias, q, &blocks, last)
			if err != nil {
				e.log.Log(LevelError, "macroblock encode error", "row", row, "mbx", mbx, "err", err)
			}
			last = newLast
		}
		w.AlignToByte()
		n := (w.BitsWritten() + 31) / 32 * 4
		sliceSize[row] = n
		sliceBuf[row] = scratch[:n]
	})

	var offset uint32
	for row := range sliceOff {
		sliceOff[row] = offset
		offset += uint32(sliceSize[row])
	}

	height := prof.Height
	if interlaced {
		height /= 2
	}
	h := &header.Header{
		Interlaced:   interlaced,
		CurrentField: field,
		Height:       uint16(height),
		Width:        uint16(prof.Width),
		TenBit:       prof.BitDepth == 10,
		CID:          prof.CID,
		MBHeight:     mbRows,
		ScanIndex:    sliceOff,
	}
	if err := header.Encode(h, unit); err != nil {
		return 0, err
	}
	for row, buf := range sliceBuf {
		copy(unit[header.PayloadBase+int(sliceOff[row]):], buf)
	}
	for i := header.PayloadBase + int(offset); i < len(unit)-4; i++ {
		unit[i] = 0
	}
	copy(unit[len(unit)-4:], Trailer[:])
	return len(unit), nil
}

func blockComponent(i int) int {
	switch i {
	case 0, 1, 4, 5:
		return 0
	case 2, 6:
		return 1
	default:
		return 2
	}
}

// gatherMB collects one macroblock's 8 blocks of source samples via
// dsp.GetPixels and forward-transforms each with dsp.FDCT. 1080-line content runs out of real sample rows inside
// the final macroblock row (1080 = 67*16+8 progressive; a 540-line
// field = 33*16+12): the bottom block strip is synthesised by
// mirroring the field's last real rows (macroblock.Synth8x4) when
// interlaced, and cleared when progressive, matching the reference
// encoder.
func gatherMB(fr *Frame, prof *profile.Profile, mby, mbx, field int, interlaced bool, d dsp.Interface) [8]dsp.Block {
	var out [8]dsp.Block
	lastRow1080 := mby == prof.MBRows(interlaced)-1 && prof.Height == 1080

	layout := [8]struct {
		plane    int
		col, row int
	}{
		{0, 0, 0}, {0, 1, 0},
		{1, 0, 0}, {2, 0, 0},
		{0, 0, 1}, {0, 1, 1},
		{1, 0, 1}, {2, 0, 1},
	}

	bpp := 1
	if fr.BitDepth == 10 {
		bpp = 2
	}

	for i, l := range layout {
		var src []byte
		var stride, x, y int
		switch l.plane {
		case 0:
			src, stride = fr.Planes.Y, fr.Planes.StrideY
			x = mbx*16 + l.col*8
			y = mby*16 + l.row*8
		case 1:
			src, stride = fr.Planes.U, fr.Planes.StrideC
			x = mbx*8 + l.col*8
			y = mby*16 + l.row*8
		default:
			src, stride = fr.Planes.V, fr.Planes.StrideC
			x = mbx*8 + l.col*8
			y = mby*16 + l.row*8
		}
		rowStride := stride
		if interlaced {
			rowStride = stride * 2
		}
		off := y*rowStride + x*bpp
		// Bias by a single (undoubled) stride for the bottom field's
		// physical row, not a doubled field-row: see
		// macroblock.placement's matching comment.
		if interlaced && field == 1 && l.plane == 0 {
			off += stride
		}

		if lastRow1080 && l.row == 1 {
			if !interlaced {
				d.ClearBlock(&out[i])
				continue
			}
			// Only the top 4 rows of this block exist in the field;
			// copy them and mirror into the bottom 4.
			window := make([]byte, 8*rowStride)
			copy(window, src[off:off+3*rowStride+8*bpp])
			macroblock.Synth8x4(window, rowStride, fr.BitDepth)
			d.GetPixels(&out[i], window, rowStride, fr.BitDepth)
			d.FDCT(&out[i])
			continue
		}
		d.GetPixels(&out[i], src[off:], rowStride, fr.BitDepth)
		d.FDCT(&out[i])
	}
	return out
}

// varianceKey returns a descending-sort key proportional to macroblock
// mb's 16x16 luma variance, for the fast path's promotion order: the
// macroblock's samples are gathered and handed to ratectl.Variance,
// which owns the statistic itself.
func varianceKey(fr *Frame, prof *profile.Profile, mb int) uint32 {
	mbx := mb % prof.MBWidth
	mby := mb / prof.MBWidth
	bpp := 1
	if fr.BitDepth == 10 {
		bpp = 2
	}
	x := mbx * 16 * bpp
	y := mby * 16

	samples := make([]float64, 0, 16*16)
	for row := 0; row < 16; row++ {
		off := (y+row)*fr.Planes.StrideY + x
		if off+16*bpp > len(fr.Planes.Y) {
			break
		}
		for col := 0; col < 16; col++ {
			if bpp == 1 {
				samples = append(samples, float64(fr.Planes.Y[off+col]))
			} else {
				so := off + 2*col
				samples = append(samples, float64(int(fr.Planes.Y[so])|int(fr.Planes.Y[so+1])<<8))
			}
		}
	}

	variance := ratectl.Variance(samples)
	if variance < 0 {
		variance = 0
	}
	if variance > 0xffffffff {
		variance = 0xffffffff
	}
	return uint32(variance)
}
