/*
DESCRIPTION
  header.go reads and writes the 640-byte DNxHD coding-unit header: the
  fixed prefix, picture geometry and pixel-format fields, the CID, and
  the per-slice scan-index table, all at fixed byte offsets -- the same
  style container/mts uses for MPEG-TS packet fields.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package header reads and writes the 640-byte DNxHD coding-unit
// header, including the scan-index table it carries at offset 0x170.
package header

import (
	"encoding/binary"
	"fmt"
)

// Size is the fixed coding-unit header length in bytes.
const Size = 640

// Fixed byte offsets within the header, per the wire layout.
const (
	offPrefix       = 0x00
	prefixLen       = 5
	offFlags        = 0x05
	offHeight       = 0x18
	offWidth        = 0x1a
	offPixelFormat  = 0x21
	offInterlaceDsc = 0x22
	offCID          = 0x28
	offMBHeight     = 0x16d
	offScanIndex    = 0x170
)

var prefix = [prefixLen]byte{0x00, 0x00, 0x02, 0x80, 0x01}

// ErrHeaderMismatch is returned when the fixed prefix bytes don't match.
var ErrHeaderMismatch = fmt.Errorf("header: prefix mismatch")

// ErrMBHeightOutOfRange is returned when mb_height exceeds the maximum
// the wire format allows.
var ErrMBHeightOutOfRange = fmt.Errorf("header: mb_height out of range")

// ErrScanIndexOutOfRange is returned when a decoded scan index, plus
// the payload base offset, would reach past the buffer.
var ErrScanIndexOutOfRange = fmt.Errorf("header: scan index out of range")

// ErrShortBuffer is returned when buf is too small to hold a header.
var ErrShortBuffer = fmt.Errorf("header: buffer shorter than header size")

// MaxMBHeight is the largest mb_height this format allows.
const MaxMBHeight = 68

// PayloadBase is the file offset byte 0 of the post-header payload sits
// at (i.e. the header itself occupies offsets [0, PayloadBase)), used
// when validating scan indices, which are stored relative to it.
const PayloadBase = Size

// Header is the parsed content of one coding-unit header.
type Header struct {
	Interlaced   bool
	CurrentField int // 0 or 1
	Height       uint16
	Width        uint16
	TenBit       bool
	CID          uint32
	MBHeight     int
	ScanIndex    []uint32 // byte offset of each slice, relative to PayloadBase
}

// Decode parses a coding-unit header from the start of buf. buf must be
// at least Size bytes; the scan-index table (4*mbHeight bytes from
// offset 0x170) lies inside the header.
func Decode(buf []byte) (*Header, error) {
	if len(buf) < Size {
		return nil, ErrShortBuffer
	}
	for i := 0; i < prefixLen; i++ {
		if buf[offPrefix+i] != prefix[i] {
			return nil, ErrHeaderMismatch
		}
	}

	flags := buf[offFlags]
	h := &Header{
		Interlaced:   flags&0x02 != 0,
		CurrentField: int(flags & 0x01),
		Height:       binary.BigEndian.Uint16(buf[offHeight:]),
		Width:        binary.BigEndian.Uint16(buf[offWidth:]),
		TenBit:       buf[offPixelFormat]&0x40 != 0,
		CID:          binary.BigEndian.Uint32(buf[offCID:]),
		MBHeight:     int(buf[offMBHeight]),
	}
	if h.MBHeight <= 0 || h.MBHeight > MaxMBHeight {
		return nil, ErrMBHeightOutOfRange
	}

	need := offScanIndex + 4*h.MBHeight
	if len(buf) < need {
		return nil, ErrShortBuffer
	}
	h.ScanIndex = make([]uint32, h.MBHeight)
	for i := range h.ScanIndex {
		h.ScanIndex[i] = binary.BigEndian.Uint32(buf[offScanIndex+4*i:])
	}
	return h, nil
}

// Validate checks h's scan-index table against the total coding-unit
// size, rejecting indices that would place a slice past the buffer.
func (h *Header) Validate(codingUnitSize int) error {
	for _, off := range h.ScanIndex {
		if int(off)+PayloadBase > codingUnitSize {
			return ErrScanIndexOutOfRange
		}
	}
	return nil
}

// Encode writes a coding-unit header (fixed fields plus scan-index
// table at offset 0x170) into the first Size bytes of buf, or further
// when the table has more than MaxMBHeight entries.
func Encode(h *Header, buf []byte) error {
	need := offScanIndex + 4*len(h.ScanIndex)
	if need < Size {
		need = Size
	}
	if len(buf) < need {
		return ErrShortBuffer
	}
	for i := range buf[:Size] {
		buf[i] = 0
	}
	copy(buf[offPrefix:], prefix[:])

	var flags byte
	if h.Interlaced {
		flags |= 0x02
	}
	flags |= byte(h.CurrentField & 0x01)
	buf[offFlags] = flags

	binary.BigEndian.PutUint16(buf[offHeight:], h.Height)
	binary.BigEndian.PutUint16(buf[offWidth:], h.Width)

	var pf byte
	if h.TenBit {
		pf |= 0x40
	}
	buf[offPixelFormat] = pf

	var interlaceDsc byte = 0x88
	if h.Interlaced {
		interlaceDsc |= 0x04
	}
	buf[offInterlaceDsc] = interlaceDsc

	binary.BigEndian.PutUint32(buf[offCID:], h.CID)
	buf[offMBHeight] = byte(h.MBHeight)

	for i, off := range h.ScanIndex {
		binary.BigEndian.PutUint32(buf[offScanIndex+4*i:], off)
	}
	return nil
}
