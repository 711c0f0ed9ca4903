/*
DESCRIPTION
  profile.go catalogues the per-CID profile data the rest of the codec
  treats as read-only static configuration: frame geometry, macroblock
  counts, quantization weight matrices, and the DC/AC/run VLC alphabets.

  Real DNxHD/VC-3 profiles ship fixed alphabets tuned by exhaustive
  symbol-frequency analysis against the reference encoder; that analysis
  is not reproduced here. Instead each profile's alphabets are built by a
  canonical Huffman code over a hand-set, skewed per-symbol weighting,
  length-limited to each table's maximum (see huffman.go), which satisfies every structural constraint the rest of
  the codec depends on (prefix-free, max codeword length, the base/
  extension split for large AC levels) without claiming bit-exact parity
  with any specific vendor's tables. This is recorded as a deliberate
  simplification; see the repository's design notes.

  The synthesized AC alphabet is also right-sized to the symbols this
  package actually emits (one end-of-block, one run-flag pair per plain
  level, and one run-flag pair per 7-bit extended base) rather than
  squeezed into the reference format's nominal 257-slot table, since the
  exact slot count only matters for bit-exact interchange with the real
  tables this implementation does not have. Extended levels follow the
  documented wire formula exactly: base + (extra << 7), with the
  nominal 4/6-bit extension field.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

// Package profile catalogues DNxHD/VC-3 compression-ID (CID) profiles:
// frame geometry, macroblock layout, quantization weights and the DC/AC/
// run VLC alphabets every other codec package builds its runtime tables
// from.
package profile

import "fmt"

// Table bit-length caps, matching the reference codec's DNXHD_VLC_BITS
// and DNXHD_DC_VLC_BITS constants.
const (
	maxACBits  = 9
	maxDCBits  = 7
	maxRunBits = 9

	// acRunSymbols is the number of distinct run-length VLC symbols,
	// covering run lengths 1..62 (a run of 0 never needs its own
	// codeword: it is implied whenever ac_flags bit1 is clear).
	acRunSymbols = 62

	// acExtBase is the largest level a plain (non-extended) AC base
	// entry can directly represent; levels beyond it use the
	// base-plus-offset extension scheme.
	acExtBase = 63

	// acExtShift positions an extension offset above the 7-bit base
	// level: level = base + (extra << acExtShift).
	acExtShift = 7

	// acExtBases is the number of distinct extended-entry base levels
	// (0..127, the full 7-bit ac_level range), so every residue class
	// mod 128 is reachable under the extension scheme.
	acExtBases = 128
)

// DCEntry is one symbol of a DC differential-size VLC alphabet: Bits
// value, zero-based size-class index i maps to codeword (Code, Len),
// consumed before reading i raw magnitude bits (0 magnitude bits for
// i==0, meaning diff==0).
type DCEntry struct {
	Code uint16
	Len  uint8
}

// ACEntry is one symbol of the AC run/level VLC alphabet. Level is the
// represented residual magnitude for plain entries (Ext false); for an
// extended entry (Ext true) Level is the 7-bit base and the true level
// is reconstructed as Level + (extra << 7), with extra an
// IndexBits-wide field read immediately after the sign bit. Run is the
// flag that the symbol also consumes a run-length VLC code (ac_flags
// bit1 in the reference codec); Ext is the flag that the symbol
// consumes IndexBits extra bits (ac_flags bit0).
type ACEntry struct {
	Code  uint16
	Len   uint8
	Level uint8
	Run   bool
	Ext   bool
}

// RunEntry is one symbol of the run-length VLC alphabet.
type RunEntry struct {
	Code uint16
	Len  uint8
	Run  uint8
}

// Profile describes everything the codec needs to know about one
// compression ID: frame geometry, quantization weights, and the three
// entropy-coding alphabets.
type Profile struct {
	CID  uint32
	Name string

	BitDepth int // 8 or 10
	Width    int
	Height   int

	Interlaced bool // profile supports field-coded pictures

	// CodingUnitSize is the number of bytes a coding unit (slice group)
	// is rounded up to, per the header's coding-unit alignment rule.
	CodingUnitSize int

	// ExtBase is the largest level a plain AC entry represents directly;
	// levels above it are carried by an extended entry whose 7-bit base
	// is topped up by an IndexBits-wide offset in units of 128
	// (base + offset<<7).
	ExtBase int

	MBWidth  int // macroblocks per row
	MBHeight int // macroblock rows (post the 1080-line correction)

	HasAlpha bool

	IndexBits int // width of an AC extension offset (4 for 8-bit, 6 for 10-bit)

	// LumaWeight and ChromaWeight are the natural (row-major) order per-coefficient
	// quantization weights, one set per luma/chroma plane.
	LumaWeight   [64]uint16
	ChromaWeight [64]uint16

	DC  []DCEntry
	AC  []ACEntry
	Run []RunEntry

	EOBIndex int // AC alphabet index of the end-of-block symbol
}

// MaxLevel is the largest absolute AC coefficient level this profile's
// alphabet can represent, 1<<(BitDepth+2) per the reference codec's
// vlc_codes/vlc_bits array sizing.
func (p *Profile) MaxLevel() int {
	return 1 << uint(p.BitDepth+2)
}

// MBRows returns the macroblock rows one coding unit covers when a
// frame is coded progressive or interlaced: interlaced content codes
// each field as its own coding unit at half the frame height, and
// 1080-line content rounds 67.5 up to 68 (or 33.75 up to 34 per field).
func (p *Profile) MBRows(interlaced bool) int {
	h := p.Height
	if interlaced {
		h /= 2
	}
	return (h + 15) / 16
}

// buildDC constructs a canonical-Huffman DC size-class alphabet with
// bit_depth+4 entries (size classes 0..bit_depth+3), matching the
// reference codec's dc_bits table shape. Smaller size classes (smaller
// differentials, which dominate real footage) get a mild weight bump so
// they end up with the shorter codewords.
func buildDC(bitDepth int) []DCEntry {
	n := bitDepth + 4
	weights := make([]int, n)
	for i := range weights {
		weights[i] = 100
	}
	weights[0] = 400
	weights[1] = 300
	lengths := limitedHuffmanLengths(weights, maxDCBits)
	codes := canonicalCodes(lengths, maxDCBits)
	out := make([]DCEntry, n)
	for i, c := range codes {
		out[i] = DCEntry{Code: c.bits, Len: c.len}
	}
	return out
}

// buildRun constructs a canonical-Huffman run-length alphabet covering
// run lengths 1..62, with short runs weighted more heavily.
func buildRun() []RunEntry {
	weights := make([]int, acRunSymbols)
	for i := range weights {
		weights[i] = 100
	}
	for i := 0; i < 8 && i < acRunSymbols; i++ {
		weights[i] = 500 - i*40
	}
	lengths := limitedHuffmanLengths(weights, maxRunBits)
	codes := canonicalCodes(lengths, maxRunBits)
	out := make([]RunEntry, acRunSymbols)
	for i, c := range codes {
		out[i] = RunEntry{Code: c.bits, Len: c.len, Run: uint8(i + 1)}
	}
	return out
}

// buildAC constructs the AC run/level alphabet: symbol 0 is
// end-of-block, symbols 1..2*acExtBase are (level, run-flag) pairs for
// plain levels 1..acExtBase, and the remainder are the extended
// entries — one per (7-bit base, run-flag) pair — whose base is topped
// up by an IndexBits-wide offset in units of 128, so every level up to
// MaxLevel()-1 decomposes as (level & 127) + (level >> 7 << 7).
func buildAC() []ACEntry {
	const (
		eob        = 0
		plainStart = 1
		plainCount = 2 * acExtBase // one run=false and one run=true entry per level
		extStart   = plainStart + plainCount
		extCount   = 2 * acExtBases // one run=false and one run=true entry per base
		total      = extStart + extCount
	)

	weights := make([]int, total)
	for i := range weights {
		weights[i] = 20 // extended entries: rare in any plausible stream
	}
	weights[eob] = 2000

	entries := make([]ACEntry, total)
	entries[eob] = ACEntry{}

	idx := plainStart
	for level := 1; level <= acExtBase; level++ {
		// Smaller levels are far more frequent in real footage; bias
		// their weight so the canonical assignment gives them the
		// shorter codewords.
		w := 900 - level*12
		if w < 40 {
			w = 40
		}
		weights[idx] = w
		entries[idx] = ACEntry{Level: uint8(level), Run: false}
		idx++
		weights[idx] = w - 10
		if weights[idx] < 20 {
			weights[idx] = 20
		}
		entries[idx] = ACEntry{Level: uint8(level), Run: true}
		idx++
	}
	for base := 0; base < acExtBases; base++ {
		entries[idx] = ACEntry{Level: uint8(base), Run: false, Ext: true}
		idx++
		entries[idx] = ACEntry{Level: uint8(base), Run: true, Ext: true}
		idx++
	}

	lengths := limitedHuffmanLengths(weights, maxACBits)
	codes := canonicalCodes(lengths, maxACBits)
	for i, c := range codes {
		entries[i].Code = c.bits
		entries[i].Len = c.len
	}
	return entries
}

// findACPlain returns the alphabet index of the plain (non-extended)
// entry for the given residual level (1..acExtBase) and run flag.
func (p *Profile) findACPlain(level int, run bool) (int, bool) {
	want := uint8(level)
	for i, e := range p.AC {
		if !e.Ext && i != p.EOBIndex && e.Level == want && e.Run == run {
			return i, true
		}
	}
	return 0, false
}

// findACExt returns the alphabet index of the extended entry carrying
// the given 7-bit base level and run flag.
func (p *Profile) findACExt(base int, run bool) (int, bool) {
	want := uint8(base)
	for i, e := range p.AC {
		if e.Ext && e.Level == want && e.Run == run {
			return i, true
		}
	}
	return 0, false
}

// EncodeLevel returns the AC alphabet index and, for extended levels,
// the IndexBits-wide offset to append after it, for a residual
// magnitude in [1, MaxLevel()-1]. Levels beyond ExtBase split as
// base = level & 127 and offset = level >> 7, the inverse of
// DecodeLevel's base + offset<<7 reconstruction.
func (p *Profile) EncodeLevel(level int, run bool) (symbol int, offset uint32, ext bool, err error) {
	if level <= 0 || level >= p.MaxLevel() {
		return 0, 0, false, fmt.Errorf("profile: level %d out of range for CID %d", level, p.CID)
	}
	if level <= p.ExtBase {
		sym, ok := p.findACPlain(level, run)
		if !ok {
			return 0, 0, false, fmt.Errorf("profile: no AC entry for level %d run=%v", level, run)
		}
		return sym, 0, false, nil
	}
	base := level & (1<<acExtShift - 1)
	off := level >> acExtShift
	if off >= 1<<uint(p.IndexBits) {
		return 0, 0, false, fmt.Errorf("profile: level %d exceeds extension range for CID %d", level, p.CID)
	}
	sym, ok := p.findACExt(base, run)
	if !ok {
		return 0, 0, false, fmt.Errorf("profile: no AC extended entry for base %d run=%v", base, run)
	}
	return sym, uint32(off), true, nil
}

// DecodeLevel reconstructs an absolute AC coefficient level from an
// alphabet symbol and, for extended entries, the IndexBits-wide offset
// that followed the sign bit: level = base + (offset << 7).
func (p *Profile) DecodeLevel(symbol int, offset uint32) int {
	e := p.AC[symbol]
	if !e.Ext {
		return int(e.Level)
	}
	return int(e.Level) + int(offset)<<acExtShift
}
