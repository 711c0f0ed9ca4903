/*
DESCRIPTION
  catalog.go lists the compression IDs this implementation ships
  support for and builds their Profile records at package init. Weight
  matrices are flat (uniform per-coefficient divisors, scaled slightly
  toward high frequencies) rather than the real per-CID matrices tuned
  by the original vendors, consistent with CID table construction being
  treated as read-only external data this package does not have access
  to the exact values of.

AUTHORS
  Saxon A. Nelson-Milton <saxon@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package profile

import "fmt"

const (
	// CID1237 is 1920x1080, 8-bit, progressive or interlaced, ~175Mb/s.
	CID1237 uint32 = 1237
	// CID1252 is 1280x720, 8-bit, progressive only.
	CID1252 uint32 = 1252
	// CID1235 is 1920x1080, 10-bit, progressive or interlaced, ~185Mb/s.
	CID1235 uint32 = 1235
)

var catalog = map[uint32]*Profile{}

func init() {
	register(buildProfile(profileSpec{
		cid: CID1237, name: "DNxHD 1080p/i 8-bit 175Mb/s",
		bitDepth: 8, width: 1920, height: 1080, interlaced: true,
		codingUnitSize: 1_041_664,
	}))
	register(buildProfile(profileSpec{
		cid: CID1252, name: "DNxHD 720p 8-bit",
		bitDepth: 8, width: 1280, height: 720, interlaced: false,
		codingUnitSize: 303_104,
	}))
	register(buildProfile(profileSpec{
		cid: CID1235, name: "DNxHD 1080p/i 10-bit 185Mb/s",
		bitDepth: 10, width: 1920, height: 1080, interlaced: true,
		codingUnitSize: 1_191_936,
	}))
}

func register(p *Profile) {
	catalog[p.CID] = p
}

// Lookup returns the profile for cid, or ErrUnsupportedCID.
func Lookup(cid uint32) (*Profile, error) {
	p, ok := catalog[cid]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedCID, cid)
	}
	return p, nil
}

// ErrUnsupportedCID is returned by Lookup for a CID not in the catalog.
var ErrUnsupportedCID = fmt.Errorf("profile: unsupported CID")

type profileSpec struct {
	cid            uint32
	name           string
	bitDepth       int
	width, height  int
	interlaced     bool
	codingUnitSize int
}

// mbHeightFor applies the 1080-line correction: 1080/16 = 67.5, rounded
// up to 68 whole macroblock rows (the reference codec's mb_height
// adjustment for non-multiple-of-16 frame heights), applied per field
// for interlaced content.
func mbHeightFor(height int, interlaced bool) int {
	h := height
	if interlaced {
		h /= 2
	}
	return (h + 15) / 16
}

func buildProfile(s profileSpec) *Profile {
	indexBits := 4
	if s.bitDepth == 10 {
		indexBits = 6
	}
	p := &Profile{
		CID:            s.cid,
		Name:           s.name,
		BitDepth:       s.bitDepth,
		Width:          s.width,
		Height:         s.height,
		Interlaced:     s.interlaced,
		CodingUnitSize: s.codingUnitSize,
		ExtBase:        acExtBase,
		MBWidth:        s.width / 16,
		MBHeight:       mbHeightFor(s.height, s.interlaced),
		IndexBits:      indexBits,
	}

	p.LumaWeight = flatWeights(32)
	p.ChromaWeight = flatWeights(34)

	p.DC = buildDC(s.bitDepth)
	p.AC = buildAC()
	p.EOBIndex = 0
	p.Run = buildRun()

	return p
}

// flatWeights returns a weight matrix anchored at bias (real tables
// anchor at the canonical 32, the value the dequantizer's skip-bias
// branch keys on) and mildly increasing toward high spatial frequency,
// the coarse shape of real quantization weight tables without claiming
// to reproduce their exact values.
func flatWeights(bias uint16) [64]uint16 {
	var w [64]uint16
	for i := range w {
		w[i] = bias + uint16(3*(i/8))
	}
	return w
}
