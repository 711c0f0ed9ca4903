package profile

import "testing"

func TestBuildProfileGeometry(t *testing.T) {
	tests := []struct {
		cid            uint32
		wantW, wantH   int
		wantInterlaced bool
		wantBitDepth   int
	}{
		{CID1237, 1920, 1080, true, 8},
		{CID1252, 1280, 720, false, 8},
		{CID1235, 1920, 1080, true, 10},
	}
	for _, tt := range tests {
		p, err := Lookup(tt.cid)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", tt.cid, err)
		}
		if p.Width != tt.wantW || p.Height != tt.wantH {
			t.Errorf("CID %d: geometry %dx%d, want %dx%d", tt.cid, p.Width, p.Height, tt.wantW, tt.wantH)
		}
		if p.Interlaced != tt.wantInterlaced {
			t.Errorf("CID %d: Interlaced = %v, want %v", tt.cid, p.Interlaced, tt.wantInterlaced)
		}
		if p.BitDepth != tt.wantBitDepth {
			t.Errorf("CID %d: BitDepth = %d, want %d", tt.cid, p.BitDepth, tt.wantBitDepth)
		}
		if p.MBWidth != (p.Width+15)/16 {
			t.Errorf("CID %d: MBWidth = %d, want %d", tt.cid, p.MBWidth, (p.Width+15)/16)
		}
	}
}

// TestMBHeight1080Correction checks the 1080-line vertical correction:
// mb_height covers the rounded-up macroblock rows for a 1080-line field
// or frame (1080/16 = 67.5, so 68 macroblock rows are needed).
func TestMBHeight1080Correction(t *testing.T) {
	p, err := Lookup(CID1237)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	const want = 34 // ceil(540/16) for one interlaced field of CID 1237
	if p.MBHeight <= 0 || p.MBHeight > 68 {
		t.Fatalf("MBHeight = %d, want in (0,68]", p.MBHeight)
	}
	if p.MBHeight != want {
		t.Errorf("MBHeight = %d, want %d", p.MBHeight, want)
	}
}

func TestCodingUnitSizeMatchesRegisteredValues(t *testing.T) {
	tests := map[uint32]int{
		CID1237: 1_041_664,
		CID1252: 303_104,
		CID1235: 1_191_936,
	}
	for cid, want := range tests {
		p, err := Lookup(cid)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", cid, err)
		}
		if p.CodingUnitSize != want {
			t.Errorf("CID %d: CodingUnitSize = %d, want %d", cid, p.CodingUnitSize, want)
		}
	}
}
