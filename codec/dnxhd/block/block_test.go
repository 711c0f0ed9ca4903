package block

import (
	"testing"

	"github.com/ausocean/dnxhd/codec/dnxhd/bits"
	"github.com/ausocean/dnxhd/codec/dnxhd/dsp"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
	"github.com/ausocean/dnxhd/codec/dnxhd/quant"
	"github.com/ausocean/dnxhd/codec/dnxhd/scan"
	"github.com/ausocean/dnxhd/codec/dnxhd/vlctab"
)

func testFixture(t *testing.T) (*profile.Profile, *vlctab.Tables, scan.Table) {
	t.Helper()
	p, err := profile.Lookup(profile.CID1237)
	if err != nil {
		t.Fatalf("profile.Lookup: %v", err)
	}
	tabs, err := vlctab.ForCID(profile.CID1237)
	if err != nil {
		t.Fatalf("vlctab.ForCID: %v", err)
	}
	var ref dsp.Reference
	scn := scan.Build(ref.IDCTPermutation())
	return p, tabs, scn
}

func TestEncodeDecodeRoundTripZeroBlock(t *testing.T) {
	p, tabs, scn := testFixture(t)
	qmat := quant.BuildMatrix(&p.LumaWeight, 4, p.BitDepth)

	var src [64]int32 // all zero: DC unchanged, no AC coefficients.
	buf := make([]byte, 256)
	w := bits.NewWriter(buf)
	lastDC := int32(1) << uint(p.BitDepth+2)
	newDC, err := Encode(w, p, scn, &qmat, quant.DefaultQuantBias, lastDC, &src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	r := bits.NewReader(buf)
	var dst [64]int32
	gotDC, err := Decode(r, p, tabs, scn, Luma, 4, lastDC, &dst)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if gotDC != newDC {
		t.Errorf("decoded DC = %d, want %d (from Encode)", gotDC, newDC)
	}
	for i, v := range dst {
		if i == 0 {
			continue
		}
		if v != 0 {
			t.Errorf("dst[%d] = %d, want 0", i, v)
		}
	}
}

func TestEncodeDecodeRoundTripSingleCoefficient(t *testing.T) {
	p, tabs, scn := testFixture(t)
	qmat := quant.BuildMatrix(&p.LumaWeight, 1, p.BitDepth)

	var src [64]int32
	// A strong coefficient at natural position scn[1] so it survives
	// quantization at qscale 1.
	src[scn[1]] = 4000

	buf := make([]byte, 256)
	w := bits.NewWriter(buf)
	lastDC := int32(1) << uint(p.BitDepth+2)
	_, err := Encode(w, p, scn, &qmat, quant.DefaultQuantBias, lastDC, &src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	r := bits.NewReader(buf)
	var dst [64]int32
	if _, err := Decode(r, p, tabs, scn, Luma, 1, lastDC, &dst); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dst[scn[1]] == 0 {
		t.Errorf("decoded coefficient at scn[1] is zero, want nonzero")
	}
	for i, v := range dst {
		if i == int(scn[1]) || i == 0 {
			continue
		}
		if v != 0 {
			t.Errorf("dst[%d] = %d, want 0 (only scn[1] should be nonzero)", i, v)
		}
	}
}

func TestDecodeDamagedStreamReturnsErrDamaged(t *testing.T) {
	p, tabs, scn := testFixture(t)
	_ = scn
	// An empty buffer has no bits to satisfy even the DC VLC read.
	r := bits.NewReader(nil)
	var dst [64]int32
	_, err := Decode(r, p, tabs, scn, Luma, 1, 0, &dst)
	if err != ErrDamaged {
		t.Fatalf("Decode on empty buffer = %v, want ErrDamaged", err)
	}
}

func TestBitsMatchesEncodeLength(t *testing.T) {
	p, _, scn := testFixture(t)
	qmat := quant.BuildMatrix(&p.LumaWeight, 2, p.BitDepth)

	var src [64]int32
	src[scn[1]] = 2000
	src[scn[5]] = -300

	lastDC := int32(1) << uint(p.BitDepth+2)
	buf := make([]byte, 256)
	w := bits.NewWriter(buf)
	_, err := Encode(w, p, scn, &qmat, quant.DefaultQuantBias, lastDC, &src)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	n, _, err := Bits(p, scn, &qmat, quant.DefaultQuantBias, lastDC, &src)
	if err != nil {
		t.Fatalf("Bits: %v", err)
	}
	if n != w.BitsWritten() {
		t.Errorf("Bits = %d, want %d (Encode's actual bit count)", n, w.BitsWritten())
	}
}

func TestDistortionMatchesBitsAndIsZeroForExactlyQuantizedInput(t *testing.T) {
	p, _, scn := testFixture(t)
	qmat := quant.BuildMatrix(&p.LumaWeight, 2, p.BitDepth)

	var src [64]int32
	src[scn[1]] = 2000
	src[scn[5]] = -300

	lastDC := int32(1) << uint(p.BitDepth+2)
	wantBits, _, err := Bits(p, scn, &qmat, quant.DefaultQuantBias, lastDC, &src)
	if err != nil {
		t.Fatalf("Bits: %v", err)
	}
	gotBits, ssd, newDC, err := Distortion(p, scn, &qmat, &p.LumaWeight, quant.DefaultQuantBias, 2, lastDC, &src)
	if err != nil {
		t.Fatalf("Distortion: %v", err)
	}
	if gotBits != wantBits {
		t.Errorf("Distortion bits = %d, want %d (matching Bits)", gotBits, wantBits)
	}
	if newDC != quant.QuantizeDC(src[0], p.BitDepth) {
		t.Errorf("Distortion newDC = %d, want %d", newDC, quant.QuantizeDC(src[0], p.BitDepth))
	}
	if ssd < 0 {
		t.Errorf("Distortion ssd = %d, want >= 0", ssd)
	}

	var zero [64]int32
	_, ssdZero, _, err := Distortion(p, scn, &qmat, &p.LumaWeight, quant.DefaultQuantBias, 2, lastDC, &zero)
	if err != nil {
		t.Fatalf("Distortion: %v", err)
	}
	if ssdZero != 0 {
		t.Errorf("Distortion ssd on an all-zero block = %d, want 0", ssdZero)
	}
}
