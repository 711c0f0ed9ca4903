package profile

import (
	"errors"
	"testing"
)

func allProfiles(t *testing.T) []*Profile {
	t.Helper()
	var ps []*Profile
	for _, cid := range []uint32{CID1237, CID1252, CID1235} {
		p, err := Lookup(cid)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", cid, err)
		}
		ps = append(ps, p)
	}
	return ps
}

func TestLookupUnknownCID(t *testing.T) {
	if _, err := Lookup(9999); !errors.Is(err, ErrUnsupportedCID) {
		t.Fatalf("Lookup(9999) = %v, want ErrUnsupportedCID", err)
	}
}

// TestVLCCompleteness checks Testable Property 6: every built alphabet
// is a prefix-free code whose longest codeword fits the table's
// declared max length, and every entry got distinct code assigned
// (codeword, by construction of the canonical assignment, is unique per
// length class and prefix-free across classes).
func TestVLCCompleteness(t *testing.T) {
	for _, p := range allProfiles(t) {
		checkAlphabet(t, p.Name+" DC", dcLengths(p.DC), maxDCBits)
		checkAlphabet(t, p.Name+" AC", acLengths(p.AC), maxACBits)
		checkAlphabet(t, p.Name+" Run", runLengths(p.Run), maxRunBits)
	}
}

func dcLengths(es []DCEntry) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = int(e.Len)
	}
	return out
}

func acLengths(es []ACEntry) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = int(e.Len)
	}
	return out
}

func runLengths(es []RunEntry) []int {
	out := make([]int, len(es))
	for i, e := range es {
		out[i] = int(e.Len)
	}
	return out
}

func checkAlphabet(t *testing.T, name string, lengths []int, maxLen int) {
	t.Helper()
	for i, l := range lengths {
		if l <= 0 || l > maxLen {
			t.Fatalf("%s: symbol %d has length %d, want in [1,%d]", name, i, l, maxLen)
		}
	}
	// Kraft's inequality: sum(2^-length) <= 1 for a valid prefix code.
	var sum float64
	for _, l := range lengths {
		sum += 1.0 / float64(int(1)<<uint(l))
	}
	if sum > 1.0+1e-9 {
		t.Fatalf("%s: Kraft sum %f exceeds 1 (not prefix-free)", name, sum)
	}
}

func TestMaxLevel(t *testing.T) {
	p8, _ := Lookup(CID1237)
	if got, want := p8.MaxLevel(), 1<<10; got != want {
		t.Errorf("8-bit MaxLevel() = %d, want %d", got, want)
	}
	p10, _ := Lookup(CID1235)
	if got, want := p10.MaxLevel(), 1<<12; got != want {
		t.Errorf("10-bit MaxLevel() = %d, want %d", got, want)
	}
}

func TestEncodeDecodeLevelRoundTrip(t *testing.T) {
	for _, p := range allProfiles(t) {
		for _, run := range []bool{false, true} {
			for level := 1; level < p.MaxLevel(); level += 7 {
				sym, offset, ext, err := p.EncodeLevel(level, run)
				if err != nil {
					t.Fatalf("%s: EncodeLevel(%d, %v): %v", p.Name, level, run, err)
				}
				if ext != p.AC[sym].Ext {
					t.Fatalf("%s: EncodeLevel(%d): ext=%v but AC[%d].Ext=%v", p.Name, level, ext, sym, p.AC[sym].Ext)
				}
				got := p.DecodeLevel(sym, offset)
				if got != level {
					t.Fatalf("%s: DecodeLevel(EncodeLevel(%d, %v)) = %d, want %d", p.Name, level, run, got, level)
				}
			}
		}
	}
}

func TestEncodeLevelRejectsOutOfRange(t *testing.T) {
	p, _ := Lookup(CID1237)
	if _, _, _, err := p.EncodeLevel(0, false); err == nil {
		t.Error("EncodeLevel(0, false) should fail")
	}
	if _, _, _, err := p.EncodeLevel(p.MaxLevel(), false); err == nil {
		t.Error("EncodeLevel(MaxLevel(), false) should fail")
	}
}

// TestIndexBitsNominal checks every profile carries the nominal
// extension field width (4 at 8-bit, 6 at 10-bit) and that it still
// reaches the largest representable level under the base+offset<<7
// extension scheme.
func TestIndexBitsNominal(t *testing.T) {
	for _, p := range allProfiles(t) {
		want := 4
		if p.BitDepth == 10 {
			want = 6
		}
		if p.IndexBits != want {
			t.Errorf("%s: IndexBits = %d, want %d", p.Name, p.IndexBits, want)
		}
		maxOffset := (p.MaxLevel() - 1) >> 7
		if maxOffset >= 1<<uint(p.IndexBits) {
			t.Errorf("%s: offset %d for level %d exceeds %d-bit extension field",
				p.Name, maxOffset, p.MaxLevel()-1, p.IndexBits)
		}
	}
}
