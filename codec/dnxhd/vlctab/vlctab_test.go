package vlctab

import (
	"testing"

	"github.com/ausocean/dnxhd/codec/dnxhd/bits"
	"github.com/ausocean/dnxhd/codec/dnxhd/profile"
)

func TestForCIDCachesSameInstance(t *testing.T) {
	t1, err := ForCID(profile.CID1237)
	if err != nil {
		t.Fatalf("ForCID: %v", err)
	}
	t2, err := ForCID(profile.CID1237)
	if err != nil {
		t.Fatalf("ForCID: %v", err)
	}
	if t1 != t2 {
		t.Fatal("ForCID returned distinct instances for the same CID")
	}
}

func TestForCIDUnknownCID(t *testing.T) {
	if _, err := ForCID(9999); err == nil {
		t.Fatal("ForCID(9999) should fail")
	}
}

// TestBuildRoundTripsEveryAlphabetSymbol checks that every symbol a
// profile defines decodes back correctly through the flat lookup table
// Build constructs, by writing each codeword and reading it with
// Reader.ReadVLC.
func TestBuildRoundTripsEveryAlphabetSymbol(t *testing.T) {
	p, err := profile.Lookup(profile.CID1237)
	if err != nil {
		t.Fatalf("profile.Lookup: %v", err)
	}
	tabs := Build(p)

	checkRoundTrip(t, "DC", &tabs.DC, len(p.DC), func(i int) (uint16, uint8) { return p.DC[i].Code, p.DC[i].Len })
	checkRoundTrip(t, "AC", &tabs.AC, len(p.AC), func(i int) (uint16, uint8) { return p.AC[i].Code, p.AC[i].Len })
	checkRoundTrip(t, "Run", &tabs.Run, len(p.Run), func(i int) (uint16, uint8) { return p.Run[i].Code, p.Run[i].Len })
}

func checkRoundTrip(t *testing.T, name string, tab *bits.VLCTable, n int, get func(i int) (uint16, uint8)) {
	t.Helper()
	for i := 0; i < n; i++ {
		code, length := get(i)
		buf := make([]byte, 4)
		w := bits.NewWriter(buf)
		w.PutBits(uint32(code), int(length))

		r := bits.NewReader(buf)
		sym, err := r.ReadVLC(tab)
		if err != nil {
			t.Fatalf("%s symbol %d: ReadVLC: %v", name, i, err)
		}
		if sym != i {
			t.Fatalf("%s symbol %d: ReadVLC returned %d", name, i, sym)
		}
		if r.BitPos() != int(length) {
			t.Fatalf("%s symbol %d: consumed %d bits, want %d", name, i, r.BitPos(), length)
		}
	}
}
