package scan

import "testing"

func TestZigZagIsAPermutation(t *testing.T) {
	var seen [64]bool
	for _, v := range ZigZag {
		if v > 63 {
			t.Fatalf("ZigZag entry %d out of range", v)
		}
		if seen[v] {
			t.Fatalf("ZigZag entry %d repeated", v)
		}
		seen[v] = true
	}
}

func TestBuildWithIdentityEqualsZigZag(t *testing.T) {
	got := Build(Identity())
	for i := range got {
		if got[i] != ZigZag[i] {
			t.Errorf("Build(Identity())[%d] = %d, want %d", i, got[i], ZigZag[i])
		}
	}
}

func TestBuildComposesPermutation(t *testing.T) {
	// A permutation that swaps positions 0 and 1, identity elsewhere.
	perm := Identity()
	perm[0], perm[1] = perm[1], perm[0]

	got := Build(perm)
	for i, z := range ZigZag {
		want := perm[z]
		if got[i] != want {
			t.Errorf("Build(perm)[%d] = %d, want %d", i, got[i], want)
		}
	}
}

func TestTableIsAPermutation(t *testing.T) {
	tab := Build(Identity())
	var seen [64]bool
	for _, v := range tab {
		if seen[v] {
			t.Fatalf("scan table entry %d repeated", v)
		}
		seen[v] = true
	}
}
