package sched

import (
	"sync/atomic"
	"testing"
)

func TestParallelForVisitsEveryRowOnce(t *testing.T) {
	const rows = 37
	var seen [rows]int32

	p := NewPool(4)
	p.ParallelFor(rows, func(row, thread int) {
		atomic.AddInt32(&seen[row], 1)
		if thread < 0 || thread >= 4 {
			t.Errorf("thread index %d out of [0,4)", thread)
		}
	})

	for row, n := range seen {
		if n != 1 {
			t.Errorf("row %d visited %d times, want 1", row, n)
		}
	}
}

func TestNewPoolClampsNonPositiveToOne(t *testing.T) {
	if p := NewPool(0); p.N != 1 {
		t.Errorf("NewPool(0).N = %d, want 1", p.N)
	}
	if p := NewPool(-5); p.N != 1 {
		t.Errorf("NewPool(-5).N = %d, want 1", p.N)
	}
}

func TestParallelForZeroRowsNoop(t *testing.T) {
	p := NewPool(2)
	called := false
	p.ParallelFor(0, func(int, int) { called = true })
	if called {
		t.Errorf("job called with zero rows")
	}
}
