package bufferpool

import "testing"

func TestLease_allocatesWhenEmpty(t *testing.T) {
	p := New(4)

	b := p.Lease(128)
	if b.Capacity() < 128 {
		t.Fatalf("capacity %d < 128", b.Capacity())
	}

	if p.Size() != 0 {
		t.Fatalf("leasing from an empty pool must not grow it")
	}
}

func TestReturnThenLease_reusesSmallestFit(t *testing.T) {
	p := New(4)

	small := newBuffer(64)
	large := newBuffer(256)
	p.Return(small)
	p.Return(large)

	if p.Size() != 2 {
		t.Fatalf("size = %d, want 2", p.Size())
	}

	leased := p.Lease(100)
	if leased.Capacity() != 256 {
		t.Fatalf("expected the 256-byte buffer (smallest fit >= 100), got %d", leased.Capacity())
	}

	if p.Size() != 1 {
		t.Fatalf("leased buffer should be removed from the pool")
	}
}

func TestLease_resetsPosition(t *testing.T) {
	p := New(4)

	b := newBuffer(32)
	b.Position = 10
	p.Return(b)

	leased := p.Lease(16)
	if leased.Position != 0 {
		t.Fatalf("leased buffer position = %d, want 0", leased.Position)
	}
}

func TestReturn_rejectsNilAndNonNative(t *testing.T) {
	p := New(4)

	p.Return(nil)
	if p.Size() != 0 {
		t.Fatalf("nil return must be a no-op")
	}

	foreign := &Buffer{Bytes: make([]byte, 8), native: false}
	p.Return(foreign)

	if p.Size() != 0 {
		t.Fatalf("non-native buffer must be rejected")
	}
}

func TestReturn_evictsSmallestWhenFull(t *testing.T) {
	p := New(2)

	p.Return(newBuffer(10))
	p.Return(newBuffer(20))

	// Pool full; returning a larger buffer should evict the 10-byte one.
	p.Return(newBuffer(30))

	if got := p.capacities(); len(got) != 2 || got[0] != 20 || got[1] != 30 {
		t.Fatalf("capacities = %v, want [20 30]", got)
	}
}

func TestReturn_dropsWhenFullAndNotLarger(t *testing.T) {
	p := New(2)

	p.Return(newBuffer(10))
	p.Return(newBuffer(20))
	p.Return(newBuffer(5)) // smaller than every member: dropped

	if got := p.capacities(); len(got) != 2 || got[0] != 10 || got[1] != 20 {
		t.Fatalf("capacities = %v, want [10 20]", got)
	}
}

func TestClear(t *testing.T) {
	p := New(4)
	p.Return(newBuffer(16))
	p.Clear()

	if p.Size() != 0 {
		t.Fatalf("expected empty pool after Clear")
	}
}

func TestNew_nonPositiveMaxPooledFallsBackToDefault(t *testing.T) {
	p := New(0)
	if p.maxPooled != DefaultMaxPooled {
		t.Fatalf("maxPooled = %d, want %d", p.maxPooled, DefaultMaxPooled)
	}
}
