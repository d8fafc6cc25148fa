package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
)

// =============================================================================
// Pool Creation Tests
// =============================================================================

func TestPool_Create(t *testing.T) {
	tests := []struct {
		name    string
		workers int
		want    int
	}{
		{"explicit", 4, 4},
		{"zero uses GOMAXPROCS", 0, runtime.GOMAXPROCS(0)},
		{"negative uses GOMAXPROCS", -5, runtime.GOMAXPROCS(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPool(tt.workers)
			defer p.Close()
			if p.Workers() != tt.want {
				t.Errorf("Workers() = %d, want %d", p.Workers(), tt.want)
			}
		})
	}
}

// =============================================================================
// Rows Tests
// =============================================================================

func TestPool_RowsCoversRange(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	for _, n := range []int{0, 1, 7, 8, 64, 1000, 1023} {
		seen := make([]atomic.Int32, n)
		var calls atomic.Int32
		p.Rows(n, func(lo, hi int) {
			calls.Add(1)
			for i := lo; i < hi; i++ {
				seen[i].Add(1)
			}
		})
		for i := range seen {
			if c := seen[i].Load(); c != 1 {
				t.Fatalf("n=%d: row %d visited %d times", n, i, c)
			}
		}
		if n >= 8*MinBand && calls.Load() < 2 {
			t.Errorf("n=%d ran in %d band", n, calls.Load())
		}
	}
}

func TestPool_RowsBandsAreContiguous(t *testing.T) {
	p := NewPool(3)
	defer p.Close()

	var mu sync.Mutex
	var bands [][2]int
	p.Rows(300, func(lo, hi int) {
		mu.Lock()
		bands = append(bands, [2]int{lo, hi})
		mu.Unlock()
	})
	total := 0
	for _, b := range bands {
		if b[0] >= b[1] {
			t.Errorf("empty band %v", b)
		}
		total += b[1] - b[0]
	}
	if total != 300 {
		t.Errorf("bands cover %d rows, want 300", total)
	}
}

func TestPool_RowsAfterClose(t *testing.T) {
	p := NewPool(2)
	p.Close()
	p.Close()

	var rows atomic.Int32
	p.Rows(100, func(lo, hi int) { rows.Add(int32(hi - lo)) })
	if rows.Load() != 100 {
		t.Errorf("closed pool ran %d rows, want 100 inline", rows.Load())
	}
}

func TestPool_ConcurrentCallers(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	var wg sync.WaitGroup
	var total atomic.Int64
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Rows(256, func(lo, hi int) { total.Add(int64(hi - lo)) })
		}()
	}
	wg.Wait()
	if total.Load() != 8*256 {
		t.Errorf("total = %d, want %d", total.Load(), 8*256)
	}
}

func TestSharedRows(t *testing.T) {
	var rows atomic.Int32
	Rows(128, func(lo, hi int) { rows.Add(int32(hi - lo)) })
	if rows.Load() != 128 {
		t.Errorf("rows = %d", rows.Load())
	}
}

// =============================================================================
// Benchmarks
// =============================================================================

func BenchmarkPool_Rows(b *testing.B) {
	p := NewPool(0)
	defer p.Close()
	field := make([]float32, 1024*1024)
	b.ReportAllocs()
	for b.Loop() {
		p.Rows(1024, func(lo, hi int) {
			for i := lo * 1024; i < hi*1024; i++ {
				field[i] = field[i]*0.5 + 1
			}
		})
	}
}
