package parallel

import (
	"sync/atomic"
	"testing"
)

// count visits [0, n) in chunks and returns how many indices were seen.
func count(n int, cfg Config) int64 {
	var counter int64
	ForRange(n, func(start, end int) {
		atomic.AddInt64(&counter, int64(end-start))
	}, cfg)
	return counter
}

func TestForRange(t *testing.T) {
	n := 1000
	if got := count(n, DefaultConfig()); got != int64(n) {
		t.Errorf("Expected %d, got %d", n, got)
	}
}

func TestForRange_CoversEveryIndexOnce(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 8}

	n := 203
	hits := make([]int32, n)
	ForRange(n, func(start, end int) {
		for i := start; i < end; i++ {
			atomic.AddInt32(&hits[i], 1)
		}
	}, cfg)

	for i, h := range hits {
		if h != 1 {
			t.Errorf("index %d visited %d times", i, h)
		}
	}
}

func TestForRange_Sequential(t *testing.T) {
	cfg := Sequential()

	calls := 0
	ForRange(100, func(start, end int) {
		calls++
		if start != 0 || end != 100 {
			t.Errorf("Expected single chunk [0, 100), got [%d, %d)", start, end)
		}
	}, cfg)

	if calls != 1 {
		t.Errorf("Expected 1 chunk, got %d", calls)
	}
}

func TestForRange_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()
	n := cfg.MinChunkSize - 1
	if got := count(n, cfg); got != int64(max(n, 0)) {
		t.Errorf("Expected %d, got %d", n, got)
	}
}

func TestForRange_Empty(t *testing.T) {
	ForRange(0, func(_, _ int) {
		t.Error("f must not be called for n == 0")
	}, DefaultConfig())
}

func BenchmarkForRange(b *testing.B) {
	cfg := DefaultConfig()
	n := 10000

	b.Run("parallel", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			count(n, cfg)
		}
	})

	b.Run("sequential", func(b *testing.B) {
		cfgSeq := cfg
		cfgSeq.Enabled = false
		for i := 0; i < b.N; i++ {
			count(n, cfgSeq)
		}
	})
}
