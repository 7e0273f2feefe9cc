package middleware

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"QuantPull/internal/domain/models"
)

type countingProc struct {
	calls int64
	fail  atomic.Bool
}

func (p *countingProc) Process(_ context.Context, _ *models.Tick) error {
	if p.fail.Load() {
		return errors.New("downstream down")
	}
	atomic.AddInt64(&p.calls, 1)
	return nil
}

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordCacheHit(string)           {}
func (m *nopMetrics) RecordCacheMiss(string)          {}
func (m *nopMetrics) RecordSourceError(string)        {}
func (m *nopMetrics) RecordLastPrice(string, float64) {}
func (m *nopMetrics) RecordLatency(string, float64)   {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = make(map[string]int)
	}
	m.errors[kind]++
}

func (m *nopMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func tick(ticker string, price float64) *models.Tick {
	return &models.Tick{Ticker: ticker, Timestamp: time.Now().Unix(), Price: price, Volume: 1}
}

func TestPipelineRejectsInvalidTicks(t *testing.T) {
	proc := &countingProc{}
	m := &nopMetrics{}
	p := NewRealtimePipeline(proc, m)

	if err := p.Process(context.Background(), nil); err == nil {
		t.Fatalf("nil tick accepted")
	}
	if err := p.Process(context.Background(), tick("", 10)); err == nil {
		t.Fatalf("empty ticker accepted")
	}
	if err := p.Process(context.Background(), tick("AAPL", -1)); err == nil {
		t.Fatalf("negative price accepted")
	}
	if got := atomic.LoadInt64(&proc.calls); got != 0 {
		t.Fatalf("downstream called %d times for invalid input", got)
	}
	if m.count("pipeline_validate") != 3 {
		t.Fatalf("validate errors = %d, want 3", m.count("pipeline_validate"))
	}
}

func TestPipelineThrottlesPerTicker(t *testing.T) {
	proc := &countingProc{}
	m := &nopMetrics{}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(1))

	for i := 0; i < 5; i++ {
		if err := p.Process(context.Background(), tick("AAPL", 10)); err != nil {
			t.Fatalf("Process: %v", err)
		}
	}
	// first accepted, the rest inside the same second throttled
	if got := atomic.LoadInt64(&proc.calls); got != 1 {
		t.Fatalf("downstream calls = %d, want 1", got)
	}
	if m.count("pipeline_throttle") != 4 {
		t.Fatalf("throttled = %d, want 4", m.count("pipeline_throttle"))
	}

	// a different ticker has its own budget
	if err := p.Process(context.Background(), tick("MSFT", 20)); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got := atomic.LoadInt64(&proc.calls); got != 2 {
		t.Fatalf("downstream calls = %d, want 2", got)
	}
}

func TestPipelineBuffersOnFailure(t *testing.T) {
	proc := &countingProc{}
	proc.fail.Store(true)
	m := &nopMetrics{}
	p := NewRealtimePipeline(proc, m, WithMaxRPS(0), WithBufferSize(8))

	if err := p.Process(context.Background(), tick("AAPL", 10)); err == nil {
		t.Fatalf("expected downstream error")
	}

	// recover downstream and let the flusher drain the buffer
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	proc.fail.Store(false)
	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if atomic.LoadInt64(&proc.calls) == 1 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("buffered tick never flushed")
}
