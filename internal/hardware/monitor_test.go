package hardware

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedReader replays a fixed sequence of carrier values, repeating
// the final value once exhausted.
type scriptedReader struct {
	mu     sync.Mutex
	values []bool
	pos    int
}

func (r *scriptedReader) ReadCarrierDetect() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pos < len(r.values) {
		v := r.values[r.pos]
		r.pos++
		return v
	}
	if len(r.values) == 0 {
		return false
	}
	return r.values[len(r.values)-1]
}

func collectEdges(t *testing.T, values []bool, want int) []bool {
	t.Helper()

	reader := &scriptedReader{values: values}
	monitor := NewMonitor(reader, time.Millisecond, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var edges []bool

	done := make(chan struct{})
	go func() {
		defer close(done)
		monitor.Run(ctx, func(active bool) {
			mu.Lock()
			edges = append(edges, active)
			mu.Unlock()
		})
	}()

	deadline := time.After(2 * time.Second)
	for {
		mu.Lock()
		n := len(edges)
		mu.Unlock()
		if n >= want {
			break
		}
		select {
		case <-deadline:
			cancel()
			<-done
			t.Fatalf("Timed out waiting for %d edges, got %d", want, n)
		case <-time.After(2 * time.Millisecond):
		}
	}

	cancel()
	<-done

	mu.Lock()
	defer mu.Unlock()
	return edges
}

func TestMonitorReportsEdgesOnly(t *testing.T) {
	// Three level changes buried in a run of repeated samples.
	values := []bool{false, false, true, true, true, false, false, true}
	edges := collectEdges(t, values, 3)

	expected := []bool{true, false, true}
	for i, want := range expected {
		if edges[i] != want {
			t.Errorf("Edge %d: expected %v, got %v", i, want, edges[i])
		}
	}
}

func TestMonitorSilentOnSteadyLevel(t *testing.T) {
	reader := &scriptedReader{values: []bool{false}}
	monitor := NewMonitor(reader, time.Millisecond, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	fired := false
	monitor.Run(ctx, func(active bool) { fired = true })

	if fired {
		t.Error("Expected no edges for a steady carrier level")
	}
}

func TestMonitorAlternatingEdges(t *testing.T) {
	// Every edge must alternate; two consecutive identical edge values
	// would mean a missed or duplicated transition.
	values := []bool{false, true, false, true, false, true}
	edges := collectEdges(t, values, 5)

	for i := 1; i < len(edges); i++ {
		if edges[i] == edges[i-1] {
			t.Fatalf("Edges %d and %d have the same value %v", i-1, i, edges[i])
		}
	}
}
