package matchengine

import (
	"testing"

	"github.com/rishav/exchange-core/internal/wire"
)

func TestReportBatcher_DrainReturnsQueuedReportsAndResets(t *testing.T) {
	b := NewReportBatcher()
	if b.Len() != 0 {
		t.Fatalf("new batcher should be empty, got len %d", b.Len())
	}

	b.Add(wire.ExecutionReport{OrderID: 1}, wire.ExecutionReport{OrderID: 2})
	b.Add(wire.ExecutionReport{OrderID: 3})
	if b.Len() != 3 {
		t.Fatalf("expected 3 queued reports, got %d", b.Len())
	}

	drained := b.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected 3 drained reports, got %d", len(drained))
	}
	for i, want := range []uint64{1, 2, 3} {
		if drained[i].OrderID != want {
			t.Errorf("drained[%d].OrderID = %d, want %d", i, drained[i].OrderID, want)
		}
	}

	if b.Len() != 0 {
		t.Fatalf("expected batch reset after Drain, got len %d", b.Len())
	}
	if drained2 := b.Drain(); drained2 != nil {
		t.Fatalf("expected nil on second drain of an empty batch, got %v", drained2)
	}
}

func TestReportBatcher_DrainOnEmptyBatchReturnsNil(t *testing.T) {
	b := NewReportBatcher()
	if out := b.Drain(); out != nil {
		t.Fatalf("expected nil, got %v", out)
	}
}
