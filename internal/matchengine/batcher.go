package matchengine

import "github.com/rishav/exchange-core/internal/wire"

// ReportBatcher accumulates ExecutionReports produced while draining a
// reactor wakeup's pending datagrams, so the caller flushes them as one
// set of writes instead of one syscall per datagram. Adapted from the
// teacher's internal/disruptor.EventBatcher: that type exists to let
// concurrent producer goroutines hand events to one writer goroutine
// over a channel, batched by size or a flush-interval ticker. This
// implementation has no second goroutine to decouple from — there is
// exactly one thread of execution per process — so only the batching
// itself survives: a single-writer, single-reader slice that the caller
// appends to synchronously and drains once per reactor iteration.
type ReportBatcher struct {
	pending []wire.ExecutionReport
}

func NewReportBatcher() *ReportBatcher {
	return &ReportBatcher{}
}

// Add queues reports produced by one Dispatch call.
func (b *ReportBatcher) Add(reports ...wire.ExecutionReport) {
	b.pending = append(b.pending, reports...)
}

// Len reports how many reports are currently queued.
func (b *ReportBatcher) Len() int {
	return len(b.pending)
}

// Drain returns every report queued since the last Drain and resets the
// batch.
func (b *ReportBatcher) Drain() []wire.ExecutionReport {
	out := b.pending
	b.pending = nil
	return out
}
