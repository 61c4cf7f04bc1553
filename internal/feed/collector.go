// Package feed provides concrete book.Disseminator implementations: a UDP
// multicast sender for production use and an in-memory collector for
// tests, per §9 "Disseminator polymorphism".
package feed

import (
	"sync"

	"github.com/rishav/exchange-core/internal/book"
)

// Event is one call recorded by a Collector, tagged by which
// Disseminator method produced it.
type Event struct {
	Kind       string
	Order      *book.Order
	Trade      book.Trade
	Instrument *book.Instrument
}

// Collector is an in-memory book.Disseminator that appends every call to
// a slice under a mutex, so tests can assert on exactly what a Book
// published — the collector named in §9. Modeled on the teacher's
// marketdata.Publisher subscriber-fanout shape, simplified here to direct
// recording since tests inspect history rather than stream it live.
type Collector struct {
	mu     sync.Mutex
	events []Event
}

func NewCollector() *Collector {
	return &Collector{}
}

func (c *Collector) record(e Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

// Events returns a copy of everything recorded so far.
func (c *Collector) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Collector) SendNewOrder(o *book.Order)         { c.record(Event{Kind: "NewOrder", Order: o}) }
func (c *Collector) SendModifyOrder(o *book.Order)      { c.record(Event{Kind: "Modify", Order: o}) }
func (c *Collector) SendCancelOrder(o *book.Order)      { c.record(Event{Kind: "Cancel", Order: o}) }
func (c *Collector) SendTrade(t book.Trade)             { c.record(Event{Kind: "Trade", Trade: t}) }
func (c *Collector) SendInstrumentInfo(i *book.Instrument) {
	c.record(Event{Kind: "Instrument", Instrument: i})
}
func (c *Collector) SendMarketOrder(o *book.Order) { c.record(Event{Kind: "MarketOrder", Order: o}) }

var _ book.Disseminator = (*Collector)(nil)
