// Package clearing implements the Clearing Protocol (CP): instrument
// catalog distribution over TCP, and the catalog itself shared by
// identity between the clearing client and every Book (§4.5, §9).
package clearing

import (
	"sync"

	"github.com/rishav/exchange-core/internal/book"
	"github.com/rishav/exchange-core/internal/wire"
)

// Catalog owns every known Instrument by stable address (§9 "Instrument
// shared identity"): a CP update mutates the existing *book.Instrument in
// place rather than replacing it, so every holder of the pointer —
// including a Book — observes the change without any broadcast step.
// Single-writer: only the CP ingest path (Client.HandleReadable) mutates it;
// everything else reads through the returned pointer.
type Catalog struct {
	mu          sync.RWMutex
	instruments map[uint64]*book.Instrument
}

func NewCatalog() *Catalog {
	return &Catalog{instruments: make(map[uint64]*book.Instrument)}
}

// Get returns the instrument for id, or (nil, false).
func (c *Catalog) Get(id uint64) (*book.Instrument, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.instruments[id]
	return i, ok
}

// All returns every known instrument, in no particular order.
func (c *Catalog) All() []*book.Instrument {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*book.Instrument, 0, len(c.instruments))
	for _, i := range c.instruments {
		out = append(out, i)
	}
	return out
}

// Upsert applies a decoded InstrumentUpdate: mutating the existing
// instrument's fields in place if id is already known (preserving
// reference identity), or inserting a freshly allocated one. Reports
// whether the instrument was newly created — callers (the clearing
// client) use that to decide whether a new Book needs to be created.
func (c *Catalog) Upsert(u wire.InstrumentUpdate) (inst *book.Instrument, created bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.instruments[u.ID]; ok {
		existing.Name = u.Name
		existing.Kind = u.Kind
		existing.State = u.State
		existing.PercentageBands = u.Bands
		existing.PercentageVariationAllowed = u.Variation
		return existing, false
	}

	inst = &book.Instrument{
		ID:                         u.ID,
		Name:                       u.Name,
		Kind:                       u.Kind,
		State:                      u.State,
		PercentageBands:            u.Bands,
		PercentageVariationAllowed: u.Variation,
	}
	c.instruments[u.ID] = inst
	return inst, true
}

func toUpdate(i *book.Instrument) wire.InstrumentUpdate {
	return wire.InstrumentUpdate{
		ID: i.ID, Kind: i.Kind, State: i.State,
		Bands: i.PercentageBands, Variation: i.PercentageVariationAllowed, Name: i.Name,
	}
}

// allInstrumentFrames answers an AllInstrumentsRequest as "a series of
// InstrumentUpdate entries, one OEP-less CP frame per entry" (§4.5
// "Server"): each instrument gets its own single-entry CP frame,
// concatenated.
func allInstrumentFrames(c *Catalog) []byte {
	var out []byte
	for _, inst := range c.All() {
		out = append(out, wire.EncodeCPFrame(1, wire.EncodeCPEntry(wire.CPInstrumentUpdate, wire.EncodeInstrumentUpdate(toUpdate(inst))))...)
	}
	return out
}
