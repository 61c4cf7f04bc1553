package book

import "github.com/rishav/exchange-core/internal/wire"

// Instrument is the identity of a tradable security (§3). It is owned by
// the catalog in a stable-address container (see clearing.Catalog) and
// held everywhere else — including inside a Book — by pointer, never by
// value. An update arriving over the clearing protocol mutates this
// struct's fields in place so every holder of the pointer observes the
// new state without any broadcast step (§9 "Instrument shared identity").
type Instrument struct {
	ID                          uint64
	Name                        string
	Kind                        wire.InstrumentKind
	State                       wire.InstrumentState
	PercentageBands             uint8
	PercentageVariationAllowed  uint8
}

// Tradable reports whether the instrument currently accepts new orders.
func (i *Instrument) Tradable() bool {
	return i.State != wire.InstrumentClosed
}
