package book

import "github.com/rishav/exchange-core/internal/wire"

// Disseminator is the abstract publish capability every Book is wired
// with by dependency injection (§9 "Disseminator polymorphism"). Two
// implementations live in package feed: a UDP multicast sender and an
// in-memory test collector. Neither Book nor this package knows which one
// it's talking to.
type Disseminator interface {
	SendNewOrder(o *Order)
	SendModifyOrder(o *Order)
	SendCancelOrder(o *Order)
	SendTrade(t Trade)
	SendInstrumentInfo(i *Instrument)
	SendMarketOrder(o *Order)
}

// Trade is one match between a resting and an aggressing order (§4.2).
type Trade struct {
	BidOrderID uint64
	AskOrderID uint64
	Price      uint64
	Quantity   uint64
}

func (t Trade) toWire() wire.Trade {
	return wire.Trade{BidOrderID: t.BidOrderID, AskOrderID: t.AskOrderID, Price: t.Price, Quantity: t.Quantity}
}
