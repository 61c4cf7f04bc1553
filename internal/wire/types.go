// Package wire implements the fixed-layout little-endian packed binary
// encoding used between clients, the gateway, the matching engine and
// clearing. Every OEP message type has a fixed size (a CP InstrumentUpdate
// ends in a variable-length name), and everything is encoded/decoded by
// explicit per-field byte copies — never by reinterpreting a struct's memory,
// which would be undefined behaviour on unaligned fields.
package wire

import "fmt"

// Side encodes which book side an order rests on.
type Side uint8

const (
	SideBid Side = 0
	SideAsk Side = 1
)

func (s Side) String() string {
	if s == SideBid {
		return "Bid"
	}
	return "Ask"
}

// OrderType enumerates the TIF/AON/market variants from §3, in the
// declaration order fixed by the protocol. Only Day, Market, FillAndKill
// and FillOrKill have their own handling; the rest are accepted on the
// wire and treated by the book exactly like Day (see book.Book.Add). FillOrKill is not
// given distinct all-or-nothing semantics from FillAndKill — see §9's
// documented ambiguity and book.Book.Add's handling of both.
type OrderType uint16

const (
	OrderTypeDay OrderType = iota
	OrderTypeMarket
	OrderTypeFillAndKill
	OrderTypeFillOrKill
	OrderTypePostOrKill
	OrderTypeGoodTillCancel
	OrderTypeGoodTillDate
	OrderTypeStopLoss
	OrderTypeStopLimit
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeDay:
		return "Day"
	case OrderTypeMarket:
		return "Market"
	case OrderTypeFillAndKill:
		return "FillAndKill"
	case OrderTypeFillOrKill:
		return "FillOrKill"
	case OrderTypePostOrKill:
		return "PostOrKill"
	case OrderTypeGoodTillCancel:
		return "GoodTillCancel"
	case OrderTypeGoodTillDate:
		return "GoodTillDate"
	case OrderTypeStopLoss:
		return "StopLoss"
	case OrderTypeStopLimit:
		return "StopLimit"
	default:
		return fmt.Sprintf("OrderType(%d)", uint16(t))
	}
}

// OrderState is the result of a book operation (§4.2).
type OrderState uint8

const (
	StateInserted OrderState = iota
	StateModified
	StateCancelled
	StateRejected
	StateTraded
	StatePartiallyTraded
)

func (s OrderState) String() string {
	switch s {
	case StateInserted:
		return "Inserted"
	case StateModified:
		return "Modified"
	case StateCancelled:
		return "Cancelled"
	case StateRejected:
		return "Rejected"
	case StateTraded:
		return "Traded"
	case StatePartiallyTraded:
		return "PartiallyTraded"
	default:
		return fmt.Sprintf("OrderState(%d)", uint8(s))
	}
}

// InstrumentKind enumerates the tradable security kinds (§3).
type InstrumentKind uint8

const (
	KindShare InstrumentKind = iota
	KindOptionCall
	KindOptionPut
	KindFuture
	KindWarrant
)

// InstrumentState is an instrument's trading lifecycle state (§3).
type InstrumentState uint8

const (
	InstrumentTrading InstrumentState = iota
	InstrumentClosed
	InstrumentAuction
)
