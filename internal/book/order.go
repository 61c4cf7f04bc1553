package book

import "github.com/rishav/exchange-core/internal/wire"

// OrderKey identifies a resident order for modify/cancel lookups (§4.2):
// the tuple (participant, gateway_id, session_id, order_id). The order
// type is not part of the key.
type OrderKey struct {
	Participant uint64
	GatewayID   uint8
	SessionID   uint32
	OrderID     uint64
}

// Order is a standing or transient order resident in a Book. ExchangeID
// is assigned by the Book on acceptance and never changes; Side and Type
// are immutable for the order's lifetime (§3).
type Order struct {
	ExchangeID  uint64
	Participant uint64
	GatewayID   uint8
	SessionID   uint32

	InstrumentID uint64
	Price        uint64
	Quantity     uint64
	Side         wire.Side
	Type         wire.OrderType
}

func (o *Order) key() OrderKey {
	return OrderKey{Participant: o.Participant, GatewayID: o.GatewayID, SessionID: o.SessionID, OrderID: o.ExchangeID}
}

// matches reports whether this order belongs to the given session triple.
func (o *Order) sessionMatches(participant uint64, gatewayID uint8, sessionID uint32) bool {
	return o.Participant == participant && o.GatewayID == gatewayID && o.SessionID == sessionID
}
