package feed

import (
	"net"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/rishav/exchange-core/internal/book"
	"github.com/rishav/exchange-core/internal/wire"
)

// Multicast is a book.Disseminator that sends every event as a UDP
// datagram to a multicast group, prefixed with the per-publisher
// monotonically increasing sequence number (§9 "Sequence counter": "a
// single integer per-publisher ... not per-book"). Publish failures are
// logged and swallowed — a Book's state must advance regardless of feed
// delivery (§4.2 "Failure semantics").
type Multicast struct {
	conn *net.UDPConn
	seq  uint64
	log  *zap.Logger
}

// NewMulticast dials a UDP multicast group for sending. addr is the
// group's address, e.g. "239.1.1.1:30001".
func NewMulticast(addr string, log *zap.Logger) (*Multicast, error) {
	raddr, err := net.ResolveUDPAddr("udp4", addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.DialUDP("udp4", nil, raddr)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Multicast{conn: conn, log: log.Named("feed")}, nil
}

func (m *Multicast) nextSeq() uint64 {
	return atomic.AddUint64(&m.seq, 1)
}

func (m *Multicast) send(tag wire.FeedTag, body []byte) {
	frame := wire.EncodeFeedFrame(m.nextSeq(), tag, body)
	if _, err := m.conn.Write(frame); err != nil {
		m.log.Warn("feed publish failed", zap.Error(err), zap.Uint8("tag", uint8(tag)))
	}
}

func orderToWire(o *book.Order, typeTag wire.FeedTag) []byte {
	switch typeTag {
	case wire.FeedNewOrder:
		return wire.EncodeNewOrder(wire.NewOrder{
			ClientOrderID: o.ExchangeID, Participant: o.Participant, BookID: o.InstrumentID,
			Quantity: o.Quantity, Price: o.Price, OrderType: o.Type, Side: o.Side,
			GatewayID: o.GatewayID, SessionID: o.SessionID,
		})
	case wire.FeedModify:
		return wire.EncodeModify(wire.Modify{
			Participant: o.Participant, OrderID: o.ExchangeID, BookID: o.InstrumentID,
			Quantity: o.Quantity, Price: o.Price, Side: o.Side, GatewayID: o.GatewayID, SessionID: o.SessionID,
		})
	case wire.FeedCancel:
		return wire.EncodeCancel(wire.Cancel{
			Participant: o.Participant, OrderID: o.ExchangeID, BookID: o.InstrumentID,
			Side: o.Side, GatewayID: o.GatewayID, SessionID: o.SessionID,
		})
	default: // wire.FeedMarketOrder, reuses the NewOrder layout per §6.
		return wire.EncodeNewOrder(wire.NewOrder{
			ClientOrderID: o.ExchangeID, Participant: o.Participant, BookID: o.InstrumentID,
			Quantity: o.Quantity, Price: o.Price, OrderType: o.Type, Side: o.Side,
			GatewayID: o.GatewayID, SessionID: o.SessionID,
		})
	}
}

func (m *Multicast) SendNewOrder(o *book.Order)    { m.send(wire.FeedNewOrder, orderToWire(o, wire.FeedNewOrder)) }
func (m *Multicast) SendModifyOrder(o *book.Order) { m.send(wire.FeedModify, orderToWire(o, wire.FeedModify)) }
func (m *Multicast) SendCancelOrder(o *book.Order) { m.send(wire.FeedCancel, orderToWire(o, wire.FeedCancel)) }

func (m *Multicast) SendTrade(t book.Trade) {
	m.send(wire.FeedTrade, wire.EncodeTrade(wire.Trade{
		BidOrderID: t.BidOrderID, AskOrderID: t.AskOrderID, Price: t.Price, Quantity: t.Quantity,
	}))
}

func (m *Multicast) SendInstrumentInfo(i *book.Instrument) {
	m.send(wire.FeedInstrument, wire.EncodeInstrumentUpdate(wire.InstrumentUpdate{
		ID: i.ID, Kind: i.Kind, State: i.State, Bands: i.PercentageBands,
		Variation: i.PercentageVariationAllowed, Name: i.Name,
	}))
}

func (m *Multicast) SendMarketOrder(o *book.Order) {
	m.send(wire.FeedMarketOrder, orderToWire(o, wire.FeedMarketOrder))
}

func (m *Multicast) Close() error {
	return m.conn.Close()
}

var _ book.Disseminator = (*Multicast)(nil)
