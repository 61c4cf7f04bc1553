// Package book implements the per-instrument limit order book: the
// price-time priority matching engine at the core of the system (§4.2).
package book

import (
	"go.uber.org/zap"

	"github.com/rishav/exchange-core/internal/wire"
)

// compactionThreshold is the ops-counter value that triggers a compaction
// pass on the opposing side's storage (§3 "bid_ops, ask_ops ... counters
// for compaction heuristic"; §4.2 step 5).
const compactionThreshold = 10000

// NewOrderRequest is the input to Book.Add.
type NewOrderRequest struct {
	Participant  uint64
	GatewayID    uint8
	SessionID    uint32
	InstrumentID uint64
	Price        uint64
	Quantity     uint64
	Side         wire.Side
	Type         wire.OrderType
}

// ModifyRequest is the input to Book.Modify.
type ModifyRequest struct {
	Participant uint64
	GatewayID   uint8
	SessionID   uint32
	OrderID     uint64
	Price       uint64
	Quantity    uint64
	Side        wire.Side
}

// CancelRequest is the input to Book.Cancel.
type CancelRequest struct {
	Participant uint64
	GatewayID   uint8
	SessionID   uint32
	OrderID     uint64
	Side        wire.Side
}

// CancelledOrder describes one order removed by CancelSession. Quantity
// and Price are carried along beyond the §4.2 return tuple so callers
// (the ME) can build a complete ExecutionReport without a second lookup.
type CancelledOrder struct {
	OrderID      uint64
	InstrumentID uint64
	Side         wire.Side
	Quantity     uint64
	Price        uint64
}

// Book is a per-instrument limit order book (§3 "OrderBook"). bids is
// ordered descending by price, asks ascending; within a price level,
// orders queue FIFO by arrival (§3). Zero value is not usable; use
// NewBook.
type Book struct {
	instrument *Instrument
	bids       *rbTree
	asks       *rbTree
	index      map[OrderKey]*orderNode

	nextOrderID uint64
	bidOps      uint32
	askOps      uint32

	disseminator Disseminator
	log          *zap.Logger
}

// NewBook constructs an empty book for instrument, wired with a
// Disseminator (§9 "Disseminator polymorphism") and a component logger.
func NewBook(instrument *Instrument, disseminator Disseminator, log *zap.Logger) *Book {
	if log == nil {
		log = zap.NewNop()
	}
	return &Book{
		instrument:   instrument,
		bids:         newRBTree(true),
		asks:         newRBTree(false),
		index:        make(map[OrderKey]*orderNode),
		disseminator: disseminator,
		log:          log.Named("book"),
	}
}

func (b *Book) sideTree(side wire.Side) *rbTree {
	if side == wire.SideBid {
		return b.bids
	}
	return b.asks
}

func (b *Book) opposingTree(side wire.Side) *rbTree {
	if side == wire.SideBid {
		return b.asks
	}
	return b.bids
}

// Instrument returns the instrument this book trades.
func (b *Book) Instrument() *Instrument { return b.instrument }

// BestBid returns the best resident bid price and true, or (0, false).
func (b *Book) BestBid() (uint64, bool) {
	l := b.bids.Min()
	if l == nil {
		return 0, false
	}
	return l.price, true
}

// BestAsk returns the best resident ask price and true, or (0, false).
func (b *Book) BestAsk() (uint64, bool) {
	l := b.asks.Min()
	if l == nil {
		return 0, false
	}
	return l.price, true
}

// Crossed reports whether the book is in an invalid crossed state —
// should never be true after Add returns (§8 "Book invariants").
func (b *Book) Crossed() bool {
	bid, hasBid := b.BestBid()
	ask, hasAsk := b.BestAsk()
	return hasBid && hasAsk && bid >= ask
}

// Add implements §4.2's add algorithm, in the order the steps are
// numbered there — including incrementing next_order_id on every attempt,
// rejects included.
func (b *Book) Add(req NewOrderRequest) (wire.OrderState, uint64) {
	b.nextOrderID++
	id := b.nextOrderID

	if !b.instrument.Tradable() {
		// §4.2 step 2 literally specifies (Rejected, 0) here, distinct
		// from every other reject path which reports the assigned id.
		return wire.StateRejected, 0
	}

	if req.Quantity == 0 {
		return wire.StateRejected, id
	}
	if req.Price == 0 && req.Type != wire.OrderTypeMarket {
		return wire.StateRejected, id
	}

	if req.Type != wire.OrderTypeMarket {
		if bestBid, hasBid := b.BestBid(); hasBid {
			if bestAsk, hasAsk := b.BestAsk(); hasAsk {
				mid := (bestBid + bestAsk) / 2
				bands := uint64(b.instrument.PercentageBands)
				lower := mid * (100 - bands) / 100
				upper := mid * (100 + bands) / 100
				if req.Price < lower || req.Price > upper {
					return wire.StateRejected, id
				}
			}
		}
	}

	b.maybeCompact(req.Side)

	order := &Order{
		ExchangeID:   id,
		Participant:  req.Participant,
		GatewayID:    req.GatewayID,
		SessionID:    req.SessionID,
		InstrumentID: req.InstrumentID,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Side:         req.Side,
		Type:         req.Type,
	}

	filled := b.match(order)

	switch {
	case order.Quantity == 0:
		return wire.StateTraded, id
	case req.Type == wire.OrderTypeFillAndKill || req.Type == wire.OrderTypeFillOrKill:
		// §9 known ambiguity: FillOrKill is not distinguished from
		// FillAndKill here — the all-or-nothing abort-on-partial
		// semantic is not enforced, matching the source this was
		// adapted from. See DESIGN.md.
		return wire.StateCancelled, id
	case req.Type == wire.OrderTypeMarket:
		if filled {
			return wire.StateTraded, id
		}
		return wire.StateCancelled, id
	default:
		b.insertResting(order)
		if filled {
			return wire.StatePartiallyTraded, id
		}
		b.disseminator.SendNewOrder(order)
		return wire.StateInserted, id
	}
}

// match runs the matching loop (§4.2 step 6) against the opposing side.
// It mutates order.Quantity down to whatever remains unfilled and
// publishes Trade events as it goes. Returns true if at least one fill
// occurred.
func (b *Book) match(order *Order) (filled bool) {
	opposite := b.opposingTree(order.Side)

	for order.Quantity > 0 {
		top := opposite.Min()
		if top == nil {
			break
		}
		if order.Type != wire.OrderTypeMarket {
			if order.Side == wire.SideBid && order.Price < top.price {
				break
			}
			if order.Side == wire.SideAsk && order.Price > top.price {
				break
			}
		}

		node := top.front()
		if node == nil {
			// Empty level left behind by a prior removal; drop it.
			opposite.Delete(top.price)
			continue
		}
		resting := node.order

		vol := resting.Quantity
		if order.Quantity < vol {
			vol = order.Quantity
		}
		order.Quantity -= vol
		resting.Quantity -= vol
		top.totalQty -= vol

		var trade Trade
		if order.Side == wire.SideBid {
			trade = Trade{BidOrderID: order.ExchangeID, AskOrderID: resting.ExchangeID, Price: top.price, Quantity: vol}
		} else {
			trade = Trade{BidOrderID: resting.ExchangeID, AskOrderID: order.ExchangeID, Price: top.price, Quantity: vol}
		}
		b.disseminator.SendTrade(trade)
		filled = true

		b.bumpOps(oppositeSide(order.Side))

		if resting.Quantity == 0 {
			top.remove(node)
			delete(b.index, resting.key())
			if top.isEmpty() {
				opposite.Delete(top.price)
			}
		}
	}
	return filled
}

func oppositeSide(s wire.Side) wire.Side {
	if s == wire.SideBid {
		return wire.SideAsk
	}
	return wire.SideBid
}

// insertResting adds order to its own side's book — the "Otherwise"
// branch of §4.2 step 7. The red-black tree's ordering places the new
// price level correctly relative to existing ones; within a level,
// append keeps FIFO.
func (b *Book) insertResting(order *Order) {
	tree := b.sideTree(order.Side)
	level := tree.Get(order.Price)
	if level == nil {
		level = newPriceLevel(order.Price)
		tree.Insert(level)
	}
	node := level.append(order)
	b.index[order.key()] = node
}

// maybeCompact implements §4.2 step 5: when the incoming order's own-side
// ops counter crosses the threshold, compact the opposing side and reset
// the counter. Because this book eagerly removes fully-filled orders
// (rather than lazily marking them), there is no garbage to sweep — the
// compaction pass here is the counter reset itself.
func (b *Book) maybeCompact(side wire.Side) {
	counter := &b.bidOps
	if side == wire.SideAsk {
		counter = &b.askOps
	}
	if *counter > compactionThreshold {
		*counter = 0
	}
}

func (b *Book) bumpOps(side wire.Side) {
	if side == wire.SideBid {
		b.bidOps++
	} else {
		b.askOps++
	}
}

// Modify implements §4.2's modify algorithm.
func (b *Book) Modify(req ModifyRequest) (wire.OrderState, uint64) {
	if req.Quantity == 0 {
		return wire.StateRejected, req.OrderID
	}

	key := OrderKey{Participant: req.Participant, GatewayID: req.GatewayID, SessionID: req.SessionID, OrderID: req.OrderID}
	node, ok := b.index[key]
	if !ok || node.order.Side != req.Side {
		return wire.StateRejected, req.OrderID
	}
	order := node.order

	if req.Price == order.Price {
		delta := req.Quantity - order.Quantity
		order.Quantity = req.Quantity
		node.level.totalQty += delta
		b.disseminator.SendModifyOrder(order)
		return wire.StateModified, order.ExchangeID
	}

	// Price changed: cancel the old resting order, then re-add fresh —
	// losing time priority. §9 flags that this re-add bumps
	// next_order_id even though it originates from a modify; that
	// behavior is preserved here rather than special-cased away.
	b.disseminator.SendCancelOrder(order)
	node.level.remove(node)
	delete(b.index, key)
	if node.level.isEmpty() {
		b.sideTree(order.Side).Delete(node.level.price)
	}

	return b.Add(NewOrderRequest{
		Participant:  order.Participant,
		GatewayID:    order.GatewayID,
		SessionID:    order.SessionID,
		InstrumentID: order.InstrumentID,
		Price:        req.Price,
		Quantity:     req.Quantity,
		Side:         order.Side,
		Type:         order.Type,
	})
}

// Cancel implements §4.2's cancel algorithm.
func (b *Book) Cancel(req CancelRequest) wire.OrderState {
	key := OrderKey{Participant: req.Participant, GatewayID: req.GatewayID, SessionID: req.SessionID, OrderID: req.OrderID}
	node, ok := b.index[key]
	if !ok || node.order.Side != req.Side {
		return wire.StateRejected
	}

	order := node.order
	node.level.remove(node)
	delete(b.index, key)
	if node.level.isEmpty() {
		b.sideTree(order.Side).Delete(node.level.price)
	}
	b.disseminator.SendCancelOrder(order)
	return wire.StateCancelled
}

// CancelSession implements §4.2's cancel_session, used for
// cancel-on-disconnect (§4.4). It scans bids then asks, matching every
// order against the (participant, gateway_id, session_id) triple.
func (b *Book) CancelSession(participant uint64, gatewayID uint8, sessionID uint32) []CancelledOrder {
	var out []CancelledOrder
	out = b.cancelSessionOnTree(b.bids, participant, gatewayID, sessionID, out)
	out = b.cancelSessionOnTree(b.asks, participant, gatewayID, sessionID, out)
	return out
}

func (b *Book) cancelSessionOnTree(tree *rbTree, participant uint64, gatewayID uint8, sessionID uint32, out []CancelledOrder) []CancelledOrder {
	var emptyLevels []uint64
	tree.ForEach(func(level *priceLevel) bool {
		node := level.front()
		for node != nil {
			next := node.next
			order := node.order
			if order.sessionMatches(participant, gatewayID, sessionID) {
				level.remove(node)
				delete(b.index, order.key())
				b.disseminator.SendCancelOrder(order)
				out = append(out, CancelledOrder{OrderID: order.ExchangeID, InstrumentID: order.InstrumentID, Side: order.Side, Quantity: order.Quantity, Price: order.Price})
			}
			node = next
		}
		if level.isEmpty() {
			emptyLevels = append(emptyLevels, level.price)
		}
		return true
	})
	for _, price := range emptyLevels {
		tree.Delete(price)
	}
	return out
}

// Close cancels every resident order and marks the instrument closed
// (§4.2 "close").
func (b *Book) Close() {
	b.instrument.State = wire.InstrumentClosed
	b.bids.ForEach(func(level *priceLevel) bool {
		for node := level.front(); node != nil; node = node.next {
			b.disseminator.SendCancelOrder(node.order)
		}
		return true
	})
	b.asks.ForEach(func(level *priceLevel) bool {
		for node := level.front(); node != nil; node = node.next {
			b.disseminator.SendCancelOrder(node.order)
		}
		return true
	})
	b.bids = newRBTree(true)
	b.asks = newRBTree(false)
	b.index = make(map[OrderKey]*orderNode)
}

// Snapshot publishes the instrument's current state plus every resident
// order, bids first then asks, each in book order (§4.2 "snapshot").
func (b *Book) Snapshot() {
	b.disseminator.SendInstrumentInfo(b.instrument)
	b.bids.ForEach(func(level *priceLevel) bool {
		for node := level.front(); node != nil; node = node.next {
			b.disseminator.SendMarketOrder(node.order)
		}
		return true
	})
	b.asks.ForEach(func(level *priceLevel) bool {
		for node := level.front(); node != nil; node = node.next {
			b.disseminator.SendMarketOrder(node.order)
		}
		return true
	})
}
