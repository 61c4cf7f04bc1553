package book

import (
	"math/rand"
	"testing"

	"github.com/rishav/exchange-core/internal/wire"
)

// testCollector is a minimal in-package Disseminator recorder — the book
// package cannot import feed.Collector (feed imports book), so this
// mirrors its shape locally for unit tests.
type testCollector struct {
	newOrders []*Order
	modifies  []*Order
	cancels   []*Order
	trades    []Trade
	snapshots []*Instrument
	marketOrd []*Order
}

func (c *testCollector) SendNewOrder(o *Order)           { c.newOrders = append(c.newOrders, o) }
func (c *testCollector) SendModifyOrder(o *Order)        { c.modifies = append(c.modifies, o) }
func (c *testCollector) SendCancelOrder(o *Order)        { c.cancels = append(c.cancels, o) }
func (c *testCollector) SendTrade(t Trade)               { c.trades = append(c.trades, t) }
func (c *testCollector) SendInstrumentInfo(i *Instrument) { c.snapshots = append(c.snapshots, i) }
func (c *testCollector) SendMarketOrder(o *Order)        { c.marketOrd = append(c.marketOrd, o) }

func newTestBook(bands uint8) (*Book, *testCollector) {
	inst := &Instrument{ID: 500, Name: "TEST", Kind: wire.KindShare, State: wire.InstrumentTrading, PercentageBands: bands}
	c := &testCollector{}
	return NewBook(inst, c, nil), c
}

// Scenario 1: empty-book day order posts (§8).
func TestScenario_EmptyBookDayOrderPosts(t *testing.T) {
	b, c := newTestBook(0)
	state, id := b.Add(NewOrderRequest{InstrumentID: 500, Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})
	if state != wire.StateInserted || id != 1 {
		t.Fatalf("got (%v, %d), want (Inserted, 1)", state, id)
	}
	if b.bids.Size() != 1 || b.asks.Size() != 0 {
		t.Fatalf("bids=%d asks=%d, want 1/0", b.bids.Size(), b.asks.Size())
	}
	if len(c.newOrders) != 1 {
		t.Fatalf("expected exactly one NewOrder event, got %d", len(c.newOrders))
	}
}

// Scenario 2: full cross (§8).
func TestScenario_FullCross(t *testing.T) {
	b, c := newTestBook(0)
	b.Add(NewOrderRequest{Price: 123, Quantity: 400, Side: wire.SideBid, Type: wire.OrderTypeDay})
	state, id := b.Add(NewOrderRequest{Price: 123, Quantity: 100, Side: wire.SideAsk, Type: wire.OrderTypeDay})
	if state != wire.StateTraded || id != 2 {
		t.Fatalf("got (%v, %d), want (Traded, 2)", state, id)
	}
	if len(c.trades) != 1 {
		t.Fatalf("expected one trade, got %d", len(c.trades))
	}
	tr := c.trades[0]
	if tr.BidOrderID != 1 || tr.AskOrderID != 2 || tr.Price != 123 || tr.Quantity != 100 {
		t.Errorf("unexpected trade: %+v", tr)
	}
	bestBid, _ := b.BestBid()
	if bestBid != 123 {
		t.Errorf("expected resting bid at 123")
	}
	level := b.bids.Get(123)
	if level.totalQty != 300 {
		t.Errorf("expected residual qty 300, got %d", level.totalQty)
	}
}

// Scenario 3: cascade across three resting orders (§8).
func TestScenario_Cascade(t *testing.T) {
	b, c := newTestBook(0)
	b.Add(NewOrderRequest{Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})
	b.Add(NewOrderRequest{Price: 123, Quantity: 200, Side: wire.SideBid, Type: wire.OrderTypeDay})
	b.Add(NewOrderRequest{Price: 123, Quantity: 300, Side: wire.SideBid, Type: wire.OrderTypeDay})
	state, id := b.Add(NewOrderRequest{Price: 123, Quantity: 400, Side: wire.SideAsk, Type: wire.OrderTypeDay})
	if state != wire.StateTraded || id != 4 {
		t.Fatalf("got (%v, %d), want (Traded, 4)", state, id)
	}
	if len(c.trades) != 3 {
		t.Fatalf("expected 3 trades, got %d", len(c.trades))
	}
	wantBids := []uint64{1, 2, 3}
	for i, tr := range c.trades {
		if tr.BidOrderID != wantBids[i] {
			t.Errorf("trade %d: bid id %d, want %d (FIFO order)", i, tr.BidOrderID, wantBids[i])
		}
	}
	level := b.bids.Get(123)
	if level.totalQty != 200 || level.count != 1 || level.front().order.ExchangeID != 3 {
		t.Errorf("expected one residual order id=3 qty=200, got count=%d qty=%d", level.count, level.totalQty)
	}
}

// Scenario 4: band reject (§8).
func TestScenario_BandReject(t *testing.T) {
	b, _ := newTestBook(10)
	b.Add(NewOrderRequest{Price: 1000, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})
	b.Add(NewOrderRequest{Price: 1001, Quantity: 100, Side: wire.SideAsk, Type: wire.OrderTypeDay})
	state, id := b.Add(NewOrderRequest{Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})
	if state != wire.StateRejected || id != 3 {
		t.Fatalf("got (%v, %d), want (Rejected, 3)", state, id)
	}
}

// Scenario 5: FillOrKill remainder cancels into an empty book (§8).
func TestScenario_FAKRemainderCancels(t *testing.T) {
	b, _ := newTestBook(0)
	state, _ := b.Add(NewOrderRequest{Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeFillOrKill})
	if state != wire.StateCancelled {
		t.Fatalf("got %v, want Cancelled", state)
	}
	if b.bids.Size() != 0 {
		t.Errorf("book should be unchanged (empty), bids.Size()=%d", b.bids.Size())
	}
}

func TestCancelSession(t *testing.T) {
	b, c := newTestBook(0)
	b.Add(NewOrderRequest{Participant: 111, GatewayID: 1, SessionID: 2, Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})

	cancelled := b.CancelSession(111, 1, 2)
	if len(cancelled) != 1 || cancelled[0].OrderID != 1 {
		t.Fatalf("unexpected cancelled list: %+v", cancelled)
	}
	if b.bids.Size() != 0 {
		t.Errorf("expected book empty after cancel_session")
	}
	if len(c.cancels) != 1 {
		t.Errorf("expected one Cancel event, got %d", len(c.cancels))
	}
}

func TestModifySamePriceUpdatesQuantityInPlace(t *testing.T) {
	b, c := newTestBook(0)
	b.Add(NewOrderRequest{Participant: 1, Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})
	state, id := b.Modify(ModifyRequest{Participant: 1, OrderID: 1, Price: 123, Quantity: 50, Side: wire.SideBid})
	if state != wire.StateModified || id != 1 {
		t.Fatalf("got (%v, %d), want (Modified, 1)", state, id)
	}
	if b.bids.Get(123).totalQty != 50 {
		t.Errorf("expected updated qty 50, got %d", b.bids.Get(123).totalQty)
	}
	if len(c.modifies) != 1 {
		t.Errorf("expected one Modify event")
	}
}

func TestModifyPriceChangeReAddsAndBumpsOrderID(t *testing.T) {
	b, _ := newTestBook(0)
	b.Add(NewOrderRequest{Participant: 1, Price: 123, Quantity: 100, Side: wire.SideBid, Type: wire.OrderTypeDay})
	state, id := b.Modify(ModifyRequest{Participant: 1, OrderID: 1, Price: 124, Quantity: 100, Side: wire.SideBid})
	if state != wire.StateInserted {
		t.Fatalf("got %v, want Inserted", state)
	}
	if id != 2 {
		t.Errorf("re-add should bump next_order_id (known §9 behavior): got id=%d, want 2", id)
	}
}

func TestCancelUnknownOrderRejected(t *testing.T) {
	b, _ := newTestBook(0)
	if state := b.Cancel(CancelRequest{OrderID: 999, Side: wire.SideBid}); state != wire.StateRejected {
		t.Errorf("got %v, want Rejected", state)
	}
}

func TestClosedInstrumentRejectsWithZeroID(t *testing.T) {
	b, _ := newTestBook(0)
	b.instrument.State = wire.InstrumentClosed
	state, id := b.Add(NewOrderRequest{Price: 100, Quantity: 10, Side: wire.SideBid, Type: wire.OrderTypeDay})
	if state != wire.StateRejected || id != 0 {
		t.Fatalf("got (%v, %d), want (Rejected, 0) per §4.2 step 2", state, id)
	}
}

// TestNextOrderIDAlwaysIncrements verifies §8's invariant: next_order_id
// strictly increases on every add, including rejects.
func TestNextOrderIDAlwaysIncrements(t *testing.T) {
	b, _ := newTestBook(0)
	b.instrument.State = wire.InstrumentClosed
	for i := 0; i < 5; i++ {
		_, id := b.Add(NewOrderRequest{Price: 100, Quantity: 10, Side: wire.SideBid, Type: wire.OrderTypeDay})
		if id != 0 {
			t.Fatalf("closed instrument should report id 0")
		}
	}
	if b.nextOrderID != 5 {
		t.Errorf("expected next_order_id to advance by 5 rejects, got %d", b.nextOrderID)
	}
}

// TestNoCrossedBookRandomized runs a sequence of random adds and asserts
// the book is never crossed afterward (§8 "Book invariants").
func TestNoCrossedBookRandomized(t *testing.T) {
	b, _ := newTestBook(0)
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		side := wire.SideBid
		if rng.Intn(2) == 1 {
			side = wire.SideAsk
		}
		price := uint64(90 + rng.Intn(20))
		qty := uint64(1 + rng.Intn(50))
		b.Add(NewOrderRequest{Price: price, Quantity: qty, Side: side, Type: wire.OrderTypeDay})
		if b.Crossed() {
			t.Fatalf("book crossed after iteration %d", i)
		}
	}
}
