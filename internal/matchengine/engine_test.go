package matchengine

import (
	"testing"

	"github.com/rishav/exchange-core/internal/book"
	"github.com/rishav/exchange-core/internal/clearing"
	"github.com/rishav/exchange-core/internal/feed"
	"github.com/rishav/exchange-core/internal/wire"
)

func newTestEngine() (*Engine, *feed.Collector) {
	c := feed.NewCollector()
	e := NewEngine(clearing.NewCatalog(), c, nil)
	inst := &book.Instrument{ID: 500, Name: "TEST", State: wire.InstrumentTrading, PercentageBands: 50}
	e.EnsureBook(inst)
	return e, c
}

func dispatchFrame(t *testing.T, e *Engine, localType wire.LocalMsgType, payload []byte) []wire.ExecutionReport {
	t.Helper()
	datagram := append(wire.EncodeLocalHeader(localType), payload...)
	reports, err := e.Dispatch(datagram)
	if err != nil {
		t.Fatalf("unexpected dispatch error: %v", err)
	}
	return reports
}

func TestEngine_NewOrderPostsAndReportsInserted(t *testing.T) {
	e, _ := newTestEngine()
	order := wire.NewOrder{ClientOrderID: 1, Participant: 111, BookID: 500, Quantity: 100, Price: 1000, Side: wire.SideBid, OrderType: wire.OrderTypeDay, GatewayID: 1, SessionID: 2}
	reports := dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(order))
	if len(reports) != 1 {
		t.Fatalf("expected one report, got %d", len(reports))
	}
	r := reports[0]
	if r.State != wire.StateInserted || r.OrderID != 1 || r.Participant != 111 {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestEngine_ZeroParticipantRejectedWithoutBookLookup(t *testing.T) {
	e, _ := newTestEngine()
	order := wire.NewOrder{BookID: 999, Quantity: 100, Price: 1000, Side: wire.SideBid}
	reports := dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(order))
	if len(reports) != 1 || reports[0].State != wire.StateRejected {
		t.Fatalf("expected a single rejection, got %+v", reports)
	}
}

func TestEngine_UnknownBookSilentlyDrops(t *testing.T) {
	e, _ := newTestEngine()
	order := wire.NewOrder{Participant: 111, BookID: 999, Quantity: 100, Price: 1000, Side: wire.SideBid}
	reports := dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(order))
	if reports != nil {
		t.Fatalf("expected nil reports for unknown book, got %+v", reports)
	}
}

func TestEngine_FullCrossTrades(t *testing.T) {
	e, _ := newTestEngine()
	ask := wire.NewOrder{ClientOrderID: 1, Participant: 111, BookID: 500, Quantity: 500, Price: 1000, Side: wire.SideAsk, OrderType: wire.OrderTypeDay, GatewayID: 1, SessionID: 2}
	dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(ask))

	bid := wire.NewOrder{ClientOrderID: 2, Participant: 112, BookID: 500, Quantity: 200, Price: 1000, Side: wire.SideBid, OrderType: wire.OrderTypeDay, GatewayID: 1, SessionID: 3}
	reports := dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(bid))
	if len(reports) != 1 || reports[0].State != wire.StateTraded {
		t.Fatalf("expected a Traded report, got %+v", reports)
	}
}

func TestEngine_CancelUnknownOrderRejected(t *testing.T) {
	e, _ := newTestEngine()
	cancel := wire.Cancel{Participant: 111, OrderID: 999, BookID: 500, Side: wire.SideBid, GatewayID: 1, SessionID: 2}
	reports := dispatchFrame(t, e, wire.LocalCancel, wire.EncodeCancel(cancel))
	if len(reports) != 1 || reports[0].State != wire.StateRejected {
		t.Fatalf("expected rejection, got %+v", reports)
	}
}

func TestEngine_SessionInfoCancelsAcrossBooksAndReportsEach(t *testing.T) {
	e, _ := newTestEngine()
	other := &book.Instrument{ID: 501, Name: "OTHER", State: wire.InstrumentTrading, PercentageBands: 50}
	e.EnsureBook(other)

	o1 := wire.NewOrder{Participant: 111, BookID: 500, Quantity: 100, Price: 1000, Side: wire.SideBid, OrderType: wire.OrderTypeDay, GatewayID: 1, SessionID: 2}
	o2 := wire.NewOrder{Participant: 111, BookID: 501, Quantity: 50, Price: 2000, Side: wire.SideAsk, OrderType: wire.OrderTypeDay, GatewayID: 1, SessionID: 2}
	dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(o1))
	dispatchFrame(t, e, wire.LocalNewOrder, wire.EncodeNewOrder(o2))

	info := wire.SessionInfo{Participant: 111, SessionID: 2, GatewayID: 1}
	reports := dispatchFrame(t, e, wire.LocalSessionNotification, wire.EncodeSessionInfo(info))
	if len(reports) != 2 {
		t.Fatalf("expected two cancellation reports, got %d: %+v", len(reports), reports)
	}
	for _, r := range reports {
		if r.State != wire.StateCancelled || r.Participant != 111 {
			t.Errorf("unexpected report: %+v", r)
		}
	}
}

func TestEngine_UnknownLocalHeaderErrors(t *testing.T) {
	e, _ := newTestEngine()
	if _, err := e.Dispatch(wire.EncodeLocalHeader(wire.LocalMsgType(99))); err == nil {
		t.Fatalf("expected an error for an unknown local header type")
	}
}

func TestEngine_ShortDatagramErrors(t *testing.T) {
	e, _ := newTestEngine()
	if _, err := e.Dispatch([]byte{1, 2}); err == nil {
		t.Fatalf("expected an error for a too-short datagram")
	}
}
