// Package matchengine implements the Matching Engine Core (ME, §4.3):
// datagram order intake, dispatch to the right Book, and execution
// report emission.
package matchengine

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/rishav/exchange-core/internal/book"
	"github.com/rishav/exchange-core/internal/clearing"
	"github.com/rishav/exchange-core/internal/wire"
)

// Engine owns every Book, keyed by instrument/book id, and dispatches
// datagrams read off the order multicast group to them (§4.3).
type Engine struct {
	mu    sync.Mutex
	books map[uint64]*book.Book

	catalog      *clearing.Catalog
	disseminator book.Disseminator
	log          *zap.Logger
}

// NewEngine constructs an Engine with no books; books are created on
// demand as the clearing client learns of instruments (§4.3 "ME also
// owns a clearing client ... and creates Books on demand").
func NewEngine(catalog *clearing.Catalog, disseminator book.Disseminator, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		books:        make(map[uint64]*book.Book),
		catalog:      catalog,
		disseminator: disseminator,
		log:          log.Named("matchengine"),
	}
}

// EnsureBook creates a Book for instrument id if one doesn't already
// exist, wiring it to this engine's disseminator. Called by the clearing
// client on a newly-learned instrument.
func (e *Engine) EnsureBook(inst *book.Instrument) *book.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	if b, ok := e.books[inst.ID]; ok {
		return b
	}
	b := book.NewBook(inst, e.disseminator, e.log)
	e.books[inst.ID] = b
	return b
}

func (e *Engine) lookupBook(id uint64) (*book.Book, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	b, ok := e.books[id]
	return b, ok
}

// Books returns every book currently known, for the periodic snapshot
// timer (§4.3) to iterate over.
func (e *Engine) Books() []*book.Book {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*book.Book, 0, len(e.books))
	for _, b := range e.books {
		out = append(out, b)
	}
	return out
}

// Dispatch implements §4.3's per-datagram processing: decode the 4-byte
// local header, decode the fixed-size payload that follows, validate,
// look up the target book, call the matching operation, and build the
// resulting ExecutionReport(s). A SessionInfo datagram fans out to every
// book and can produce many reports; everything else produces at most
// one. A missing book silently drops the datagram, per §4.3 — no report
// is produced in that case, unlike a validation rejection.
func (e *Engine) Dispatch(datagram []byte) ([]wire.ExecutionReport, error) {
	if len(datagram) < wire.LocalHeaderSize {
		return nil, fmt.Errorf("matchengine: datagram shorter than local header: %d bytes", len(datagram))
	}
	localType := wire.DecodeLocalHeader(datagram[:wire.LocalHeaderSize])
	payload := datagram[wire.LocalHeaderSize:]

	switch localType {
	case wire.LocalNewOrder:
		return e.dispatchNewOrder(payload)
	case wire.LocalModify:
		return e.dispatchModify(payload)
	case wire.LocalCancel:
		return e.dispatchCancel(payload)
	case wire.LocalSessionNotification:
		return e.dispatchSessionInfo(payload)
	default:
		return nil, fmt.Errorf("matchengine: unknown local header type %d", localType)
	}
}

func (e *Engine) dispatchNewOrder(payload []byte) ([]wire.ExecutionReport, error) {
	m, err := wire.DecodeNewOrder(payload)
	if err != nil {
		return nil, err
	}
	if m.Participant == 0 {
		return []wire.ExecutionReport{e.rejected(m.Participant, m.BookID, m.Side, m.SessionID, m.GatewayID)}, nil
	}
	b, ok := e.lookupBook(m.BookID)
	if !ok {
		return nil, nil
	}
	state, id := b.Add(book.NewOrderRequest{
		Participant: m.Participant, GatewayID: m.GatewayID, SessionID: m.SessionID,
		InstrumentID: m.BookID, Price: m.Price, Quantity: m.Quantity, Side: m.Side, Type: m.OrderType,
	})
	return []wire.ExecutionReport{{
		Participant: m.Participant, OrderID: id, SubmittedOrderID: m.ClientOrderID, Book: m.BookID,
		Quantity: m.Quantity, Price: m.Price, Side: m.Side, State: state,
		SessionID: m.SessionID, GatewayID: m.GatewayID,
	}}, nil
}

func (e *Engine) dispatchModify(payload []byte) ([]wire.ExecutionReport, error) {
	m, err := wire.DecodeModify(payload)
	if err != nil {
		return nil, err
	}
	if m.Participant == 0 {
		return []wire.ExecutionReport{e.rejected(m.Participant, m.BookID, m.Side, m.SessionID, m.GatewayID)}, nil
	}
	b, ok := e.lookupBook(m.BookID)
	if !ok {
		return nil, nil
	}
	state, id := b.Modify(book.ModifyRequest{
		Participant: m.Participant, GatewayID: m.GatewayID, SessionID: m.SessionID,
		OrderID: m.OrderID, Price: m.Price, Quantity: m.Quantity, Side: m.Side,
	})
	return []wire.ExecutionReport{{
		Participant: m.Participant, OrderID: id, SubmittedOrderID: m.OrderID, Book: m.BookID,
		Quantity: m.Quantity, Price: m.Price, Side: m.Side, State: state,
		SessionID: m.SessionID, GatewayID: m.GatewayID,
	}}, nil
}

func (e *Engine) dispatchCancel(payload []byte) ([]wire.ExecutionReport, error) {
	m, err := wire.DecodeCancel(payload)
	if err != nil {
		return nil, err
	}
	if m.Participant == 0 {
		return []wire.ExecutionReport{e.rejected(m.Participant, m.BookID, m.Side, m.SessionID, m.GatewayID)}, nil
	}
	b, ok := e.lookupBook(m.BookID)
	if !ok {
		return nil, nil
	}
	state := b.Cancel(book.CancelRequest{
		Participant: m.Participant, GatewayID: m.GatewayID, SessionID: m.SessionID,
		OrderID: m.OrderID, Side: m.Side,
	})
	return []wire.ExecutionReport{{
		Participant: m.Participant, OrderID: m.OrderID, SubmittedOrderID: m.OrderID, Book: m.BookID,
		Side: m.Side, State: state, SessionID: m.SessionID, GatewayID: m.GatewayID,
	}}, nil
}

// dispatchSessionInfo applies cancel_session to every book (§4.3:
// "for SessionInfo: apply to every book"), producing one execution report
// per cancelled order.
func (e *Engine) dispatchSessionInfo(payload []byte) ([]wire.ExecutionReport, error) {
	m, err := wire.DecodeSessionInfo(payload)
	if err != nil {
		return nil, err
	}
	var reports []wire.ExecutionReport
	for _, b := range e.Books() {
		for _, c := range b.CancelSession(m.Participant, m.GatewayID, m.SessionID) {
			reports = append(reports, wire.ExecutionReport{
				Participant: m.Participant, OrderID: c.OrderID, SubmittedOrderID: c.OrderID,
				Book: c.InstrumentID, Quantity: c.Quantity, Price: c.Price, Side: c.Side,
				State: wire.StateCancelled, SessionID: m.SessionID, GatewayID: m.GatewayID,
			})
		}
	}
	return reports, nil
}

func (e *Engine) rejected(participant, bookID uint64, side wire.Side, sessionID uint32, gatewayID uint8) wire.ExecutionReport {
	return wire.ExecutionReport{
		Participant: participant, Book: bookID, Side: side, State: wire.StateRejected,
		SessionID: sessionID, GatewayID: gatewayID,
	}
}
