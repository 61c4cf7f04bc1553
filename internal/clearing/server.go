package clearing

import (
	"time"

	"go.uber.org/zap"

	"github.com/rishav/exchange-core/internal/wire"
)

// RepublishInterval is the default period for re-publishing the full
// catalog to every connected peer (§5 "periodic wake-up drives ...
// clearing catalog republication (~20 s)").
const RepublishInterval = 20 * time.Second

// Server is the CP server role (§4.5 "Server"): it owns the catalog
// loaded from an InstrumentSource and answers CP requests from connected
// peers. Like Client, it holds no sockets directly — PeerConn tracks one
// connected peer's receive buffer, and the caller (the reactor-driven
// cmd/clearingd loop) is responsible for actual I/O.
type Server struct {
	catalog *Catalog
	log     *zap.Logger
}

func NewServer(source InstrumentSource, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	catalog := NewCatalog()
	instruments, err := source.LoadInstruments()
	if err != nil {
		return nil, err
	}
	for _, u := range instruments {
		catalog.Upsert(u)
	}
	return &Server{catalog: catalog, log: log.Named("clearing.server")}, nil
}

// Catalog exposes the server's catalog, e.g. so an operator CLI can list
// known instruments.
func (s *Server) Catalog() *Catalog { return s.catalog }

// PeerConn is one connected CP client's receive buffer and decoder
// state, mirroring Client's framing discipline.
type PeerConn struct {
	buf     []byte
	decoder wire.CPDecoder
}

// HandleReadable processes newly-read bytes from one peer and returns the
// CP frames to write back to that same peer (§4.5 "Server": respond to
// AllInstrumentsRequest with a series of single-entry frames, to
// InstrumentRequest with at most one matching update, and ignore
// Heartbeat and any InstrumentUpdate a peer might erroneously send).
func (s *Server) HandleReadable(p *PeerConn, data []byte) []byte {
	p.buf = append(p.buf, data...)

	var response []byte
	for {
		entries, consumed, err := p.decoder.Process(p.buf)
		if err != nil {
			s.log.Error("clearing: protocol error from peer, dropping buffer", zap.Error(err))
			p.buf = nil
			return response
		}
		if consumed == 0 {
			return response
		}
		p.buf = p.buf[consumed:]
		for _, e := range entries {
			response = append(response, s.respond(e)...)
		}
		if len(p.buf) == 0 {
			return response
		}
	}
}

func (s *Server) respond(e wire.CPEntry) []byte {
	switch e.Type {
	case wire.CPInstrumentRequest:
		id, err := wire.DecodeInstrumentRequest(e.Payload)
		if err != nil {
			s.log.Error("clearing: bad InstrumentRequest entry", zap.Error(err))
			return nil
		}
		inst, ok := s.catalog.Get(id)
		if !ok {
			return nil
		}
		return wire.EncodeCPFrame(1, wire.EncodeCPEntry(wire.CPInstrumentUpdate, wire.EncodeInstrumentUpdate(toUpdate(inst))))

	case wire.CPAllInstrumentsRequest:
		return allInstrumentFrames(s.catalog)

	default:
		return nil
	}
}

// Republish builds the periodic full-catalog broadcast (§4.5, §5): the
// same one-frame-per-instrument series used to answer
// AllInstrumentsRequest, sent unsolicited to every connected peer.
func (s *Server) Republish() []byte {
	return allInstrumentFrames(s.catalog)
}
