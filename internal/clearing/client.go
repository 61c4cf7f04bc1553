package clearing

import (
	"go.uber.org/zap"

	"github.com/rishav/exchange-core/internal/book"
	"github.com/rishav/exchange-core/internal/wire"
)

// Client is the CP client role used by the ME (§4.5): a persistent
// receive buffer plus incremental frame processing. Like gateway.Session,
// it holds no socket — HandleReadable consumes bytes already read off the
// wire and returns bytes to write back — so it can be driven and tested
// without a real connection.
type Client struct {
	catalog *Catalog
	buf     []byte
	decoder wire.CPDecoder

	// onNewInstrument is called once per instrument this client has never
	// seen before, so the ME can create its Book (§4.5 "create a new Book
	// for it").
	onNewInstrument func(*book.Instrument)

	log *zap.Logger
}

func NewClient(catalog *Catalog, onNewInstrument func(*book.Instrument), log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{catalog: catalog, onNewInstrument: onNewInstrument, log: log.Named("clearing.client")}
}

// HandleReadable appends newly-read bytes and drains as many complete CP
// frames as are buffered, applying each entry's per-entry semantics
// (§4.5) and accumulating any CP response frames that must be written
// back (answers to InstrumentRequest/AllInstrumentsRequest). It never
// slices the buffer mid-frame — only once a Process call reports the
// whole currently-buffered frame consumed is the buffer advanced — so a
// frame spanning multiple reads is never mishandled (§9's flagged defect
// in the source this was adapted from).
func (c *Client) HandleReadable(data []byte) []byte {
	c.buf = append(c.buf, data...)

	var response []byte
	for {
		entries, consumed, err := c.decoder.Process(c.buf)
		if err != nil {
			c.log.Error("clearing: protocol error, dropping receive buffer", zap.Error(err))
			c.buf = nil
			return response
		}
		if consumed == 0 {
			return response
		}
		c.buf = c.buf[consumed:]
		for _, e := range entries {
			if r := c.applyEntry(e); r != nil {
				response = append(response, r...)
			}
		}
		if len(c.buf) == 0 {
			return response
		}
	}
}

func (c *Client) applyEntry(e wire.CPEntry) []byte {
	switch e.Type {
	case wire.CPInstrumentUpdate:
		u, err := wire.DecodeInstrumentUpdate(e.Payload)
		if err != nil {
			c.log.Error("clearing: bad InstrumentUpdate entry", zap.Error(err))
			return nil
		}
		inst, created := c.catalog.Upsert(u)
		if created && c.onNewInstrument != nil {
			c.onNewInstrument(inst)
		}
		return nil

	case wire.CPInstrumentRequest:
		id, err := wire.DecodeInstrumentRequest(e.Payload)
		if err != nil {
			c.log.Error("clearing: bad InstrumentRequest entry", zap.Error(err))
			return nil
		}
		inst, ok := c.catalog.Get(id)
		if !ok {
			return nil
		}
		return wire.EncodeCPFrame(1, wire.EncodeCPEntry(wire.CPInstrumentUpdate, wire.EncodeInstrumentUpdate(toUpdate(inst))))

	case wire.CPAllInstrumentsRequest:
		return allInstrumentFrames(c.catalog)

	case wire.CPHeartbeat:
		return nil

	default:
		return nil
	}
}
