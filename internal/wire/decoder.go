package wire

import "errors"

// ErrIncomplete is returned when fewer than 8+msg_len bytes are buffered.
// The caller should wait for more data; nothing is consumed.
var ErrIncomplete = errors.New("wire: incomplete frame")

// ErrProtocol is returned on an unknown msg_type, a version mismatch, or a
// message received in an unsupported context (e.g. Trade on the order pipe).
var ErrProtocol = errors.New("wire: protocol error")

// Message is a decoded OEP frame: the header plus the raw payload bytes.
// Callers decode the payload with the Decode* function matching Header.Type.
type Message struct {
	Header  Header
	Payload []byte
}

// FrameDecoder incrementally consumes OEP frames from a byte stream, the
// way a gateway session's recv_buffer does (§4.4). Feed appends bytes read
// off the socket; Next attempts one decode, reporting ErrIncomplete without
// consuming anything if the buffer doesn't yet hold a whole frame — modeled
// on NimbleMarkets-dbn-go's DbnScanner, which reports how much of a record
// it could read and leaves the rest for the next call.
type FrameDecoder struct {
	buf []byte
}

// Feed appends newly-read bytes to the decoder's accumulator.
func (d *FrameDecoder) Feed(data []byte) {
	d.buf = append(d.buf, data...)
}

// Next attempts to decode one frame from the front of the buffer. On
// success the consumed bytes are dropped from the accumulator. On
// ErrIncomplete nothing is consumed — call Feed again once more data
// arrives. On ErrProtocol the stream is unrecoverable; the caller should
// close the connection (§7 class 1).
func (d *FrameDecoder) Next() (Message, error) {
	if len(d.buf) < HeaderSize {
		return Message{}, ErrIncomplete
	}
	h := decodeHeader(d.buf[:HeaderSize])
	if h.Version != OEPVersion {
		return Message{}, ErrProtocol
	}
	if _, ok := PayloadSize(h.Type); !ok {
		return Message{}, ErrProtocol
	}
	total := HeaderSize + int(h.Len)
	if len(d.buf) < total {
		return Message{}, ErrIncomplete
	}
	payload := make([]byte, h.Len)
	copy(payload, d.buf[HeaderSize:total])
	d.buf = d.buf[total:]
	return Message{Header: h, Payload: payload}, nil
}

// Pending reports how many unconsumed bytes remain buffered.
func (d *FrameDecoder) Pending() int {
	return len(d.buf)
}
