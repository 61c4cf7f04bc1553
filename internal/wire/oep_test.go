package wire

import "testing"

// TestOEPRoundTrip_AllTypes verifies decode(encode(x)) == x for every OEP
// payload type, per §8 "Codec round-trips".
func TestOEPRoundTrip_AllTypes(t *testing.T) {
	newOrder := NewOrder{
		ClientOrderID: 1, Participant: 111, BookID: 500, Quantity: 100, Price: 123,
		OrderType: OrderTypeDay, Side: SideBid, GatewayID: 1, SessionID: 2,
	}
	if got, err := DecodeNewOrder(EncodeNewOrder(newOrder)); err != nil || got != newOrder {
		t.Errorf("NewOrder round-trip: got %+v, err %v", got, err)
	}

	modify := Modify{Participant: 111, OrderID: 9, BookID: 500, Quantity: 50, Price: 124, Side: SideAsk, GatewayID: 1, SessionID: 2}
	if got, err := DecodeModify(EncodeModify(modify)); err != nil || got != modify {
		t.Errorf("Modify round-trip: got %+v, err %v", got, err)
	}

	cancel := Cancel{Participant: 111, OrderID: 9, BookID: 500, Side: SideBid, GatewayID: 1, SessionID: 2}
	if got, err := DecodeCancel(EncodeCancel(cancel)); err != nil || got != cancel {
		t.Errorf("Cancel round-trip: got %+v, err %v", got, err)
	}

	er := ExecutionReport{
		Participant: 111, OrderID: 9, SubmittedOrderID: 1, Book: 500, Quantity: 100,
		Price: 123, Flags: 0, Side: SideBid, State: StateTraded, SessionID: 2, GatewayID: 1,
	}
	if got, err := DecodeExecutionReport(EncodeExecutionReport(er)); err != nil || got != er {
		t.Errorf("ExecutionReport round-trip: got %+v, err %v", got, err)
	}

	login := Login{Participant: 111, SessionID: 2, GatewayID: 1}
	copy(login.User[:], "alice")
	copy(login.PasswordSHA512[:], make([]byte, 64))
	if got, err := DecodeLogin(EncodeLogin(login)); err != nil || got != login {
		t.Errorf("Login round-trip: got %+v, err %v", got, err)
	}

	trade := Trade{BidOrderID: 1, AskOrderID: 2, Price: 123, Quantity: 100}
	if got, err := DecodeTrade(EncodeTrade(trade)); err != nil || got != trade {
		t.Errorf("Trade round-trip: got %+v, err %v", got, err)
	}

	si := SessionInfo{Participant: 111, SessionID: 2, GatewayID: 1}
	if got, err := DecodeSessionInfo(EncodeSessionInfo(si)); err != nil || got != si {
		t.Errorf("SessionInfo round-trip: got %+v, err %v", got, err)
	}
}

// TestFrameDecoder_FramingResilience checks every split point of a valid
// frame: decode(B[..k]) is ErrIncomplete for k < |B|, and decode(B) succeeds
// once the whole frame has been fed (§8 "Framing resilience").
func TestFrameDecoder_FramingResilience(t *testing.T) {
	payload := EncodeNewOrder(NewOrder{ClientOrderID: 1, Participant: 111, BookID: 500, Quantity: 100, Price: 123, OrderType: OrderTypeDay, Side: SideBid, GatewayID: 1, SessionID: 2})
	frame := Frame(MsgNewOrder, payload)

	for k := 0; k < len(frame); k++ {
		d := FrameDecoder{}
		d.Feed(frame[:k])
		if _, err := d.Next(); err != ErrIncomplete {
			t.Errorf("split at %d: expected ErrIncomplete, got %v", k, err)
		}
	}

	d := FrameDecoder{}
	d.Feed(frame)
	msg, err := d.Next()
	if err != nil {
		t.Fatalf("full frame: unexpected error %v", err)
	}
	if msg.Header.Type != MsgNewOrder || len(msg.Payload) != sizeNewOrder {
		t.Errorf("decoded frame mismatch: %+v", msg.Header)
	}
	if d.Pending() != 0 {
		t.Errorf("expected buffer fully consumed, %d bytes left", d.Pending())
	}
}

// TestFrameDecoder_MultipleFrames checks that a stream of several frames
// fed at once, or fed byte-by-byte, decodes each in order and leaves
// nothing pending.
func TestFrameDecoder_MultipleFrames(t *testing.T) {
	f1 := Frame(MsgCancel, EncodeCancel(Cancel{Participant: 1, OrderID: 2, BookID: 3, Side: SideBid, GatewayID: 1, SessionID: 1}))
	f2 := Frame(MsgTrade, EncodeTrade(Trade{BidOrderID: 1, AskOrderID: 2, Price: 10, Quantity: 5}))

	d := FrameDecoder{}
	d.Feed(f1)
	d.Feed(f2)

	m1, err := d.Next()
	if err != nil || m1.Header.Type != MsgCancel {
		t.Fatalf("first frame: got %+v, err %v", m1, err)
	}
	m2, err := d.Next()
	if err != nil || m2.Header.Type != MsgTrade {
		t.Fatalf("second frame: got %+v, err %v", m2, err)
	}
	if _, err := d.Next(); err != ErrIncomplete {
		t.Errorf("expected ErrIncomplete after draining both frames, got %v", err)
	}
}

// TestFrameDecoder_UnknownType reports a protocol error rather than
// silently skipping an unrecognized msg_type.
func TestFrameDecoder_UnknownType(t *testing.T) {
	b := make([]byte, HeaderSize)
	b[0], b[1] = 1, 0 // version 1
	b[2], b[3] = 0xFF, 0xFF // bogus type
	d := FrameDecoder{}
	d.Feed(b)
	if _, err := d.Next(); err != ErrProtocol {
		t.Errorf("expected ErrProtocol for unknown msg_type, got %v", err)
	}
}
