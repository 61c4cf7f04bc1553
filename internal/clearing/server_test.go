package clearing

import (
	"testing"

	"github.com/rishav/exchange-core/internal/wire"
)

func TestServer_LoadsInstrumentsFromSource(t *testing.T) {
	source := &StaticSource{Instruments: []wire.InstrumentUpdate{
		{ID: 1, Name: "A"}, {ID: 2, Name: "B"},
	}}
	s, err := NewServer(source, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.Catalog().All()) != 2 {
		t.Fatalf("expected 2 instruments loaded, got %d", len(s.Catalog().All()))
	}
}

func TestServer_AllInstrumentsRequestRespondsOneFramePerInstrument(t *testing.T) {
	source := &StaticSource{Instruments: []wire.InstrumentUpdate{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}, {ID: 3, Name: "C"}}}
	s, _ := NewServer(source, nil)

	peer := &PeerConn{}
	req := buildFrame(t, 1, wire.EncodeCPEntry(wire.CPAllInstrumentsRequest, nil))
	resp := s.HandleReadable(peer, req)

	var dec wire.CPDecoder
	count := 0
	for len(resp) > 0 {
		entries, consumed, err := dec.Process(resp)
		if err != nil || consumed == 0 || len(entries) != 1 {
			t.Fatalf("unexpected per-instrument frame: entries=%v consumed=%d err=%v", entries, consumed, err)
		}
		count++
		resp = resp[consumed:]
	}
	if count != 3 {
		t.Errorf("expected 3 response frames, got %d", count)
	}
}

func TestServer_InstrumentRequestRespondsAtMostOne(t *testing.T) {
	source := &StaticSource{Instruments: []wire.InstrumentUpdate{{ID: 7, Name: "G"}}}
	s, _ := NewServer(source, nil)

	peer := &PeerConn{}
	req := buildFrame(t, 1, wire.EncodeCPEntry(wire.CPInstrumentRequest, wire.EncodeInstrumentRequest(7)))
	resp := s.HandleReadable(peer, req)

	var dec wire.CPDecoder
	entries, consumed, err := dec.Process(resp)
	if err != nil || consumed != len(resp) || len(entries) != 1 {
		t.Fatalf("unexpected response: entries=%v consumed=%d err=%v", entries, consumed, err)
	}
	u, _ := wire.DecodeInstrumentUpdate(entries[0].Payload)
	if u.ID != 7 {
		t.Errorf("expected instrument 7, got %+v", u)
	}

	unknown := buildFrame(t, 1, wire.EncodeCPEntry(wire.CPInstrumentRequest, wire.EncodeInstrumentRequest(999)))
	if resp := s.HandleReadable(peer, unknown); resp != nil {
		t.Errorf("expected empty response for unknown instrument, got %v", resp)
	}
}

func TestServer_RepublishMatchesCatalog(t *testing.T) {
	source := &StaticSource{Instruments: []wire.InstrumentUpdate{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}}}
	s, _ := NewServer(source, nil)

	resp := s.Republish()
	var dec wire.CPDecoder
	seen := map[uint64]bool{}
	for len(resp) > 0 {
		entries, consumed, err := dec.Process(resp)
		if err != nil || consumed == 0 {
			t.Fatalf("unexpected decode failure: consumed=%d err=%v", consumed, err)
		}
		u, _ := wire.DecodeInstrumentUpdate(entries[0].Payload)
		seen[u.ID] = true
		resp = resp[consumed:]
	}
	if !seen[1] || !seen[2] {
		t.Errorf("expected republish to cover every catalog instrument, saw %v", seen)
	}
}

func TestServer_FrameSplitAcrossPeerReadsIsHandledPerConnection(t *testing.T) {
	source := &StaticSource{Instruments: []wire.InstrumentUpdate{{ID: 1, Name: "A"}}}
	s, _ := NewServer(source, nil)

	peer := &PeerConn{}
	req := buildFrame(t, 1, wire.EncodeCPEntry(wire.CPInstrumentRequest, wire.EncodeInstrumentRequest(1)))
	split := len(req) / 2

	if resp := s.HandleReadable(peer, req[:split]); resp != nil {
		t.Fatalf("expected no response before the request frame is complete, got %v", resp)
	}
	resp := s.HandleReadable(peer, req[split:])
	if resp == nil {
		t.Fatalf("expected a response once the full request arrives")
	}
}
