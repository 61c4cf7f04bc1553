package wire

import (
	"encoding/binary"
	"fmt"
)

// CPVersion is the only technical-header version this codec accepts.
const CPVersion uint8 = 1

// CPHeaderSize is the size of the 4-byte CP technical header.
const CPHeaderSize = 4

// CPEntryType enumerates the CP entry kinds (§4.1).
type CPEntryType uint16

const (
	CPHeartbeat CPEntryType = iota
	CPInstrumentUpdate
	CPInstrumentRequest
	CPAllInstrumentsRequest
)

// cpEntryHeaderSize is the 4-byte {type:u16, len:u16} entry header.
const cpEntryHeaderSize = 4

// instrumentUpdateFixedSize is the fixed portion of an InstrumentUpdate
// payload: id(8) + type(1) + state(1) + bands(1) + var(1) = 12 bytes,
// followed by len-12 bytes of name (§6).
const instrumentUpdateFixedSize = 12

// CPEntry is one decoded entry from a CP frame.
type CPEntry struct {
	Type    CPEntryType
	Payload []byte
}

// InstrumentUpdate is the decoded payload of a CPInstrumentUpdate entry.
type InstrumentUpdate struct {
	ID      uint64
	Kind    InstrumentKind
	State   InstrumentState
	Bands   uint8
	Variation uint8
	Name    string
}

// EncodeInstrumentUpdate encodes an instrument update entry payload.
func EncodeInstrumentUpdate(u InstrumentUpdate) []byte {
	name := []byte(u.Name)
	b := make([]byte, instrumentUpdateFixedSize+len(name))
	binary.LittleEndian.PutUint64(b[0:8], u.ID)
	b[8] = uint8(u.Kind)
	b[9] = uint8(u.State)
	b[10] = u.Bands
	b[11] = u.Variation
	copy(b[instrumentUpdateFixedSize:], name)
	return b
}

// DecodeInstrumentUpdate decodes an instrument update entry payload.
func DecodeInstrumentUpdate(b []byte) (InstrumentUpdate, error) {
	if len(b) < instrumentUpdateFixedSize {
		return InstrumentUpdate{}, fmt.Errorf("wire: InstrumentUpdate payload too short: %d", len(b))
	}
	return InstrumentUpdate{
		ID:        binary.LittleEndian.Uint64(b[0:8]),
		Kind:      InstrumentKind(b[8]),
		State:     InstrumentState(b[9]),
		Bands:     b[10],
		Variation: b[11],
		Name:      string(b[instrumentUpdateFixedSize:]),
	}, nil
}

// EncodeInstrumentRequest encodes an InstrumentRequest entry payload: the
// single instrument id being requested.
func EncodeInstrumentRequest(id uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, id)
	return b
}

// DecodeInstrumentRequest decodes an InstrumentRequest entry payload.
func DecodeInstrumentRequest(b []byte) (uint64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("wire: InstrumentRequest payload wrong size: %d", len(b))
	}
	return binary.LittleEndian.Uint64(b), nil
}

// EncodeCPEntry encodes one entry's {type, len, payload} header+body.
func EncodeCPEntry(t CPEntryType, payload []byte) []byte {
	b := make([]byte, cpEntryHeaderSize+len(payload))
	binary.LittleEndian.PutUint16(b[0:2], uint16(t))
	binary.LittleEndian.PutUint16(b[2:4], uint16(len(payload)))
	copy(b[cpEntryHeaderSize:], payload)
	return b
}

// EncodeCPFrame wraps a set of already-encoded entries with the 4-byte
// technical header. entryCount must match the number of entries in
// entries (the caller is responsible for concatenating EncodeCPEntry
// outputs into entries).
func EncodeCPFrame(entryCount uint8, entries []byte) []byte {
	b := make([]byte, CPHeaderSize+len(entries))
	b[0] = 'C'
	b[1] = 'P'
	b[2] = CPVersion
	b[3] = entryCount
	copy(b[CPHeaderSize:], entries)
	return b
}

// CPDecoder incrementally consumes CP frames. A CP "frame" here is the
// technical header plus all of the entries its count names; Process only
// ever consumes a whole frame at once, matching §4.5's progress rule ("the
// loop terminates when a process call reports bytes = 0"). A frame whose
// entries aren't all buffered yet is left untouched — including its
// header — so the caller can simply re-feed more bytes and call again.
//
// This deliberately avoids the known defect in the original clearing loop
// (§9): that implementation tracked remaining-bytes against the wrong
// length variable, occasionally mishandling a frame that spans two reads.
// Process here always measures against len(buf), the actual buffered
// length, not an assumed fixed packet size, and never strips the
// technical header off a buffer whose frame isn't fully present.
type CPDecoder struct{}

// Process consumes one whole frame (the 4-byte technical header plus all
// of its entries) if and only if buf currently holds every byte of it. It
// returns the decoded entries and the number of bytes consumed from the
// front of buf. A consumed of 0 with no error and no entries means
// insufficient data for even the header, or a header present but its frame
// not yet fully buffered; the caller must wait for more bytes and call
// again with the same leading bytes still in place. Process never strips
// the technical header off a continuation buffer — the header is only
// ever consumed together with the entries it introduces, in one call, so a
// frame split across reads never leaves buf's next byte misread as a
// fresh header.
func (CPDecoder) Process(buf []byte) (entries []CPEntry, consumed int, err error) {
	if len(buf) < CPHeaderSize {
		return nil, 0, nil
	}
	if buf[0] != 'C' || buf[1] != 'P' {
		return nil, 0, ErrProtocol
	}
	if buf[2] != CPVersion {
		return nil, 0, ErrProtocol
	}
	count := int(buf[3])
	pos := CPHeaderSize
	for i := 0; i < count; i++ {
		if len(buf)-pos < cpEntryHeaderSize {
			return nil, 0, nil
		}
		entryType := CPEntryType(binary.LittleEndian.Uint16(buf[pos : pos+2]))
		entryLen := int(binary.LittleEndian.Uint16(buf[pos+2 : pos+4]))
		if len(buf)-pos < cpEntryHeaderSize+entryLen {
			return nil, 0, nil
		}
		payload := make([]byte, entryLen)
		copy(payload, buf[pos+cpEntryHeaderSize:pos+cpEntryHeaderSize+entryLen])
		switch entryType {
		case CPHeartbeat, CPInstrumentUpdate, CPInstrumentRequest, CPAllInstrumentsRequest:
		default:
			return nil, 0, ErrProtocol
		}
		entries = append(entries, CPEntry{Type: entryType, Payload: payload})
		pos += cpEntryHeaderSize + entryLen
	}
	return entries, pos, nil
}
