package wire

import (
	"encoding/binary"
	"fmt"
)

// FeedTag is the 1-byte type tag following the per-publisher sequence
// number in every market-data feed datagram (§6, §9 "Sequence counter").
type FeedTag uint8

const (
	FeedInstrument  FeedTag = 1
	FeedMarketOrder FeedTag = 2
	FeedTrade       FeedTag = 3
	FeedNewOrder    FeedTag = 4
	FeedModify      FeedTag = 5
	FeedCancel      FeedTag = 6
)

// feedHeaderSize is the 8-byte sequence number preceding the type tag.
const feedHeaderSize = 8

// EncodeFeedFrame prepends a monotonically increasing per-publisher
// sequence number and the type tag to an already-encoded body (an OEP
// payload shape, a Trade payload, or an InstrumentUpdate payload).
func EncodeFeedFrame(seq uint64, tag FeedTag, body []byte) []byte {
	b := make([]byte, feedHeaderSize+1+len(body))
	binary.LittleEndian.PutUint64(b[0:8], seq)
	b[8] = uint8(tag)
	copy(b[9:], body)
	return b
}

// FeedFrame is a decoded market-data datagram.
type FeedFrame struct {
	Sequence uint64
	Tag      FeedTag
	Body     []byte
}

// DecodeFeedFrame decodes the sequence/tag header; Body still needs to be
// decoded with the Decode* function matching Tag.
func DecodeFeedFrame(b []byte) (FeedFrame, error) {
	if len(b) < feedHeaderSize+1 {
		return FeedFrame{}, fmt.Errorf("wire: feed frame too short: %d", len(b))
	}
	return FeedFrame{
		Sequence: binary.LittleEndian.Uint64(b[0:8]),
		Tag:      FeedTag(b[8]),
		Body:     b[feedHeaderSize+1:],
	}, nil
}
