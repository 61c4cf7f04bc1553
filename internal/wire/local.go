package wire

// LocalMsgType is the 1-byte type tag on the 4-byte local header ME reads
// off the order multicast group (§4.3). It is deliberately a different
// numbering than OEPMsgType: {0=NewOrder,1=Modify,2=Cancel,
// 3=SessionNotification}. The gateway is responsible for stamping this
// table's values, not the OEP ones (§9 flags a disagreement in the
// original source between the gateway's and ME's local-header tables;
// this codec exposes exactly one table so the two ends cannot drift).
type LocalMsgType uint8

const (
	LocalNewOrder LocalMsgType = iota
	LocalModify
	LocalCancel
	LocalSessionNotification
)

// LocalHeaderSize is the size of the 4-byte local header preceding a
// datagram body on the order multicast group.
const LocalHeaderSize = 4

// EncodeLocalHeader stamps a local header; the 3 pad bytes are zero.
func EncodeLocalHeader(t LocalMsgType) []byte {
	return []byte{uint8(t), 0, 0, 0}
}

// DecodeLocalHeader reads the type byte off a local header; pad bytes are
// ignored.
func DecodeLocalHeader(b []byte) LocalMsgType {
	return LocalMsgType(b[0])
}
