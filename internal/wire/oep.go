package wire

import (
	"encoding/binary"
	"fmt"
)

// OEPVersion is the only header version this codec accepts or emits.
const OEPVersion uint16 = 1

// OEP message types (§6). Distinct from the local dispatch header ME reads
// off the order multicast group — see LocalMsgType.
type OEPMsgType uint16

const (
	MsgNewOrder OEPMsgType = iota
	MsgModify
	MsgCancel
	MsgExecutionReport
	MsgLogin
	MsgTrade
	MsgSessionNotification
)

// HeaderSize is the size in bytes of the OEP frame header.
const HeaderSize = 8

// Header is the 8-byte frame header preceding every OEP payload.
type Header struct {
	Version uint16
	Type    OEPMsgType
	Len     uint32
}

func encodeHeader(b []byte, h Header) {
	binary.LittleEndian.PutUint16(b[0:2], h.Version)
	binary.LittleEndian.PutUint16(b[2:4], uint16(h.Type))
	binary.LittleEndian.PutUint32(b[4:8], h.Len)
}

func decodeHeader(b []byte) Header {
	return Header{
		Version: binary.LittleEndian.Uint16(b[0:2]),
		Type:    OEPMsgType(binary.LittleEndian.Uint16(b[2:4])),
		Len:     binary.LittleEndian.Uint32(b[4:8]),
	}
}

// Fixed payload sizes, §6.
const (
	sizeNewOrder        = 48
	sizeModify          = 46
	sizeCancel          = 30
	sizeExecutionReport = 57
	sizeLogin           = 144
	sizeTrade           = 32
	sizeSessionInfo     = 13
)

// PayloadSize returns the fixed payload size for a message type, or
// (0, false) if the type is unknown.
func PayloadSize(t OEPMsgType) (int, bool) {
	switch t {
	case MsgNewOrder:
		return sizeNewOrder, true
	case MsgModify:
		return sizeModify, true
	case MsgCancel:
		return sizeCancel, true
	case MsgExecutionReport:
		return sizeExecutionReport, true
	case MsgLogin:
		return sizeLogin, true
	case MsgTrade:
		return sizeTrade, true
	case MsgSessionNotification:
		return sizeSessionInfo, true
	default:
		return 0, false
	}
}

type NewOrder struct {
	ClientOrderID uint64
	Participant   uint64
	BookID        uint64
	Quantity      uint64
	Price         uint64
	OrderType     OrderType
	Side          Side
	GatewayID     uint8
	SessionID     uint32
}

func EncodeNewOrder(m NewOrder) []byte {
	b := make([]byte, sizeNewOrder)
	binary.LittleEndian.PutUint64(b[0:8], m.ClientOrderID)
	binary.LittleEndian.PutUint64(b[8:16], m.Participant)
	binary.LittleEndian.PutUint64(b[16:24], m.BookID)
	binary.LittleEndian.PutUint64(b[24:32], m.Quantity)
	binary.LittleEndian.PutUint64(b[32:40], m.Price)
	binary.LittleEndian.PutUint16(b[40:42], uint16(m.OrderType))
	b[42] = uint8(m.Side)
	b[43] = m.GatewayID
	binary.LittleEndian.PutUint32(b[44:48], m.SessionID)
	return b
}

func DecodeNewOrder(b []byte) (NewOrder, error) {
	if len(b) != sizeNewOrder {
		return NewOrder{}, fmt.Errorf("wire: NewOrder payload wrong size: %d", len(b))
	}
	return NewOrder{
		ClientOrderID: binary.LittleEndian.Uint64(b[0:8]),
		Participant:   binary.LittleEndian.Uint64(b[8:16]),
		BookID:        binary.LittleEndian.Uint64(b[16:24]),
		Quantity:      binary.LittleEndian.Uint64(b[24:32]),
		Price:         binary.LittleEndian.Uint64(b[32:40]),
		OrderType:     OrderType(binary.LittleEndian.Uint16(b[40:42])),
		Side:          Side(b[42]),
		GatewayID:     b[43],
		SessionID:     binary.LittleEndian.Uint32(b[44:48]),
	}, nil
}

type Modify struct {
	Participant uint64
	OrderID     uint64
	BookID      uint64
	Quantity    uint64
	Price       uint64
	Side        Side
	GatewayID   uint8
	SessionID   uint32
}

func EncodeModify(m Modify) []byte {
	b := make([]byte, sizeModify)
	binary.LittleEndian.PutUint64(b[0:8], m.Participant)
	binary.LittleEndian.PutUint64(b[8:16], m.OrderID)
	binary.LittleEndian.PutUint64(b[16:24], m.BookID)
	binary.LittleEndian.PutUint64(b[24:32], m.Quantity)
	binary.LittleEndian.PutUint64(b[32:40], m.Price)
	b[40] = uint8(m.Side)
	b[41] = m.GatewayID
	binary.LittleEndian.PutUint32(b[42:46], m.SessionID)
	return b
}

func DecodeModify(b []byte) (Modify, error) {
	if len(b) != sizeModify {
		return Modify{}, fmt.Errorf("wire: Modify payload wrong size: %d", len(b))
	}
	return Modify{
		Participant: binary.LittleEndian.Uint64(b[0:8]),
		OrderID:     binary.LittleEndian.Uint64(b[8:16]),
		BookID:      binary.LittleEndian.Uint64(b[16:24]),
		Quantity:    binary.LittleEndian.Uint64(b[24:32]),
		Price:       binary.LittleEndian.Uint64(b[32:40]),
		Side:        Side(b[40]),
		GatewayID:   b[41],
		SessionID:   binary.LittleEndian.Uint32(b[42:46]),
	}, nil
}

type Cancel struct {
	Participant uint64
	OrderID     uint64
	BookID      uint64
	Side        Side
	GatewayID   uint8
	SessionID   uint32
}

func EncodeCancel(m Cancel) []byte {
	b := make([]byte, sizeCancel)
	binary.LittleEndian.PutUint64(b[0:8], m.Participant)
	binary.LittleEndian.PutUint64(b[8:16], m.OrderID)
	binary.LittleEndian.PutUint64(b[16:24], m.BookID)
	b[24] = uint8(m.Side)
	b[25] = m.GatewayID
	binary.LittleEndian.PutUint32(b[26:30], m.SessionID)
	return b
}

func DecodeCancel(b []byte) (Cancel, error) {
	if len(b) != sizeCancel {
		return Cancel{}, fmt.Errorf("wire: Cancel payload wrong size: %d", len(b))
	}
	return Cancel{
		Participant: binary.LittleEndian.Uint64(b[0:8]),
		OrderID:     binary.LittleEndian.Uint64(b[8:16]),
		BookID:      binary.LittleEndian.Uint64(b[16:24]),
		Side:        Side(b[24]),
		GatewayID:   b[25],
		SessionID:   binary.LittleEndian.Uint32(b[26:30]),
	}, nil
}

type ExecutionReport struct {
	Participant      uint64
	OrderID          uint64
	SubmittedOrderID uint64
	Book             uint64
	Quantity         uint64
	Price            uint64
	Flags            uint16
	Side             Side
	State            OrderState
	SessionID        uint32
	GatewayID        uint8
}

func EncodeExecutionReport(m ExecutionReport) []byte {
	b := make([]byte, sizeExecutionReport)
	binary.LittleEndian.PutUint64(b[0:8], m.Participant)
	binary.LittleEndian.PutUint64(b[8:16], m.OrderID)
	binary.LittleEndian.PutUint64(b[16:24], m.SubmittedOrderID)
	binary.LittleEndian.PutUint64(b[24:32], m.Book)
	binary.LittleEndian.PutUint64(b[32:40], m.Quantity)
	binary.LittleEndian.PutUint64(b[40:48], m.Price)
	binary.LittleEndian.PutUint16(b[48:50], m.Flags)
	b[50] = uint8(m.Side)
	b[51] = uint8(m.State)
	binary.LittleEndian.PutUint32(b[52:56], m.SessionID)
	b[56] = m.GatewayID
	return b
}

func DecodeExecutionReport(b []byte) (ExecutionReport, error) {
	if len(b) != sizeExecutionReport {
		return ExecutionReport{}, fmt.Errorf("wire: ExecutionReport payload wrong size: %d", len(b))
	}
	return ExecutionReport{
		Participant:      binary.LittleEndian.Uint64(b[0:8]),
		OrderID:          binary.LittleEndian.Uint64(b[8:16]),
		SubmittedOrderID: binary.LittleEndian.Uint64(b[16:24]),
		Book:             binary.LittleEndian.Uint64(b[24:32]),
		Quantity:         binary.LittleEndian.Uint64(b[32:40]),
		Price:            binary.LittleEndian.Uint64(b[40:48]),
		Flags:            binary.LittleEndian.Uint16(b[48:50]),
		Side:             Side(b[50]),
		State:            OrderState(b[51]),
		SessionID:        binary.LittleEndian.Uint32(b[52:56]),
		GatewayID:        b[56],
	}, nil
}

type Login struct {
	Participant    uint64
	SessionID      uint32
	GatewayID      uint8
	User           [64]byte
	PasswordSHA512 [64]byte
}

func EncodeLogin(m Login) []byte {
	b := make([]byte, sizeLogin)
	binary.LittleEndian.PutUint64(b[0:8], m.Participant)
	binary.LittleEndian.PutUint32(b[8:12], m.SessionID)
	b[12] = m.GatewayID
	// b[13:16] pad, left zero
	copy(b[16:80], m.User[:])
	copy(b[80:144], m.PasswordSHA512[:])
	return b
}

func DecodeLogin(b []byte) (Login, error) {
	if len(b) != sizeLogin {
		return Login{}, fmt.Errorf("wire: Login payload wrong size: %d", len(b))
	}
	var m Login
	m.Participant = binary.LittleEndian.Uint64(b[0:8])
	m.SessionID = binary.LittleEndian.Uint32(b[8:12])
	m.GatewayID = b[12]
	copy(m.User[:], b[16:80])
	copy(m.PasswordSHA512[:], b[80:144])
	return m, nil
}

type Trade struct {
	BidOrderID uint64
	AskOrderID uint64
	Price      uint64
	Quantity   uint64
}

func EncodeTrade(m Trade) []byte {
	b := make([]byte, sizeTrade)
	binary.LittleEndian.PutUint64(b[0:8], m.BidOrderID)
	binary.LittleEndian.PutUint64(b[8:16], m.AskOrderID)
	binary.LittleEndian.PutUint64(b[16:24], m.Price)
	binary.LittleEndian.PutUint64(b[24:32], m.Quantity)
	return b
}

func DecodeTrade(b []byte) (Trade, error) {
	if len(b) != sizeTrade {
		return Trade{}, fmt.Errorf("wire: Trade payload wrong size: %d", len(b))
	}
	return Trade{
		BidOrderID: binary.LittleEndian.Uint64(b[0:8]),
		AskOrderID: binary.LittleEndian.Uint64(b[8:16]),
		Price:      binary.LittleEndian.Uint64(b[16:24]),
		Quantity:   binary.LittleEndian.Uint64(b[24:32]),
	}, nil
}

// SessionInfo is emitted by the gateway on cancel-on-disconnect (§4.4) and
// consumed by the ME to mass-cancel a session's resident orders.
type SessionInfo struct {
	Participant uint64
	SessionID   uint32
	GatewayID   uint8
}

func EncodeSessionInfo(m SessionInfo) []byte {
	b := make([]byte, sizeSessionInfo)
	binary.LittleEndian.PutUint64(b[0:8], m.Participant)
	binary.LittleEndian.PutUint32(b[8:12], m.SessionID)
	b[12] = m.GatewayID
	return b
}

func DecodeSessionInfo(b []byte) (SessionInfo, error) {
	if len(b) != sizeSessionInfo {
		return SessionInfo{}, fmt.Errorf("wire: SessionInfo payload wrong size: %d", len(b))
	}
	return SessionInfo{
		Participant: binary.LittleEndian.Uint64(b[0:8]),
		SessionID:   binary.LittleEndian.Uint32(b[8:12]),
		GatewayID:   b[12],
	}, nil
}

// Frame encodes a full OEP message: header + payload.
func Frame(t OEPMsgType, payload []byte) []byte {
	out := make([]byte, HeaderSize+len(payload))
	encodeHeader(out, Header{Version: OEPVersion, Type: t, Len: uint32(len(payload))})
	copy(out[HeaderSize:], payload)
	return out
}
