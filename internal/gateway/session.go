// Package gateway implements the gateway session state machine (§4.4):
// per-TCP-connection framing, login, session-scoped order relay,
// cork/uncork, and cancel-on-disconnect.
package gateway

import (
	"bytes"
	"errors"

	"go.uber.org/zap"

	"github.com/rishav/exchange-core/internal/wire"
)

var errAuthFailed = errors.New("gateway: authentication failed")

// State is the session's position in the Accepted → Authenticating →
// Authenticated → Closed state machine (§4.4).
type State int

const (
	Accepted State = iota
	Authenticating
	Authenticated
	Closed
)

// Session is a ConnectedSession (§3): the gateway-side record for one
// client TCP connection. It holds no socket itself — HandleReadable
// consumes bytes already read off the wire and returns bytes the caller
// should write back to the client and/or forward to the ME — so the
// state machine can be driven and tested without a real network.
type Session struct {
	State       State
	GatewayID   uint8
	SessionID   uint32 // 0 until authenticated
	Participant uint64 // 0 until authenticated

	recv     wire.FrameDecoder
	corked   bool
	corkBuf  bytes.Buffer

	disconnected bool

	credentials CredentialStore
	log         *zap.Logger
}

// NewSession creates a freshly Accepted session for one connection.
// gatewayID is this gateway instance's configured id, stamped into every
// order relayed to the ME and used to filter inbound execution reports.
func NewSession(gatewayID uint8, credentials CredentialStore, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	return &Session{
		State:       Accepted,
		GatewayID:   gatewayID,
		credentials: credentials,
		log:         log.Named("gateway.session"),
	}
}

// Outbound is one piece of work produced by processing inbound bytes:
// either a reply to write back to the client, or a datagram to forward
// to the ME over the order multicast group.
type Outbound struct {
	ToClient []byte
	ToME     []byte
}

// HandleReadable appends newly-read bytes and decodes as many complete
// OEP frames as are available, processing each per §4.4. It returns the
// outbound work generated and stops (without erroring) on ErrIncomplete.
// A protocol or validation violation closes the session, matching §7
// class 1 ("fatal to the originating connection").
func (s *Session) HandleReadable(data []byte) ([]Outbound, error) {
	s.recv.Feed(data)

	var out []Outbound
	for {
		msg, err := s.recv.Next()
		if err == wire.ErrIncomplete {
			return out, nil
		}
		if err != nil {
			s.State = Closed
			return out, err
		}
		ob, err := s.dispatch(msg)
		if err != nil {
			s.State = Closed
			return out, err
		}
		if ob != nil {
			out = append(out, *ob)
		}
	}
}

func (s *Session) dispatch(msg wire.Message) (*Outbound, error) {
	switch s.State {
	case Authenticating, Accepted:
		if msg.Header.Type != wire.MsgLogin {
			return nil, errAuthFailed
		}
		return s.handleLogin(msg.Payload)
	case Authenticated:
		switch msg.Header.Type {
		case wire.MsgNewOrder, wire.MsgModify, wire.MsgCancel:
			return s.handleOrder(msg)
		default:
			return nil, errAuthFailed
		}
	default:
		return nil, errAuthFailed
	}
}

func (s *Session) handleLogin(payload []byte) (*Outbound, error) {
	login, err := wire.DecodeLogin(payload)
	if err != nil {
		return nil, err
	}
	user := cStringTrim(login.User[:])
	participant, err := s.credentials.Authenticate(user, login.PasswordSHA512, login.SessionID)
	if err != nil {
		// A failed login is a domain rejection on an unauthenticated
		// session, not a wire protocol error, but there is no
		// ExecutionReport channel to report it on yet, so the error is
		// returned and HandleReadable closes the session.
		return nil, err
	}

	s.Participant = participant
	s.SessionID = login.SessionID
	s.State = Authenticated

	// Cork + echo the Login back with its OEP header, uncork as one
	// write (§4.4 "Authenticating").
	s.cork()
	s.send(wire.Frame(wire.MsgLogin, wire.EncodeLogin(login)))
	reply := s.uncork()

	return &Outbound{ToClient: reply}, nil
}

func (s *Session) handleOrder(msg wire.Message) (*Outbound, error) {
	var participant uint64
	var gatewayID uint8
	var sessionID uint32
	var localType wire.LocalMsgType

	switch msg.Header.Type {
	case wire.MsgNewOrder:
		m, err := wire.DecodeNewOrder(msg.Payload)
		if err != nil {
			return nil, err
		}
		participant, gatewayID, sessionID, localType = m.Participant, m.GatewayID, m.SessionID, wire.LocalNewOrder
	case wire.MsgModify:
		m, err := wire.DecodeModify(msg.Payload)
		if err != nil {
			return nil, err
		}
		participant, gatewayID, sessionID, localType = m.Participant, m.GatewayID, m.SessionID, wire.LocalModify
	case wire.MsgCancel:
		m, err := wire.DecodeCancel(msg.Payload)
		if err != nil {
			return nil, err
		}
		participant, gatewayID, sessionID, localType = m.Participant, m.GatewayID, m.SessionID, wire.LocalCancel
	}

	if participant != s.Participant || gatewayID != s.GatewayID || sessionID != s.SessionID {
		return nil, errAuthFailed
	}

	// Stamp the single local-header table (§9 resolves the original
	// disagreement between gateway and ME encodings by using one table
	// everywhere, the ME's) and forward payload unchanged.
	relay := append(wire.EncodeLocalHeader(localType), msg.Payload...)
	return &Outbound{ToME: relay}, nil
}

// HandleExecutionReport filters an inbound execution report by
// gateway_id/session_id and, on a match, frames it for delivery to this
// session's client (§4.4 "Execution reports ... forwarded to the session
// whose session_id matches").
func (s *Session) HandleExecutionReport(er wire.ExecutionReport) ([]byte, bool) {
	if er.GatewayID != s.GatewayID || er.SessionID != s.SessionID {
		return nil, false
	}
	return wire.Frame(wire.MsgExecutionReport, wire.EncodeExecutionReport(er)), true
}

// Disconnect transitions the session to Closed and returns the
// SessionInfo local-header+payload datagram that must be forwarded to
// the ME so it mass-cancels this session's resident orders (§4.4
// "Cancel-on-disconnect"). Unlike the source this was specified from —
// where this step was only partially present — this implementation
// always emits it, once, even if the session never completed login
// (Participant == 0, in which case the ME will simply find nothing to
// cancel).
func (s *Session) Disconnect() []byte {
	if s.disconnected {
		return nil
	}
	s.disconnected = true
	s.State = Closed
	info := wire.SessionInfo{Participant: s.Participant, SessionID: s.SessionID, GatewayID: s.GatewayID}
	return append(wire.EncodeLocalHeader(wire.LocalSessionNotification), wire.EncodeSessionInfo(info)...)
}

func (s *Session) cork()   { s.corked = true }
func (s *Session) send(b []byte) {
	if s.corked {
		s.corkBuf.Write(b)
	}
}
func (s *Session) uncork() []byte {
	s.corked = false
	b := s.corkBuf.Bytes()
	out := make([]byte, len(b))
	copy(out, b)
	s.corkBuf.Reset()
	return out
}

func cStringTrim(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
