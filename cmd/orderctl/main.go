// Command orderctl is a CLI client for the exchange gateway: it logs in
// over a TCP OEP connection, submits one order-related request, and
// prints whatever execution reports come back before exiting. Adapted
// from the original HTTP demo client's subcommand shape
// (submit/cancel/book/stats) to the session-oriented wire protocol
// (§4.4) — a login precedes every request, and reports arrive
// asynchronously on the same connection rather than as an HTTP response
// body.
package main

import (
	"crypto/sha512"
	"fmt"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/rishav/exchange-core/internal/wire"
)

var (
	server      string
	gatewayID   uint8
	participant uint64
	username    string
	password    string
	sessionID   uint32
	wait        time.Duration
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "orderctl",
		Short: "orderctl is a CLI client for the exchange gateway",
	}
	persistent := rootCmd.PersistentFlags()
	persistent.StringVar(&server, "server", "127.0.0.1:7001", "gateway TCP address")
	persistent.Uint8Var(&gatewayID, "gateway-id", 1, "gateway instance id")
	persistent.Uint64Var(&participant, "participant", 0, "participant id assigned to this user")
	persistent.StringVar(&username, "user", "", "login username")
	persistent.StringVar(&password, "password", "", "login password (hashed client-side with SHA-512)")
	persistent.Uint32Var(&sessionID, "session-id", 0, "session id; 0 picks a random one")
	persistent.DurationVar(&wait, "wait", 2*time.Second, "how long to wait for execution reports before exiting")

	rootCmd.AddCommand(submitCmd, cancelCmd, modifyCmd, listenCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	submitBook          uint64
	submitSide          string
	submitType          string
	submitPrice         uint64
	submitQty           uint64
	submitClientOrderID uint64
)

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Submit a new order",
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := parseSide(submitSide)
		if err != nil {
			return err
		}
		orderType, err := parseOrderType(submitType)
		if err != nil {
			return err
		}
		clientOrderID := submitClientOrderID
		if clientOrderID == 0 {
			clientOrderID = rand.Uint64()
		}

		conn, sess, err := loginSession()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		defer conn.Close()

		frame := wire.Frame(wire.MsgNewOrder, wire.EncodeNewOrder(wire.NewOrder{
			ClientOrderID: clientOrderID,
			Participant:   sess.participant,
			BookID:        submitBook,
			Quantity:      submitQty,
			Price:         submitPrice,
			OrderType:     orderType,
			Side:          side,
			GatewayID:     sess.gatewayID,
			SessionID:     sess.sessionID,
		}))
		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("submit failed: %w", err)
		}
		drainReports(conn, wait)
		return nil
	},
}

var (
	cancelBook    uint64
	cancelSide    string
	cancelOrderID uint64
)

var cancelCmd = &cobra.Command{
	Use:   "cancel",
	Short: "Cancel a resting order",
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := parseSide(cancelSide)
		if err != nil {
			return err
		}

		conn, sess, err := loginSession()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		defer conn.Close()

		frame := wire.Frame(wire.MsgCancel, wire.EncodeCancel(wire.Cancel{
			Participant: sess.participant,
			OrderID:     cancelOrderID,
			BookID:      cancelBook,
			Side:        side,
			GatewayID:   sess.gatewayID,
			SessionID:   sess.sessionID,
		}))
		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("cancel failed: %w", err)
		}
		drainReports(conn, wait)
		return nil
	},
}

var (
	modifyBook    uint64
	modifySide    string
	modifyOrderID uint64
	modifyPrice   uint64
	modifyQty     uint64
)

var modifyCmd = &cobra.Command{
	Use:   "modify",
	Short: "Modify a resting order's price/quantity",
	RunE: func(cmd *cobra.Command, args []string) error {
		side, err := parseSide(modifySide)
		if err != nil {
			return err
		}

		conn, sess, err := loginSession()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		defer conn.Close()

		frame := wire.Frame(wire.MsgModify, wire.EncodeModify(wire.Modify{
			Participant: sess.participant,
			OrderID:     modifyOrderID,
			BookID:      modifyBook,
			Quantity:    modifyQty,
			Price:       modifyPrice,
			Side:        side,
			GatewayID:   sess.gatewayID,
			SessionID:   sess.sessionID,
		}))
		if _, err := conn.Write(frame); err != nil {
			return fmt.Errorf("modify failed: %w", err)
		}
		drainReports(conn, wait)
		return nil
	},
}

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Log in and print execution reports until --wait elapses",
	RunE: func(cmd *cobra.Command, args []string) error {
		conn, _, err := loginSession()
		if err != nil {
			return fmt.Errorf("login failed: %w", err)
		}
		defer conn.Close()
		drainReports(conn, wait)
		return nil
	},
}

func init() {
	f := submitCmd.Flags()
	f.Uint64Var(&submitBook, "book", 0, "book id")
	f.StringVar(&submitSide, "side", "buy", "buy|sell")
	f.StringVar(&submitType, "type", "day", "day|market|fok|fak")
	f.Uint64Var(&submitPrice, "price", 0, "limit price (ticks)")
	f.Uint64Var(&submitQty, "qty", 0, "quantity")
	f.Uint64Var(&submitClientOrderID, "client-order-id", 0, "client-assigned order id; 0 picks a random one")

	f = cancelCmd.Flags()
	f.Uint64Var(&cancelBook, "book", 0, "book id")
	f.StringVar(&cancelSide, "side", "buy", "buy|sell")
	f.Uint64Var(&cancelOrderID, "order-id", 0, "exchange order id to cancel")

	f = modifyCmd.Flags()
	f.Uint64Var(&modifyBook, "book", 0, "book id")
	f.StringVar(&modifySide, "side", "buy", "buy|sell")
	f.Uint64Var(&modifyOrderID, "order-id", 0, "exchange order id to modify")
	f.Uint64Var(&modifyPrice, "price", 0, "new limit price (ticks)")
	f.Uint64Var(&modifyQty, "qty", 0, "new quantity")
}

type session struct {
	participant uint64
	sessionID   uint32
	gatewayID   uint8
}

// loginSession dials server, sends a Login frame, and blocks for the
// echoed reply (§4.4 "Authenticating": the gateway corks and echoes
// Login back as one write on success).
func loginSession() (net.Conn, *session, error) {
	sid := sessionID
	if sid == 0 {
		sid = rand.Uint32()
	}
	conn, err := net.Dial("tcp4", server)
	if err != nil {
		return nil, nil, err
	}

	hash := sha512.Sum512([]byte(password))
	var user [64]byte
	copy(user[:], username)

	frame := wire.Frame(wire.MsgLogin, wire.EncodeLogin(wire.Login{
		Participant:    participant,
		SessionID:      sid,
		GatewayID:      gatewayID,
		User:           user,
		PasswordSHA512: hash,
	}))
	if _, err := conn.Write(frame); err != nil {
		conn.Close()
		return nil, nil, err
	}

	var dec wire.FrameDecoder
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		dec.Feed(buf[:n])
		msg, err := dec.Next()
		if err == wire.ErrIncomplete {
			continue
		}
		if err != nil {
			conn.Close()
			return nil, nil, err
		}
		if msg.Header.Type != wire.MsgLogin {
			conn.Close()
			return nil, nil, fmt.Errorf("expected Login echo, got type %d", msg.Header.Type)
		}
		return conn, &session{participant: participant, sessionID: sid, gatewayID: gatewayID}, nil
	}
}

// drainReports reads and prints ExecutionReport frames until wait
// elapses without a new one arriving.
func drainReports(conn net.Conn, wait time.Duration) {
	var dec wire.FrameDecoder
	buf := make([]byte, 4096)
	for {
		conn.SetReadDeadline(time.Now().Add(wait))
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		dec.Feed(buf[:n])
		for {
			msg, err := dec.Next()
			if err == wire.ErrIncomplete {
				break
			}
			if err != nil {
				return
			}
			if msg.Header.Type != wire.MsgExecutionReport {
				continue
			}
			er, err := wire.DecodeExecutionReport(msg.Payload)
			if err != nil {
				continue
			}
			printReport(er)
		}
	}
}

func printReport(er wire.ExecutionReport) {
	fmt.Printf("execution report: order_id=%d book=%d side=%s state=%s qty=%d price=%d\n",
		er.OrderID, er.Book, er.Side, er.State, er.Quantity, er.Price)
}

func parseSide(s string) (wire.Side, error) {
	switch s {
	case "buy", "bid":
		return wire.SideBid, nil
	case "sell", "ask":
		return wire.SideAsk, nil
	default:
		return 0, fmt.Errorf("unknown side %q (want buy|sell)", s)
	}
}

func parseOrderType(s string) (wire.OrderType, error) {
	switch s {
	case "day":
		return wire.OrderTypeDay, nil
	case "market":
		return wire.OrderTypeMarket, nil
	case "fak", "fill-and-kill":
		return wire.OrderTypeFillAndKill, nil
	case "fok", "fill-or-kill":
		return wire.OrderTypeFillOrKill, nil
	default:
		return 0, fmt.Errorf("unknown order type %q (want day|market|fak|fok)", s)
	}
}
