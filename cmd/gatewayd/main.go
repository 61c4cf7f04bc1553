// Command gatewayd runs the client-facing Gateway (§4.4): it accepts
// authenticated TCP order sessions, relays orders to the Matching Engine
// over UDP, and forwards execution reports back to the originating
// session.
package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rishav/exchange-core/internal/config"
	"github.com/rishav/exchange-core/internal/gateway"
	"github.com/rishav/exchange-core/internal/logging"
	"github.com/rishav/exchange-core/internal/reactor"
	"github.com/rishav/exchange-core/internal/wire"
)

// Config is gatewayd's process configuration (§4.4).
type Config struct {
	ListenAddr  string `mapstructure:"listen_addr"`
	GatewayID   uint8  `mapstructure:"gateway_id"`
	OrderGroup  string `mapstructure:"order_group_addr"`  // ME's order-intake UDP endpoint
	ReportGroup string `mapstructure:"report_group_addr"` // UDP address this gateway listens on for execution reports
	Credentials string `mapstructure:"credentials_file"`
	LogLevel    string `mapstructure:"log_level"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:  ":7001",
		GatewayID:   1,
		OrderGroup:  "127.0.0.1:7501",
		ReportGroup: "127.0.0.1:7502",
		Credentials: "",
		LogLevel:    "info",
	}
}

var (
	cfg        = defaultConfig()
	configFile string
)

func main() {
	root := &cobra.Command{
		Use:   "gatewayd",
		Short: "gatewayd runs the exchange client gateway",
		RunE:  run,
	}
	flags := root.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "client TCP listen address")
	flags.Uint8Var(&cfg.GatewayID, "gateway-id", cfg.GatewayID, "this gateway instance's id, stamped on every relayed order")
	flags.StringVar(&cfg.OrderGroup, "order-group", cfg.OrderGroup, "ME order-intake UDP address")
	flags.StringVar(&cfg.ReportGroup, "report-group", cfg.ReportGroup, "UDP address this gateway listens on for execution reports")
	flags.StringVar(&cfg.Credentials, "credentials", cfg.Credentials, "path to a YAML credentials file")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")

	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return nil
		}
		var fromFile Config
		if err := config.Load(configFile, "GATEWAYD", &fromFile); err != nil {
			return err
		}
		applyUnsetFlags(cmd, &fromFile)
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func applyUnsetFlags(cmd *cobra.Command, fromFile *Config) {
	if !cmd.Flags().Changed("listen") && fromFile.ListenAddr != "" {
		cfg.ListenAddr = fromFile.ListenAddr
	}
	if !cmd.Flags().Changed("gateway-id") && fromFile.GatewayID != 0 {
		cfg.GatewayID = fromFile.GatewayID
	}
	if !cmd.Flags().Changed("order-group") && fromFile.OrderGroup != "" {
		cfg.OrderGroup = fromFile.OrderGroup
	}
	if !cmd.Flags().Changed("report-group") && fromFile.ReportGroup != "" {
		cfg.ReportGroup = fromFile.ReportGroup
	}
	if !cmd.Flags().Changed("credentials") && fromFile.Credentials != "" {
		cfg.Credentials = fromFile.Credentials
	}
	if !cmd.Flags().Changed("log-level") && fromFile.LogLevel != "" {
		cfg.LogLevel = fromFile.LogLevel
	}
}

// credentialFile is the on-disk shape of --credentials.
type credentialFile struct {
	Users []struct {
		Username       string `yaml:"username"`
		PasswordSHA512 string `yaml:"password_sha512"` // hex-encoded
		Participant    uint64 `yaml:"participant"`
	} `yaml:"users"`
}

func loadCredentials(path string) (*gateway.StaticStore, error) {
	store := &gateway.StaticStore{Users: make(map[string]struct {
		PasswordSHA512 [64]byte
		Participant    uint64
	})}
	if path == "" {
		return store, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gatewayd: reading credentials file: %w", err)
	}
	var cf credentialFile
	if err := yaml.Unmarshal(raw, &cf); err != nil {
		return nil, fmt.Errorf("gatewayd: parsing credentials file: %w", err)
	}
	for _, u := range cf.Users {
		decoded, err := hex.DecodeString(u.PasswordSHA512)
		if err != nil || len(decoded) != 64 {
			return nil, fmt.Errorf("gatewayd: credentials: user %q: password_sha512 must be 64 hex-encoded bytes", u.Username)
		}
		var hash [64]byte
		copy(hash[:], decoded)
		store.Users[u.Username] = struct {
			PasswordSHA512 [64]byte
			Participant    uint64
		}{PasswordSHA512: hash, Participant: u.Participant}
	}
	return store, nil
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("gatewayd", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	credentials, err := loadCredentials(cfg.Credentials)
	if err != nil {
		return err
	}

	rx, err := reactor.New()
	if err != nil {
		return fmt.Errorf("gatewayd: reactor init: %w", err)
	}
	defer rx.Close()

	listenFd, err := reactor.ListenTCP(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("gatewayd: listen %s: %w", cfg.ListenAddr, err)
	}
	defer reactor.Close(listenFd)

	orderFd, err := reactor.DialUDP(cfg.OrderGroup)
	if err != nil {
		return fmt.Errorf("gatewayd: dial order group %s: %w", cfg.OrderGroup, err)
	}
	defer reactor.Close(orderFd)

	reportFd, err := reactor.ListenUDP(cfg.ReportGroup)
	if err != nil {
		return fmt.Errorf("gatewayd: listen report group %s: %w", cfg.ReportGroup, err)
	}
	defer reactor.Close(reportFd)

	srv := newGatewayServer(rx, credentials, orderFd, cfg.GatewayID, log)

	if err := rx.Register(listenFd, reactor.Readable, srv.handleAccept(listenFd)); err != nil {
		return err
	}
	if err := rx.Register(reportFd, reactor.Readable, srv.handleReportReadable); err != nil {
		return err
	}

	log.Info("gatewayd listening",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Uint8("gateway_id", cfg.GatewayID),
		zap.String("order_group", cfg.OrderGroup),
		zap.String("report_group", cfg.ReportGroup),
	)

	for {
		if err := rx.Run(time.Second); err != nil {
			return fmt.Errorf("gatewayd: reactor run: %w", err)
		}
	}
}

// gatewayServer owns every live connection's Session plus the
// session_id → fd mapping execution reports are routed through.
type gatewayServer struct {
	rx          *reactor.Reactor
	credentials gateway.CredentialStore
	orderFd     int
	gatewayID   uint8
	log         *zap.Logger

	registry  *gateway.Registry
	conns     map[int]*gateway.Session
	sessionFD map[uint32]int
}

func newGatewayServer(rx *reactor.Reactor, credentials gateway.CredentialStore, orderFd int, gatewayID uint8, log *zap.Logger) *gatewayServer {
	return &gatewayServer{
		rx: rx, credentials: credentials, orderFd: orderFd, gatewayID: gatewayID, log: log,
		registry:  gateway.NewRegistry(),
		conns:     make(map[int]*gateway.Session),
		sessionFD: make(map[uint32]int),
	}
}

func (s *gatewayServer) handleAccept(listenFd int) reactor.Handler {
	return func(fd int, events reactor.EventMask) {
		for {
			connFd, err := reactor.Accept(listenFd)
			if err != nil {
				return
			}
			session := gateway.NewSession(s.gatewayID, s.credentials, s.log)
			s.conns[connFd] = session
			if err := s.rx.Register(connFd, reactor.Readable, s.handleConnReadable(connFd)); err != nil {
				s.log.Error("gatewayd: registering connection", zap.Error(err))
				reactor.Close(connFd)
				delete(s.conns, connFd)
			}
		}
	}
}

func (s *gatewayServer) handleConnReadable(connFd int) reactor.Handler {
	return func(fd int, events reactor.EventMask) {
		session, ok := s.conns[connFd]
		if !ok {
			return
		}
		data, err := reactor.Read(connFd)
		if err != nil || len(data) == 0 {
			s.closeConn(connFd, session)
			return
		}

		outbound, err := session.HandleReadable(data)
		if err != nil {
			s.log.Warn("gatewayd: session error, closing", zap.Error(err))
			s.closeConn(connFd, session)
			return
		}
		for _, ob := range outbound {
			if len(ob.ToClient) > 0 {
				reactor.Write(connFd, ob.ToClient)
			}
			if len(ob.ToME) > 0 {
				reactor.Write(s.orderFd, ob.ToME)
			}
		}
		if session.State == gateway.Authenticated && session.SessionID != 0 {
			s.registry.Bind(session.SessionID, session)
			s.sessionFD[session.SessionID] = connFd
		}
	}
}

func (s *gatewayServer) closeConn(connFd int, session *gateway.Session) {
	if datagram := session.Disconnect(); datagram != nil {
		reactor.Write(s.orderFd, datagram)
	}
	if session.SessionID != 0 {
		s.registry.Unbind(session.SessionID)
		delete(s.sessionFD, session.SessionID)
	}
	s.rx.Deregister(connFd)
	reactor.Close(connFd)
	delete(s.conns, connFd)
}

// handleReportReadable reads execution reports published by the ME and
// forwards each to the client session whose session_id matches (§4.4).
func (s *gatewayServer) handleReportReadable(fd int, events reactor.EventMask) {
	for {
		data, err := reactor.Read(fd)
		if err != nil || len(data) == 0 {
			return
		}
		if len(data) < wire.HeaderSize {
			continue
		}
		msg, err := decodeExecutionReportFrame(data)
		if err != nil {
			s.log.Warn("gatewayd: malformed execution report datagram", zap.Error(err))
			continue
		}
		connFd, ok := s.sessionFD[msg.SessionID]
		if !ok {
			continue
		}
		session, ok := s.conns[connFd]
		if !ok {
			continue
		}
		if reply, ok := session.HandleExecutionReport(msg); ok {
			reactor.Write(connFd, reply)
		}
	}
}

func decodeExecutionReportFrame(data []byte) (wire.ExecutionReport, error) {
	var dec wire.FrameDecoder
	dec.Feed(data)
	m, err := dec.Next()
	if err != nil {
		return wire.ExecutionReport{}, err
	}
	return wire.DecodeExecutionReport(m.Payload)
}
