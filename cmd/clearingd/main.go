// Command clearingd runs the Clearing distributor (§4.5 "Server"): it
// loads a static instrument catalog, answers CP requests from connected
// Matching Engine peers over TCP, and periodically republishes the full
// catalog unsolicited.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/rishav/exchange-core/internal/clearing"
	"github.com/rishav/exchange-core/internal/config"
	"github.com/rishav/exchange-core/internal/logging"
	"github.com/rishav/exchange-core/internal/reactor"
	"github.com/rishav/exchange-core/internal/wire"
)

// Config is clearingd's process configuration.
type Config struct {
	ListenAddr        string        `mapstructure:"listen_addr"`
	InstrumentsFile   string        `mapstructure:"instruments_file"`
	RepublishInterval time.Duration `mapstructure:"republish_interval"`
	LogLevel          string        `mapstructure:"log_level"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:        ":7601",
		InstrumentsFile:   "",
		RepublishInterval: clearing.RepublishInterval,
		LogLevel:          "info",
	}
}

var (
	cfg        = defaultConfig()
	configFile string
)

func main() {
	root := &cobra.Command{
		Use:   "clearingd",
		Short: "clearingd runs the exchange clearing distributor",
		RunE:  run,
	}
	flags := root.Flags()
	flags.StringVar(&configFile, "config", "", "path to a YAML config file")
	flags.StringVar(&cfg.ListenAddr, "listen", cfg.ListenAddr, "TCP address peers (matching engines) connect to")
	flags.StringVar(&cfg.InstrumentsFile, "instruments", cfg.InstrumentsFile, "path to a YAML instrument catalog file")
	flags.DurationVar(&cfg.RepublishInterval, "republish-interval", cfg.RepublishInterval, "how often the full catalog is republished to every peer")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug|info|warn|error")

	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		if configFile == "" {
			return nil
		}
		var fromFile Config
		if err := config.Load(configFile, "CLEARINGD", &fromFile); err != nil {
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
	if !cmd.Flags().Changed("instruments") && fromFile.InstrumentsFile != "" {
		cfg.InstrumentsFile = fromFile.InstrumentsFile
	}
	if !cmd.Flags().Changed("republish-interval") && fromFile.RepublishInterval != 0 {
		cfg.RepublishInterval = fromFile.RepublishInterval
	}
	if !cmd.Flags().Changed("log-level") && fromFile.LogLevel != "" {
		cfg.LogLevel = fromFile.LogLevel
	}
}

// instrumentFile is the on-disk shape of --instruments.
type instrumentFile struct {
	Instruments []struct {
		ID        uint64 `yaml:"id"`
		Kind      uint8  `yaml:"kind"`
		State     uint8  `yaml:"state"`
		Bands     uint8  `yaml:"bands"`
		Variation uint8  `yaml:"variation"`
		Name      string `yaml:"name"`
	} `yaml:"instruments"`
}

func loadSource(path string) (clearing.InstrumentSource, error) {
	if path == "" {
		return &clearing.StaticSource{}, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("clearingd: reading instruments file: %w", err)
	}
	var f instrumentFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("clearingd: parsing instruments file: %w", err)
	}
	src := &clearing.StaticSource{}
	for _, inst := range f.Instruments {
		src.Instruments = append(src.Instruments, wire.InstrumentUpdate{
			ID:        inst.ID,
			Kind:      wire.InstrumentKind(inst.Kind),
			State:     wire.InstrumentState(inst.State),
			Bands:     inst.Bands,
			Variation: inst.Variation,
			Name:      inst.Name,
		})
	}
	return src, nil
}

func run(cmd *cobra.Command, args []string) error {
	log, err := logging.New("clearingd", cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	source, err := loadSource(cfg.InstrumentsFile)
	if err != nil {
		return err
	}
	server, err := clearing.NewServer(source, log)
	if err != nil {
		return fmt.Errorf("clearingd: loading instrument catalog: %w", err)
	}

	rx, err := reactor.New()
	if err != nil {
		return fmt.Errorf("clearingd: reactor init: %w", err)
	}
	defer rx.Close()

	listenFd, err := reactor.ListenTCP(cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("clearingd: listen %s: %w", cfg.ListenAddr, err)
	}
	defer reactor.Close(listenFd)

	srv := newClearingServer(rx, server, log)
	if err := rx.Register(listenFd, reactor.Readable, srv.handleAccept(listenFd)); err != nil {
		return err
	}

	log.Info("clearingd listening",
		zap.String("listen_addr", cfg.ListenAddr),
		zap.Int("instruments", len(server.Catalog().All())),
		zap.Duration("republish_interval", cfg.RepublishInterval),
	)

	lastRepublish := time.Now()
	for {
		if err := rx.Run(time.Second); err != nil {
			return fmt.Errorf("clearingd: reactor run: %w", err)
		}
		if time.Since(lastRepublish) >= cfg.RepublishInterval {
			srv.broadcast(server.Republish())
			lastRepublish = time.Now()
		}
	}
}

// clearingServer tracks every connected peer's PeerConn and fd, so a
// periodic republish can be written to all of them.
type clearingServer struct {
	rx     *reactor.Reactor
	server *clearing.Server
	log    *zap.Logger

	peers map[int]*clearing.PeerConn
}

func newClearingServer(rx *reactor.Reactor, server *clearing.Server, log *zap.Logger) *clearingServer {
	return &clearingServer{rx: rx, server: server, log: log, peers: make(map[int]*clearing.PeerConn)}
}

func (s *clearingServer) handleAccept(listenFd int) reactor.Handler {
	return func(fd int, events reactor.EventMask) {
		for {
			connFd, err := reactor.Accept(listenFd)
			if err != nil {
				return
			}
			s.peers[connFd] = &clearing.PeerConn{}
			if err := s.rx.Register(connFd, reactor.Readable, s.handlePeerReadable(connFd)); err != nil {
				s.log.Error("clearingd: registering peer", zap.Error(err))
				reactor.Close(connFd)
				delete(s.peers, connFd)
			}
		}
	}
}

func (s *clearingServer) handlePeerReadable(connFd int) reactor.Handler {
	return func(fd int, events reactor.EventMask) {
		peer, ok := s.peers[connFd]
		if !ok {
			return
		}
		data, err := reactor.Read(connFd)
		if err != nil || len(data) == 0 {
			s.closePeer(connFd)
			return
		}
		if resp := s.server.HandleReadable(peer, data); len(resp) > 0 {
			reactor.Write(connFd, resp)
		}
	}
}

func (s *clearingServer) closePeer(connFd int) {
	s.rx.Deregister(connFd)
	reactor.Close(connFd)
	delete(s.peers, connFd)
}

func (s *clearingServer) broadcast(frames []byte) {
	if len(frames) == 0 {
		return
	}
	for fd := range s.peers {
		if _, err := reactor.Write(fd, frames); err != nil {
			s.log.Warn("clearingd: republish write failed", zap.Int("fd", fd), zap.Error(err))
		}
	}
}
