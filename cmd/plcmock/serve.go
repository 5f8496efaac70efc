package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mfeller/plcmock/internal/ads"
	"github.com/mfeller/plcmock/internal/capture"
	"github.com/mfeller/plcmock/internal/config"
	"github.com/mfeller/plcmock/internal/errors"
	"github.com/mfeller/plcmock/internal/fins"
	"github.com/mfeller/plcmock/internal/logging"
	"github.com/mfeller/plcmock/internal/server"
	"github.com/mfeller/plcmock/internal/tui"
)

type serveFlags struct {
	protocol   string
	listenIP   string
	listenPort int
	configPath string
	logFormat  string
	logLevel   string
	logFile    string
	logEvery   int
	hexDump    bool
	pcapFile   string
	pcapIface  string
	tuiStats   bool
}

func newServeCmd() *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a mock PLC endpoint",
		Long: `Run PLCMOCK as a PLC endpoint that real clients can connect to.

Two protocol personalities are available:

  ads   - Beckhoff TwinCAT style endpoint speaking AMS/ADS framing.
          Answers device info, read/write, state and symbolic handle
          requests against a seeded symbol table.

  fins  - Omron style endpoint speaking FINS framing. Answers memory
          area reads and writes against seeded word memory.

Configuration is loaded from the file given with --config; without one
the built-in defaults for the selected protocol are used. Command-line
flags override values from the config file.

Press Ctrl+C to stop the server gracefully.`,
		Example: `  # Start the ADS personality with defaults (port 48898)
  plcmock serve

  # Start the FINS personality (port 9600)
  plcmock serve --protocol fins

  # Bind a specific address and port
  plcmock serve --listen-ip 192.168.1.100 --listen-port 48898

  # Use a config file and verbose logging
  plcmock serve --config ./plant_floor.yaml --log-level verbose

  # Capture exchanged traffic to a pcap file
  plcmock serve --pcap session.pcap --pcap-interface eth0

  # Watch live counters in a terminal dashboard
  plcmock serve --tui-stats`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(flags)
		},
	}

	registerServeFlags(cmd, flags)
	return cmd
}

func registerServeFlags(cmd *cobra.Command, flags *serveFlags) {
	cmd.Flags().StringVar(&flags.protocol, "protocol", "", "Protocol personality: ads|fins")
	cmd.Flags().StringVar(&flags.listenIP, "listen-ip", "", "Listen IP address")
	cmd.Flags().IntVar(&flags.listenPort, "listen-port", -1, "Listen port (0 picks a free port)")
	cmd.Flags().StringVar(&flags.configPath, "config", "", "Config file path")
	cmd.Flags().StringVar(&flags.logFormat, "log-format", "", "Log format override: text|json")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "Log level override: silent|error|info|verbose|debug")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "Also write logs to this file")
	cmd.Flags().IntVar(&flags.logEvery, "log-every-n", 0, "Log every Nth frame exchange")
	cmd.Flags().BoolVar(&flags.hexDump, "hex-dump", false, "Hex-dump request and reply frames at debug level")
	cmd.Flags().StringVar(&flags.pcapFile, "pcap", "", "Capture traffic to this pcap file")
	cmd.Flags().StringVar(&flags.pcapIface, "pcap-interface", "", "Capture interface (loopback auto-detected if empty)")
	cmd.Flags().BoolVar(&flags.tuiStats, "tui-stats", false, "Show a live stats dashboard instead of plain logs")
}

// applyFlagOverrides layers explicit command-line values over the config.
func applyFlagOverrides(cfg *config.Config, flags *serveFlags) {
	if flags.listenIP != "" {
		cfg.Server.ListenIP = flags.listenIP
	}
	if flags.listenPort >= 0 {
		cfg.Server.TCPPort = flags.listenPort
	}
	if flags.logFormat != "" {
		cfg.Logging.Format = flags.logFormat
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if flags.logFile != "" {
		cfg.Logging.LogFile = flags.logFile
	}
	if flags.logEvery > 0 {
		cfg.Logging.LogEveryN = flags.logEvery
	}
	if flags.hexDump {
		cfg.Logging.IncludeHexDump = true
	}
	if flags.pcapFile != "" {
		cfg.Capture.Enable = true
		cfg.Capture.OutputFile = flags.pcapFile
	}
	if flags.pcapIface != "" {
		cfg.Capture.Interface = flags.pcapIface
	}
}

// buildDevice selects the protocol personality from the config.
func buildDevice(cfg *config.Config, logger *logging.Logger) (server.Device, error) {
	switch cfg.Server.Protocol {
	case config.ProtocolADS:
		return ads.NewDevice(cfg, logger), nil
	case config.ProtocolFINS:
		return fins.NewDevice(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", cfg.Server.Protocol)
	}
}

func runServe(flags *serveFlags) error {
	var cfg *config.Config
	if flags.configPath != "" {
		loaded, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return errors.WrapConfigError(err, flags.configPath)
		}
		cfg = loaded
	} else {
		protocol := flags.protocol
		if protocol == "" {
			protocol = config.ProtocolADS
		}
		cfg = config.CreateDefaultConfig(protocol)
	}

	if flags.protocol != "" {
		cfg.Server.Protocol = flags.protocol
	}
	applyFlagOverrides(cfg, flags)

	if err := config.ValidateConfig(cfg); err != nil {
		return errors.WrapConfigError(err, flags.configPath)
	}

	logger, err := logging.NewLoggerWithOptions(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.LogFile,
		cfg.Logging.Format,
		cfg.Logging.LogEveryN,
	)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Close()

	device, err := buildDevice(cfg, logger)
	if err != nil {
		return err
	}

	srv := server.NewServer(cfg, device, logger)
	if err := srv.Start(); err != nil {
		return errors.WrapListenError(err, cfg.Server.ListenIP, cfg.Server.TCPPort)
	}
	defer srv.Stop()

	addr := srv.TCPAddr()
	logger.LogStartup(cfg.Server.Name, cfg.Server.Protocol, cfg.Server.ListenIP, addr.Port, flags.configPath)

	if cfg.Capture.Enable {
		var session *capture.Capture
		var capErr error
		if cfg.Capture.Interface != "" {
			session, capErr = capture.StartCapture(cfg.Capture.Interface, cfg.Capture.OutputFile, addr.Port)
		} else {
			session, capErr = capture.StartCaptureLoopback(cfg.Capture.OutputFile, addr.Port)
		}
		if capErr != nil {
			return errors.WrapCaptureError(capErr, cfg.Capture.Interface)
		}
		defer func() {
			session.Stop()
			logger.Info("Capture finished: %d packets written to %s", session.PacketCount(), cfg.Capture.OutputFile)
		}()
	}

	if flags.tuiStats {
		title := fmt.Sprintf("%s (%s)", cfg.Server.Name, cfg.Server.Protocol)
		return tui.Run(title, addr.String(), srv.Stats().Snapshot)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	sig := <-sigCh
	fmt.Fprintf(os.Stdout, "\nReceived %s, shutting down\n", sig)

	return nil
}
