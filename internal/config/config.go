package config

// Configuration loading and validation for plcmock

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Protocol names accepted by the server section.
const (
	ProtocolADS  = "ads"
	ProtocolFINS = "fins"
)

// ServerSection configures the listener and protocol personality.
type ServerSection struct {
	Name     string `yaml:"name"`
	Protocol string `yaml:"protocol"` // "ads" or "fins"
	ListenIP string `yaml:"listen_ip"`
	TCPPort  int    `yaml:"tcp_port"`
}

// LoggingSection controls log formatting and verbosity.
type LoggingSection struct {
	Format         string `yaml:"format,omitempty"` // "text" or "json"
	Level          string `yaml:"level,omitempty"`  // "silent","error","info","verbose","debug"
	LogEveryN      int    `yaml:"log_every_n,omitempty"`
	IncludeHexDump bool   `yaml:"include_hex_dump,omitempty"`
	LogFile        string `yaml:"log_file,omitempty"`
}

// CaptureSection controls optional pcap capture of emulator traffic.
type CaptureSection struct {
	Enable     bool   `yaml:"enable,omitempty"`
	Interface  string `yaml:"interface,omitempty"`
	OutputFile string `yaml:"output_file,omitempty"`
}

// SymbolConfig seeds one named variable in the ADS symbol table.
type SymbolConfig struct {
	Name  string  `yaml:"name"`
	Type  string  `yaml:"type"` // "BOOL", "INT", "DINT", "REAL"
	Value float64 `yaml:"value"`
}

// ADSIdentity overrides the fixed device-info reply fields.
type ADSIdentity struct {
	DeviceName   string `yaml:"device_name,omitempty"`
	VersionMajor uint8  `yaml:"version_major,omitempty"`
	VersionMinor uint8  `yaml:"version_minor,omitempty"`
	VersionBuild uint16 `yaml:"version_build,omitempty"`
}

// ADSSection configures the ADS personality.
type ADSSection struct {
	Identity ADSIdentity    `yaml:"identity,omitempty"`
	Symbols  []SymbolConfig `yaml:"symbols,omitempty"`
}

// MemorySeedConfig seeds a run of words in one FINS memory area.
type MemorySeedConfig struct {
	Area    uint8  `yaml:"area"`
	Start   uint16 `yaml:"start"`
	Count   int    `yaml:"count"`
	Pattern string `yaml:"pattern,omitempty"` // "counter" or "constant"
	Value   uint16 `yaml:"value,omitempty"`   // used with "constant"
}

// FINSSection configures the FINS personality.
type FINSSection struct {
	MemorySeeds []MemorySeedConfig `yaml:"memory_seeds,omitempty"`
}

// Config represents the emulator configuration.
type Config struct {
	Server  ServerSection  `yaml:"server"`
	Logging LoggingSection `yaml:"logging,omitempty"`
	Capture CaptureSection `yaml:"capture,omitempty"`
	ADS     ADSSection     `yaml:"ads,omitempty"`
	FINS    FINSSection    `yaml:"fins,omitempty"`
}

// Default seed table for the ADS symbol space, matching the variables a
// fresh TwinCAT-style project exposes.
func defaultADSSymbols() []SymbolConfig {
	return []SymbolConfig{
		{Name: "MAIN.ConveyorSpeed", Type: "INT", Value: 0},
		{Name: "MAIN.Motor.bRun", Type: "BOOL", Value: 0},
		{Name: "MAIN.Sensors.rTemp", Type: "REAL", Value: 25.5},
	}
}

// Default seed ranges for the FINS memory areas.
func defaultFINSMemorySeeds() []MemorySeedConfig {
	return []MemorySeedConfig{
		{Area: 0x82, Start: 1000, Count: 100, Pattern: "counter"}, // DM 1000-1099
		{Area: 0x30, Start: 0, Count: 100, Pattern: "constant", Value: 0}, // CIO 0-99
	}
}

// CreateDefaultConfig creates a default emulator configuration for the
// given protocol.
func CreateDefaultConfig(protocol string) *Config {
	cfg := &Config{
		Server: ServerSection{
			Name:     "plcmock",
			Protocol: protocol,
			ListenIP: "0.0.0.0",
		},
		Logging: LoggingSection{
			Format: "text",
			Level:  "info",
		},
		ADS: ADSSection{
			Identity: ADSIdentity{
				DeviceName:   "TwinCAT 3 PLC",
				VersionMajor: 3,
				VersionMinor: 1,
				VersionBuild: 4024,
			},
			Symbols: defaultADSSymbols(),
		},
		FINS: FINSSection{
			MemorySeeds: defaultFINSMemorySeeds(),
		},
	}
	applyDefaults(cfg)
	return cfg
}

// LoadConfig loads an emulator configuration from a YAML file, applies
// defaults and validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "plcmock"
	}
	if cfg.Server.Protocol == "" {
		cfg.Server.Protocol = ProtocolADS
	}
	cfg.Server.Protocol = strings.ToLower(cfg.Server.Protocol)
	if cfg.Server.ListenIP == "" {
		cfg.Server.ListenIP = "0.0.0.0"
	}
	if cfg.Server.TCPPort == 0 {
		switch cfg.Server.Protocol {
		case ProtocolFINS:
			cfg.Server.TCPPort = 9600
		default:
			cfg.Server.TCPPort = 48898
		}
	}

	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.LogEveryN == 0 {
		cfg.Logging.LogEveryN = 1
	}

	if cfg.ADS.Identity.DeviceName == "" {
		cfg.ADS.Identity.DeviceName = "TwinCAT 3 PLC"
	}
	if cfg.ADS.Identity.VersionMajor == 0 && cfg.ADS.Identity.VersionMinor == 0 && cfg.ADS.Identity.VersionBuild == 0 {
		cfg.ADS.Identity.VersionMajor = 3
		cfg.ADS.Identity.VersionMinor = 1
		cfg.ADS.Identity.VersionBuild = 4024
	}
	if cfg.ADS.Symbols == nil {
		cfg.ADS.Symbols = defaultADSSymbols()
	}
	if cfg.FINS.MemorySeeds == nil {
		cfg.FINS.MemorySeeds = defaultFINSMemorySeeds()
	}
	for i := range cfg.FINS.MemorySeeds {
		if cfg.FINS.MemorySeeds[i].Pattern == "" {
			cfg.FINS.MemorySeeds[i].Pattern = "constant"
		}
	}
}

// ValidateConfig validates an emulator configuration.
func ValidateConfig(cfg *Config) error {
	switch cfg.Server.Protocol {
	case ProtocolADS, ProtocolFINS:
	default:
		return fmt.Errorf("server.protocol: unknown protocol %q (expected %q or %q)",
			cfg.Server.Protocol, ProtocolADS, ProtocolFINS)
	}

	if cfg.Server.TCPPort < 0 || cfg.Server.TCPPort > 65535 {
		return fmt.Errorf("server.tcp_port: %d out of range", cfg.Server.TCPPort)
	}

	switch cfg.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format: unknown format %q (expected \"text\" or \"json\")", cfg.Logging.Format)
	}

	switch cfg.Logging.Level {
	case "silent", "error", "info", "verbose", "debug":
	default:
		return fmt.Errorf("logging.level: unknown level %q", cfg.Logging.Level)
	}

	for i, sym := range cfg.ADS.Symbols {
		if sym.Name == "" {
			return fmt.Errorf("ads.symbols[%d]: name is required", i)
		}
		switch strings.ToUpper(sym.Type) {
		case "BOOL", "INT", "DINT", "REAL":
		default:
			return fmt.Errorf("ads.symbols[%d]: unknown type %q for %s", i, sym.Type, sym.Name)
		}
	}

	for i, seed := range cfg.FINS.MemorySeeds {
		if seed.Count < 0 {
			return fmt.Errorf("fins.memory_seeds[%d]: negative count", i)
		}
		if int(seed.Start)+seed.Count > 0x10000 {
			return fmt.Errorf("fins.memory_seeds[%d]: range exceeds 16-bit address space", i)
		}
		switch seed.Pattern {
		case "counter", "constant":
		default:
			return fmt.Errorf("fins.memory_seeds[%d]: unknown pattern %q", i, seed.Pattern)
		}
	}

	// Interface may stay empty: the loopback device is auto-detected.
	if cfg.Capture.Enable && cfg.Capture.OutputFile == "" {
		return fmt.Errorf("capture.output_file: required when capture is enabled")
	}

	return nil
}

// MarshalDefault renders the default configuration for the given protocol
// as YAML, for `plcmock print-default-config`.
func MarshalDefault(protocol string) ([]byte, error) {
	cfg := CreateDefaultConfig(protocol)
	return yaml.Marshal(cfg)
}
