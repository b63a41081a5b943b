package config

import (
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc-endpoint", "", "")
	flags.String("ws-endpoint", "", "")
	flags.String("wallet-url", "", "")
	flags.String("program-id", "", "")
	flags.StringSlice("race", nil, "")
	flags.String("postgres-dsn", "", "")
	flags.String("clickhouse-dsn", "", "")
	flags.Bool("use-memory", false, "")
	flags.String("api-addr", ":8080", "")
	flags.String("metrics-addr", ":9090", "")
	flags.Duration("flush-interval", 5*time.Second, "")
	flags.String("log-level", "info", "")
	return flags
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.APIAddr != ":8080" {
		t.Errorf("APIAddr = %q, want :8080", cfg.APIAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("MetricsAddr = %q, want :9090", cfg.MetricsAddr)
	}
	if cfg.FlushInterval != 5*time.Second {
		t.Errorf("FlushInterval = %v, want 5s", cfg.FlushInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadFromFlags(t *testing.T) {
	flags := testFlags()
	args := []string{
		"--rpc-endpoint", "http://localhost:8899",
		"--ws-endpoint", "ws://localhost:8900",
		"--program-id", "RaceProg1111111111111111111111111111111111",
		"--race", "A,B",
		"--use-memory",
	}
	if err := flags.Parse(args); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RPCEndpoint != "http://localhost:8899" {
		t.Errorf("RPCEndpoint = %q", cfg.RPCEndpoint)
	}
	if cfg.WSEndpoint != "ws://localhost:8900" {
		t.Errorf("WSEndpoint = %q", cfg.WSEndpoint)
	}
	if !cfg.UseMemory {
		t.Error("UseMemory = false, want true")
	}
	if len(cfg.Races) != 2 || cfg.Races[0] != "A" || cfg.Races[1] != "B" {
		t.Errorf("Races = %v, want [A B]", cfg.Races)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("RACED_WALLET_URL", "http://wallet:7000")
	t.Setenv("RACED_LOG_LEVEL", "debug")

	cfg, err := Load("", testFlags())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.WalletURL != "http://wallet:7000" {
		t.Errorf("WalletURL = %q, want http://wallet:7000", cfg.WalletURL)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestValidate(t *testing.T) {
	base := Config{
		RPCEndpoint: "http://localhost:8899",
		WSEndpoint:  "ws://localhost:8900",
		ProgramID:   "RaceProg1111111111111111111111111111111111",
		UseMemory:   true,
	}
	if err := base.Validate(); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}

	missing := base
	missing.RPCEndpoint = ""
	if err := missing.Validate(); err == nil {
		t.Error("missing rpc endpoint accepted")
	}

	persistent := base
	persistent.UseMemory = false
	if err := persistent.Validate(); err == nil {
		t.Error("missing DSNs accepted without use-memory")
	}
}
