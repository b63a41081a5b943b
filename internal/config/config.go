package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCEndpoint   string
	WSEndpoint    string
	WalletURL     string
	ProgramID     string
	Races         []string
	PostgresDSN   string
	ClickhouseDSN string
	UseMemory     bool
	APIAddr       string
	MetricsAddr   string
	FlushInterval time.Duration
	LogLevel      string
}

// Load merges .env file, config file, environment variables, and flags
// into Config. Env vars use the RACED_ prefix.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RACED")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("api-addr", ":8080")
	v.SetDefault("metrics-addr", ":9090")
	v.SetDefault("flush-interval", 5*time.Second)
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		RPCEndpoint:   v.GetString("rpc-endpoint"),
		WSEndpoint:    v.GetString("ws-endpoint"),
		WalletURL:     v.GetString("wallet-url"),
		ProgramID:     v.GetString("program-id"),
		Races:         getStringSlice(v, "race"),
		PostgresDSN:   v.GetString("postgres-dsn"),
		ClickhouseDSN: v.GetString("clickhouse-dsn"),
		UseMemory:     v.GetBool("use-memory"),
		APIAddr:       v.GetString("api-addr"),
		MetricsAddr:   v.GetString("metrics-addr"),
		FlushInterval: v.GetDuration("flush-interval"),
		LogLevel:      v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks that the configuration is sufficient to run the daemon.
func (c Config) Validate() error {
	if c.RPCEndpoint == "" {
		return fmt.Errorf("rpc endpoint is required")
	}
	if c.WSEndpoint == "" {
		return fmt.Errorf("ws endpoint is required")
	}
	if c.ProgramID == "" {
		return fmt.Errorf("program id is required")
	}
	if !c.UseMemory && (c.PostgresDSN == "" || c.ClickhouseDSN == "") {
		return fmt.Errorf("postgres-dsn and clickhouse-dsn are required (use --use-memory for in-memory storage)")
	}
	return nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
