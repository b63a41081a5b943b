// Command raced runs the wagering daemon: it follows race accounts over
// WebSocket, mirrors snapshots and price ticks into storage, and serves
// the wagering API plus Prometheus metrics over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"momentum-engine/internal/api"
	"momentum-engine/internal/claim"
	"momentum-engine/internal/config"
	"momentum-engine/internal/engine"
	"momentum-engine/internal/feed"
	"momentum-engine/internal/observability"
	"momentum-engine/internal/signer"
	"momentum-engine/internal/solana"
	"momentum-engine/internal/storage"
	chstore "momentum-engine/internal/storage/clickhouse"
	"momentum-engine/internal/storage/memory"
	"momentum-engine/internal/storage/migrations"
	pgstore "momentum-engine/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "raced",
		Short:        "Race wagering daemon",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the daemon",
		RunE:  runDaemon,
	}

	runCmd.Flags().String("rpc-endpoint", "", "Solana RPC HTTP endpoint")
	runCmd.Flags().String("ws-endpoint", "", "Solana WebSocket endpoint")
	runCmd.Flags().String("wallet-url", "", "wallet service base URL for claim signing")
	runCmd.Flags().String("program-id", "", "race program ID")
	runCmd.Flags().StringSlice("race", nil, "race account addresses to follow (comma-separated)")
	runCmd.Flags().String("postgres-dsn", "", "PostgreSQL connection string")
	runCmd.Flags().String("clickhouse-dsn", "", "ClickHouse connection string")
	runCmd.Flags().Bool("use-memory", false, "use in-memory storage instead of PostgreSQL/ClickHouse")
	runCmd.Flags().String("api-addr", ":8080", "API HTTP address")
	runCmd.Flags().String("metrics-addr", ":9090", "Prometheus metrics HTTP address")
	runCmd.Flags().Duration("flush-interval", 5*time.Second, "price tick flush interval")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// stores bundles the storage backends behind their interfaces.
type stores struct {
	races  storage.RaceStore
	wagers storage.WagerStore
	ticks  storage.PriceTickStore
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := createStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	metrics := observability.NewMetrics("")

	rpc := solana.NewHTTPClient(cfg.RPCEndpoint)

	var claimer engine.Claimer
	if cfg.WalletURL != "" {
		wallet := signer.NewWalletClient(cfg.WalletURL)
		claimer = claim.NewReconciler(rpc, wallet, cfg.ProgramID, claim.WithLogger(logger))
	}

	eng := engine.New(engine.Options{
		RaceStore:  st.races,
		WagerStore: st.wagers,
		Claimer:    claimer,
		Logger:     logger,
		Metrics:    metrics,
	})

	logger.Info("daemon start",
		zap.String("rpc", cfg.RPCEndpoint),
		zap.String("ws", cfg.WSEndpoint),
		zap.String("program", cfg.ProgramID),
		zap.Int("races", len(cfg.Races)),
		zap.Bool("use_memory", cfg.UseMemory),
		zap.String("api_addr", cfg.APIAddr),
		zap.String("metrics_addr", cfg.MetricsAddr),
	)

	errCh := make(chan error, 3)

	if len(cfg.Races) > 0 {
		ws, err := solana.NewWSClient(ctx, cfg.WSEndpoint, nil)
		if err != nil {
			return fmt.Errorf("connect ws: %w", err)
		}
		defer ws.Close()

		runner := feed.NewRunner(feed.RunnerOptions{
			WS:            ws,
			RaceStore:     st.races,
			TickStore:     st.ticks,
			FlushInterval: cfg.FlushInterval,
			Logger:        logger,
			Metrics:       metrics,
		})
		go func() {
			if err := runner.Run(ctx, cfg.Races); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("feed: %w", err)
			}
		}()
	} else {
		logger.Warn("no race accounts configured, feed disabled")
	}

	apiSrv := &http.Server{
		Addr:    cfg.APIAddr,
		Handler: api.NewServer(eng, logger).Handler(),
	}
	go func() {
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux()}
	go func() {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		shutdown(apiSrv, metricsSrv, logger)
		return err
	}

	logger.Info("shutting down")
	shutdown(apiSrv, metricsSrv, logger)
	logger.Info("shutdown complete")
	return nil
}

func shutdown(apiSrv, metricsSrv *http.Server, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := apiSrv.Shutdown(ctx); err != nil {
		logger.Warn("api server shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Warn("metrics server shutdown", zap.Error(err))
	}
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", observability.Handler())
	return mux
}

// createStores builds the storage backends and runs migrations for the
// persistent ones.
func createStores(ctx context.Context, cfg config.Config) (*stores, func(), error) {
	if cfg.UseMemory {
		st := &stores{
			races:  memory.NewRaceStore(),
			wagers: memory.NewWagerStore(),
			ticks:  memory.NewPriceTickStore(),
		}
		return st, func() {}, nil
	}

	pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("postgres migrations: %w", err)
	}

	conn, err := chstore.NewConn(ctx, cfg.ClickhouseDSN)
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
	}
	if err := migrations.RunClickhouseMigrations(ctx, conn); err != nil {
		conn.Close()
		pool.Close()
		return nil, nil, fmt.Errorf("clickhouse migrations: %w", err)
	}

	st := &stores{
		races:  pgstore.NewRaceStore(pool),
		wagers: pgstore.NewWagerStore(pool),
		ticks:  chstore.NewPriceTickStore(conn),
	}
	cleanup := func() {
		conn.Close()
		pool.Close()
	}
	return st, cleanup, nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
