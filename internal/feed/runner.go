// Package feed streams race account updates from the chain into storage.
// Each accountSubscribe notification carries the full race account; the
// runner decodes it, upserts the snapshot, and records one price tick per
// asset. Ticks are buffered and flushed in batches.
package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"momentum-engine/internal/domain"
	"momentum-engine/internal/observability"
	"momentum-engine/internal/program"
	"momentum-engine/internal/solana"
	"momentum-engine/internal/storage"
)

const defaultFlushInterval = 5 * time.Second

// Runner consumes race account notifications and persists snapshots and
// price ticks.
type Runner struct {
	ws            solana.WSClient
	raceStore     storage.RaceStore
	tickStore     storage.PriceTickStore
	flushInterval time.Duration
	logger        *zap.Logger
	metrics       *observability.Metrics

	pending     []*domain.PriceTick
	highestSlot int64
}

// RunnerOptions contains configuration for creating a Runner.
type RunnerOptions struct {
	WS            solana.WSClient
	RaceStore     storage.RaceStore
	TickStore     storage.PriceTickStore
	FlushInterval time.Duration // Default: 5s
	Logger        *zap.Logger
	Metrics       *observability.Metrics // optional
}

// NewRunner creates a new feed runner.
func NewRunner(opts RunnerOptions) *Runner {
	flushInterval := opts.FlushInterval
	if flushInterval == 0 {
		flushInterval = defaultFlushInterval
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		ws:            opts.WS,
		raceStore:     opts.RaceStore,
		tickStore:     opts.TickStore,
		flushInterval: flushInterval,
		logger:        logger,
		metrics:       opts.Metrics,
	}
}

// Run subscribes to the given race accounts and blocks until the context is
// cancelled. Buffered ticks are flushed before returning.
func (r *Runner) Run(ctx context.Context, racePubkeys []string) error {
	if len(racePubkeys) == 0 {
		return errors.New("no race accounts to watch")
	}

	merged := make(chan solana.AccountNotification, 1024)
	for _, pubkey := range racePubkeys {
		if err := program.ValidateAddress(pubkey); err != nil {
			return fmt.Errorf("race account %s: %w", pubkey, err)
		}
		ch, err := r.ws.SubscribeAccount(ctx, pubkey)
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", pubkey, err)
		}
		go func(ch <-chan solana.AccountNotification) {
			for notif := range ch {
				select {
				case merged <- notif:
				case <-ctx.Done():
					return
				}
			}
		}(ch)
	}

	if r.metrics != nil {
		r.metrics.ActiveSubscriptions.Set(float64(len(racePubkeys)))
		defer r.metrics.ActiveSubscriptions.Set(0)
	}

	r.logger.Info("feed started", zap.Int("accounts", len(racePubkeys)),
		zap.Duration("flush_interval", r.flushInterval))

	flushTicker := time.NewTicker(r.flushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush(context.WithoutCancel(ctx))
			r.logger.Info("feed stopping")
			return ctx.Err()

		case notif := <-merged:
			r.handleNotification(ctx, notif)

		case <-flushTicker.C:
			r.flush(ctx)
		}
	}
}

// handleNotification decodes one race account update, stores the snapshot
// and buffers one tick per asset.
func (r *Runner) handleNotification(ctx context.Context, notif solana.AccountNotification) {
	race, err := program.DecodeRace(notif.Pubkey, notif.Data)
	if err != nil {
		r.logger.Warn("failed to decode race account",
			zap.String("pubkey", notif.Pubkey), zap.Error(err))
		r.countError("decode")
		return
	}
	race.UpdatedAt = time.Now().UnixMilli()

	// The account carries no display symbols; keep the ones already stored.
	if prev, err := r.raceStore.GetByID(ctx, race.RaceID); err == nil {
		for i := range race.Assets {
			if i < len(prev.Assets) {
				race.Assets[i].Symbol = prev.Assets[i].Symbol
			}
		}
	}

	if !race.PoolsConsistent() {
		r.logger.Warn("race snapshot has inconsistent pools, skipping",
			zap.String("race", race.RaceID),
			zap.Int64("total", race.TotalPoolMicros))
		r.countError("pools")
		return
	}

	if err := r.raceStore.Upsert(ctx, race); err != nil {
		r.logger.Error("failed to store race snapshot",
			zap.String("race", race.RaceID), zap.Error(err))
		r.countError("store")
		return
	}
	if r.metrics != nil {
		r.metrics.RaceSnapshotsStored.Inc()
	}

	if notif.Slot > r.highestSlot {
		r.highestSlot = notif.Slot
		if r.metrics != nil {
			r.metrics.HighestSlotSeen.Set(float64(notif.Slot))
		}
	}

	now := time.Now().UnixMilli()
	for i, asset := range race.Assets {
		r.pending = append(r.pending, &domain.PriceTick{
			RaceID:     race.RaceID,
			AssetIndex: i,
			Mint:       asset.Mint,
			Price:      asset.CurrentPrice,
			Slot:       notif.Slot,
			Timestamp:  now,
		})
		if r.metrics != nil {
			r.metrics.TicksProcessed.Inc()
		}
	}
}

// flush writes all buffered ticks. Duplicate batches can happen when a
// subscription replays after reconnect; they are dropped, not retried.
func (r *Runner) flush(ctx context.Context) {
	if len(r.pending) == 0 {
		return
	}

	err := r.tickStore.InsertBulk(ctx, r.pending)
	switch {
	case err == nil:
		if r.metrics != nil {
			r.metrics.TicksStored.Add(float64(len(r.pending)))
		}
	case errors.Is(err, storage.ErrDuplicateKey):
		r.logger.Debug("dropping duplicate tick batch", zap.Int("ticks", len(r.pending)))
	default:
		r.logger.Error("failed to store ticks",
			zap.Int("ticks", len(r.pending)), zap.Error(err))
		r.countError("flush")
	}

	r.pending = r.pending[:0]
}

func (r *Runner) countError(stage string) {
	if r.metrics != nil {
		r.metrics.FeedErrors.WithLabelValues(stage).Inc()
	}
}
