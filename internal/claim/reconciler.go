// Package claim settles winning wagers against the chain. A claim is a
// wallet-signed transaction whose outcome is ultimately defined by the
// wager account's claimed flag, not by whether the RPC node acknowledged
// the send: on any ambiguous path the reconciler re-reads the account and
// believes the chain.
package claim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"momentum-engine/internal/program"
	"momentum-engine/internal/retry"
	"momentum-engine/internal/signer"
	"momentum-engine/internal/solana"
)

// Status is the resolved state of a claim attempt.
type Status string

const (
	// StatusClaimed means the wager account's claimed flag is set on-chain.
	StatusClaimed Status = "claimed"
	// StatusFailed means the claim did not land and the flag is unset.
	StatusFailed Status = "failed"
)

// Outcome is the resolved result of a claim attempt.
type Outcome struct {
	Status       Status
	Signature    string
	AmountMicros int64
	// Kind and Err are set when Status is StatusFailed.
	Kind ErrorKind
	Err  error
}

const defaultPollInterval = 2 * time.Second

// defaultConfirmPolicy bounds signature confirmation: three attempts of
// thirty seconds each, matching the cluster's blockhash validity window.
var defaultConfirmPolicy = retry.Policy{
	MaxAttempts: 3,
	Timeout:     30 * time.Second,
	Delay:       2 * time.Second,
	MaxDelay:    10 * time.Second,
	BackoffMult: 2,
}

// verifyPolicy bounds the on-chain claimed-flag read used to resolve
// ambiguous sends.
var verifyPolicy = retry.Policy{
	MaxAttempts: 3,
	Timeout:     10 * time.Second,
	Delay:       time.Second,
	BackoffMult: 2,
}

// Reconciler drives claims end to end: preflight the wager account, hand
// the transaction to the player's wallet, await confirmation, and resolve
// every ambiguous ending by reading the claimed flag. Claims for the same
// (race, player) pair are serialized.
type Reconciler struct {
	rpc       solana.RPCClient
	signer    signer.Signer
	programID string
	confirm   retry.Policy
	poll      time.Duration
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the structured logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Reconciler) { r.logger = logger }
}

// WithConfirmPolicy overrides the confirmation budget.
func WithConfirmPolicy(p retry.Policy) Option {
	return func(r *Reconciler) { r.confirm = p }
}

// WithPollInterval overrides the status poll cadence within one attempt.
func WithPollInterval(d time.Duration) Option {
	return func(r *Reconciler) { r.poll = d }
}

// NewReconciler builds a Reconciler for the race program at programID.
func NewReconciler(rpc solana.RPCClient, s signer.Signer, programID string, opts ...Option) *Reconciler {
	r := &Reconciler{
		rpc:       rpc,
		signer:    s,
		programID: programID,
		confirm:   defaultConfirmPolicy,
		poll:      defaultPollInterval,
		logger:    zap.NewNop(),
		inflight:  make(map[string]*keyLock),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Claim resolves a player's winnings for a race. It always returns a
// resolved Outcome; the error return is reserved for invalid input.
func (r *Reconciler) Claim(ctx context.Context, raceID, player string) (*Outcome, error) {
	if err := program.ValidateAddress(raceID); err != nil {
		return nil, fmt.Errorf("race id: %w", err)
	}
	if err := program.ValidateAddress(player); err != nil {
		return nil, fmt.Errorf("player: %w", err)
	}

	unlock := r.lock(raceID + "|" + player)
	defer unlock()

	wagerAddr, err := program.DeriveWagerAddress(r.programID, raceID, player)
	if err != nil {
		return nil, fmt.Errorf("derive wager address: %w", err)
	}

	logger := r.logger.With(
		zap.String("race", raceID),
		zap.String("player", player),
		zap.String("wager", wagerAddr),
	)

	// Preflight: the wager account tells us whether there is anything to
	// claim, and whether a previous attempt already landed.
	claimed, amount, err := r.readWager(ctx, wagerAddr)
	if err != nil {
		kind := Classify(err)
		logger.Warn("wager preflight failed", zap.Error(err), zap.String("kind", string(kind)))
		return failed("", kind, err), nil
	}
	if claimed {
		logger.Info("wager already claimed, resolving as success")
		return &Outcome{Status: StatusClaimed, AmountMicros: amount}, nil
	}

	attemptID := uuid.NewString()
	logger = logger.With(zap.String("attempt", attemptID))

	sig, err := r.signer.SignAndSendClaim(ctx, signer.ClaimRequest{
		RaceID:       raceID,
		Player:       player,
		WagerAddress: wagerAddr,
		AttemptID:    attemptID,
	})
	if err != nil {
		kind := Classify(err)
		if kind.Terminal() {
			logger.Info("claim rejected before broadcast", zap.Error(err), zap.String("kind", string(kind)))
			return failed("", kind, err), nil
		}
		// The wallet may have broadcast before the response was lost.
		// Only the chain knows.
		logger.Warn("signing ambiguous, checking chain", zap.Error(err))
		return r.resolveByChain(ctx, logger, wagerAddr, "", kind, err), nil
	}

	logger = logger.With(zap.String("signature", sig))
	logger.Info("claim broadcast, awaiting confirmation")

	if err := r.awaitConfirmation(ctx, sig); err != nil {
		kind := Classify(err)
		logger.Warn("confirmation did not complete, checking chain",
			zap.Error(err), zap.String("kind", string(kind)))
		return r.resolveByChain(ctx, logger, wagerAddr, sig, kind, err), nil
	}

	// Confirmed signature, but success is still the flag on the account.
	return r.resolveByChain(ctx, logger, wagerAddr, sig, KindUnknown, ErrFlagUnset), nil
}

// lock serializes claims per (race, player).
func (r *Reconciler) lock(key string) func() {
	r.mu.Lock()
	kl, ok := r.inflight[key]
	if !ok {
		kl = &keyLock{}
		r.inflight[key] = kl
	}
	kl.refs++
	r.mu.Unlock()

	kl.mu.Lock()
	return func() {
		kl.mu.Unlock()
		r.mu.Lock()
		kl.refs--
		if kl.refs == 0 {
			delete(r.inflight, key)
		}
		r.mu.Unlock()
	}
}

// readWager fetches and decodes the wager account. Missing account means
// the player never entered this race.
func (r *Reconciler) readWager(ctx context.Context, wagerAddr string) (claimed bool, amount int64, err error) {
	info, err := r.rpc.GetAccountInfo(ctx, wagerAddr)
	if err != nil {
		return false, 0, fmt.Errorf("fetch wager account: %w", err)
	}
	if info == nil {
		return false, 0, ErrNoWager
	}
	wager, err := program.DecodeWager(info.Data)
	if err != nil {
		return false, 0, fmt.Errorf("decode wager account: %w", err)
	}
	return wager.Claimed, wager.AmountMicros, nil
}

// awaitConfirmation polls the signature until it reaches confirmed
// commitment. An on-chain transaction error is terminal; an exhausted
// budget surfaces as ErrNotConfirmed.
func (r *Reconciler) awaitConfirmation(ctx context.Context, sig string) error {
	err := r.confirm.Do(ctx, func(ctx context.Context) error {
		ticker := time.NewTicker(r.poll)
		defer ticker.Stop()
		for {
			statuses, err := r.rpc.GetSignatureStatuses(ctx, []string{sig})
			if err == nil && len(statuses) == 1 && statuses[0] != nil {
				st := statuses[0]
				if st.Err != nil {
					return retry.Permanent(fmt.Errorf("transaction failed: %v", st.Err))
				}
				if st.Confirmed() {
					return nil
				}
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	})
	if err == nil {
		return nil
	}
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return ErrNotConfirmed
	}
	return err
}

// resolveByChain is the final arbiter: read the claimed flag and let it
// decide. fallbackKind and fallbackErr describe what went wrong on the way
// here and are reported only when the flag is unset.
func (r *Reconciler) resolveByChain(ctx context.Context, logger *zap.Logger, wagerAddr, sig string, fallbackKind ErrorKind, fallbackErr error) *Outcome {
	var claimed bool
	var amount int64
	err := verifyPolicy.Do(ctx, func(ctx context.Context) error {
		var err error
		claimed, amount, err = r.readWager(ctx, wagerAddr)
		return err
	})
	if err != nil {
		logger.Error("on-chain verification failed", zap.Error(err))
		return failed(sig, fallbackKind, fmt.Errorf("%w (verification: %v)", fallbackErr, err))
	}

	if claimed {
		logger.Info("claim confirmed on-chain", zap.Int64("amount_micros", amount))
		return &Outcome{Status: StatusClaimed, Signature: sig, AmountMicros: amount}
	}

	logger.Info("claim not present on-chain",
		zap.String("kind", string(fallbackKind)), zap.Error(fallbackErr))
	return failed(sig, fallbackKind, fallbackErr)
}

func failed(sig string, kind ErrorKind, err error) *Outcome {
	return &Outcome{Status: StatusFailed, Signature: sig, Kind: kind, Err: err}
}
