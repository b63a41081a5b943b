// Package signer submits claim transactions on behalf of a player. The
// engine never holds player keys; signing happens in the player's wallet
// session, reached over HTTP. The signer returns the transaction signature
// once the wallet has signed and broadcast it.
package signer

import (
	"context"
	"errors"
)

// Wallet session failures that the claim flow treats as terminal.
var (
	// ErrUserDeclined means the player rejected the signing prompt.
	ErrUserDeclined = errors.New("user declined signing")
	// ErrSessionExpired means the wallet session is no longer valid and the
	// player must reconnect before claiming again.
	ErrSessionExpired = errors.New("wallet session expired")
)

// ClaimRequest identifies the claim a wallet should sign and broadcast.
type ClaimRequest struct {
	RaceID       string `json:"raceId"`
	Player       string `json:"player"`
	WagerAddress string `json:"wagerAddress"`
	AttemptID    string `json:"attemptId"`
}

// Signer signs and broadcasts a claim transaction, returning its signature.
type Signer interface {
	SignAndSendClaim(ctx context.Context, req ClaimRequest) (string, error)
}

// Func adapts a function to the Signer interface, mainly for tests.
type Func func(ctx context.Context, req ClaimRequest) (string, error)

func (f Func) SignAndSendClaim(ctx context.Context, req ClaimRequest) (string, error) {
	return f(ctx, req)
}
