package claim

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"momentum-engine/internal/signer"
	"momentum-engine/internal/solana"
)

// ErrorKind is the closed set of claim failure categories surfaced to
// callers. Every failure maps to exactly one kind.
type ErrorKind string

const (
	KindUserCancelled     ErrorKind = "user_cancelled"
	KindSessionExpired    ErrorKind = "session_expired"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindAlreadyClaimed    ErrorKind = "already_claimed"
	KindNotWinner         ErrorKind = "not_a_winner"
	KindRaceNotSettled    ErrorKind = "race_not_settled"
	KindNoWinners         ErrorKind = "no_winners"
	KindVaultInsufficient ErrorKind = "vault_insufficient"
	KindNetwork           ErrorKind = "network"
	KindUnknown           ErrorKind = "unknown"
)

// Custom error codes raised by the race program's claim instruction.
// Anchor numbers custom errors from 6000 (0x1770).
const (
	programErrNotSettled        = 6000 // 0x1770
	programErrNotWinner         = 6001 // 0x1771
	programErrAlreadyClaimed    = 6002 // 0x1772
	programErrNoWinners         = 6003 // 0x1773
	programErrVaultInsufficient = 6004 // 0x1774
)

// Sentinels raised by the reconciler itself before anything reaches the
// chain.
var (
	// ErrNoWager means no wager account exists for the (race, player) pair.
	ErrNoWager = errors.New("no wager found for player")
	// ErrNotConfirmed means the signature never reached confirmed commitment
	// within the confirmation budget.
	ErrNotConfirmed = errors.New("transaction not confirmed in time")
	// ErrFlagUnset means the transaction confirmed but the wager account's
	// claimed flag still reads false.
	ErrFlagUnset = errors.New("transaction confirmed but claimed flag unset")
)

var programErrKinds = map[int]ErrorKind{
	programErrNotSettled:        KindRaceNotSettled,
	programErrNotWinner:         KindNotWinner,
	programErrAlreadyClaimed:    KindAlreadyClaimed,
	programErrNoWinners:         KindNoWinners,
	programErrVaultInsufficient: KindVaultInsufficient,
}

// Classify maps any error from the claim flow onto the closed taxonomy.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, signer.ErrUserDeclined):
		return KindUserCancelled
	case errors.Is(err, signer.ErrSessionExpired):
		return KindSessionExpired
	case errors.Is(err, ErrNoWager):
		return KindNotWinner
	case errors.Is(err, ErrNotConfirmed),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return KindNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}

	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) {
		return classifyRPCError(rpcErr.Message)
	}

	return classifyMessage(err.Error())
}

// classifyRPCError inspects the node's error message. Custom program errors
// surface as "custom program error: 0xNNNN"; native failures keep their
// runtime wording.
func classifyRPCError(msg string) ErrorKind {
	if kind, ok := customProgramErrKind(msg); ok {
		return kind
	}
	return classifyMessage(msg)
}

func classifyMessage(msg string) ErrorKind {
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "insufficient lamports"),
		strings.Contains(lower, "insufficient funds"):
		return KindInsufficientFunds
	case strings.Contains(lower, "blockhash not found"),
		strings.Contains(lower, "connection refused"),
		strings.Contains(lower, "timeout"),
		strings.Contains(lower, "deadline exceeded"):
		return KindNetwork
	default:
		return KindUnknown
	}
}

// customProgramErrKind extracts a custom program error code from a node
// error message.
func customProgramErrKind(msg string) (ErrorKind, bool) {
	const marker = "custom program error: "
	idx := strings.Index(msg, marker)
	if idx < 0 {
		return "", false
	}
	var code int
	if _, err := fmt.Sscanf(msg[idx+len(marker):], "0x%x", &code); err != nil {
		return "", false
	}
	kind, ok := programErrKinds[code]
	if !ok {
		return KindUnknown, true
	}
	return kind, true
}

// Terminal reports whether a failure of this kind could change on retry.
// Retrying only helps for network trouble and unexplained failures.
func (k ErrorKind) Terminal() bool {
	switch k {
	case KindNetwork, KindUnknown:
		return false
	default:
		return true
	}
}
