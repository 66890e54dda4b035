package engine

import (
	"errors"
	"fmt"

	"github.com/walidbouh09/tradesense/pkg/types"
)

// ErrChallengeNotFound is matched with errors.Is against the typed
// ChallengeNotFoundError.
var ErrChallengeNotFound = errors.New("challenge not found")

// ChallengeNotFoundError reports a missing challenge row. Retrying is
// pointless; the caller surfaces it.
type ChallengeNotFoundError struct {
	ChallengeID string
}

func (e *ChallengeNotFoundError) Error() string {
	return fmt.Sprintf("challenge %s not found", e.ChallengeID)
}

func (e *ChallengeNotFoundError) Is(target error) bool {
	return target == ErrChallengeNotFound
}

// TradeRejectedError reports a trade that arrived after the challenge
// reached a terminal state. The caller drops the trade with an audit log.
type TradeRejectedError struct {
	ChallengeID string
	TradeID     string
	Status      types.ChallengeStatus
}

func (e *TradeRejectedError) Error() string {
	return fmt.Sprintf("trade %s rejected for challenge %s: already %s", e.TradeID, e.ChallengeID, e.Status)
}

// Reason returns the rejection reason in the wire form "already FAILED" /
// "already FUNDED".
func (e *TradeRejectedError) Reason() string {
	return "already " + string(e.Status)
}
