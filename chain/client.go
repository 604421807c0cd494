// Package chain is the boundary to the StackSave contract: event subscriptions
// and authoritative goal reads.
package chain

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EventName identifies a contract event the mirror reacts to.
type EventName string

const (
	EventDeposited          EventName = "Deposited"
	EventWithdrawnCompleted EventName = "WithdrawnCompleted"
	EventWithdrawnEarly     EventName = "WithdrawnEarly"
)

// TrackedEvents is the set of events the supervisor keeps subscribed.
var TrackedEvents = []EventName{EventDeposited, EventWithdrawnCompleted, EventWithdrawnEarly}

// Event is a decoded contract event. Only the fields of its kind are set.
type Event struct {
	Name        EventName
	GoalID      uint64
	User        common.Address
	TxHash      common.Hash
	BlockNumber uint64

	// Deposited
	Amount      *big.Int // also the withdrawn amount of WithdrawnEarly
	VaultShares *big.Int

	// WithdrawnCompleted
	Principal    *big.Int
	TotalYield   *big.Int
	UserYield    *big.Int
	DonatedYield *big.Int

	// WithdrawnEarly
	Penalty           *big.Int
	PenaltyToRewards  *big.Int
	PenaltyToTreasury *big.Int
}

// RecordedAmount is the amount written to the audit trail for this event:
// the deposit, principal plus user yield, or the early-withdrawn amount.
func (e Event) RecordedAmount() *big.Int {
	switch e.Name {
	case EventWithdrawnCompleted:
		total := new(big.Int)
		if e.Principal != nil {
			total.Add(total, e.Principal)
		}
		if e.UserYield != nil {
			total.Add(total, e.UserYield)
		}
		return total
	default:
		if e.Amount == nil {
			return new(big.Int)
		}
		return new(big.Int).Set(e.Amount)
	}
}

// Goal is the contract's goal struct as returned by getGoalDetails.
type Goal struct {
	ID                 uint64
	Owner              common.Address
	Currency           common.Address
	Mode               uint8
	TargetAmount       *big.Int
	Duration           uint64
	DonationPercentage uint16
	DepositedAmount    *big.Int
	CreatedAt          uint64
	LastDepositTime    uint64
	Status             uint8
}

// GoalState is one authoritative read of a goal.
type GoalState struct {
	Goal         Goal
	CurrentValue *big.Int
	YieldEarned  *big.Int
}

// EventHandler receives decoded events. It may be invoked concurrently.
type EventHandler func(ctx context.Context, ev Event)

// GoalReader performs authoritative goal reads.
type GoalReader interface {
	ReadGoalState(ctx context.Context, goalID uint64) (*GoalState, error)
}

// Client is everything the sync engine needs from the chain.
type Client interface {
	GoalReader
	Subscribe(ctx context.Context, name EventName, handler EventHandler) error
	// Unsubscribe is a no-op when name is not subscribed.
	Unsubscribe(name EventName)
	// OnTransportError replaces the handler called when the connection or a
	// subscription fails.
	OnTransportError(handler func(error))
	ClearTransportErrorHandler()
}
