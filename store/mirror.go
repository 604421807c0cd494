// Package store persists the local mirror of on-chain goal state.
package store

import (
	"context"
	"errors"
	"time"

	"stacksave-sync/models"

	"github.com/shopspring/decimal"
)

var ErrGoalNotFound = errors.New("goal not found in mirror")

// GoalStateUpdate carries one authoritative chain read into the mirror.
//
// Owner, Currency, Mode, TargetAmount, Duration and DonationPercentage are only
// used when the goal row does not exist yet; existing rows only get the
// chain-derived columns overwritten.
type GoalStateUpdate struct {
	Owner              string
	Currency           string
	Mode               models.GoalMode
	TargetAmount       decimal.Decimal
	Duration           uint64
	DonationPercentage uint16

	DepositedAmount decimal.Decimal
	CurrentValue    decimal.Decimal
	YieldEarned     decimal.Decimal
	Status          models.GoalStatus
	LastDepositTime *time.Time // nil leaves the stored value untouched
}

// StreakUpdate writes derived streak metrics. A nil LongestStreak leaves the
// stored longest streak untouched.
type StreakUpdate struct {
	CurrentStreak int
	LongestStreak *int
	UpdatedAt     time.Time
}

// MirrorStore is the persistence boundary of the sync engine.
type MirrorStore interface {
	GetGoal(ctx context.Context, goalID uint64) (*models.Goal, error)
	ListGoalsByOwner(ctx context.Context, owner string) ([]models.Goal, error)
	ListGoalsByStatus(ctx context.Context, status models.GoalStatus) ([]models.Goal, error)
	UpsertGoalState(ctx context.Context, goalID uint64, update GoalStateUpdate) error
	UpdateStreak(ctx context.Context, goalID uint64, update StreakUpdate) error
	// UpsertDailySave adds amountDelta to the (goalID, day of date) row, creating it if needed.
	UpsertDailySave(ctx context.Context, goalID uint64, date time.Time, amountDelta decimal.Decimal) error
	// InsertTransactionIfAbsent reports false, with a nil error, when tx_hash already exists.
	InsertTransactionIfAbsent(ctx context.Context, record *models.Transaction) (bool, error)
	// RecordDeposit inserts a deposit transaction and, only if it was new, adds its
	// amount to the daily save of day. Both writes commit or neither does.
	RecordDeposit(ctx context.Context, record *models.Transaction, day time.Time) (bool, error)
	// ListDailySaves returns rows dated on or after since, most recent first.
	ListDailySaves(ctx context.Context, goalID uint64, since time.Time) ([]models.DailySave, error)
}
