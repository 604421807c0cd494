// models/goal.go
package models

import "time"

// GoalMode mirrors the contract's vault mode enum.
type GoalMode uint8

const (
	GoalModeLite GoalMode = 0
	GoalModePro  GoalMode = 1
)

// GoalStatus mirrors the contract's goal status enum.
type GoalStatus uint8

const (
	GoalStatusActive    GoalStatus = 0
	GoalStatusCompleted GoalStatus = 1
	GoalStatusAbandoned GoalStatus = 2
	GoalStatusWithdrawn GoalStatus = 3
)

func (s GoalStatus) String() string {
	switch s {
	case GoalStatusActive:
		return "active"
	case GoalStatusCompleted:
		return "completed"
	case GoalStatusAbandoned:
		return "abandoned"
	case GoalStatusWithdrawn:
		return "withdrawn"
	default:
		return "unknown"
	}
}

// Goal mirrors one on-chain savings goal.
// Table name: goals
type Goal struct {
	ID                 uint64     `gorm:"primaryKey;autoIncrement:false" json:"id"` // on-chain goal id
	Owner              string     `gorm:"type:varchar(42);not null;index" json:"owner"`
	Currency           string     `gorm:"type:varchar(42);not null" json:"currency"`
	Mode               GoalMode   `gorm:"not null;default:0" json:"mode"`
	TargetAmount       Amount     `gorm:"not null;default:0" json:"target_amount"`
	Duration           uint64     `gorm:"not null;default:0" json:"duration"` // seconds
	DonationPercentage uint16     `gorm:"not null;default:0" json:"donation_percentage"` // basis points

	// Chain-derived, always overwritten from the latest authoritative read
	DepositedAmount Amount     `gorm:"not null;default:0" json:"deposited_amount"`
	CurrentValue    Amount     `gorm:"not null;default:0" json:"current_value"`
	YieldEarned     Amount     `gorm:"not null;default:0" json:"yield_earned"`
	Status          GoalStatus `gorm:"not null;default:0;index" json:"status"`
	LastDepositTime *time.Time `json:"last_deposit_time,omitempty"`

	// Derived locally from daily_saves
	CurrentStreak    int        `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int        `gorm:"not null;default:0" json:"longest_streak"`
	LastStreakUpdate *time.Time `json:"last_streak_update,omitempty"`

	Timestamps
}
