package models

import "time"

// TransactionType is the kind of contract event a Transaction was recorded from.
type TransactionType string

const (
	TransactionTypeDeposit       TransactionType = "deposit"
	TransactionTypeWithdraw      TransactionType = "withdraw"
	TransactionTypeWithdrawEarly TransactionType = "withdrawEarly"
)

const TransactionStatusCompleted = "completed"

// Transaction is the audit record of a chain event applied to a goal.
// tx_hash is unique; inserts go through ON CONFLICT DO NOTHING.
type Transaction struct {
	ID          string          `gorm:"primaryKey;type:uuid;not null" json:"id"`
	GoalID      uint64          `gorm:"not null;index" json:"goal_id"`
	TxHash      string          `gorm:"type:varchar(66);not null;uniqueIndex" json:"tx_hash"`
	Type        TransactionType `gorm:"type:varchar(32);not null" json:"type"`
	Amount      Amount          `gorm:"not null;default:0" json:"amount"`
	BlockNumber uint64          `json:"block_number"`
	Timestamp   time.Time       `gorm:"not null;index" json:"timestamp"`
	Status      string          `gorm:"type:varchar(20);not null;default:'completed'" json:"status"`
	CreatedAt   time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
