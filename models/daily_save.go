package models

import "time"

// DailySave aggregates every deposit a goal received on one UTC calendar day.
// Grain: (goal_id, date). Rows are never deleted.
type DailySave struct {
	ID        string    `gorm:"primaryKey;type:uuid;not null" json:"id"`
	GoalID    uint64    `gorm:"not null;uniqueIndex:idx_daily_saves_goal_date,priority:1" json:"goal_id"`
	Date      time.Time `gorm:"not null;uniqueIndex:idx_daily_saves_goal_date,priority:2" json:"date"` // UTC midnight
	Amount    Amount    `gorm:"not null;default:0" json:"amount"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
