package models

import "time"

// Timestamps adds GORM auto-times. Mirror rows are never deleted, so there is
// no soft-delete column.
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
