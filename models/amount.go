package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Amount is an unbounded on-chain integer (uint256 base units).
//
// Postgres stores it as numeric(78,0). SQLite has no exact wide numeric type:
// NUMERIC affinity turns anything past int64 into a lossy REAL, so the column
// is declared TEXT there and arithmetic happens in Go.
type Amount struct {
	decimal.Decimal
}

func NewAmount(d decimal.Decimal) Amount {
	return Amount{Decimal: d}
}

func (Amount) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "sqlite" {
		return "text"
	}
	return "numeric(78,0)"
}
