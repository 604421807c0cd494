package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"stacksave-sync/models"
	"stacksave-sync/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// OpenDatabase connects to the mirror database. driver is "postgres" or "sqlite";
// for sqlite the dsn is a file path.
func OpenDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	if driver == "sqlite" {
		// One connection serializes writers, so the read-modify-write in
		// UpsertDailySave cannot interleave and nothing hits SQLITE_BUSY.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to access sqlite pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate creates or updates the mirror tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Goal{},
		&models.DailySave{},
		&models.Transaction{},
	); err != nil {
		return fmt.Errorf("failed to migrate mirror tables: %w", err)
	}
	return nil
}

// GormStore is the MirrorStore backed by a SQL database.
type GormStore struct {
	DB *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{DB: db}
}

func (s *GormStore) GetGoal(ctx context.Context, goalID uint64) (*models.Goal, error) {
	var goal models.Goal
	if err := s.DB.WithContext(ctx).Where("id = ?", goalID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, err
	}
	return &goal, nil
}

func (s *GormStore) ListGoalsByOwner(ctx context.Context, owner string) ([]models.Goal, error) {
	var goals []models.Goal
	err := s.DB.WithContext(ctx).
		Where("owner = ?", strings.ToLower(owner)).
		Order("created_at DESC").
		Find(&goals).Error
	return goals, err
}

func (s *GormStore) ListGoalsByStatus(ctx context.Context, status models.GoalStatus) ([]models.Goal, error) {
	var goals []models.Goal
	err := s.DB.WithContext(ctx).
		Where("status = ?", status).
		Order("id ASC").
		Find(&goals).Error
	return goals, err
}

func (s *GormStore) UpsertGoalState(ctx context.Context, goalID uint64, update GoalStateUpdate) error {
	goal := models.Goal{
		ID:                 goalID,
		Owner:              strings.ToLower(update.Owner),
		Currency:           strings.ToLower(update.Currency),
		Mode:               update.Mode,
		TargetAmount:       models.NewAmount(update.TargetAmount),
		Duration:           update.Duration,
		DonationPercentage: update.DonationPercentage,
		DepositedAmount:    models.NewAmount(update.DepositedAmount),
		CurrentValue:       models.NewAmount(update.CurrentValue),
		YieldEarned:        models.NewAmount(update.YieldEarned),
		Status:             update.Status,
		LastDepositTime:    update.LastDepositTime,
	}

	columns := []string{"deposited_amount", "current_value", "yield_earned", "status", "updated_at"}
	if update.LastDepositTime != nil {
		columns = append(columns, "last_deposit_time")
	}

	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&goal).Error; err != nil {
		return fmt.Errorf("failed to upsert goal %d: %w", goalID, err)
	}
	return nil
}

func (s *GormStore) UpdateStreak(ctx context.Context, goalID uint64, update StreakUpdate) error {
	fields := map[string]interface{}{
		"current_streak":     update.CurrentStreak,
		"last_streak_update": update.UpdatedAt,
	}
	if update.LongestStreak != nil {
		fields["longest_streak"] = *update.LongestStreak
	}

	res := s.DB.WithContext(ctx).Model(&models.Goal{}).Where("id = ?", goalID).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update streak for goal %d: %w", goalID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrGoalNotFound
	}
	return nil
}

func (s *GormStore) UpsertDailySave(ctx context.Context, goalID uint64, date time.Time, amountDelta decimal.Decimal) error {
	save := models.DailySave{
		ID:     uuid.NewString(),
		GoalID: goalID,
		Date:   utils.StartOfDayUTC(date),
		Amount: models.NewAmount(amountDelta),
	}

	if s.DB.Dialector.Name() == "sqlite" {
		if err := s.addDailySave(ctx, &save); err != nil {
			return fmt.Errorf("failed to upsert daily save for goal %d: %w", goalID, err)
		}
		return nil
	}

	// Same-day deposits aggregate; the increment happens inside the statement so
	// concurrent handlers cannot lose an update.
	if err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "goal_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"amount":     gorm.Expr("daily_saves.amount + excluded.amount"),
			"updated_at": time.Now().UTC(),
		}),
	}).Create(&save).Error; err != nil {
		return fmt.Errorf("failed to upsert daily save for goal %d: %w", goalID, err)
	}
	return nil
}

// addDailySave is the sqlite path: amounts are TEXT there, and SQL addition
// would go through a lossy REAL, so the sum is computed with decimal.
func (s *GormStore) addDailySave(ctx context.Context, save *models.DailySave) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing models.DailySave
		err := tx.Where("goal_id = ? AND date = ?", save.GoalID, save.Date).Take(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(save).Error
		}
		if err != nil {
			return err
		}
		return tx.Model(&existing).Updates(map[string]interface{}{
			"amount":     models.NewAmount(existing.Amount.Add(save.Amount.Decimal)),
			"updated_at": time.Now().UTC(),
		}).Error
	})
}

func (s *GormStore) InsertTransactionIfAbsent(ctx context.Context, record *models.Transaction) (bool, error) {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.TransactionStatusCompleted
	}

	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoNothing: true,
	}).Create(record)
	if res.Error != nil {
		return false, fmt.Errorf("failed to insert transaction %s: %w", record.TxHash, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *GormStore) RecordDeposit(ctx context.Context, record *models.Transaction, day time.Time) (bool, error) {
	inserted := false
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txStore := &GormStore{DB: tx}
		ok, err := txStore.InsertTransactionIfAbsent(ctx, record)
		if err != nil || !ok {
			return err
		}
		if err := txStore.UpsertDailySave(ctx, record.GoalID, day, record.Amount.Decimal); err != nil {
			return err
		}
		inserted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return inserted, nil
}

func (s *GormStore) ListDailySaves(ctx context.Context, goalID uint64, since time.Time) ([]models.DailySave, error) {
	var saves []models.DailySave
	err := s.DB.WithContext(ctx).
		Where("goal_id = ? AND date >= ?", goalID, since.UTC()).
		Order("date DESC").
		Find(&saves).Error
	return saves, err
}
