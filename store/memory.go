package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"stacksave-sync/models"
	"stacksave-sync/utils"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type dailySaveKey struct {
	goalID uint64
	day    int64
}

// MemoryStore is a process-local MirrorStore. It keeps the same uniqueness
// guarantees as the SQL store and is used for local runs and tests.
type MemoryStore struct {
	mu           sync.Mutex
	goals        map[uint64]models.Goal
	dailySaves   map[dailySaveKey]models.DailySave
	transactions map[string]models.Transaction
	now          func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		goals:        make(map[uint64]models.Goal),
		dailySaves:   make(map[dailySaveKey]models.DailySave),
		transactions: make(map[string]models.Transaction),
		now:          time.Now,
	}
}

// PutGoal seeds a goal row as the HTTP layer would when a goal is created.
func (m *MemoryStore) PutGoal(goal models.Goal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	goal.Owner = strings.ToLower(goal.Owner)
	goal.Currency = strings.ToLower(goal.Currency)
	if goal.CreatedAt.IsZero() {
		goal.CreatedAt = m.now()
	}
	m.goals[goal.ID] = goal
}

// PutDailySave seeds a daily save row, replacing any row for the same day.
func (m *MemoryStore) PutDailySave(goalID uint64, date time.Time, amount decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	day := utils.StartOfDayUTC(date)
	m.dailySaves[dailySaveKey{goalID, day.Unix()}] = models.DailySave{
		ID:     uuid.NewString(),
		GoalID: goalID,
		Date:   day,
		Amount: models.NewAmount(amount),
	}
}

// Transactions returns every stored transaction for goalID.
func (m *MemoryStore) Transactions(goalID uint64) []models.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Transaction
	for _, tx := range m.transactions {
		if tx.GoalID == goalID {
			out = append(out, tx)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

func (m *MemoryStore) GetGoal(_ context.Context, goalID uint64) (*models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	goal, ok := m.goals[goalID]
	if !ok {
		return nil, ErrGoalNotFound
	}
	return &goal, nil
}

func (m *MemoryStore) ListGoalsByOwner(_ context.Context, owner string) ([]models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	owner = strings.ToLower(owner)
	var out []models.Goal
	for _, g := range m.goals {
		if g.Owner == owner {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) ListGoalsByStatus(_ context.Context, status models.GoalStatus) ([]models.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Goal
	for _, g := range m.goals {
		if g.Status == status {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) UpsertGoalState(_ context.Context, goalID uint64, update GoalStateUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	goal, ok := m.goals[goalID]
	if !ok {
		goal = models.Goal{
			ID:                 goalID,
			Owner:              strings.ToLower(update.Owner),
			Currency:           strings.ToLower(update.Currency),
			Mode:               update.Mode,
			TargetAmount:       models.NewAmount(update.TargetAmount),
			Duration:           update.Duration,
			DonationPercentage: update.DonationPercentage,
		}
		goal.CreatedAt = now
	}
	goal.DepositedAmount = models.NewAmount(update.DepositedAmount)
	goal.CurrentValue = models.NewAmount(update.CurrentValue)
	goal.YieldEarned = models.NewAmount(update.YieldEarned)
	goal.Status = update.Status
	if update.LastDepositTime != nil {
		t := *update.LastDepositTime
		goal.LastDepositTime = &t
	}
	goal.UpdatedAt = now
	m.goals[goalID] = goal
	return nil
}

func (m *MemoryStore) UpdateStreak(_ context.Context, goalID uint64, update StreakUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	goal, ok := m.goals[goalID]
	if !ok {
		return ErrGoalNotFound
	}
	goal.CurrentStreak = update.CurrentStreak
	if update.LongestStreak != nil {
		goal.LongestStreak = *update.LongestStreak
	}
	at := update.UpdatedAt
	goal.LastStreakUpdate = &at
	m.goals[goalID] = goal
	return nil
}

func (m *MemoryStore) UpsertDailySave(_ context.Context, goalID uint64, date time.Time, amountDelta decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addDailySaveLocked(goalID, date, amountDelta)
	return nil
}

func (m *MemoryStore) InsertTransactionIfAbsent(_ context.Context, record *models.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertTransactionLocked(record), nil
}

func (m *MemoryStore) RecordDeposit(_ context.Context, record *models.Transaction, day time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.insertTransactionLocked(record) {
		return false, nil
	}
	m.addDailySaveLocked(record.GoalID, day, record.Amount.Decimal)
	return true, nil
}

func (m *MemoryStore) addDailySaveLocked(goalID uint64, date time.Time, amountDelta decimal.Decimal) {
	day := utils.StartOfDayUTC(date)
	key := dailySaveKey{goalID, day.Unix()}
	now := m.now()
	save, ok := m.dailySaves[key]
	if !ok {
		save = models.DailySave{ID: uuid.NewString(), GoalID: goalID, Date: day, CreatedAt: now}
	}
	save.Amount = models.NewAmount(save.Amount.Add(amountDelta))
	save.UpdatedAt = now
	m.dailySaves[key] = save
}

func (m *MemoryStore) insertTransactionLocked(record *models.Transaction) bool {
	if _, exists := m.transactions[record.TxHash]; exists {
		return false
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Status == "" {
		record.Status = models.TransactionStatusCompleted
	}
	record.CreatedAt = m.now()
	m.transactions[record.TxHash] = *record
	return true
}

func (m *MemoryStore) ListDailySaves(_ context.Context, goalID uint64, since time.Time) ([]models.DailySave, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.DailySave
	for key, save := range m.dailySaves {
		if key.goalID == goalID && !save.Date.Before(since) {
			out = append(out, save)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}
