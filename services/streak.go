package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"stacksave-sync/models"
	"stacksave-sync/store"
	"stacksave-sync/utils"
)

// CurrentStreak counts consecutive days ending today that have a save.
// saves must be ordered by date, most recent first; row i has to fall on
// today minus i days, so a missing save for today yields 0.
func CurrentStreak(saves []models.DailySave, today time.Time) int {
	streak := 0
	for i, save := range saves {
		if !utils.StartOfDayUTC(save.Date).Equal(utils.DaysBefore(today, i)) {
			break
		}
		streak++
	}
	return streak
}

// StreakCalculator derives current and longest daily-save streaks of a goal.
type StreakCalculator struct {
	Store store.MirrorStore
	Now   func() time.Time
}

func NewStreakCalculator(mirror store.MirrorStore) *StreakCalculator {
	return &StreakCalculator{Store: mirror, Now: time.Now}
}

// Update recomputes and persists the streaks of goalID. A goal that is not in
// the mirror is skipped.
func (c *StreakCalculator) Update(ctx context.Context, goalID uint64) error {
	goal, err := c.Store.GetGoal(ctx, goalID)
	if errors.Is(err, store.ErrGoalNotFound) {
		log.Printf("[STREAK] ⚠️ Goal %d not in mirror, skipping streak update", goalID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load goal %d: %w", goalID, err)
	}

	saves, err := c.Store.ListDailySaves(ctx, goalID, time.Time{})
	if err != nil {
		return fmt.Errorf("failed to list daily saves for goal %d: %w", goalID, err)
	}

	now := c.Now().UTC()
	update := store.StreakUpdate{UpdatedAt: now}
	longest := goal.LongestStreak
	if len(saves) > 0 {
		update.CurrentStreak = CurrentStreak(saves, now)
		if update.CurrentStreak > longest {
			longest = update.CurrentStreak
		}
		update.LongestStreak = &longest
	}

	if err := c.Store.UpdateStreak(ctx, goalID, update); err != nil {
		return err
	}
	log.Printf("[STREAK] Goal %d: current=%d longest=%d", goalID, update.CurrentStreak, longest)
	return nil
}
