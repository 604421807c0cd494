package services

import (
	"context"
	"fmt"
	"log"
	"strings"

	"stacksave-sync/chain"
	"stacksave-sync/store"
)

// ManualSyncService re-reads goals from the chain on demand. It only touches
// goal state; transactions and daily saves stay as the event pipeline left them.
type ManualSyncService struct {
	Chain chain.GoalReader
	Store store.MirrorStore
}

func NewManualSyncService(reader chain.GoalReader, mirror store.MirrorStore) *ManualSyncService {
	return &ManualSyncService{Chain: reader, Store: mirror}
}

// SyncGoal overwrites the mirrored state of goalID with a fresh chain read.
func (s *ManualSyncService) SyncGoal(ctx context.Context, goalID uint64) error {
	log.Printf("[SYNC] 🔄 Manually syncing goal %d...", goalID)

	state, err := s.Chain.ReadGoalState(ctx, goalID)
	if err != nil {
		log.Printf("[SYNC] ❌ Error syncing goal %d: %v", goalID, err)
		return fmt.Errorf("failed to read goal %d from chain: %w", goalID, err)
	}
	if err := s.Store.UpsertGoalState(ctx, goalID, goalStateUpdate(state)); err != nil {
		log.Printf("[SYNC] ❌ Error syncing goal %d: %v", goalID, err)
		return err
	}

	log.Printf("[SYNC] ✅ Goal %d synced successfully", goalID)
	return nil
}

// SyncUserGoals syncs every mirrored goal of owner in order and stops at the
// first failure. Goals synced before the failure keep their new state.
func (s *ManualSyncService) SyncUserGoals(ctx context.Context, owner string) (int, error) {
	owner = strings.ToLower(owner)
	log.Printf("[SYNC] 🔄 Syncing all goals for user %s...", owner)

	goals, err := s.Store.ListGoalsByOwner(ctx, owner)
	if err != nil {
		return 0, fmt.Errorf("failed to list goals for %s: %w", owner, err)
	}

	synced := 0
	for _, goal := range goals {
		if err := s.SyncGoal(ctx, goal.ID); err != nil {
			log.Printf("[SYNC] ❌ Aborting user sync for %s after %d/%d goals", owner, synced, len(goals))
			return synced, err
		}
		synced++
	}

	log.Printf("[SYNC] ✅ All %d goals synced for user %s", synced, owner)
	return synced, nil
}
