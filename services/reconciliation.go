package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"stacksave-sync/chain"
	"stacksave-sync/models"
	"stacksave-sync/store"
	"stacksave-sync/utils"
)

// ReconciliationEngine applies contract events to the mirror. The numeric goal
// fields always come from a fresh chain read, never from the event payload, so
// duplicate or out-of-order events converge on the same row.
type ReconciliationEngine struct {
	Chain   chain.GoalReader
	Store   store.MirrorStore
	Streaks *StreakCalculator
	Now     func() time.Time
}

func NewReconciliationEngine(reader chain.GoalReader, mirror store.MirrorStore, streaks *StreakCalculator) *ReconciliationEngine {
	return &ReconciliationEngine{
		Chain:   reader,
		Store:   mirror,
		Streaks: streaks,
		Now:     time.Now,
	}
}

// HandleEvent is the subscription entry point. Failures are logged and the
// event is dropped; the next event for the goal or a manual sync repairs it.
func (e *ReconciliationEngine) HandleEvent(ctx context.Context, ev chain.Event) {
	log.Printf("[RECONCILE] 🔔 %s goal=%d user=%s amount=%s block=%d tx=%s",
		ev.Name, ev.GoalID, ev.User.Hex(), ev.RecordedAmount(), ev.BlockNumber, ev.TxHash.Hex())

	if err := e.Reconcile(ctx, ev); err != nil {
		log.Printf("[RECONCILE] ❌ Dropped %s for goal %d (tx %s): %v", ev.Name, ev.GoalID, ev.TxHash.Hex(), err)
		return
	}
	log.Printf("[RECONCILE] ✅ Mirror synced for goal %d after %s", ev.GoalID, ev.Name)
}

// Reconcile runs the full pipeline for one event and returns the first error.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, ev chain.Event) error {
	txType, err := transactionType(ev.Name)
	if err != nil {
		return err
	}

	state, err := e.Chain.ReadGoalState(ctx, ev.GoalID)
	if err != nil {
		return fmt.Errorf("chain read failed: %w", err)
	}

	now := e.Now().UTC()
	update := goalStateUpdate(state)
	if ev.Name == chain.EventDeposited {
		update.LastDepositTime = &now
	}
	if err := e.Store.UpsertGoalState(ctx, ev.GoalID, update); err != nil {
		return err
	}

	record := &models.Transaction{
		GoalID:      ev.GoalID,
		TxHash:      strings.ToLower(ev.TxHash.Hex()),
		Type:        txType,
		Amount:      models.NewAmount(utils.DecimalFromBig(ev.RecordedAmount())),
		BlockNumber: ev.BlockNumber,
		Timestamp:   now,
		Status:      models.TransactionStatusCompleted,
	}

	if ev.Name != chain.EventDeposited {
		inserted, err := e.Store.InsertTransactionIfAbsent(ctx, record)
		if err != nil {
			return err
		}
		if !inserted {
			log.Printf("[RECONCILE] Transaction %s already recorded, skipping audit row", ev.TxHash.Hex())
		}
		return nil
	}

	// The audit row and the daily total are written together, so a redelivered
	// deposit is neither counted twice nor lost after a failed write.
	inserted, err := e.Store.RecordDeposit(ctx, record, now)
	if err != nil {
		return err
	}
	if !inserted {
		log.Printf("[RECONCILE] Deposit %s already recorded, daily save unchanged", ev.TxHash.Hex())
	}

	if e.Streaks != nil {
		if err := e.Streaks.Update(ctx, ev.GoalID); err != nil {
			return fmt.Errorf("streak update failed: %w", err)
		}
	}
	return nil
}

func transactionType(name chain.EventName) (models.TransactionType, error) {
	switch name {
	case chain.EventDeposited:
		return models.TransactionTypeDeposit, nil
	case chain.EventWithdrawnCompleted:
		return models.TransactionTypeWithdraw, nil
	case chain.EventWithdrawnEarly:
		return models.TransactionTypeWithdrawEarly, nil
	default:
		return "", fmt.Errorf("unsupported event %q", name)
	}
}

// goalStateUpdate maps an authoritative read onto the mirror's columns.
func goalStateUpdate(state *chain.GoalState) store.GoalStateUpdate {
	g := state.Goal
	return store.GoalStateUpdate{
		Owner:              strings.ToLower(g.Owner.Hex()),
		Currency:           strings.ToLower(g.Currency.Hex()),
		Mode:               models.GoalMode(g.Mode),
		TargetAmount:       utils.DecimalFromBig(g.TargetAmount),
		Duration:           g.Duration,
		DonationPercentage: g.DonationPercentage,
		DepositedAmount:    utils.DecimalFromBig(g.DepositedAmount),
		CurrentValue:       utils.DecimalFromBig(state.CurrentValue),
		YieldEarned:        utils.DecimalFromBig(state.YieldEarned),
		Status:             models.GoalStatus(g.Status),
	}
}
