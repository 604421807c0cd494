package services

import (
	"math/big"
	"time"

	"stacksave-sync/chain"

	"github.com/ethereum/go-ethereum/common"
)

var (
	testNow      = time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	testOwner    = common.HexToAddress("0x9A8b7C6d5E4f30211203f4E5d6C7b8A9f0E1d2C3")
	testCurrency = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
)

func fixedClock() time.Time { return testNow }

func goalState(goalID uint64, deposited, current, yield int64, status uint8) chain.GoalState {
	return chain.GoalState{
		Goal: chain.Goal{
			ID:                 goalID,
			Owner:              testOwner,
			Currency:           testCurrency,
			Mode:               0,
			TargetAmount:       big.NewInt(1000),
			Duration:           90 * 24 * 60 * 60,
			DonationPercentage: 1000,
			DepositedAmount:    big.NewInt(deposited),
			Status:             status,
		},
		CurrentValue: big.NewInt(current),
		YieldEarned:  big.NewInt(yield),
	}
}

func depositEvent(goalID uint64, amount int64, tx string) chain.Event {
	return chain.Event{
		Name:        chain.EventDeposited,
		GoalID:      goalID,
		User:        testOwner,
		Amount:      big.NewInt(amount),
		VaultShares: big.NewInt(amount),
		TxHash:      common.HexToHash(tx),
		BlockNumber: 100,
	}
}
