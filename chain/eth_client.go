package chain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// rawGoal matches the tuple layout of getGoalDetails' first output.
type rawGoal struct {
	Id                 *big.Int
	Owner              common.Address
	Currency           common.Address
	Mode               uint8
	TargetAmount       *big.Int
	Duration           *big.Int
	DonationPercentage *big.Int
	DepositedAmount    *big.Int
	CreatedAt          *big.Int
	LastDepositTime    *big.Int
	Status             uint8
}

func parseStackSaveABI() (abi.ABI, error) {
	return abi.JSON(strings.NewReader(stackSaveABI))
}

type logSubscription struct {
	sub    ethereum.Subscription
	cancel context.CancelFunc
}

// EthClient talks to the StackSave contract over a websocket JSON-RPC endpoint.
type EthClient struct {
	rpc      *ethclient.Client
	contract common.Address
	abi      abi.ABI

	baseCtx context.Context
	cancel  context.CancelFunc

	mu      sync.Mutex
	subs    map[EventName]*logSubscription
	onError func(error)
}

// Dial connects to wsURL. Log subscriptions require a websocket (or IPC) endpoint.
func Dial(ctx context.Context, wsURL, contractAddress string) (*EthClient, error) {
	if !common.IsHexAddress(contractAddress) {
		return nil, fmt.Errorf("invalid contract address %q", contractAddress)
	}
	parsed, err := parseStackSaveABI()
	if err != nil {
		return nil, fmt.Errorf("failed to parse contract ABI: %w", err)
	}
	rpc, err := ethclient.DialContext(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	return &EthClient{
		rpc:      rpc,
		contract: common.HexToAddress(contractAddress),
		abi:      parsed,
		baseCtx:  baseCtx,
		cancel:   cancel,
		subs:     make(map[EventName]*logSubscription),
	}, nil
}

func (c *EthClient) Subscribe(ctx context.Context, name EventName, handler EventHandler) error {
	event, ok := c.abi.Events[string(name)]
	if !ok {
		return fmt.Errorf("unknown contract event %q", name)
	}
	c.Unsubscribe(name)

	logs := make(chan types.Log, 128)
	query := ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics:    [][]common.Hash{{event.ID}},
	}
	sub, err := c.rpc.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	subCtx, cancel := context.WithCancel(c.baseCtx)
	c.mu.Lock()
	c.subs[name] = &logSubscription{sub: sub, cancel: cancel}
	c.mu.Unlock()

	go c.pump(subCtx, name, sub, logs, handler)
	return nil
}

func (c *EthClient) pump(ctx context.Context, name EventName, sub ethereum.Subscription, logs <-chan types.Log, handler EventHandler) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-sub.Err():
			if !ok {
				return // unsubscribed
			}
			if err != nil {
				c.reportTransportError(fmt.Errorf("%s subscription failed: %w", name, err))
			}
			return
		case lg := <-logs:
			if lg.Removed {
				log.Printf("[CHAIN] ⚠️ Ignoring removed %s log in tx %s (reorg)", name, lg.TxHash.Hex())
				continue
			}
			ev, err := decodeLog(c.abi, name, lg)
			if err != nil {
				log.Printf("[CHAIN] ❌ Failed to decode %s log in tx %s: %v", name, lg.TxHash.Hex(), err)
				continue
			}
			go handler(c.baseCtx, ev)
		}
	}
}

func (c *EthClient) Unsubscribe(name EventName) {
	c.mu.Lock()
	s := c.subs[name]
	delete(c.subs, name)
	c.mu.Unlock()

	if s != nil {
		s.cancel()
		s.sub.Unsubscribe()
	}
}

func (c *EthClient) OnTransportError(handler func(error)) {
	c.mu.Lock()
	c.onError = handler
	c.mu.Unlock()
}

func (c *EthClient) ClearTransportErrorHandler() {
	c.OnTransportError(nil)
}

func (c *EthClient) reportTransportError(err error) {
	c.mu.Lock()
	handler := c.onError
	c.mu.Unlock()

	if handler == nil {
		log.Printf("[CHAIN] ⚠️ Transport error with no handler registered: %v", err)
		return
	}
	handler(err)
}

func (c *EthClient) ReadGoalState(ctx context.Context, goalID uint64) (*GoalState, error) {
	data, err := c.abi.Pack("getGoalDetails", new(big.Int).SetUint64(goalID))
	if err != nil {
		return nil, fmt.Errorf("failed to encode getGoalDetails(%d): %w", goalID, err)
	}
	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("getGoalDetails(%d) call failed: %w", goalID, err)
	}
	state, err := decodeGoalDetails(c.abi, out)
	if err != nil {
		return nil, fmt.Errorf("getGoalDetails(%d): %w", goalID, err)
	}
	return state, nil
}

// Close drops every subscription and the RPC connection.
func (c *EthClient) Close() {
	for _, name := range TrackedEvents {
		c.Unsubscribe(name)
	}
	c.cancel()
	c.rpc.Close()
}

func decodeGoalDetails(parsed abi.ABI, out []byte) (*GoalState, error) {
	if len(out) == 0 {
		return nil, errors.New("empty response (is the contract deployed at this address?)")
	}
	values, err := parsed.Unpack("getGoalDetails", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected output count %d", len(values))
	}

	raw := *abi.ConvertType(values[0], new(rawGoal)).(*rawGoal)
	currentValue, _ := values[1].(*big.Int)
	yieldEarned, _ := values[2].(*big.Int)

	return &GoalState{
		Goal: Goal{
			ID:                 uint64OrZero(raw.Id),
			Owner:              raw.Owner,
			Currency:           raw.Currency,
			Mode:               raw.Mode,
			TargetAmount:       raw.TargetAmount,
			Duration:           uint64OrZero(raw.Duration),
			DonationPercentage: uint16(uint64OrZero(raw.DonationPercentage)),
			DepositedAmount:    raw.DepositedAmount,
			CreatedAt:          uint64OrZero(raw.CreatedAt),
			LastDepositTime:    uint64OrZero(raw.LastDepositTime),
			Status:             raw.Status,
		},
		CurrentValue: currentValue,
		YieldEarned:  yieldEarned,
	}, nil
}

func decodeLog(parsed abi.ABI, name EventName, lg types.Log) (Event, error) {
	if len(lg.Topics) < 3 {
		return Event{}, fmt.Errorf("expected 3 topics, got %d", len(lg.Topics))
	}
	values, err := parsed.Unpack(string(name), lg.Data)
	if err != nil {
		return Event{}, fmt.Errorf("failed to unpack data: %w", err)
	}

	ev := Event{
		Name:        name,
		GoalID:      new(big.Int).SetBytes(lg.Topics[1].Bytes()).Uint64(),
		User:        common.BytesToAddress(lg.Topics[2].Bytes()),
		TxHash:      lg.TxHash,
		BlockNumber: lg.BlockNumber,
	}

	switch name {
	case EventDeposited:
		if len(values) != 2 {
			return Event{}, fmt.Errorf("expected 2 values, got %d", len(values))
		}
		ev.Amount = bigAt(values, 0)
		ev.VaultShares = bigAt(values, 1)
	case EventWithdrawnCompleted:
		if len(values) != 4 {
			return Event{}, fmt.Errorf("expected 4 values, got %d", len(values))
		}
		ev.Principal = bigAt(values, 0)
		ev.TotalYield = bigAt(values, 1)
		ev.UserYield = bigAt(values, 2)
		ev.DonatedYield = bigAt(values, 3)
	case EventWithdrawnEarly:
		if len(values) != 4 {
			return Event{}, fmt.Errorf("expected 4 values, got %d", len(values))
		}
		ev.Amount = bigAt(values, 0)
		ev.Penalty = bigAt(values, 1)
		ev.PenaltyToRewards = bigAt(values, 2)
		ev.PenaltyToTreasury = bigAt(values, 3)
	default:
		return Event{}, fmt.Errorf("unsupported event %q", name)
	}
	return ev, nil
}

func bigAt(values []interface{}, i int) *big.Int {
	if v, ok := values[i].(*big.Int); ok {
		return v
	}
	return new(big.Int)
}

func uint64OrZero(v *big.Int) uint64 {
	if v == nil || !v.IsUint64() {
		return 0
	}
	return v.Uint64()
}
