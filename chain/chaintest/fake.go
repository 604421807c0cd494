// Package chaintest provides an in-process chain.Client for tests.
package chaintest

import (
	"context"
	"fmt"
	"sync"

	"stacksave-sync/chain"
)

// FakeClient is a scriptable chain.Client. Handlers are only invoked by Emit
// and EmitTransportError, synchronously on the caller's goroutine.
type FakeClient struct {
	mu             sync.Mutex
	handlers       map[chain.EventName]chain.EventHandler
	errHandler     func(error)
	subscribeErr   error
	subscribeCalls int
	states         map[uint64]*chain.GoalState
	readErrs       map[uint64]error
	reads          int
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		handlers: make(map[chain.EventName]chain.EventHandler),
		states:   make(map[uint64]*chain.GoalState),
		readErrs: make(map[uint64]error),
	}
}

// SetGoalState sets what ReadGoalState returns for goalID.
func (f *FakeClient) SetGoalState(goalID uint64, state chain.GoalState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[goalID] = &state
}

// FailReads makes ReadGoalState(goalID) fail with err; nil clears it.
func (f *FakeClient) FailReads(goalID uint64, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.readErrs, goalID)
		return
	}
	f.readErrs[goalID] = err
}

// FailSubscribe makes every Subscribe call fail with err; nil clears it.
func (f *FakeClient) FailSubscribe(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeErr = err
}

func (f *FakeClient) SubscribeCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCalls
}

func (f *FakeClient) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *FakeClient) Subscribed(name chain.EventName) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.handlers[name]
	return ok
}

func (f *FakeClient) SubscriptionCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

func (f *FakeClient) HasTransportErrorHandler() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.errHandler != nil
}

// Emit delivers ev to the subscribed handler and reports whether one was registered.
func (f *FakeClient) Emit(ctx context.Context, ev chain.Event) bool {
	f.mu.Lock()
	handler := f.handlers[ev.Name]
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(ctx, ev)
	return true
}

// EmitTransportError calls the registered transport error handler, if any.
func (f *FakeClient) EmitTransportError(err error) bool {
	f.mu.Lock()
	handler := f.errHandler
	f.mu.Unlock()
	if handler == nil {
		return false
	}
	handler(err)
	return true
}

func (f *FakeClient) Subscribe(_ context.Context, name chain.EventName, handler chain.EventHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribeCalls++
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.handlers[name] = handler
	return nil
}

func (f *FakeClient) Unsubscribe(name chain.EventName) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.handlers, name)
}

func (f *FakeClient) OnTransportError(handler func(error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errHandler = handler
}

func (f *FakeClient) ClearTransportErrorHandler() {
	f.OnTransportError(nil)
}

func (f *FakeClient) ReadGoalState(_ context.Context, goalID uint64) (*chain.GoalState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := f.readErrs[goalID]; err != nil {
		return nil, err
	}
	state, ok := f.states[goalID]
	if !ok {
		return nil, fmt.Errorf("goal %d does not exist on chain", goalID)
	}
	copied := *state
	return &copied, nil
}
