package workers

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"stacksave-sync/chain"
	"stacksave-sync/chain/chaintest"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	mu     sync.Mutex
	events []chain.Event
}

func (r *recordingSink) HandleEvent(_ context.Context, ev chain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingSink) Events() []chain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chain.Event(nil), r.events...)
}

type supervisorFixture struct {
	sup    *SubscriptionSupervisor
	client *chaintest.FakeClient
	sink   *recordingSink
	clock  *clockwork.FakeClock
	ctx    context.Context
}

func newSupervisorFixture(t *testing.T) *supervisorFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	f := &supervisorFixture{
		client: chaintest.NewFakeClient(),
		sink:   &recordingSink{},
		clock:  clockwork.NewFakeClock(),
		ctx:    ctx,
	}
	f.sup = NewSubscriptionSupervisor(f.client, f.sink, SupervisorConfig{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Second,
		Clock:       f.clock,
	})

	go f.sup.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-f.sup.done
	})
	return f
}

func (f *supervisorFixture) waitForState(t *testing.T, state ListenerState, attempts int) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := f.sup.Status()
		return st.State == state && st.ReconnectAttempts == attempts
	}, time.Second, 5*time.Millisecond, "want %s/%d, have %+v", state, attempts, f.sup.Status())
}

// waitForBackoff blocks until the supervisor has armed its reconnect timer.
func (f *supervisorFixture) waitForBackoff(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(f.ctx, time.Second)
	defer cancel()
	require.NoError(t, f.clock.BlockUntilContext(ctx, 1))
}

func TestSupervisor_InitialStatusIsStopped(t *testing.T) {
	f := newSupervisorFixture(t)
	assert.Equal(t, ListenerStatus{State: StateStopped}, f.sup.Status())
}

func TestSupervisor_StartRegistersEveryEvent(t *testing.T) {
	f := newSupervisorFixture(t)

	require.NoError(t, f.sup.StartListening(f.ctx))

	assert.Equal(t, ListenerStatus{State: StateListening}, f.sup.Status())
	for _, name := range chain.TrackedEvents {
		assert.True(t, f.client.Subscribed(name), "%s not subscribed", name)
	}
	assert.Equal(t, 3, f.client.SubscriptionCount())
	assert.True(t, f.client.HasTransportErrorHandler())
}

func TestSupervisor_StartWhileListeningIsNoop(t *testing.T) {
	f := newSupervisorFixture(t)

	require.NoError(t, f.sup.StartListening(f.ctx))
	require.NoError(t, f.sup.StartListening(f.ctx))

	assert.Equal(t, 3, f.client.SubscribeCalls())
	assert.Equal(t, StateListening, f.sup.Status().State)
}

func TestSupervisor_EventsReachSink(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))

	delivered := f.client.Emit(f.ctx, chain.Event{Name: chain.EventDeposited, GoalID: 7, Amount: big.NewInt(10)})
	require.True(t, delivered)

	events := f.sink.Events()
	require.Len(t, events, 1)
	assert.Equal(t, uint64(7), events[0].GoalID)
}

func TestSupervisor_StopUnregistersEverything(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))

	require.NoError(t, f.sup.StopListening(f.ctx))

	assert.Equal(t, StateStopped, f.sup.Status().State)
	assert.Zero(t, f.client.SubscriptionCount())
	assert.False(t, f.client.HasTransportErrorHandler())
	assert.False(t, f.client.Emit(f.ctx, chain.Event{Name: chain.EventDeposited, GoalID: 1}))
}

func TestSupervisor_StopWhileStoppedIsNoop(t *testing.T) {
	f := newSupervisorFixture(t)

	require.NoError(t, f.sup.StopListening(f.ctx))
	assert.Equal(t, ListenerStatus{State: StateStopped}, f.sup.Status())
	assert.Zero(t, f.client.SubscribeCalls())
}

func TestSupervisor_TransportErrorReconnectsAfterDelay(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))

	require.True(t, f.client.EmitTransportError(errors.New("websocket closed")))
	f.waitForBackoff(t)
	f.waitForState(t, StateReconnecting, 1)
	assert.Zero(t, f.client.SubscriptionCount())

	f.clock.Advance(4 * time.Second)
	assert.Equal(t, StateReconnecting, f.sup.Status().State)
	assert.Equal(t, 3, f.client.SubscribeCalls())

	f.clock.Advance(time.Second)
	f.waitForState(t, StateListening, 0)
	assert.Equal(t, 3, f.client.SubscriptionCount())
	assert.Equal(t, 6, f.client.SubscribeCalls())
}

func TestSupervisor_GivesUpAfterMaxAttempts(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))
	begin := f.clock.Now()

	f.client.FailSubscribe(errors.New("provider unavailable"))
	require.True(t, f.client.EmitTransportError(errors.New("websocket closed")))

	for attempt := 1; attempt <= 5; attempt++ {
		f.waitForBackoff(t)
		f.clock.Advance(time.Duration(attempt) * 5 * time.Second)
	}

	f.waitForState(t, StateStopped, 5)
	assert.Equal(t, 75*time.Second, f.clock.Since(begin))
	assert.Zero(t, f.client.SubscriptionCount())

	calls := f.client.SubscribeCalls()
	f.clock.Advance(time.Hour)
	assert.Equal(t, calls, f.client.SubscribeCalls())
	assert.Equal(t, StateStopped, f.sup.Status().State)
}

func TestSupervisor_StopDuringBackoffPreventsRestart(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))

	require.True(t, f.client.EmitTransportError(errors.New("websocket closed")))
	f.waitForBackoff(t)

	require.NoError(t, f.sup.StopListening(f.ctx))
	assert.Equal(t, ListenerStatus{State: StateStopped, ReconnectAttempts: 1}, f.sup.Status())

	f.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, StateStopped, f.sup.Status().State)
	assert.Equal(t, 3, f.client.SubscribeCalls())
	assert.Zero(t, f.client.SubscriptionCount())
}

func TestSupervisor_InitialSubscribeFailureEntersReconnect(t *testing.T) {
	f := newSupervisorFixture(t)
	f.client.FailSubscribe(errors.New("dial refused"))

	err := f.sup.StartListening(f.ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dial refused")
	assert.Equal(t, ListenerStatus{State: StateReconnecting, ReconnectAttempts: 1}, f.sup.Status())
	assert.Zero(t, f.client.SubscriptionCount())
	assert.False(t, f.client.HasTransportErrorHandler())

	f.client.FailSubscribe(nil)
	f.waitForBackoff(t)
	f.clock.Advance(5 * time.Second)
	f.waitForState(t, StateListening, 0)
}

func TestSupervisor_StartDuringBackoffResetsAttempts(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))
	require.True(t, f.client.EmitTransportError(errors.New("websocket closed")))
	f.waitForBackoff(t)

	require.NoError(t, f.sup.StartListening(f.ctx))
	assert.Equal(t, ListenerStatus{State: StateListening}, f.sup.Status())

	// The cancelled timer must not trigger a second start.
	calls := f.client.SubscribeCalls()
	f.clock.Advance(time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, calls, f.client.SubscribeCalls())
}

func TestSupervisor_IgnoresStaleTransportErrors(t *testing.T) {
	f := newSupervisorFixture(t)
	require.NoError(t, f.sup.StartListening(f.ctx))

	f.sup.reportTransportError(0, errors.New("error from a torn-down subscription"))

	// A command round-trip guarantees the error above was processed.
	require.NoError(t, f.sup.StartListening(f.ctx))
	assert.Equal(t, ListenerStatus{State: StateListening}, f.sup.Status())
	assert.Equal(t, 3, f.client.SubscriptionCount())
}

func TestSupervisor_CommandsFailAfterShutdown(t *testing.T) {
	client := chaintest.NewFakeClient()
	sup := NewSubscriptionSupervisor(client, &recordingSink{}, SupervisorConfig{Clock: clockwork.NewFakeClock()})

	ctx, cancel := context.WithCancel(context.Background())
	go sup.Run(ctx)
	require.NoError(t, sup.StartListening(ctx))

	cancel()
	<-sup.done

	assert.Equal(t, StateStopped, sup.Status().State)
	assert.Zero(t, client.SubscriptionCount())
	assert.ErrorIs(t, sup.StartListening(context.Background()), ErrSupervisorClosed)
}

func TestNewSubscriptionSupervisor_Defaults(t *testing.T) {
	sup := NewSubscriptionSupervisor(chaintest.NewFakeClient(), &recordingSink{}, SupervisorConfig{})
	assert.Equal(t, DefaultMaxReconnectAttempts, sup.maxAttempts)
	assert.Equal(t, DefaultReconnectBaseDelay, sup.baseDelay)
	assert.NotNil(t, sup.clock)
}
