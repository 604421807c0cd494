// workers/subscription_supervisor.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"stacksave-sync/chain"

	"github.com/jonboulle/clockwork"
)

// ListenerState is the lifecycle state of the contract event subscription.
type ListenerState string

const (
	StateStopped      ListenerState = "stopped"
	StateListening    ListenerState = "listening"
	StateReconnecting ListenerState = "reconnecting"
)

const (
	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 5 * time.Second
)

var ErrSupervisorClosed = errors.New("subscription supervisor is not running")

// ListenerStatus is the health snapshot exposed to the rest of the service.
type ListenerStatus struct {
	State             ListenerState `json:"state"`
	ReconnectAttempts int           `json:"reconnect_attempts"`
}

// EventSink consumes decoded contract events.
type EventSink interface {
	HandleEvent(ctx context.Context, ev chain.Event)
}

type SupervisorConfig struct {
	MaxAttempts int           // reconnect attempts before giving up
	BaseDelay   time.Duration // attempt n waits BaseDelay*n
	Clock       clockwork.Clock
}

type commandKind int

const (
	commandStart commandKind = iota
	commandStop
)

type supervisorCommand struct {
	kind  commandKind
	reply chan error
}

type transportError struct {
	generation uint64
	err        error
}

// SubscriptionSupervisor keeps one subscription per tracked event alive and
// re-subscribes with linear backoff after transport failures.
//
// All lifecycle state is owned by the goroutine running Run; StartListening and
// StopListening are requests to it, and Status reads the last published snapshot.
type SubscriptionSupervisor struct {
	client      chain.Client
	sink        EventSink
	maxAttempts int
	baseDelay   time.Duration
	clock       clockwork.Clock

	commands      chan supervisorCommand
	transportErrs chan transportError
	done          chan struct{}
	status        atomic.Pointer[ListenerStatus]
}

func NewSubscriptionSupervisor(client chain.Client, sink EventSink, cfg SupervisorConfig) *SubscriptionSupervisor {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxReconnectAttempts
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	s := &SubscriptionSupervisor{
		client:        client,
		sink:          sink,
		maxAttempts:   cfg.MaxAttempts,
		baseDelay:     cfg.BaseDelay,
		clock:         cfg.Clock,
		commands:      make(chan supervisorCommand),
		transportErrs: make(chan transportError),
		done:          make(chan struct{}),
	}
	s.status.Store(&ListenerStatus{State: StateStopped})
	return s
}

// Status returns the current state and reconnect attempt count.
func (s *SubscriptionSupervisor) Status() ListenerStatus {
	return *s.status.Load()
}

// StartListening subscribes to every tracked event. It returns the
// registration error, if any, after the reconnect path has been entered.
func (s *SubscriptionSupervisor) StartListening(ctx context.Context) error {
	return s.send(ctx, commandStart)
}

// StopListening drops every subscription and cancels a pending reconnect.
func (s *SubscriptionSupervisor) StopListening(ctx context.Context) error {
	return s.send(ctx, commandStop)
}

func (s *SubscriptionSupervisor) send(ctx context.Context, kind commandKind) error {
	cmd := supervisorCommand{kind: kind, reply: make(chan error, 1)}
	select {
	case s.commands <- cmd:
	case <-s.done:
		return ErrSupervisorClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run owns the subscription lifecycle until ctx is cancelled.
func (s *SubscriptionSupervisor) Run(ctx context.Context) {
	loop := &supervisorLoop{SubscriptionSupervisor: s, state: StateStopped}
	defer close(s.done)

	log.Println("🎧 Subscription supervisor started")
	for {
		select {
		case cmd := <-s.commands:
			switch cmd.kind {
			case commandStart:
				cmd.reply <- loop.start(ctx)
			case commandStop:
				loop.stop()
				cmd.reply <- nil
			}

		case te := <-s.transportErrs:
			if te.generation != loop.generation || loop.state != StateListening {
				log.Printf("[LISTENER] Ignoring stale transport error: %v", te.err)
				continue
			}
			log.Printf("[LISTENER] ❌ Provider error: %v", te.err)
			loop.reconnect()

		case <-loop.backoffC:
			loop.backoff, loop.backoffC = nil, nil
			// StopListening may have run while the delay was pending.
			if loop.state != StateReconnecting {
				log.Printf("[LISTENER] Reconnect abandoned, listener is %s", loop.state)
				continue
			}
			if err := loop.start(ctx); err != nil {
				log.Printf("[LISTENER] ❌ Reconnect attempt %d failed: %v", loop.attempts, err)
			}

		case <-ctx.Done():
			loop.stopBackoff()
			loop.teardown()
			loop.state = StateStopped
			loop.publish()
			log.Println("🛑 Subscription supervisor stopped")
			return
		}
	}
}

// supervisorLoop is the state owned by the Run goroutine.
type supervisorLoop struct {
	*SubscriptionSupervisor

	state      ListenerState
	attempts   int
	generation uint64
	backoff    clockwork.Timer
	backoffC   <-chan time.Time
}

func (l *supervisorLoop) publish() {
	l.status.Store(&ListenerStatus{State: l.state, ReconnectAttempts: l.attempts})
}

func (l *supervisorLoop) start(ctx context.Context) error {
	if l.state == StateListening {
		log.Println("[LISTENER] ⚠️ Event listener already running")
		return nil
	}
	l.stopBackoff()

	l.generation++
	gen := l.generation
	l.client.OnTransportError(func(err error) { l.reportTransportError(gen, err) })

	for _, name := range chain.TrackedEvents {
		if err := l.client.Subscribe(ctx, name, l.sink.HandleEvent); err != nil {
			log.Printf("[LISTENER] ❌ Failed to start event listener: %v", err)
			l.reconnect()
			return fmt.Errorf("failed to subscribe to %s: %w", name, err)
		}
	}

	l.state = StateListening
	l.attempts = 0
	l.publish()
	log.Printf("[LISTENER] ✅ Event listener started (%d events)", len(chain.TrackedEvents))
	return nil
}

func (l *supervisorLoop) stop() {
	if l.state == StateStopped {
		log.Println("[LISTENER] ⚠️ Event listener not running")
		return
	}
	l.stopBackoff()
	l.teardown()
	l.state = StateStopped
	l.publish()
	log.Println("[LISTENER] 🛑 Event listener stopped")
}

// reconnect tears the subscriptions down and schedules the next start, or
// gives up once the attempt budget is spent.
func (l *supervisorLoop) reconnect() {
	l.teardown()

	if l.attempts >= l.maxAttempts {
		l.stopBackoff()
		l.state = StateStopped
		l.publish()
		log.Printf("[LISTENER] ❌ Max reconnection attempts (%d) reached. Stopping listener.", l.maxAttempts)
		return
	}

	l.attempts++
	delay := l.baseDelay * time.Duration(l.attempts)
	l.stopBackoff()
	l.backoff = l.clock.NewTimer(delay)
	l.backoffC = l.backoff.Chan()
	l.state = StateReconnecting
	l.publish()
	log.Printf("[LISTENER] 🔄 Attempting to reconnect (%d/%d) in %s...", l.attempts, l.maxAttempts, delay)
}

func (l *supervisorLoop) teardown() {
	for _, name := range chain.TrackedEvents {
		l.client.Unsubscribe(name)
	}
	l.client.ClearTransportErrorHandler()
}

func (l *supervisorLoop) stopBackoff() {
	if l.backoff != nil {
		l.backoff.Stop()
	}
	l.backoff, l.backoffC = nil, nil
}

// reportTransportError runs on the chain client's goroutine.
func (s *SubscriptionSupervisor) reportTransportError(generation uint64, err error) {
	select {
	case s.transportErrs <- transportError{generation: generation, err: err}:
	case <-s.done:
	}
}
