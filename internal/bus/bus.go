package bus

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/Joona-t/lovespark-sponsor-skip/internal/logger"
)

// Handler processes one request payload and produces a response payload.
// Handlers run on the dispatcher goroutine, one invocation at a time, to
// completion before the next message is dispatched. Background state touched
// only from handlers therefore needs no further locking.
type Handler func(payload interface{}) (interface{}, error)

type result struct {
	payload interface{}
	err     error
}

type envelope struct {
	id      uuid.UUID
	action  Action
	payload interface{}
	// reply is nil for fire-and-forget notifications.
	reply chan result
}

// Bus is the asynchronous message channel between the background context and
// the foreground playback monitors. Requests are correlated by the caller
// awaiting its own reply; there is no ordering guarantee between distinct
// requests issued in quick succession.
type Bus struct {
	logger   logger.Logger
	handlers map[Action]Handler
	requests chan *envelope

	subsMutex sync.Mutex
	subs      map[int]chan Notification
	nextSubID int

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a bus. Register all handlers before calling Start.
func New(log logger.Logger) *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		logger:   log,
		handlers: make(map[Action]Handler),
		requests: make(chan *envelope, 64),
		subs:     make(map[int]chan Notification),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Handle registers the handler for an action.
func (b *Bus) Handle(action Action, h Handler) {
	b.handlers[action] = h
}

// Start begins the dispatcher goroutine.
func (b *Bus) Start() {
	go b.dispatchLoop()
}

// Stop shuts the dispatcher down. In-flight callers receive an error.
func (b *Bus) Stop() {
	b.cancel()
	<-b.done
}

func (b *Bus) dispatchLoop() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case env := <-b.requests:
			b.dispatch(env)
		}
	}
}

func (b *Bus) dispatch(env *envelope) {
	handler, found := b.handlers[env.action]
	if !found {
		b.logger.Warnf("No handler for action %q (message %s)", env.action, env.id)
		if env.reply != nil {
			env.reply <- result{err: fmt.Errorf("unknown action %q", env.action)}
		}
		return
	}

	payload, err := handler(env.payload)
	if err != nil {
		b.logger.Errorf("Handler for %q failed (message %s): %v", env.action, env.id, err)
	}
	if env.reply != nil {
		env.reply <- result{payload: payload, err: err}
	}
}

// Request sends a message and waits for its response. It returns an error
// when the bus is stopped, the context is cancelled, or the handler fails.
func (b *Bus) Request(ctx context.Context, action Action, payload interface{}) (interface{}, error) {
	env := &envelope{
		id:      uuid.New(),
		action:  action,
		payload: payload,
		reply:   make(chan result, 1),
	}

	select {
	case b.requests <- env:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.ctx.Done():
		return nil, fmt.Errorf("bus stopped")
	}

	select {
	case res := <-env.reply:
		return res.payload, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-b.ctx.Done():
		return nil, fmt.Errorf("bus stopped")
	}
}

// Notify sends a message without waiting for a response. It is dropped when
// the bus is stopped or its queue is full; notification senders tolerate loss.
func (b *Bus) Notify(action Action, payload interface{}) {
	env := &envelope{id: uuid.New(), action: action, payload: payload}
	select {
	case b.requests <- env:
	case <-b.ctx.Done():
	default:
		b.logger.Warnf("Dropping %q notification: bus queue full", action)
	}
}

// Subscribe registers a broadcast listener. The returned cancel function
// removes the subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Notification, func()) {
	b.subsMutex.Lock()
	defer b.subsMutex.Unlock()

	id := b.nextSubID
	b.nextSubID++
	ch := make(chan Notification, 8)
	b.subs[id] = ch

	cancel := func() {
		b.subsMutex.Lock()
		defer b.subsMutex.Unlock()
		if sub, found := b.subs[id]; found {
			delete(b.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// Broadcast delivers a notification to every subscriber. Slow subscribers
// miss it rather than block the sender.
func (b *Bus) Broadcast(n Notification) {
	b.subsMutex.Lock()
	defer b.subsMutex.Unlock()

	for _, ch := range b.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
