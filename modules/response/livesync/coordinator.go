package livesync

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"time"

	"go-availability/core/logger"

	"github.com/google/uuid"
)

type State int32

const (
	StateIdle State = iota
	StateSubscribed
	StateRefreshing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribed:
		return "subscribed"
	case StateRefreshing:
		return "refreshing"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

var (
	ErrAlreadyStarted = stderrors.New("livesync: coordinator already started")
	ErrClosed         = stderrors.New("livesync: coordinator closed")
)

// FetchFunc re-reads the store and re-aggregates.
type FetchFunc[T any] func(ctx context.Context) (T, error)

type Options struct {
	// Debounce delays each refresh so that a burst of notifications is
	// absorbed into it. Zero refreshes immediately.
	Debounce time.Duration
	// FetchTimeout bounds a single refresh. Defaults to 10s.
	FetchTimeout time.Duration
}

// Coordinator keeps one consumer's view of a calendar's results in step with
// the store. Any number of notifications that arrive while a refresh is in
// flight collapse into exactly one follow-up refresh. After Close returns,
// onChange is never called again.
type Coordinator[T any] struct {
	calendarID uuid.UUID
	notifier   Notifier
	fetch      FetchFunc[T]
	onChange   func(T)
	opts       Options

	state   atomic.Int32
	pending chan struct{}

	emitMu sync.Mutex
	closed bool

	startMu   sync.Mutex
	sub       Subscription
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

func NewCoordinator[T any](calendarID uuid.UUID, notifier Notifier, fetch FetchFunc[T], onChange func(T), opts Options) *Coordinator[T] {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 10 * time.Second
	}
	return &Coordinator[T]{
		calendarID: calendarID,
		notifier:   notifier,
		fetch:      fetch,
		onChange:   onChange,
		opts:       opts,
		pending:    make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
}

func (c *Coordinator[T]) State() State {
	return State(c.state.Load())
}

// Done is closed when the coordinator's worker has exited.
func (c *Coordinator[T]) Done() <-chan struct{} {
	return c.done
}

// Start opens the subscription (idle -> subscribed). Cancelling ctx closes
// the coordinator.
func (c *Coordinator[T]) Start(ctx context.Context) error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	switch c.State() {
	case StateClosed:
		return ErrClosed
	case StateIdle:
	default:
		return ErrAlreadyStarted
	}

	sub, err := c.notifier.Subscribe(ctx, c.calendarID)
	if err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.sub = sub
	c.cancel = cancel
	c.state.Store(int32(StateSubscribed))

	logger.Debug("LiveSync:Start", "calendar_id", c.calendarID)

	go c.listen(runCtx)
	go c.work(runCtx)
	return nil
}

// Refresh requests a refresh as if a notification had arrived.
func (c *Coordinator[T]) Refresh() {
	c.signal()
}

func (c *Coordinator[T]) signal() {
	select {
	case c.pending <- struct{}{}:
	default:
		// a refresh is already queued; this event folds into it
	}
}

func (c *Coordinator[T]) listen(ctx context.Context) {
	events := c.sub.Events()
	for {
		select {
		case <-ctx.Done():
			c.Close()
			return
		case _, ok := <-events:
			if !ok {
				logger.Warn("LiveSync:SubscriptionEnded", "calendar_id", c.calendarID)
				c.Close()
				return
			}
			c.signal()
		}
	}
}

func (c *Coordinator[T]) work(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.pending:
		}

		if c.opts.Debounce > 0 {
			t := time.NewTimer(c.opts.Debounce)
			select {
			case <-ctx.Done():
				t.Stop()
				return
			case <-t.C:
			}
			// anything that arrived during the wait is covered by this refresh
			select {
			case <-c.pending:
			default:
			}
		}

		if !c.state.CompareAndSwap(int32(StateSubscribed), int32(StateRefreshing)) {
			return
		}
		c.refresh(ctx)
		c.state.CompareAndSwap(int32(StateRefreshing), int32(StateSubscribed))
	}
}

// refresh lets an in-flight fetch finish even if the coordinator closes
// meanwhile; the result is then dropped.
func (c *Coordinator[T]) refresh(ctx context.Context) {
	fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.opts.FetchTimeout)
	defer cancel()

	result, err := c.fetch(fetchCtx)
	if err != nil {
		logger.Error("LiveSync:Refresh", err, "calendar_id", c.calendarID)
		return
	}

	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.closed {
		logger.Debug("LiveSync:Refresh:Discarded", "calendar_id", c.calendarID)
		return
	}
	c.onChange(result)
}

// Close releases the subscription. It is safe to call more than once and
// from any goroutine other than inside onChange.
func (c *Coordinator[T]) Close() {
	c.closeOnce.Do(func() {
		c.emitMu.Lock()
		c.closed = true
		c.emitMu.Unlock()

		c.startMu.Lock()
		prev := State(c.state.Swap(int32(StateClosed)))
		cancel, sub := c.cancel, c.sub
		c.startMu.Unlock()

		if prev == StateIdle {
			close(c.done)
			return
		}

		cancel()
		if err := sub.Close(); err != nil {
			logger.Warn("LiveSync:Close:Unsubscribe", "error", err, "calendar_id", c.calendarID)
		}
		logger.Debug("LiveSync:Close", "calendar_id", c.calendarID)
	})
}
