package livesync

import (
	"context"
	stderrors "errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

type fakeSubscription struct {
	once   sync.Once
	events chan struct{}
}

func (s *fakeSubscription) Events() <-chan struct{} { return s.events }

func (s *fakeSubscription) Close() error {
	s.once.Do(func() { close(s.events) })
	return nil
}

type fakeNotifier struct {
	mu           sync.Mutex
	sub          *fakeSubscription
	subscribeErr error
}

func (n *fakeNotifier) Publish(ctx context.Context, calendarID uuid.UUID) error {
	n.mu.Lock()
	sub := n.sub
	n.mu.Unlock()
	if sub != nil {
		sub.events <- struct{}{}
	}
	return nil
}

func (n *fakeNotifier) Subscribe(ctx context.Context, calendarID uuid.UUID) (Subscription, error) {
	if n.subscribeErr != nil {
		return nil, n.subscribeErr
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	// unbuffered, so each Publish is received by the listener before returning
	n.sub = &fakeSubscription{events: make(chan struct{})}
	return n.sub, nil
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCoordinator_CoalescesBurstIntoOneRefresh(t *testing.T) {
	notifier := &fakeNotifier{}
	inFetch := make(chan struct{})
	release := make(chan struct{})
	var fetches atomic.Int32
	var delivered atomic.Int32

	fetch := func(ctx context.Context) (int32, error) {
		n := fetches.Add(1)
		if n == 1 {
			close(inFetch)
			<-release
		}
		return n, nil
	}
	c := NewCoordinator(uuid.New(), notifier, fetch, func(int32) { delivered.Add(1) }, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	c.Refresh()
	<-inFetch

	// Refresh signals synchronously, so the whole burst is queued before
	// the first fetch returns.
	for i := 0; i < 5; i++ {
		c.Refresh()
	}
	if got := len(c.pending); got != 1 {
		t.Fatalf("pending = %d, want 1", got)
	}
	close(release)

	waitUntil(t, "follow-up refresh", func() bool {
		return delivered.Load() == 2 && c.State() == StateSubscribed
	})
	time.Sleep(50 * time.Millisecond)

	if got := fetches.Load(); got != 2 {
		t.Fatalf("fetches = %d, want 2 (one in flight plus one follow-up)", got)
	}
	if got := len(c.pending); got != 0 {
		t.Errorf("pending = %d after settling", got)
	}
}

func TestCoordinator_NotificationTriggersRefresh(t *testing.T) {
	notifier := &fakeNotifier{}
	var delivered atomic.Int32
	c := NewCoordinator(uuid.New(), notifier, func(ctx context.Context) (int, error) {
		return 1, nil
	}, func(int) { delivered.Add(1) }, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	if err := notifier.Publish(context.Background(), uuid.Nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	waitUntil(t, "refresh after notification", func() bool { return delivered.Load() == 1 })
}

func TestCoordinator_NoCallbackAfterClose(t *testing.T) {
	notifier := &fakeNotifier{}
	inFetch := make(chan struct{})
	release := make(chan struct{})
	var delivered atomic.Int32

	fetch := func(ctx context.Context) (int, error) {
		close(inFetch)
		<-release
		return 1, nil
	}
	c := NewCoordinator(uuid.New(), notifier, fetch, func(int) { delivered.Add(1) }, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	c.Refresh()
	<-inFetch
	c.Close()
	close(release)

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	if delivered.Load() != 0 {
		t.Fatal("onChange called after Close")
	}
	if c.State() != StateClosed {
		t.Errorf("state = %s, want closed", c.State())
	}
}

func TestCoordinator_Lifecycle(t *testing.T) {
	notifier := &fakeNotifier{}
	fetch := func(ctx context.Context) (int, error) { return 0, nil }
	c := NewCoordinator(uuid.New(), notifier, fetch, func(int) {}, Options{})

	if c.State() != StateIdle {
		t.Fatalf("initial state = %s", c.State())
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.State() != StateSubscribed {
		t.Fatalf("state after Start = %s", c.State())
	}
	if err := c.Start(context.Background()); !stderrors.Is(err, ErrAlreadyStarted) {
		t.Fatalf("second Start = %v", err)
	}

	c.Close()
	c.Close()
	if err := c.Start(context.Background()); !stderrors.Is(err, ErrClosed) {
		t.Fatalf("Start after Close = %v", err)
	}
	<-c.Done()
}

func TestCoordinator_CloseBeforeStart(t *testing.T) {
	c := NewCoordinator(uuid.New(), &fakeNotifier{}, func(ctx context.Context) (int, error) { return 0, nil }, func(int) {}, Options{})
	c.Close()

	select {
	case <-c.Done():
	default:
		t.Fatal("Done not closed for a coordinator that never started")
	}
}

func TestCoordinator_SubscribeFailure(t *testing.T) {
	notifier := &fakeNotifier{subscribeErr: stderrors.New("redis down")}
	c := NewCoordinator(uuid.New(), notifier, func(ctx context.Context) (int, error) { return 0, nil }, func(int) {}, Options{})

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected subscribe error")
	}
	if c.State() != StateIdle {
		t.Errorf("state = %s, want idle", c.State())
	}
}

func TestCoordinator_SubscriptionLossCloses(t *testing.T) {
	notifier := &fakeNotifier{}
	c := NewCoordinator(uuid.New(), notifier, func(ctx context.Context) (int, error) { return 0, nil }, func(int) {}, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	notifier.sub.Close()

	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator kept running without a subscription")
	}
	if c.State() != StateClosed {
		t.Errorf("state = %s, want closed", c.State())
	}
}

func TestCoordinator_ContextCancelCloses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := NewCoordinator(uuid.New(), &fakeNotifier{}, func(ctx context.Context) (int, error) { return 0, nil }, func(int) {}, Options{})
	if err := c.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	cancel()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("coordinator ignored context cancellation")
	}
}

func TestCoordinator_FetchErrorKeepsRunning(t *testing.T) {
	var calls atomic.Int32
	var delivered atomic.Int32
	fetch := func(ctx context.Context) (int, error) {
		if calls.Add(1) == 1 {
			return 0, stderrors.New("store unavailable")
		}
		return 1, nil
	}
	c := NewCoordinator(uuid.New(), &fakeNotifier{}, fetch, func(int) { delivered.Add(1) }, Options{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	c.Refresh()
	waitUntil(t, "failed fetch", func() bool { return calls.Load() == 1 && c.State() == StateSubscribed })
	c.Refresh()
	waitUntil(t, "recovered fetch", func() bool { return delivered.Load() == 1 })
}

func TestCoordinator_DebounceAbsorbsBurst(t *testing.T) {
	notifier := &fakeNotifier{}
	var fetches atomic.Int32
	c := NewCoordinator(uuid.New(), notifier, func(ctx context.Context) (int32, error) {
		return fetches.Add(1), nil
	}, func(int32) {}, Options{Debounce: 100 * time.Millisecond})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.Close()

	for i := 0; i < 5; i++ {
		notifier.Publish(context.Background(), uuid.Nil)
	}
	waitUntil(t, "debounced refresh", func() bool { return fetches.Load() >= 1 })
	time.Sleep(250 * time.Millisecond)

	if got := fetches.Load(); got != 1 {
		t.Fatalf("fetches = %d, want 1", got)
	}
}
