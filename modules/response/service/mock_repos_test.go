package service

import (
	"context"
	"sync"
	"time"

	"go-availability/core/params"
	calentity "go-availability/modules/calendar/entity"
	calrepository "go-availability/modules/calendar/repository"
	"go-availability/modules/response/entity"
	"go-availability/modules/response/livesync"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// mockCalendarRepo serves calendars from memory.
type mockCalendarRepo struct {
	mu        sync.Mutex
	calendars map[uuid.UUID]*calentity.Calendar
	getErr    error
}

func newMockCalendarRepo(cals ...*calentity.Calendar) *mockCalendarRepo {
	m := &mockCalendarRepo{calendars: map[uuid.UUID]*calentity.Calendar{}}
	for _, c := range cals {
		m.calendars[c.ID] = c
	}
	return m
}

func (m *mockCalendarRepo) CreateCalendar(ctx context.Context, c *calentity.Calendar) (*calentity.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = uuid.New()
	m.calendars[c.ID] = c
	return c, nil
}

func (m *mockCalendarRepo) GetCalendarByID(ctx context.Context, id uuid.UUID) (*calentity.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	c, ok := m.calendars[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *mockCalendarRepo) GetCalendarByShareCode(ctx context.Context, code string) (*calentity.Calendar, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calendars {
		if c.ShareCode == code {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockCalendarRepo) GetCalendarsByOwner(ctx context.Context, ownerID string, p params.QueryParams) (*calentity.PaginatedCalendarEntity, error) {
	return &calentity.PaginatedCalendarEntity{PageNumber: p.PageNumber, PageSize: p.PageSize}, nil
}

func (m *mockCalendarRepo) UpdateCalendar(ctx context.Context, c *calentity.Calendar) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calendars[c.ID] = c
	return nil
}

func (m *mockCalendarRepo) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.calendars[id]; ok {
		c.IsDisabled = disabled
	}
	return nil
}

func (m *mockCalendarRepo) DeleteCalendar(ctx context.Context, id uuid.UUID, purge calrepository.PurgeFunc) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calendars[id]; !ok {
		return 0, false, nil
	}
	removed, err := purge(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	delete(m.calendars, id)
	return removed, true, nil
}

// mockResponseRepo keeps one row per (calendar, participant), like the
// unique constraint in the real table.
type mockResponseRepo struct {
	mu      sync.Mutex
	rows    []*entity.Response
	clock   time.Time
	upserts int
	lists   int

	upsertErr error
	// listErrs are returned by successive ListResponses calls before
	// falling back to success.
	listErrs []error
}

func newMockResponseRepo() *mockResponseRepo {
	return &mockResponseRepo{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (m *mockResponseRepo) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *mockResponseRepo) UpsertResponse(ctx context.Context, r *entity.Response) (*entity.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserts++
	if m.upsertErr != nil {
		return nil, m.upsertErr
	}

	now := m.tick()
	for _, row := range m.rows {
		if row.CalendarID == r.CalendarID && row.ParticipantID == r.ParticipantID {
			row.UserName = r.UserName
			row.UserEmail = r.UserEmail
			row.SelectedSlots = append(entity.SlotSet(nil), r.SelectedSlots...)
			row.UpdatedAt = now
			cp := *row
			return &cp, nil
		}
	}

	row := *r
	row.ID = uuid.New()
	row.SelectedSlots = append(entity.SlotSet(nil), r.SelectedSlots...)
	row.CreatedAt = now
	row.UpdatedAt = now
	m.rows = append(m.rows, &row)
	cp := row
	return &cp, nil
}

func (m *mockResponseRepo) ListResponses(ctx context.Context, calendarID uuid.UUID) ([]entity.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++
	if len(m.listErrs) > 0 {
		err := m.listErrs[0]
		m.listErrs = m.listErrs[1:]
		return nil, err
	}

	out := []entity.Response{}
	for _, row := range m.rows {
		if row.CalendarID == calendarID {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockResponseRepo) GetResponseByID(ctx context.Context, id uuid.UUID) (*entity.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockResponseRepo) GetResponseByParticipant(ctx context.Context, calendarID uuid.UUID, participantID string) (*entity.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.CalendarID == calendarID && row.ParticipantID == participantID {
			cp := *row
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockResponseRepo) DeleteResponse(ctx context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, row := range m.rows {
		if row.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *mockResponseRepo) DeleteAllResponsesTx(ctx context.Context, tx sqlx.ExecerContext, calendarID uuid.UUID) (int64, error) {
	return m.DeleteAllResponses(ctx, calendarID)
}

func (m *mockResponseRepo) DeleteAllResponses(ctx context.Context, calendarID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	var n int64
	for _, row := range m.rows {
		if row.CalendarID == calendarID {
			n++
			continue
		}
		kept = append(kept, row)
	}
	m.rows = kept
	return n, nil
}

// mockNotifier records publishes and fans them out to in-process
// subscribers.
type mockNotifier struct {
	mu         sync.Mutex
	published  []uuid.UUID
	publishErr error
	subs       map[uuid.UUID][]*mockSubscription
}

func newMockNotifier() *mockNotifier {
	return &mockNotifier{subs: map[uuid.UUID][]*mockSubscription{}}
}

func (n *mockNotifier) Publish(ctx context.Context, calendarID uuid.UUID) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, calendarID)
	if n.publishErr != nil {
		return n.publishErr
	}
	for _, s := range n.subs[calendarID] {
		s.deliver()
	}
	return nil
}

func (n *mockNotifier) Subscribe(ctx context.Context, calendarID uuid.UUID) (livesync.Subscription, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	s := &mockSubscription{events: make(chan struct{}, 1)}
	n.subs[calendarID] = append(n.subs[calendarID], s)
	return s, nil
}

func (n *mockNotifier) publishCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.published)
}

type mockSubscription struct {
	mu     sync.Mutex
	closed bool
	events chan struct{}
}

func (s *mockSubscription) deliver() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.events <- struct{}{}:
	default:
	}
}

func (s *mockSubscription) Events() <-chan struct{} {
	return s.events
}

func (s *mockSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
	return nil
}
