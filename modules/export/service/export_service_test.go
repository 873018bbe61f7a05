package service

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"go-availability/core/constants"
	"go-availability/core/errors"
	"go-availability/core/queue"
	"go-availability/core/storage"
	calentity "go-availability/modules/calendar/entity"
	"go-availability/modules/export/dto"
	respentity "go-availability/modules/response/entity"
	respservice "go-availability/modules/response/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/xuri/excelize/v2"
)

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func slotSet(t *testing.T, keys ...string) respentity.SlotSet {
	t.Helper()
	out := make(respentity.SlotSet, 0, len(keys))
	for _, k := range keys {
		s, err := calentity.ParseSlotKey(k)
		if err != nil {
			t.Fatalf("ParseSlotKey(%q): %v", k, err)
		}
		out = append(out, s)
	}
	return out
}

func testSnapshot(t *testing.T) *respservice.Snapshot {
	t.Helper()
	cal := &calentity.Calendar{
		Name:          "Team Sync",
		ShareCode:     "team-sync-abc1234",
		StartDate:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		TimeSlots:     []string{"09:00", "10:00"},
		MaxSelections: 3,
		CreatedBy:     "owner-1",
	}
	cal.ID = uuid.New()

	email := "alice@example.com"
	responses := []respentity.Response{
		{ID: uuid.New(), CalendarID: cal.ID, ParticipantID: "a", UserName: "Alice", UserEmail: &email,
			SelectedSlots: slotSet(t, "2024-01-01 09:00", "2024-01-01 10:00"), CreatedAt: fixedNow, UpdatedAt: fixedNow},
		{ID: uuid.New(), CalendarID: cal.ID, ParticipantID: "b", UserName: "Bob",
			SelectedSlots: slotSet(t, "2024-01-01 09:00"), CreatedAt: fixedNow.Add(time.Minute), UpdatedAt: fixedNow.Add(time.Minute)},
	}
	return &respservice.Snapshot{
		Calendar:  cal,
		Responses: responses,
		Ranked:    respservice.ComputeRankedCounts(responses),
	}
}

type mockSource struct {
	snap *respservice.Snapshot
	err  *errors.AppError
}

func (m *mockSource) Snapshot(ctx context.Context, calendarID uuid.UUID) (*respservice.Snapshot, *errors.AppError) {
	if m.err != nil {
		return nil, m.err
	}
	if m.snap == nil || m.snap.Calendar.ID != calendarID {
		return nil, errors.NewAppError(errors.ErrNotFound, "calendar not found", nil)
	}
	return m.snap, nil
}

type mockQueue struct {
	taskType string
	payload  any
	err      error
}

func (q *mockQueue) Enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if q.err != nil {
		return nil, q.err
	}
	q.taskType = taskType
	q.payload = payload
	return &asynq.TaskInfo{Type: taskType}, nil
}

type mockStore struct {
	objects map[string][]byte
	types   map[string]string
}

func newMockStore() *mockStore {
	return &mockStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (s *mockStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	s.objects[key] = body
	s.types[key] = contentType
	return nil
}

func (s *mockStore) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := s.objects[key]
	return ok, nil
}

func (s *mockStore) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://bucket.example.com/" + key + "?sig=1", nil
}

func newTestExportService(src SnapshotSource, q queue.Enqueuer, store storage.ObjectStore) *ExportService {
	svc := NewExportService(src, q, store, Options{TopN: 5, SlotMinutes: 30, PresignTTL: time.Minute})
	svc.now = func() time.Time { return fixedNow }
	return svc
}

func TestBuildICS(t *testing.T) {
	snap := testSnapshot(t)

	data, err := BuildICS(snap, 1, 30, fixedNow)
	if err != nil {
		t.Fatalf("BuildICS: %v", err)
	}
	out := string(data)

	if n := strings.Count(out, "BEGIN:VEVENT"); n != 1 {
		t.Fatalf("events = %d, want 1\n%s", n, out)
	}
	for _, want := range []string{
		"DTSTART:20240101T090000",
		"DTEND:20240101T093000",
		"STATUS:TENTATIVE",
		"Team Sync (2/2 available)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in\n%s", want, out)
		}
	}
}

func TestBuildICS_NoResponses(t *testing.T) {
	snap := testSnapshot(t)
	snap.Responses = nil
	snap.Ranked = respservice.ComputeRankedCounts(nil)

	data, err := BuildICS(snap, 5, 0, fixedNow)
	if err != nil {
		t.Fatalf("BuildICS: %v", err)
	}
	if strings.Contains(string(data), "BEGIN:VEVENT") {
		t.Fatal("events rendered without any responses")
	}
	out := string(data)
	if !strings.HasPrefix(out, "BEGIN:VCALENDAR\r\n") || !strings.HasSuffix(out, "END:VCALENDAR\r\n") {
		t.Fatalf("calendar wrapper missing:\n%s", out)
	}
	if !strings.Contains(out, "PRODID:"+icalProductID) {
		t.Errorf("PRODID missing:\n%s", out)
	}
}

func TestBuildXLSX(t *testing.T) {
	buf, err := BuildXLSX(testSnapshot(t))
	if err != nil {
		t.Fatalf("BuildXLSX: %v", err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	ranked, err := f.GetRows(sheetRanked)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheetRanked, err)
	}
	if len(ranked) != 3 {
		t.Fatalf("ranked rows = %d, want header + 2", len(ranked))
	}
	if ranked[0][0] != "Rank" || ranked[1][1] != "2024-01-01" || ranked[1][2] != "09:00" || ranked[1][3] != "2" {
		t.Errorf("ranked = %v", ranked)
	}
	if ranked[1][5] != respservice.TierStrong || ranked[1][6] != "Alice, Bob" {
		t.Errorf("first ranked row = %v", ranked[1])
	}

	responses, err := f.GetRows(sheetResponses)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", sheetResponses, err)
	}
	if len(responses) != 3 || responses[1][0] != "Alice" || responses[1][1] != "alice@example.com" {
		t.Errorf("responses = %v", responses)
	}
}

func TestResultsICS(t *testing.T) {
	snap := testSnapshot(t)
	svc := newTestExportService(&mockSource{snap: snap}, nil, nil)

	data, filename, appErr := svc.ResultsICS(context.Background(), snap.Calendar.ID, 0)
	if appErr != nil {
		t.Fatalf("ResultsICS: %v", appErr)
	}
	if filename != "team-sync-abc1234.ics" {
		t.Errorf("filename = %s", filename)
	}
	if n := strings.Count(string(data), "BEGIN:VEVENT"); n != 2 {
		t.Errorf("events = %d, want 2", n)
	}

	if _, _, appErr := svc.ResultsICS(context.Background(), uuid.New(), 0); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Errorf("unknown calendar: %v", appErr)
	}
}

func TestResultsICS_NewCalendar(t *testing.T) {
	snap := testSnapshot(t)
	snap.Responses = nil
	snap.Ranked = respservice.ComputeRankedCounts(nil)
	svc := newTestExportService(&mockSource{snap: snap}, nil, nil)

	data, _, appErr := svc.ResultsICS(context.Background(), snap.Calendar.ID, 0)
	if appErr != nil {
		t.Fatalf("ResultsICS: %v", appErr)
	}
	if !strings.Contains(string(data), "END:VCALENDAR") {
		t.Errorf("feed = %q", data)
	}
}

func TestRequestExport(t *testing.T) {
	snap := testSnapshot(t)
	q := &mockQueue{}
	svc := newTestExportService(&mockSource{snap: snap}, q, newMockStore())

	if _, appErr := svc.RequestExport(context.Background(), snap.Calendar.ID, "intruder"); appErr == nil || appErr.Code != errors.ErrForbidden {
		t.Fatalf("non-owner export: %v", appErr)
	}

	resp, appErr := svc.RequestExport(context.Background(), snap.Calendar.ID, "owner-1")
	if appErr != nil {
		t.Fatalf("RequestExport: %v", appErr)
	}
	if resp.Status != dto.ExportStatusQueued || resp.ExportID == "" {
		t.Errorf("resp = %+v", resp)
	}
	if q.taskType != constants.TaskExportResults {
		t.Errorf("task type = %s", q.taskType)
	}
	payload, ok := q.payload.(dto.ExportTaskPayload)
	if !ok || payload.ExportID != resp.ExportID || payload.CalendarID != snap.Calendar.ID.String() {
		t.Errorf("payload = %#v", q.payload)
	}
}

func TestRequestExport_NotConfigured(t *testing.T) {
	snap := testSnapshot(t)
	svc := NewExportService(&mockSource{snap: snap}, nil, nil, Options{})

	if _, appErr := svc.RequestExport(context.Background(), snap.Calendar.ID, "owner-1"); appErr == nil || appErr.Code != errors.ErrInternalServer {
		t.Fatalf("expected INTERNAL_SERVER, got %v", appErr)
	}
}

func TestExportRoundTrip(t *testing.T) {
	snap := testSnapshot(t)
	store := newMockStore()
	svc := newTestExportService(&mockSource{snap: snap}, &mockQueue{}, store)
	ctx := context.Background()
	exportID := uuid.New()

	if _, appErr := svc.GetExport(ctx, snap.Calendar.ID, exportID, "owner-1"); appErr == nil || appErr.Code != errors.ErrNotFound {
		t.Fatalf("export before worker ran: %v", appErr)
	}

	body, _ := json.Marshal(dto.ExportTaskPayload{CalendarID: snap.Calendar.ID.String(), ExportID: exportID.String(), Top: 5})
	if err := svc.HandleExportResults(ctx, asynq.NewTask(constants.TaskExportResults, body)); err != nil {
		t.Fatalf("HandleExportResults: %v", err)
	}

	key := ObjectKey(snap.Calendar.ID, exportID)
	if len(store.objects[key]) == 0 {
		t.Fatalf("nothing uploaded at %s", key)
	}
	if store.types[key] != xlsxContentType {
		t.Errorf("content type = %s", store.types[key])
	}

	resp, appErr := svc.GetExport(ctx, snap.Calendar.ID, exportID, "owner-1")
	if appErr != nil {
		t.Fatalf("GetExport: %v", appErr)
	}
	if resp.Status != dto.ExportStatusReady || !strings.Contains(resp.URL, key) {
		t.Errorf("resp = %+v", resp)
	}
	if resp.ExpiresAt == nil || !resp.ExpiresAt.Equal(fixedNow.Add(time.Minute)) {
		t.Errorf("expires at = %v", resp.ExpiresAt)
	}
}

func TestHandleExportResults_SkipsRetryOnBadInput(t *testing.T) {
	snap := testSnapshot(t)
	svc := newTestExportService(&mockSource{snap: snap}, nil, newMockStore())
	ctx := context.Background()

	err := svc.HandleExportResults(ctx, asynq.NewTask(constants.TaskExportResults, []byte("{not json")))
	if !stderrors.Is(err, asynq.SkipRetry) {
		t.Errorf("bad payload: %v", err)
	}

	body, _ := json.Marshal(dto.ExportTaskPayload{CalendarID: uuid.NewString(), ExportID: uuid.NewString()})
	err = svc.HandleExportResults(ctx, asynq.NewTask(constants.TaskExportResults, body))
	if !stderrors.Is(err, asynq.SkipRetry) {
		t.Errorf("deleted calendar: %v", err)
	}
}

func TestHandleExportResults_RetriesStoreOutage(t *testing.T) {
	snap := testSnapshot(t)
	src := &mockSource{snap: snap, err: errors.NewAppError(errors.ErrStoreUnavailable, "storage is temporarily unavailable", nil)}
	svc := newTestExportService(src, nil, newMockStore())

	body, _ := json.Marshal(dto.ExportTaskPayload{CalendarID: snap.Calendar.ID.String(), ExportID: uuid.NewString()})
	err := svc.HandleExportResults(context.Background(), asynq.NewTask(constants.TaskExportResults, body))
	if err == nil || stderrors.Is(err, asynq.SkipRetry) {
		t.Fatalf("store outage should be retried, got %v", err)
	}
}
