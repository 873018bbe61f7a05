package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go-availability/core/constants"
	"go-availability/core/errors"
	"go-availability/core/logger"
	"go-availability/core/queue"
	"go-availability/core/storage"
	"go-availability/modules/export/dto"
	respservice "go-availability/modules/response/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SnapshotSource is the read side of the response service.
type SnapshotSource interface {
	Snapshot(ctx context.Context, calendarID uuid.UUID) (*respservice.Snapshot, *errors.AppError)
}

// ExportServiceInterface defines the service contract
type ExportServiceInterface interface {
	ResultsICS(ctx context.Context, calendarID uuid.UUID, top int) ([]byte, string, *errors.AppError)
	RequestExport(ctx context.Context, calendarID uuid.UUID, ownerID string) (*dto.ExportResponse, *errors.AppError)
	GetExport(ctx context.Context, calendarID, exportID uuid.UUID, ownerID string) (*dto.ExportResponse, *errors.AppError)
	HandleExportResults(ctx context.Context, task *asynq.Task) error
}

type Options struct {
	TopN        int
	SlotMinutes int
	PresignTTL  time.Duration
}

type ExportService struct {
	source SnapshotSource
	queue  queue.Enqueuer
	store  storage.ObjectStore
	opts   Options
	now    func() time.Time
}

// NewExportService builds the service. queue and store may be nil, in which
// case only the ICS feed is available.
func NewExportService(source SnapshotSource, q queue.Enqueuer, store storage.ObjectStore, opts Options) *ExportService {
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.PresignTTL <= 0 {
		opts.PresignTTL = 15 * time.Minute
	}
	return &ExportService{
		source: source,
		queue:  q,
		store:  store,
		opts:   opts,
		now:    time.Now,
	}
}

// ObjectKey is where an export's spreadsheet lives in the bucket.
func ObjectKey(calendarID, exportID uuid.UUID) string {
	return fmt.Sprintf("exports/%s/%s.xlsx", calendarID, exportID)
}

// ResultsICS renders the top slots of a calendar as an iCalendar feed.
func (s *ExportService) ResultsICS(ctx context.Context, calendarID uuid.UUID, top int) ([]byte, string, *errors.AppError) {
	snap, appErr := s.source.Snapshot(ctx, calendarID)
	if appErr != nil {
		return nil, "", appErr
	}
	if top <= 0 {
		top = s.opts.TopN
	}

	data, err := BuildICS(snap, top, s.opts.SlotMinutes, s.now())
	if err != nil {
		logger.Error("ExportService:ResultsICS:BuildICS:Error", "error", err, "calendar_id", calendarID)
		return nil, "", errors.NewAppError(errors.ErrInternalServer, "failed to render calendar feed", err)
	}
	return data, fmt.Sprintf("%s.ics", snap.Calendar.ShareCode), nil
}

func (s *ExportService) requireOwner(ctx context.Context, calendarID uuid.UUID, ownerID string) (*respservice.Snapshot, *errors.AppError) {
	snap, appErr := s.source.Snapshot(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}
	if snap.Calendar.CreatedBy != ownerID {
		return nil, errors.NewAppError(errors.ErrForbidden, "only the calendar owner can export results", nil)
	}
	return snap, nil
}

func (s *ExportService) configured() *errors.AppError {
	if s.queue == nil || s.store == nil {
		return errors.NewAppError(errors.ErrInternalServer, "exports are not configured", nil)
	}
	return nil
}

// RequestExport queues a spreadsheet export and returns its id immediately.
func (s *ExportService) RequestExport(ctx context.Context, calendarID uuid.UUID, ownerID string) (*dto.ExportResponse, *errors.AppError) {
	if appErr := s.configured(); appErr != nil {
		return nil, appErr
	}
	if _, appErr := s.requireOwner(ctx, calendarID, ownerID); appErr != nil {
		return nil, appErr
	}

	exportID := uuid.New()
	payload := dto.ExportTaskPayload{
		CalendarID: calendarID.String(),
		ExportID:   exportID.String(),
		Top:        s.opts.TopN,
	}
	if _, err := s.queue.Enqueue(ctx, constants.TaskExportResults, payload, asynq.TaskID(exportID.String())); err != nil {
		logger.Error("ExportService:RequestExport:Enqueue:Error", "error", err, "calendar_id", calendarID)
		return nil, errors.NewAppError(errors.ErrCreateFailed, "failed to queue export", err)
	}

	logger.Info("ExportService:RequestExport:Queued", "calendar_id", calendarID, "export_id", exportID)
	return &dto.ExportResponse{
		ExportID:   exportID.String(),
		CalendarID: calendarID.String(),
		Status:     dto.ExportStatusQueued,
	}, nil
}

// GetExport returns a download link once the worker has uploaded the file.
// Until then it reports NOT_FOUND.
func (s *ExportService) GetExport(ctx context.Context, calendarID, exportID uuid.UUID, ownerID string) (*dto.ExportResponse, *errors.AppError) {
	if appErr := s.configured(); appErr != nil {
		return nil, appErr
	}
	if _, appErr := s.requireOwner(ctx, calendarID, ownerID); appErr != nil {
		return nil, appErr
	}

	key := ObjectKey(calendarID, exportID)
	exists, err := s.store.Exists(ctx, key)
	if err != nil {
		logger.Error("ExportService:GetExport:Exists:Error", "error", err, "key", key)
		return nil, errors.NewAppError(errors.ErrGetFailed, "failed to check export", err)
	}
	if !exists {
		return nil, errors.NewAppError(errors.ErrNotFound, "export is not ready", nil)
	}

	url, err := s.store.PresignGet(ctx, key, s.opts.PresignTTL)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrGetFailed, "failed to sign export link", err)
	}
	expiresAt := s.now().Add(s.opts.PresignTTL).UTC()

	return &dto.ExportResponse{
		ExportID:   exportID.String(),
		CalendarID: calendarID.String(),
		Status:     dto.ExportStatusReady,
		URL:        url,
		ExpiresAt:  &expiresAt,
	}, nil
}

// HandleExportResults is the asynq handler for export:results. Validation
// and not-found failures are not retried.
func (s *ExportService) HandleExportResults(ctx context.Context, task *asynq.Task) error {
	var payload dto.ExportTaskPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	calendarID, err := uuid.Parse(payload.CalendarID)
	if err != nil {
		return fmt.Errorf("calendar id: %v: %w", err, asynq.SkipRetry)
	}
	exportID, err := uuid.Parse(payload.ExportID)
	if err != nil {
		return fmt.Errorf("export id: %v: %w", err, asynq.SkipRetry)
	}
	if s.store == nil {
		return fmt.Errorf("object storage is not configured: %w", asynq.SkipRetry)
	}

	logger.Info("ExportService:HandleExportResults:Start", "calendar_id", calendarID, "export_id", exportID)

	snap, appErr := s.source.Snapshot(ctx, calendarID)
	if appErr != nil {
		if errors.IsRetryable(appErr.Code) {
			return appErr
		}
		return fmt.Errorf("%v: %w", appErr, asynq.SkipRetry)
	}

	buf, err := BuildXLSX(snap)
	if err != nil {
		logger.Error("ExportService:HandleExportResults:BuildXLSX:Error", "error", err, "calendar_id", calendarID)
		return err
	}

	key := ObjectKey(calendarID, exportID)
	if err := s.store.Put(ctx, key, buf.Bytes(), xlsxContentType); err != nil {
		return err
	}

	logger.Info("ExportService:HandleExportResults:Success", "calendar_id", calendarID, "export_id", exportID, "key", key, "bytes", buf.Len())
	return nil
}
