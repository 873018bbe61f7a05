package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"go-availability/core/config"
	"go-availability/core/database"
	"go-availability/core/errors"
	"go-availability/core/logger"
	"go-availability/core/params"
	"go-availability/core/utils"
	"go-availability/modules/calendar/dto"
	"go-availability/modules/calendar/entity"
	"go-availability/modules/calendar/repository"
	"go-availability/modules/response/livesync"
	respRepository "go-availability/modules/response/repository"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	maxNameLength   = 255
	maxRangeDays    = 366
	maxMenuEntries  = 96
	shareCodeTries  = 3
	mutationTimeout = 15 * time.Second
)

// CalendarServiceInterface defines the service contract
type CalendarServiceInterface interface {
	CreateCalendar(ctx context.Context, ownerID string, req *dto.CreateCalendarRequest) (*dto.CalendarResponse, *errors.AppError)
	GetCalendar(ctx context.Context, id uuid.UUID, ownerID string) (*dto.CalendarResponse, *errors.AppError)
	GetPublicCalendar(ctx context.Context, shareCode string) (*dto.PublicCalendarResponse, *errors.AppError)
	GetMyCalendars(ctx context.Context, ownerID string, params params.QueryParams) (*dto.PaginatedCalendarResponse, *errors.AppError)
	UpdateCalendar(ctx context.Context, id uuid.UUID, ownerID string, req *dto.UpdateCalendarRequest) (*dto.CalendarResponse, *errors.AppError)
	SetDisabled(ctx context.Context, id uuid.UUID, ownerID string, disabled bool) (*dto.CalendarResponse, *errors.AppError)
	DeleteCalendar(ctx context.Context, id uuid.UUID, ownerID string) *errors.AppError
}

// CalendarService handles the organizer side of a calendar's lifecycle
type CalendarService struct {
	repo         repository.CalendarRepositoryInterface
	responseRepo respRepository.ResponseRepositoryInterface
	notifier     livesync.Notifier
	defaults     config.CalendarConfig
	baseURL      string
}

func NewCalendarService(repo repository.CalendarRepositoryInterface, responseRepo respRepository.ResponseRepositoryInterface, notifier livesync.Notifier, defaults config.CalendarConfig, baseURL string) *CalendarService {
	if len(defaults.DefaultTimeSlots) == 0 {
		defaults.DefaultTimeSlots = config.DefaultTimeSlots()
	}
	if defaults.DefaultMaxSelections <= 0 {
		defaults.DefaultMaxSelections = 5
	}
	return &CalendarService{
		repo:         repo,
		responseRepo: responseRepo,
		notifier:     notifier,
		defaults:     defaults,
		baseURL:      strings.TrimRight(baseURL, "/"),
	}
}

// normalizeMenu validates HH:MM entries and rejects duplicates. The
// organizer's order is preserved.
func normalizeMenu(slots []string) ([]string, *errors.AppError) {
	if len(slots) == 0 {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "at least one time slot is required", nil)
	}
	if len(slots) > maxMenuEntries {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "too many time slots", nil)
	}

	seen := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, raw := range slots {
		t, err := entity.NormalizeTimeOfDay(raw)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "time slots must be HH:MM", err).
				WithDetails(map[string]string{"time_slot": raw})
		}
		if _, dup := seen[t]; dup {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "duplicate time slot", nil).
				WithDetails(map[string]string{"time_slot": t})
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func parseRange(start, end string) (time.Time, time.Time, *errors.AppError) {
	startDate, err := entity.ParseDate(start)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewAppError(errors.ErrInvalidInput, "invalid start_date", err)
	}
	endDate, err := entity.ParseDate(end)
	if err != nil {
		return time.Time{}, time.Time{}, errors.NewAppError(errors.ErrInvalidInput, "invalid end_date", err)
	}
	if appErr := checkRange(startDate, endDate); appErr != nil {
		return time.Time{}, time.Time{}, appErr
	}
	return startDate, endDate, nil
}

func checkRange(start, end time.Time) *errors.AppError {
	dates, err := entity.ExpandRange(start, end)
	if err != nil {
		if appErr, ok := errors.As(err); ok {
			return appErr
		}
		return errors.NewAppError(errors.ErrInvalidRange, "invalid date range", err)
	}
	if len(dates) > maxRangeDays {
		return errors.NewAppError(errors.ErrInvalidRange, "date range is too long", nil)
	}
	return nil
}

func validateName(name string) (string, *errors.AppError) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.NewAppError(errors.ErrInvalidInput, "name is required", nil)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", errors.NewAppError(errors.ErrInvalidInput, "name is too long", nil)
	}
	return name, nil
}

func validateMaxSelections(n int) *errors.AppError {
	if n < 1 {
		return errors.NewAppError(errors.ErrInvalidInput, "max_selections must be at least 1", nil)
	}
	return nil
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// CreateCalendar creates a calendar owned by ownerID
func (s *CalendarService) CreateCalendar(ctx context.Context, ownerID string, req *dto.CreateCalendarRequest) (*dto.CalendarResponse, *errors.AppError) {
	name, appErr := validateName(req.Name)
	if appErr != nil {
		return nil, appErr
	}
	startDate, endDate, appErr := parseRange(req.StartDate, req.EndDate)
	if appErr != nil {
		return nil, appErr
	}

	menu := req.TimeSlots
	if len(menu) == 0 {
		menu = s.defaults.DefaultTimeSlots
	}
	timeSlots, appErr := normalizeMenu(menu)
	if appErr != nil {
		return nil, appErr
	}

	maxSelections := s.defaults.DefaultMaxSelections
	if req.MaxSelections != nil {
		maxSelections = *req.MaxSelections
	}
	if appErr := validateMaxSelections(maxSelections); appErr != nil {
		return nil, appErr
	}

	calendar := &entity.Calendar{
		Name:          name,
		Description:   optionalString(req.Description),
		StartDate:     startDate,
		EndDate:       endDate,
		TimeSlots:     timeSlots,
		MaxSelections: maxSelections,
		CreatedBy:     ownerID,
	}

	// share codes carry a random suffix; retry the rare collision
	var created *entity.Calendar
	var err error
	for attempt := 0; attempt < shareCodeTries; attempt++ {
		calendar.ShareCode = utils.GenerateShareCode(name)
		created, err = s.repo.CreateCalendar(ctx, calendar)
		if err == nil || !database.IsUniqueViolation(err) {
			break
		}
		logger.Warn("CalendarService:CreateCalendar:ShareCodeCollision", "share_code", calendar.ShareCode)
	}
	if err != nil {
		logger.Error("CalendarService:CreateCalendar:Error", "error", err, "owner_id", ownerID)
		return nil, database.StoreError(err, errors.ErrCreateFailed, "failed to create calendar")
	}

	logger.Info("CalendarService:CreateCalendar:Success", "calendar_id", created.ID, "owner_id", ownerID)
	return dto.ToCalendarResponse(created, s.baseURL), nil
}

func (s *CalendarService) getOwned(ctx context.Context, id uuid.UUID, ownerID string) (*entity.Calendar, *errors.AppError) {
	calendar, err := s.repo.GetCalendarByID(ctx, id)
	if err != nil {
		logger.Error("CalendarService:getOwned:Error", "error", err, "calendar_id", id)
		return nil, database.StoreError(err, errors.ErrGetFailed, "failed to load calendar")
	}
	if calendar == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "calendar not found", nil)
	}
	if calendar.CreatedBy != ownerID {
		return nil, errors.NewAppError(errors.ErrForbidden, "only the calendar owner can do this", nil)
	}
	return calendar, nil
}

func (s *CalendarService) GetCalendar(ctx context.Context, id uuid.UUID, ownerID string) (*dto.CalendarResponse, *errors.AppError) {
	calendar, appErr := s.getOwned(ctx, id, ownerID)
	if appErr != nil {
		return nil, appErr
	}
	return dto.ToCalendarResponse(calendar, s.baseURL), nil
}

// GetPublicCalendar resolves a share code to the calendar and its slot grid.
// Disabled calendars are still returned so participants can see why they
// cannot submit.
func (s *CalendarService) GetPublicCalendar(ctx context.Context, shareCode string) (*dto.PublicCalendarResponse, *errors.AppError) {
	calendar, err := s.repo.GetCalendarByShareCode(ctx, shareCode)
	if err != nil {
		logger.Error("CalendarService:GetPublicCalendar:Error", "error", err, "share_code", shareCode)
		return nil, database.StoreError(err, errors.ErrGetFailed, "failed to load calendar")
	}
	if calendar == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "calendar not found", nil)
	}

	resp, err := dto.ToPublicCalendarResponse(calendar, s.baseURL)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInvalidRange, "calendar has an invalid date range", err)
	}
	return resp, nil
}

func (s *CalendarService) GetMyCalendars(ctx context.Context, ownerID string, params params.QueryParams) (*dto.PaginatedCalendarResponse, *errors.AppError) {
	page, err := s.repo.GetCalendarsByOwner(ctx, ownerID, params)
	if err != nil {
		logger.Error("CalendarService:GetMyCalendars:Error", "error", err, "owner_id", ownerID)
		return nil, database.StoreError(err, errors.ErrGetFailed, "failed to list calendars")
	}
	return dto.ToPaginatedCalendarResponse(page, s.baseURL), nil
}

// UpdateCalendar applies a partial update. Existing responses are left as
// they are; slots that drop out of the menu are rejected on the next
// submission.
func (s *CalendarService) UpdateCalendar(ctx context.Context, id uuid.UUID, ownerID string, req *dto.UpdateCalendarRequest) (*dto.CalendarResponse, *errors.AppError) {
	calendar, appErr := s.getOwned(ctx, id, ownerID)
	if appErr != nil {
		return nil, appErr
	}

	if req.Name != nil {
		name, appErr := validateName(*req.Name)
		if appErr != nil {
			return nil, appErr
		}
		calendar.Name = name
	}
	if req.Description != nil {
		calendar.Description = optionalString(*req.Description)
	}
	if req.StartDate != nil {
		d, err := entity.ParseDate(*req.StartDate)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid start_date", err)
		}
		calendar.StartDate = d
	}
	if req.EndDate != nil {
		d, err := entity.ParseDate(*req.EndDate)
		if err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid end_date", err)
		}
		calendar.EndDate = d
	}
	if appErr := checkRange(calendar.StartDate, calendar.EndDate); appErr != nil {
		return nil, appErr
	}
	if req.TimeSlots != nil {
		timeSlots, appErr := normalizeMenu(req.TimeSlots)
		if appErr != nil {
			return nil, appErr
		}
		calendar.TimeSlots = timeSlots
	}
	if req.MaxSelections != nil {
		if appErr := validateMaxSelections(*req.MaxSelections); appErr != nil {
			return nil, appErr
		}
		calendar.MaxSelections = *req.MaxSelections
	}

	if err := s.repo.UpdateCalendar(ctx, calendar); err != nil {
		logger.Error("CalendarService:UpdateCalendar:Error", "error", err, "calendar_id", id)
		return nil, database.StoreError(err, errors.ErrUpdateFailed, "failed to update calendar")
	}

	logger.Info("CalendarService:UpdateCalendar:Success", "calendar_id", id)
	return s.GetCalendar(ctx, id, ownerID)
}

// SetDisabled toggles whether new or updated submissions are accepted.
// Stored responses and results are unaffected.
func (s *CalendarService) SetDisabled(ctx context.Context, id uuid.UUID, ownerID string, disabled bool) (*dto.CalendarResponse, *errors.AppError) {
	calendar, appErr := s.getOwned(ctx, id, ownerID)
	if appErr != nil {
		return nil, appErr
	}

	if calendar.IsDisabled != disabled {
		if err := s.repo.SetDisabled(ctx, id, disabled); err != nil {
			logger.Error("CalendarService:SetDisabled:Error", "error", err, "calendar_id", id)
			return nil, database.StoreError(err, errors.ErrUpdateFailed, "failed to update calendar")
		}
		calendar.IsDisabled = disabled
		logger.Info("CalendarService:SetDisabled:Success", "calendar_id", id, "disabled", disabled)
	}
	return dto.ToCalendarResponse(calendar, s.baseURL), nil
}

// DeleteCalendar removes every response and then the calendar in a single
// transaction, since the store does not cascade. Observers are told the
// responses changed only once the delete has committed.
func (s *CalendarService) DeleteCalendar(ctx context.Context, id uuid.UUID, ownerID string) *errors.AppError {
	if _, appErr := s.getOwned(ctx, id, ownerID); appErr != nil {
		return appErr
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mutationTimeout)
	defer cancel()

	removed, deleted, err := s.repo.DeleteCalendar(writeCtx, id, func(ctx context.Context, tx sqlx.ExecerContext) (int64, error) {
		return s.responseRepo.DeleteAllResponsesTx(ctx, tx, id)
	})
	if err != nil {
		logger.Error("CalendarService:DeleteCalendar:Error", "error", err, "calendar_id", id)
		return database.StoreError(err, errors.ErrDeleteFailed, "failed to delete calendar")
	}
	if !deleted {
		return errors.NewAppError(errors.ErrNotFound, "calendar not found", nil)
	}

	if s.notifier != nil {
		if err := s.notifier.Publish(writeCtx, id); err != nil {
			logger.Warn("CalendarService:DeleteCalendar:Publish:Error", "error", err, "calendar_id", id)
		}
	}

	logger.Info("CalendarService:DeleteCalendar:Success", "calendar_id", id, "responses_removed", removed)
	return nil
}
