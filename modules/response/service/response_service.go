package service

import (
	"context"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"

	"go-availability/core/database"
	"go-availability/core/errors"
	"go-availability/core/logger"
	calentity "go-availability/modules/calendar/entity"
	calRepository "go-availability/modules/calendar/repository"
	"go-availability/modules/response/dto"
	"go-availability/modules/response/entity"
	"go-availability/modules/response/livesync"
	"go-availability/modules/response/repository"

	"github.com/google/uuid"
)

// Column widths of responses.user_name and user_email, in characters.
const (
	maxNameLength  = 255
	maxEmailLength = 255
)

// writeTimeout bounds a submission once it has been handed to the store. The
// write is detached from the request so a client disconnect cannot abandon it
// half way.
const writeTimeout = 15 * time.Second

// ResponseServiceInterface defines the service contract
type ResponseServiceInterface interface {
	Submit(ctx context.Context, calendarID uuid.UUID, participant entity.Participant, req *dto.SubmitResponseRequest) (*dto.ResponseDTO, *errors.AppError)
	ValidateAndSubmit(ctx context.Context, calendarID uuid.UUID, participant entity.Participant, candidateKeys []string) (*entity.Response, *errors.AppError)
	GetResults(ctx context.Context, calendarID uuid.UUID, top int) (*dto.ResultsResponse, *errors.AppError)
	Snapshot(ctx context.Context, calendarID uuid.UUID) (*Snapshot, *errors.AppError)
	GetMyResponse(ctx context.Context, calendarID uuid.UUID, participantID string) (*dto.ResponseDTO, *errors.AppError)
	ListResponses(ctx context.Context, calendarID uuid.UUID, ownerID string) ([]dto.ResponseDTO, *errors.AppError)
	DeleteResponse(ctx context.Context, calendarID, responseID uuid.UUID, ownerID string) *errors.AppError
	Subscribe(ctx context.Context, calendarID uuid.UUID, top int, onChange func(*dto.ResultsResponse)) (func(), <-chan struct{}, *errors.AppError)
}

type Options struct {
	TopN        int
	ReadRetries int
	RetryDelay  time.Duration
	Debounce    time.Duration
}

// Snapshot is a consistent read of one calendar's responses together with the
// ranking computed from exactly that read.
type Snapshot struct {
	Calendar  *calentity.Calendar
	Responses []entity.Response
	Ranked    []SlotCount
}

type ResponseService struct {
	repo         repository.ResponseRepositoryInterface
	calendarRepo calRepository.CalendarRepositoryInterface
	notifier     livesync.Notifier
	opts         Options
}

func NewResponseService(repo repository.ResponseRepositoryInterface, calendarRepo calRepository.CalendarRepositoryInterface, notifier livesync.Notifier, opts Options) *ResponseService {
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	if opts.ReadRetries < 0 {
		opts.ReadRetries = 0
	}
	return &ResponseService{
		repo:         repo,
		calendarRepo: calendarRepo,
		notifier:     notifier,
		opts:         opts,
	}
}

func (s *ResponseService) loadCalendar(ctx context.Context, calendarID uuid.UUID) (*calentity.Calendar, *errors.AppError) {
	var cal *calentity.Calendar
	err := database.RetryRead(ctx, s.opts.ReadRetries, s.opts.RetryDelay, func(ctx context.Context) error {
		var err error
		cal, err = s.calendarRepo.GetCalendarByID(ctx, calendarID)
		return err
	})
	if err != nil {
		logger.Error("ResponseService:loadCalendar:Error", "error", err, "calendar_id", calendarID)
		return nil, database.StoreError(err, errors.ErrGetFailed, "failed to load calendar")
	}
	if cal == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "calendar not found", nil)
	}
	return cal, nil
}

func (s *ResponseService) listResponses(ctx context.Context, calendarID uuid.UUID) ([]entity.Response, *errors.AppError) {
	var responses []entity.Response
	err := database.RetryRead(ctx, s.opts.ReadRetries, s.opts.RetryDelay, func(ctx context.Context) error {
		var err error
		responses, err = s.repo.ListResponses(ctx, calendarID)
		return err
	})
	if err != nil {
		logger.Error("ResponseService:listResponses:Error", "error", err, "calendar_id", calendarID)
		return nil, database.StoreError(err, errors.ErrGetFailed, "failed to load responses")
	}
	return responses, nil
}

// Submit is the HTTP-facing entry point. Profile fields from the request take
// precedence over those carried by the participant's token.
func (s *ResponseService) Submit(ctx context.Context, calendarID uuid.UUID, participant entity.Participant, req *dto.SubmitResponseRequest) (*dto.ResponseDTO, *errors.AppError) {
	if name := strings.TrimSpace(req.UserName); name != "" {
		participant.Name = name
	}
	if email := strings.TrimSpace(req.UserEmail); email != "" {
		participant.Email = email
	}

	saved, appErr := s.ValidateAndSubmit(ctx, calendarID, participant, req.CandidateKeys())
	if appErr != nil {
		return nil, appErr
	}
	return dto.ToResponseDTO(saved), nil
}

// ValidateAndSubmit checks the selection against the calendar and, only if it
// is acceptable, replaces the participant's stored response wholesale. Nothing
// is written on a validation failure. The write itself is never retried here;
// a STORE_UNAVAILABLE result leaves the retry decision to the caller.
func (s *ResponseService) ValidateAndSubmit(ctx context.Context, calendarID uuid.UUID, participant entity.Participant, candidateKeys []string) (*entity.Response, *errors.AppError) {
	participant.ID = strings.TrimSpace(participant.ID)
	participant.Name = strings.TrimSpace(participant.Name)
	participant.Email = strings.TrimSpace(participant.Email)

	if participant.ID == "" {
		return nil, errors.NewAppError(errors.ErrUnauthorized, "participant identity required", nil)
	}
	if participant.Name == "" {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "participant name is required", nil)
	}
	if utf8.RuneCountInString(participant.Name) > maxNameLength {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "participant name is too long", nil)
	}
	if utf8.RuneCountInString(participant.Email) > maxEmailLength {
		return nil, errors.NewAppError(errors.ErrInvalidInput, "email address is too long", nil)
	}
	if participant.Email != "" {
		if _, err := mail.ParseAddress(participant.Email); err != nil {
			return nil, errors.NewAppError(errors.ErrInvalidInput, "invalid email address", err)
		}
	}

	cal, appErr := s.loadCalendar(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}

	accepted, appErr := Validate(cal, candidateKeys)
	if appErr != nil {
		logger.Info("ResponseService:ValidateAndSubmit:Rejected", "calendar_id", calendarID, "participant_id", participant.ID, "code", appErr.Code)
		return nil, appErr
	}

	response := &entity.Response{
		CalendarID:    calendarID,
		ParticipantID: participant.ID,
		UserName:      participant.Name,
		SelectedSlots: entity.SlotSet(accepted),
	}
	if participant.Email != "" {
		response.UserEmail = &participant.Email
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	saved, err := s.repo.UpsertResponse(writeCtx, response)
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, errors.NewAppError(errors.ErrNotFound, "calendar not found", nil)
		}
		logger.Error("ResponseService:ValidateAndSubmit:UpsertResponse:Error", "error", err, "calendar_id", calendarID, "participant_id", participant.ID)
		return nil, database.StoreError(err, errors.ErrCreateFailed, "failed to save response")
	}

	s.publish(writeCtx, calendarID)

	logger.Info("ResponseService:ValidateAndSubmit:Success", "calendar_id", calendarID, "participant_id", participant.ID, "slots", len(accepted))
	return saved, nil
}

// publish notifies observers after a committed write. A failed publish is
// logged and swallowed: the write already succeeded and observers will catch
// up on their next refresh.
func (s *ResponseService) publish(ctx context.Context, calendarID uuid.UUID) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Publish(ctx, calendarID); err != nil {
		logger.Warn("ResponseService:publish:Error", "error", err, "calendar_id", calendarID)
	}
}

// Snapshot reads the calendar and all of its responses and ranks them.
func (s *ResponseService) Snapshot(ctx context.Context, calendarID uuid.UUID) (*Snapshot, *errors.AppError) {
	cal, appErr := s.loadCalendar(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}
	responses, appErr := s.listResponses(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}
	return &Snapshot{
		Calendar:  cal,
		Responses: responses,
		Ranked:    ComputeRankedCounts(responses),
	}, nil
}

// GetResults returns the full ranking plus the top entries. top <= 0 falls
// back to the configured default.
func (s *ResponseService) GetResults(ctx context.Context, calendarID uuid.UUID, top int) (*dto.ResultsResponse, *errors.AppError) {
	snap, appErr := s.Snapshot(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}
	if top <= 0 {
		top = s.opts.TopN
	}
	return ToResultsResponse(snap, top, time.Now().UTC()), nil
}

// ToResultsResponse annotates each ranked slot with coverage and tier.
func ToResultsResponse(snap *Snapshot, top int, computedAt time.Time) *dto.ResultsResponse {
	total := len(snap.Responses)
	ranked := make([]dto.SlotCountDTO, 0, len(snap.Ranked))
	for _, sc := range snap.Ranked {
		coverage := Coverage(sc.Count, total)
		ranked = append(ranked, dto.SlotCountDTO{
			Date:         sc.Slot.Date,
			Time:         sc.Slot.Time,
			CanonicalKey: sc.Slot.CanonicalKey,
			Count:        sc.Count,
			Participants: sc.Participants,
			Coverage:     coverage,
			Tier:         Tier(coverage),
		})
	}

	n := top
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}

	return &dto.ResultsResponse{
		CalendarID:     snap.Calendar.ID.String(),
		CalendarName:   snap.Calendar.Name,
		TotalResponses: total,
		Ranked:         ranked,
		Top:            ranked[:n],
		ComputedAt:     computedAt,
	}
}

func (s *ResponseService) GetMyResponse(ctx context.Context, calendarID uuid.UUID, participantID string) (*dto.ResponseDTO, *errors.AppError) {
	var response *entity.Response
	err := database.RetryRead(ctx, s.opts.ReadRetries, s.opts.RetryDelay, func(ctx context.Context) error {
		var err error
		response, err = s.repo.GetResponseByParticipant(ctx, calendarID, participantID)
		return err
	})
	if err != nil {
		logger.Error("ResponseService:GetMyResponse:Error", "error", err, "calendar_id", calendarID)
		return nil, database.StoreError(err, errors.ErrGetFailed, "failed to load response")
	}
	if response == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "no response submitted yet", nil)
	}
	return dto.ToResponseDTO(response), nil
}

func (s *ResponseService) requireOwner(ctx context.Context, calendarID uuid.UUID, ownerID string) (*calentity.Calendar, *errors.AppError) {
	cal, appErr := s.loadCalendar(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}
	if cal.CreatedBy != ownerID {
		return nil, errors.NewAppError(errors.ErrForbidden, "only the calendar owner can do this", nil)
	}
	return cal, nil
}

// ListResponses returns every response for an owner's calendar, oldest first.
func (s *ResponseService) ListResponses(ctx context.Context, calendarID uuid.UUID, ownerID string) ([]dto.ResponseDTO, *errors.AppError) {
	if _, appErr := s.requireOwner(ctx, calendarID, ownerID); appErr != nil {
		return nil, appErr
	}
	responses, appErr := s.listResponses(ctx, calendarID)
	if appErr != nil {
		return nil, appErr
	}
	return dto.ToResponseDTOs(responses), nil
}

func (s *ResponseService) DeleteResponse(ctx context.Context, calendarID, responseID uuid.UUID, ownerID string) *errors.AppError {
	if _, appErr := s.requireOwner(ctx, calendarID, ownerID); appErr != nil {
		return appErr
	}

	existing, err := s.repo.GetResponseByID(ctx, responseID)
	if err != nil {
		return database.StoreError(err, errors.ErrGetFailed, "failed to load response")
	}
	if existing == nil || existing.CalendarID != calendarID {
		return errors.NewAppError(errors.ErrNotFound, "response not found", nil)
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	deleted, err := s.repo.DeleteResponse(writeCtx, responseID)
	if err != nil {
		logger.Error("ResponseService:DeleteResponse:Error", "error", err, "response_id", responseID)
		return database.StoreError(err, errors.ErrDeleteFailed, "failed to delete response")
	}
	if !deleted {
		return errors.NewAppError(errors.ErrNotFound, "response not found", nil)
	}

	s.publish(writeCtx, calendarID)
	logger.Info("ResponseService:DeleteResponse:Success", "calendar_id", calendarID, "response_id", responseID)
	return nil
}

// Subscribe starts a live view of the calendar's results. onChange receives an
// initial snapshot followed by one snapshot per coalesced burst of changes.
// The returned function stops the view and is safe to call more than once.
// The channel is closed once the view has stopped for any reason, including
// loss of the notification channel.
func (s *ResponseService) Subscribe(ctx context.Context, calendarID uuid.UUID, top int, onChange func(*dto.ResultsResponse)) (func(), <-chan struct{}, *errors.AppError) {
	if s.notifier == nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "live updates are not configured", nil)
	}
	if _, appErr := s.loadCalendar(ctx, calendarID); appErr != nil {
		return nil, nil, appErr
	}

	fetch := func(ctx context.Context) (*dto.ResultsResponse, error) {
		results, appErr := s.GetResults(ctx, calendarID, top)
		if appErr != nil {
			return nil, appErr
		}
		return results, nil
	}

	coord := livesync.NewCoordinator(calendarID, s.notifier, fetch, onChange, livesync.Options{Debounce: s.opts.Debounce})
	if err := coord.Start(ctx); err != nil {
		logger.Error("ResponseService:Subscribe:Start:Error", "error", err, "calendar_id", calendarID)
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "failed to subscribe to changes", err)
	}
	coord.Refresh()

	return coord.Close, coord.Done(), nil
}
