package repository

import (
	"context"
	"database/sql"

	"go-availability/core/database"
	"go-availability/core/logger"
	"go-availability/modules/response/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// ResponseRepositoryInterface is the minimal store contract the availability
// engine relies on. UpsertResponse must replace atomically: readers see either
// the old slot set or the new one, never a mix.
type ResponseRepositoryInterface interface {
	UpsertResponse(ctx context.Context, response *entity.Response) (*entity.Response, error)
	ListResponses(ctx context.Context, calendarID uuid.UUID) ([]entity.Response, error)
	GetResponseByID(ctx context.Context, id uuid.UUID) (*entity.Response, error)
	GetResponseByParticipant(ctx context.Context, calendarID uuid.UUID, participantID string) (*entity.Response, error)
	DeleteResponse(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteAllResponses(ctx context.Context, calendarID uuid.UUID) (int64, error)
	DeleteAllResponsesTx(ctx context.Context, tx sqlx.ExecerContext, calendarID uuid.UUID) (int64, error)
}

type ResponseRepository struct {
	DB database.IDatabase
}

func NewResponseRepository(db database.IDatabase) *ResponseRepository {
	return &ResponseRepository{DB: db}
}

const responseColumns = `id, calendar_id, participant_id, user_name, user_email, selected_slots, created_at, updated_at`

// UpsertResponse is a single INSERT .. ON CONFLICT statement, so the replace is
// atomic at row level. created_at is preserved across resubmissions.
func (r *ResponseRepository) UpsertResponse(ctx context.Context, response *entity.Response) (*entity.Response, error) {
	query := `
		INSERT INTO responses (calendar_id, participant_id, user_name, user_email, selected_slots)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (calendar_id, participant_id) DO UPDATE
		SET user_name = EXCLUDED.user_name,
		    user_email = EXCLUDED.user_email,
		    selected_slots = EXCLUDED.selected_slots,
		    updated_at = NOW()
		RETURNING ` + responseColumns

	var saved entity.Response
	err := r.DB.GetContext(ctx, &saved, query,
		response.CalendarID, response.ParticipantID, response.UserName, response.UserEmail, response.SelectedSlots)
	if err != nil {
		logger.Error("ResponseRepository:UpsertResponse", err, "calendar_id", response.CalendarID)
		return nil, err
	}
	return &saved, nil
}

func (r *ResponseRepository) ListResponses(ctx context.Context, calendarID uuid.UUID) ([]entity.Response, error) {
	query := `
		SELECT ` + responseColumns + `
		FROM responses
		WHERE calendar_id = $1
		ORDER BY created_at, id
	`

	responses := []entity.Response{}
	if err := r.DB.SelectContext(ctx, &responses, query, calendarID); err != nil {
		logger.Error("ResponseRepository:ListResponses", err, "calendar_id", calendarID)
		return nil, err
	}
	return responses, nil
}

func (r *ResponseRepository) GetResponseByID(ctx context.Context, id uuid.UUID) (*entity.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses WHERE id = $1`

	var response entity.Response
	if err := r.DB.GetContext(ctx, &response, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ResponseRepository:GetResponseByID", err)
		return nil, err
	}
	return &response, nil
}

func (r *ResponseRepository) GetResponseByParticipant(ctx context.Context, calendarID uuid.UUID, participantID string) (*entity.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses WHERE calendar_id = $1 AND participant_id = $2`

	var response entity.Response
	if err := r.DB.GetContext(ctx, &response, query, calendarID, participantID); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("ResponseRepository:GetResponseByParticipant", err)
		return nil, err
	}
	return &response, nil
}

// DeleteResponse reports false when no row matched.
func (r *ResponseRepository) DeleteResponse(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := r.DB.NamedExecContext(ctx, `DELETE FROM responses WHERE id = :id`, map[string]any{"id": id})
	if err != nil {
		logger.Error("ResponseRepository:DeleteResponse", err)
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		logger.Error("ResponseRepository:DeleteResponse:RowsAffected", err)
		return false, err
	}
	return n > 0, nil
}

func (r *ResponseRepository) DeleteAllResponses(ctx context.Context, calendarID uuid.UUID) (int64, error) {
	return r.DeleteAllResponsesTx(ctx, r.DB.SQLx(), calendarID)
}

// DeleteAllResponsesTx runs the delete on tx so it commits or rolls back with
// the caller's other statements.
func (r *ResponseRepository) DeleteAllResponsesTx(ctx context.Context, tx sqlx.ExecerContext, calendarID uuid.UUID) (int64, error) {
	result, err := tx.ExecContext(ctx, `DELETE FROM responses WHERE calendar_id = $1`, calendarID)
	if err != nil {
		logger.Error("ResponseRepository:DeleteAllResponses", err)
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		logger.Error("ResponseRepository:DeleteAllResponses:RowsAffected", err)
		return 0, err
	}
	return n, nil
}
