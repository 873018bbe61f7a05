package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go-availability/core/database"
	"go-availability/core/logger"
	"go-availability/core/params"
	"go-availability/modules/calendar/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type CalendarRepositoryInterface interface {
	CreateCalendar(ctx context.Context, calendar *entity.Calendar) (*entity.Calendar, error)
	GetCalendarByID(ctx context.Context, id uuid.UUID) (*entity.Calendar, error)
	GetCalendarByShareCode(ctx context.Context, shareCode string) (*entity.Calendar, error)
	GetCalendarsByOwner(ctx context.Context, ownerID string, params params.QueryParams) (*entity.PaginatedCalendarEntity, error)
	UpdateCalendar(ctx context.Context, calendar *entity.Calendar) error
	SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error
	DeleteCalendar(ctx context.Context, id uuid.UUID, purge PurgeFunc) (removed int64, deleted bool, err error)
}

// PurgeFunc removes the rows that reference a calendar, on the delete's
// transaction.
type PurgeFunc func(ctx context.Context, tx sqlx.ExecerContext) (int64, error)

type CalendarRepository struct {
	DB database.IDatabase
}

func NewCalendarRepository(db database.IDatabase) *CalendarRepository {
	return &CalendarRepository{DB: db}
}

const calendarColumns = `id, share_code, name, description, start_date, end_date, time_slots,
		       max_selections, is_disabled, created_by, created_at, updated_at`

// Dates are bound as YYYY-MM-DD strings so the session time zone cannot shift them.
func (r *CalendarRepository) CreateCalendar(ctx context.Context, calendar *entity.Calendar) (*entity.Calendar, error) {
	query := `
		INSERT INTO calendars (share_code, name, description, start_date, end_date, time_slots, max_selections, is_disabled, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING ` + calendarColumns

	var created entity.Calendar
	err := r.DB.GetContext(ctx, &created, query,
		calendar.ShareCode, calendar.Name, calendar.Description, calendar.StartDateString(), calendar.EndDateString(),
		calendar.TimeSlots, calendar.MaxSelections, calendar.IsDisabled, calendar.CreatedBy)
	if err != nil {
		logger.Error("CalendarRepository:CreateCalendar", err)
		return nil, err
	}
	return &created, nil
}

func (r *CalendarRepository) GetCalendarByID(ctx context.Context, id uuid.UUID) (*entity.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE id = $1`

	var calendar entity.Calendar
	if err := r.DB.GetContext(ctx, &calendar, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("CalendarRepository:GetCalendarByID", err)
		return nil, err
	}
	return &calendar, nil
}

func (r *CalendarRepository) GetCalendarByShareCode(ctx context.Context, shareCode string) (*entity.Calendar, error) {
	query := `SELECT ` + calendarColumns + ` FROM calendars WHERE share_code = $1`

	var calendar entity.Calendar
	if err := r.DB.GetContext(ctx, &calendar, query, shareCode); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("CalendarRepository:GetCalendarByShareCode", err)
		return nil, err
	}
	return &calendar, nil
}

func (r *CalendarRepository) GetCalendarsByOwner(ctx context.Context, ownerID string, params params.QueryParams) (*entity.PaginatedCalendarEntity, error) {
	where := `WHERE created_by = $1`
	args := []any{ownerID}
	if params.Search != "" {
		where += ` AND name ILIKE $2`
		args = append(args, "%"+params.Search+"%")
	}

	var totalItems int
	if err := r.DB.GetContext(ctx, &totalItems, `SELECT COUNT(*) FROM calendars `+where, args...); err != nil {
		logger.Error("CalendarRepository:GetCalendarsByOwner:Count", err)
		return nil, err
	}

	query := fmt.Sprintf(`
		SELECT %s FROM calendars %s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d
	`, calendarColumns, where, len(args)+1, len(args)+2)
	args = append(args, params.PageSize, params.Offset())

	calendars := []entity.Calendar{}
	if err := r.DB.SelectContext(ctx, &calendars, query, args...); err != nil {
		logger.Error("CalendarRepository:GetCalendarsByOwner:Select", err)
		return nil, err
	}

	return &entity.PaginatedCalendarEntity{
		Items:      calendars,
		TotalItems: totalItems,
		PageNumber: params.PageNumber,
		PageSize:   params.PageSize,
	}, nil
}

func (r *CalendarRepository) UpdateCalendar(ctx context.Context, calendar *entity.Calendar) error {
	query := `
		UPDATE calendars
		SET name = $2, description = $3, start_date = $4, end_date = $5, time_slots = $6,
		    max_selections = $7, is_disabled = $8, updated_at = NOW()
		WHERE id = $1
	`
	err := r.DB.ExecContext(ctx, query,
		calendar.ID, calendar.Name, calendar.Description, calendar.StartDateString(), calendar.EndDateString(),
		calendar.TimeSlots, calendar.MaxSelections, calendar.IsDisabled)
	if err != nil {
		logger.Error("CalendarRepository:UpdateCalendar", err)
		return err
	}
	return nil
}

func (r *CalendarRepository) SetDisabled(ctx context.Context, id uuid.UUID, disabled bool) error {
	query := `UPDATE calendars SET is_disabled = $2, updated_at = NOW() WHERE id = $1`
	if err := r.DB.ExecContext(ctx, query, id, disabled); err != nil {
		logger.Error("CalendarRepository:SetDisabled", err)
		return err
	}
	return nil
}

// DeleteCalendar locks the calendar row, runs purge, then deletes the
// calendar, all in one transaction. The foreign key does not cascade, and the
// row lock makes a concurrent response write wait and then fail on the key
// instead of landing between the two deletes. deleted is false when no
// calendar matched.
func (r *CalendarRepository) DeleteCalendar(ctx context.Context, id uuid.UUID, purge PurgeFunc) (removed int64, deleted bool, err error) {
	err = r.DB.WithTx(ctx, func(tx *sqlx.Tx) error {
		var locked uuid.UUID
		if err := tx.GetContext(ctx, &locked, `SELECT id FROM calendars WHERE id = $1 FOR UPDATE`, id); err != nil {
			if err == sql.ErrNoRows {
				return nil
			}
			logger.Error("CalendarRepository:DeleteCalendar:Lock", err)
			return err
		}

		if purge != nil {
			n, err := purge(ctx, tx)
			if err != nil {
				return err
			}
			removed = n
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM calendars WHERE id = $1`, id)
		if err != nil {
			logger.Error("CalendarRepository:DeleteCalendar", err)
			return err
		}
		n, err := result.RowsAffected()
		if err != nil {
			logger.Error("CalendarRepository:DeleteCalendar:RowsAffected", err)
			return err
		}
		deleted = n > 0
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	return removed, deleted, nil
}
