package dto

import (
	"time"

	"go-availability/core/constants"
	coreEntity "go-availability/core/entity"
	"go-availability/modules/calendar/entity"
)

// ===================== Request DTOs =====================

type CreateCalendarRequest struct {
	Name          string   `json:"name" validate:"required"`
	Description   string   `json:"description"`
	StartDate     string   `json:"start_date" validate:"required"` // YYYY-MM-DD
	EndDate       string   `json:"end_date" validate:"required"`   // YYYY-MM-DD
	TimeSlots     []string `json:"time_slots"`                     // HH:MM, defaults to the configured menu
	MaxSelections *int     `json:"max_selections"`
}

// UpdateCalendarRequest changes only the fields that are present.
type UpdateCalendarRequest struct {
	Name          *string  `json:"name"`
	Description   *string  `json:"description"`
	StartDate     *string  `json:"start_date"`
	EndDate       *string  `json:"end_date"`
	TimeSlots     []string `json:"time_slots"`
	MaxSelections *int     `json:"max_selections"`
}

// ===================== Response DTOs =====================

type CalendarResponse struct {
	ID            string    `json:"id"`
	ShareCode     string    `json:"share_code"`
	ShareURL      string    `json:"share_url,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	StartDate     string    `json:"start_date"`
	EndDate       string    `json:"end_date"`
	TimeSlots     []string  `json:"time_slots"`
	MaxSelections int       `json:"max_selections"`
	IsDisabled    bool      `json:"is_disabled"`
	CreatedBy     string    `json:"created_by,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PublicCalendarResponse is what a participant opening the share link sees:
// the calendar plus its full slot grid.
type PublicCalendarResponse struct {
	CalendarResponse
	Dates []string      `json:"dates"`
	Slots []entity.Slot `json:"slots"`
}

type PaginatedCalendarResponse = coreEntity.Pagination[CalendarResponse]

// ===================== Mapper Functions =====================

func ToCalendarResponse(cal *entity.Calendar, baseURL string) *CalendarResponse {
	resp := &CalendarResponse{
		ID:            cal.ID.String(),
		ShareCode:     cal.ShareCode,
		Name:          cal.Name,
		StartDate:     cal.StartDateString(),
		EndDate:       cal.EndDateString(),
		TimeSlots:     []string(cal.TimeSlots),
		MaxSelections: cal.MaxSelections,
		IsDisabled:    cal.IsDisabled,
		CreatedBy:     cal.CreatedBy,
		CreatedAt:     cal.CreatedAt,
		UpdatedAt:     cal.UpdatedAt,
	}
	if resp.TimeSlots == nil {
		resp.TimeSlots = []string{}
	}
	if cal.Description != nil {
		resp.Description = *cal.Description
	}
	if baseURL != "" && cal.ShareCode != "" {
		resp.ShareURL = baseURL + "/api/v1/public/share/" + cal.ShareCode
	}
	return resp
}

// ToPublicCalendarResponse omits the owner and adds the slot grid.
func ToPublicCalendarResponse(cal *entity.Calendar, baseURL string) (*PublicCalendarResponse, error) {
	dates, err := cal.Dates()
	if err != nil {
		return nil, err
	}
	slots, err := cal.Slots()
	if err != nil {
		return nil, err
	}

	resp := &PublicCalendarResponse{
		CalendarResponse: *ToCalendarResponse(cal, baseURL),
		Dates:            make([]string, 0, len(dates)),
		Slots:            slots,
	}
	resp.CreatedBy = ""
	for _, d := range dates {
		resp.Dates = append(resp.Dates, d.Format(constants.DateLayout))
	}
	return resp, nil
}

func ToPaginatedCalendarResponse(page *entity.PaginatedCalendarEntity, baseURL string) *PaginatedCalendarResponse {
	items := make([]CalendarResponse, 0, len(page.Items))
	for i := range page.Items {
		items = append(items, *ToCalendarResponse(&page.Items[i], baseURL))
	}
	return &PaginatedCalendarResponse{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
	}
}
