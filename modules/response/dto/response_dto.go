package dto

import (
	"time"

	calentity "go-availability/modules/calendar/entity"
	"go-availability/modules/response/entity"
)

// ===================== Request DTOs =====================

// SlotInput is one selected slot as sent by a client.
type SlotInput struct {
	Date string `json:"date"` // YYYY-MM-DD
	Time string `json:"time"` // HH:MM
}

// SubmitResponseRequest carries the participant's full selection. Either Slots
// or Keys (canonical "YYYY-MM-DD HH:MM") may be used; they are merged.
type SubmitResponseRequest struct {
	UserName  string      `json:"user_name" validate:"required"`
	UserEmail string      `json:"user_email"`
	Slots     []SlotInput `json:"slots"`
	Keys      []string    `json:"keys"`
}

// CandidateKeys flattens the request into canonical-key form. Slots whose
// parts cannot be normalised are passed through verbatim so that validation
// can report them.
func (r *SubmitResponseRequest) CandidateKeys() []string {
	keys := make([]string, 0, len(r.Slots)+len(r.Keys))
	for _, s := range r.Slots {
		slot, err := calentity.NewSlot(s.Date, s.Time)
		if err != nil {
			keys = append(keys, s.Date+" "+s.Time)
			continue
		}
		keys = append(keys, slot.CanonicalKey)
	}
	return append(keys, r.Keys...)
}

// ===================== Response DTOs =====================

type ResponseDTO struct {
	ID            string           `json:"id"`
	CalendarID    string           `json:"calendar_id"`
	ParticipantID string           `json:"participant_id"`
	UserName      string           `json:"user_name"`
	UserEmail     string           `json:"user_email,omitempty"`
	SelectedSlots []calentity.Slot `json:"selected_slots"`
	SlotCount     int              `json:"slot_count"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
}

type SlotCountDTO struct {
	Date         string   `json:"date"`
	Time         string   `json:"time"`
	CanonicalKey string   `json:"canonical_key"`
	Count        int      `json:"count"`
	Participants []string `json:"participants"`
	Coverage     float64  `json:"coverage"`
	Tier         string   `json:"tier"`
}

type ResultsResponse struct {
	CalendarID     string         `json:"calendar_id"`
	CalendarName   string         `json:"calendar_name"`
	TotalResponses int            `json:"total_responses"`
	Ranked         []SlotCountDTO `json:"ranked"`
	Top            []SlotCountDTO `json:"top"`
	ComputedAt     time.Time      `json:"computed_at"`
}

// ===================== Mapper Functions =====================

func ToResponseDTO(r *entity.Response) *ResponseDTO {
	resp := &ResponseDTO{
		ID:            r.ID.String(),
		CalendarID:    r.CalendarID.String(),
		ParticipantID: r.ParticipantID,
		UserName:      r.UserName,
		SelectedSlots: []calentity.Slot(r.SelectedSlots),
		SlotCount:     len(r.SelectedSlots),
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if resp.SelectedSlots == nil {
		resp.SelectedSlots = []calentity.Slot{}
	}
	if r.UserEmail != nil {
		resp.UserEmail = *r.UserEmail
	}
	return resp
}

func ToResponseDTOs(responses []entity.Response) []ResponseDTO {
	result := make([]ResponseDTO, 0, len(responses))
	for i := range responses {
		result = append(result, *ToResponseDTO(&responses[i]))
	}
	return result
}
