package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	calentity "go-availability/modules/calendar/entity"

	"github.com/google/uuid"
)

// Response is one participant's full, current selection for a calendar.
// There is at most one per (CalendarID, ParticipantID).
type Response struct {
	ID            uuid.UUID `db:"id" json:"id"`
	CalendarID    uuid.UUID `db:"calendar_id" json:"calendar_id"`
	ParticipantID string    `db:"participant_id" json:"participant_id"`
	UserName      string    `db:"user_name" json:"user_name"`
	UserEmail     *string   `db:"user_email" json:"user_email,omitempty"`
	SelectedSlots SlotSet   `db:"selected_slots" json:"selected_slots"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// SlotSet is stored as a JSONB array of {date, time, canonical_key}.
type SlotSet []calentity.Slot

func (s SlotSet) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *SlotSet) Scan(value interface{}) error {
	if value == nil {
		*s = SlotSet{}
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, s)
}

// Keys returns the distinct canonical keys in first-seen order.
func (s SlotSet) Keys() []string {
	seen := make(map[string]struct{}, len(s))
	keys := make([]string, 0, len(s))
	for _, slot := range s {
		if _, ok := seen[slot.CanonicalKey]; ok {
			continue
		}
		seen[slot.CanonicalKey] = struct{}{}
		keys = append(keys, slot.CanonicalKey)
	}
	return keys
}

// Participant is the identity a response is keyed by.
type Participant struct {
	ID    string
	Name  string
	Email string
}
