package entity

import (
	"time"

	"go-availability/core/constants"
	"go-availability/core/entity"

	"github.com/lib/pq"
)

// Calendar is an organizer-defined pool of candidate slots: every date in
// [StartDate, EndDate] crossed with every entry of TimeSlots.
type Calendar struct {
	entity.BaseEntity
	ShareCode     string         `db:"share_code" json:"share_code"`
	Name          string         `db:"name" json:"name"`
	Description   *string        `db:"description" json:"description,omitempty"`
	StartDate     time.Time      `db:"start_date" json:"start_date"`
	EndDate       time.Time      `db:"end_date" json:"end_date"`
	TimeSlots     pq.StringArray `db:"time_slots" json:"time_slots"`
	MaxSelections int            `db:"max_selections" json:"max_selections"`
	IsDisabled    bool           `db:"is_disabled" json:"is_disabled"`
	CreatedBy     string         `db:"created_by" json:"created_by"`
}

type PaginatedCalendarEntity = entity.Pagination[Calendar]

func (c *Calendar) Dates() ([]time.Time, error) {
	return ExpandRange(c.StartDate, c.EndDate)
}

// ContainsDate reports whether d falls inside the inclusive date range.
func (c *Calendar) ContainsDate(d time.Time) bool {
	day := DateOnly(d)
	return !day.Before(DateOnly(c.StartDate)) && !day.After(DateOnly(c.EndDate))
}

func (c *Calendar) HasTimeSlot(timeOfDay string) bool {
	for _, t := range c.TimeSlots {
		if t == timeOfDay {
			return true
		}
	}
	return false
}

// Offers reports whether s is part of this calendar's slot menu.
func (c *Calendar) Offers(s Slot) bool {
	d, err := ParseDate(s.Date)
	if err != nil {
		return false
	}
	return c.ContainsDate(d) && c.HasTimeSlot(s.Time)
}

// Slots expands the full grid, dates outermost, times in menu order.
func (c *Calendar) Slots() ([]Slot, error) {
	dates, err := c.Dates()
	if err != nil {
		return nil, err
	}
	slots := make([]Slot, 0, len(dates)*len(c.TimeSlots))
	for _, d := range dates {
		for _, t := range c.TimeSlots {
			slots = append(slots, SlotAt(d, t))
		}
	}
	return slots, nil
}

func (c *Calendar) StartDateString() string {
	return c.StartDate.Format(constants.DateLayout)
}

func (c *Calendar) EndDateString() string {
	return c.EndDate.Format(constants.DateLayout)
}
