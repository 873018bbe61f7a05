package service

import (
	"fmt"
	"sort"
	"strings"

	"go-availability/core/errors"
	calentity "go-availability/modules/calendar/entity"
)

// Validate gates a candidate selection before it reaches the store. Checks run
// in a fixed order and stop at the first failure:
//
//  1. calendar not disabled
//  2. at least one slot
//  3. no more than MaxSelections slots
//  4. every slot inside the date range and on the time menu
//
// Duplicate keys (after normalisation) count once. The accepted set is
// returned sorted by canonical key. Validate has no side effects.
func Validate(cal *calentity.Calendar, candidateKeys []string) ([]calentity.Slot, *errors.AppError) {
	if cal.IsDisabled {
		return nil, errors.NewAppError(errors.ErrCalendarDisabled, "this calendar is no longer accepting responses", nil)
	}

	slots, malformed := dedupe(candidateKeys)
	size := len(slots) + len(malformed)

	if size == 0 {
		return nil, errors.NewAppError(errors.ErrEmptySelection, "please select at least one time slot", nil)
	}

	if size > cal.MaxSelections {
		return nil, errors.NewAppError(errors.ErrSelectionLimitExceeded,
			fmt.Sprintf("you can only select up to %d time slots, got %d", cal.MaxSelections, size), nil).
			WithDetails(errors.SelectionLimitDetails{Limit: cal.MaxSelections, Attempted: size})
	}

	unknown := malformed
	for _, s := range slots {
		if !cal.Offers(s) {
			unknown = append(unknown, s.CanonicalKey)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, errors.NewAppError(errors.ErrUnknownSlot,
			"some selected time slots are not offered by this calendar: "+strings.Join(unknown, ", "), nil).
			WithDetails(map[string][]string{"unknown_slots": unknown})
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].CanonicalKey < slots[j].CanonicalKey
	})
	return slots, nil
}

// dedupe normalises keys and collapses duplicates. Keys that cannot be parsed
// are returned separately, deduplicated on their trimmed form.
func dedupe(keys []string) ([]calentity.Slot, []string) {
	seen := make(map[string]struct{}, len(keys))
	slots := make([]calentity.Slot, 0, len(keys))
	var malformed []string

	for _, raw := range keys {
		s, err := calentity.ParseSlotKey(raw)
		key := s.CanonicalKey
		if err != nil {
			key = strings.TrimSpace(raw)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if err != nil {
			malformed = append(malformed, key)
			continue
		}
		slots = append(slots, s)
	}
	return slots, malformed
}
