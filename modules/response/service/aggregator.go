package service

import (
	"sort"
	"strings"

	calentity "go-availability/modules/calendar/entity"
	"go-availability/modules/response/entity"
)

// Coverage tier labels.
const (
	TierStrong   = "strong"
	TierModerate = "moderate"
	TierWeak     = "weak"

	strongThreshold   = 0.8
	moderateThreshold = 0.6
)

// SlotCount is the aggregate for one slot key.
type SlotCount struct {
	Slot         calentity.Slot
	Count        int
	Participants []string
}

// ComputeRankedCounts reduces a point-in-time set of responses into per-slot
// counts, ranked by count descending then (date, time) ascending.
//
// Every call recomputes from scratch. Each response contributes at most one to
// a slot even if its selection lists the slot twice. Participant names follow
// response order by (created_at, id), so the output does not depend on the
// order of the input slice.
func ComputeRankedCounts(responses []entity.Response) []SlotCount {
	ordered := make([]*entity.Response, len(responses))
	for i := range responses {
		ordered[i] = &responses[i]
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return strings.Compare(a.ID.String(), b.ID.String()) < 0
	})

	counts := make(map[string]*SlotCount)
	for _, r := range ordered {
		seen := make(map[string]struct{}, len(r.SelectedSlots))
		for _, s := range r.SelectedSlots {
			if _, dup := seen[s.CanonicalKey]; dup {
				continue
			}
			seen[s.CanonicalKey] = struct{}{}

			sc, ok := counts[s.CanonicalKey]
			if !ok {
				sc = &SlotCount{Slot: s}
				counts[s.CanonicalKey] = sc
			}
			sc.Count++
			sc.Participants = append(sc.Participants, r.UserName)
		}
	}

	ranked := make([]SlotCount, 0, len(counts))
	for _, sc := range counts {
		ranked = append(ranked, *sc)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Count != ranked[j].Count {
			return ranked[i].Count > ranked[j].Count
		}
		return ranked[i].Slot.CanonicalKey < ranked[j].Slot.CanonicalKey
	})
	return ranked
}

// TopN is a view over ranked; it never copies or alters counts.
func TopN(ranked []SlotCount, n int) []SlotCount {
	if n < 0 {
		n = 0
	}
	if n > len(ranked) {
		n = len(ranked)
	}
	return ranked[:n]
}

// Coverage is count / totalResponses, and 0 when there are no responses.
func Coverage(count, totalResponses int) float64 {
	if totalResponses <= 0 {
		return 0
	}
	return float64(count) / float64(totalResponses)
}

// Tier labels a coverage value. Boundaries belong to the higher tier.
func Tier(coverage float64) string {
	switch {
	case coverage >= strongThreshold:
		return TierStrong
	case coverage >= moderateThreshold:
		return TierModerate
	default:
		return TierWeak
	}
}
