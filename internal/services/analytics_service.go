package services

import (
	"context"
	"sort"

	"github.com/dstlead/dstlead/internal/models"
)

type AnalyticsStore interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type AnalyticsService struct {
	store    AnalyticsStore
	segments []string
}

type SegmentCount struct {
	Segment string `json:"segment"`
	Count   int    `json:"count"`
}

type AnalyticsTimeseries struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type LeadSummary struct {
	TotalLeads   int                   `json:"total_leads"`
	Accredited   int                   `json:"accredited"`
	Segments     []SegmentCount        `json:"segments"`
	AverageScore int                   `json:"average_score"`
	Timeseries   []AnalyticsTimeseries `json:"timeseries"`
}

// NewAnalyticsService reports counts for segments in the given order; segments
// seen on stored users but missing from the list are appended alphabetically.
func NewAnalyticsService(store AnalyticsStore, segments []string) *AnalyticsService {
	return &AnalyticsService{store: store, segments: segments}
}

func (s *AnalyticsService) Summary(ctx context.Context) (*LeadSummary, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	leads := filterInvestors(users)
	counts := map[string]int{}
	countsByDay := map[string]int{}
	out := &LeadSummary{TotalLeads: len(leads)}
	total := 0
	for _, u := range leads {
		counts[u.AccreditationSegment]++
		if u.AccreditedStatus {
			out.Accredited++
		}
		total += u.AccreditationScore
		countsByDay[u.CreatedAt.UTC().Format("2006-01-02")]++
	}
	if len(leads) > 0 {
		out.AverageScore = total / len(leads)
	}
	out.Segments = buildSegmentCounts(s.segments, counts)
	out.Timeseries = buildTimeseries(countsByDay)
	return out, nil
}

func filterInvestors(users []*models.User) []*models.User {
	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		if u.Role == "" || u.Role == models.RoleInvestor {
			out = append(out, u)
		}
	}
	return out
}

func buildSegmentCounts(order []string, counts map[string]int) []SegmentCount {
	out := make([]SegmentCount, 0, len(counts))
	known := map[string]bool{}
	for _, seg := range order {
		known[seg] = true
		out = append(out, SegmentCount{Segment: seg, Count: counts[seg]})
	}
	extra := make([]string, 0)
	for seg := range counts {
		if !known[seg] {
			extra = append(extra, seg)
		}
	}
	sort.Strings(extra)
	for _, seg := range extra {
		out = append(out, SegmentCount{Segment: seg, Count: counts[seg]})
	}
	return out
}

func buildTimeseries(counts map[string]int) []AnalyticsTimeseries {
	days := make([]string, 0, len(counts))
	for d := range counts {
		days = append(days, d)
	}
	sort.Strings(days)
	out := make([]AnalyticsTimeseries, 0, len(days))
	for _, d := range days {
		out = append(out, AnalyticsTimeseries{Date: d, Count: counts[d]})
	}
	return out
}
