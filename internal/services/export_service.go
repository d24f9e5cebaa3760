package services

import (
	"context"
	"sort"
	"time"

	"github.com/dstlead/dstlead/internal/models"
)

type ExportStore interface {
	ListUsers(ctx context.Context) ([]*models.User, error)
}

type ExportParams struct {
	// Segment restricts the export to one tier when set.
	Segment string
	// AccreditedOnly keeps only users whose snapshot qualified.
	AccreditedOnly bool
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

type ExportService struct {
	store ExportStore
	now   func() time.Time
}

func NewExportService(store ExportStore) *ExportService {
	return &ExportService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// LeadsCSV exports registered investors, newest first.
func (s *ExportService) LeadsCSV(ctx context.Context, params ExportParams) (*ExportResult, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	leads := filterInvestors(users)
	sort.SliceStable(leads, func(i, j int) bool { return leads[i].CreatedAt.After(leads[j].CreatedAt) })
	rows := make([]LeadRow, 0, len(leads))
	for _, u := range leads {
		if params.Segment != "" && u.AccreditationSegment != params.Segment {
			continue
		}
		if params.AccreditedOnly && !u.AccreditedStatus {
			continue
		}
		rows = append(rows, buildLeadRow(u))
	}
	b, err := ExportLeadsCSV(rows)
	if err != nil {
		return nil, err
	}
	name := "leads-" + s.now().Format("20060102") + ".csv"
	return &ExportResult{Filename: name, ContentType: "text/csv; charset=utf-8", Data: b}, nil
}

func buildLeadRow(u *models.User) LeadRow {
	row := LeadRow{
		UserID:     u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Phone:      u.Phone,
		Accredited: u.AccreditedStatus,
		Score:      u.AccreditationScore,
		Segment:    u.AccreditationSegment,
		CreatedAt:  u.CreatedAt.UTC().Format(time.RFC3339),
	}
	if u.RequalifiedAt != nil {
		row.Requalified = u.RequalifiedAt.UTC().Format(time.RFC3339)
	}
	return row
}
