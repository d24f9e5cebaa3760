package services

import (
	"context"
	"testing"
	"time"

	"github.com/dstlead/dstlead/internal/models"
)

func TestLeadsCSVFiltersAndOrders(t *testing.T) {
	requalified := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &stubAnalyticsStore{users: []*models.User{
		{ID: "old", Email: "old@example.com", Role: models.RoleInvestor, AccreditationSegment: "hot", AccreditedStatus: true, CreatedAt: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "new", Email: "new@example.com", Role: models.RoleInvestor, AccreditationSegment: "diamond", AccreditedStatus: true, CreatedAt: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), RequalifiedAt: &requalified},
		{ID: "cold", Email: "cold@example.com", Role: models.RoleInvestor, AccreditationSegment: "cold", CreatedAt: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)},
		{ID: "admin", Email: "admin@example.com", Role: models.RoleAdmin},
	}}
	svc := NewExportService(store)
	svc.now = func() time.Time { return time.Date(2025, 4, 2, 0, 0, 0, 0, time.UTC) }

	res, err := svc.LeadsCSV(context.Background(), ExportParams{})
	if err != nil {
		t.Fatalf("LeadsCSV: %v", err)
	}
	if res.Filename != "leads-20250402.csv" || res.ContentType != "text/csv; charset=utf-8" {
		t.Fatalf("unexpected result meta %+v", res)
	}
	recs, err := readCSV(res.Data)
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(recs) != 4 {
		t.Fatalf("want header + 3 leads, got %d", len(recs))
	}
	if recs[1][0] != "new" || recs[2][0] != "cold" || recs[3][0] != "old" {
		t.Fatalf("unexpected order: %v", recs)
	}
	if recs[1][9] != "2025-03-01T00:00:00Z" {
		t.Fatalf("requalified column = %q", recs[1][9])
	}

	res, err = svc.LeadsCSV(context.Background(), ExportParams{AccreditedOnly: true})
	if err != nil {
		t.Fatalf("LeadsCSV accredited: %v", err)
	}
	if recs, _ := readCSV(res.Data); len(recs) != 3 {
		t.Fatalf("accredited only: want 2 leads, got %d", len(recs)-1)
	}

	res, err = svc.LeadsCSV(context.Background(), ExportParams{Segment: "cold"})
	if err != nil {
		t.Fatalf("LeadsCSV segment: %v", err)
	}
	if recs, _ := readCSV(res.Data); len(recs) != 2 || recs[1][0] != "cold" {
		t.Fatalf("segment filter: %v", recs)
	}
}
