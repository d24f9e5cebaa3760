package services

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

type LeadRow struct {
	UserID      string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Accredited  bool
	Score       int
	Segment     string
	CreatedAt   string // RFC3339
	Requalified string // RFC3339 or empty
}

var leadHeader = []string{"user_id", "email", "first_name", "last_name", "phone", "accredited", "score", "segment", "created_at", "requalified_at"}

// ExportLeadsCSV renders one row per lead in the given order.
func ExportLeadsCSV(rows []LeadRow) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	if err := w.Write(leadHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.UserID,
			r.Email,
			r.FirstName,
			r.LastName,
			r.Phone,
			strconv.FormatBool(r.Accredited),
			strconv.Itoa(r.Score),
			r.Segment,
			r.CreatedAt,
			r.Requalified,
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
