package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/scoring"
)

// AuditStore records and lists audit entries.
type AuditStore interface {
	AddAudit(ctx context.Context, e models.AuditEntry) error
	ListAudit(ctx context.Context) ([]models.AuditEntry, error)
}

// QualifyRequest carries an anonymous questionnaire from the public site.
type QualifyRequest struct {
	Email   string
	Answers scoring.Answers
}

type QualifyResult struct {
	Score     int             `json:"score"`
	Segment   scoring.Segment `json:"segment"`
	Qualified bool            `json:"qualified"`
}

// QualifyService scores questionnaires submitted outside of registration.
type QualifyService struct {
	scorer Scorer
	audit  AuditStore
	now    func() time.Time
}

func NewQualifyService(scorer Scorer, audit AuditStore) *QualifyService {
	return &QualifyService{scorer: scorer, audit: audit, now: func() time.Time { return time.Now().UTC() }}
}

func (s *QualifyService) Evaluate(ctx context.Context, req QualifyRequest) (*QualifyResult, error) {
	if s.scorer == nil {
		return nil, errors.New("qualify service scorer is nil")
	}
	if err := AnswersError(s.scorer.Validate(req.Answers)); err != nil {
		return nil, err
	}
	res := s.scorer.Score(req.Answers)
	out := &QualifyResult{Score: res.Score, Segment: res.Segment, Qualified: s.scorer.Qualified(res.Segment)}

	actor := "anonymous"
	if email := NormalizeEmail(req.Email); email != "" && ValidEmail(email) {
		actor = email
	}
	if s.audit != nil {
		if err := s.audit.AddAudit(ctx, models.AuditEntry{Time: s.now(), Actor: actor, Action: "lead.qualify", Target: string(res.Segment)}); err != nil {
			slog.Warn("audit write failed", "action", "lead.qualify", "error", err)
		}
	}
	return out, nil
}

// AuditService exposes the audit trail to administrators.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: func() time.Time { return time.Now().UTC() }}
}

// Record appends e, stamping the time when unset. Failures are logged only.
func (s *AuditService) Record(ctx context.Context, e models.AuditEntry) {
	if e.Time.IsZero() {
		e.Time = s.now()
	}
	if err := s.store.AddAudit(ctx, e); err != nil {
		slog.Warn("audit write failed", "action", e.Action, "error", err)
	}
}

// List returns up to limit entries, newest first. limit <= 0 means all.
func (s *AuditService) List(ctx context.Context, limit int) ([]models.AuditEntry, error) {
	entries, err := s.store.ListAudit(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]models.AuditEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
