package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/scoring"
)

// AccountStore is the persistence surface AccountService needs.
type AccountStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	UpdateAccreditation(ctx context.Context, id string, acc models.Accreditation) (*models.User, error)
	AddAudit(ctx context.Context, e models.AuditEntry) error
}

// Scorer is the slice of the scoring engine services depend on.
type Scorer interface {
	Validate(a scoring.Answers) error
	Score(a scoring.Answers) scoring.Result
	Qualified(seg scoring.Segment) bool
}

// AccountService persists registrations and owns the explicit rescore path.
type AccountService struct {
	store  AccountStore
	scorer Scorer
	now    func() time.Time
	idGen  func() string
}

func NewAccountService(store AccountStore, scorer Scorer) *AccountService {
	return &AccountService{
		store:  store,
		scorer: scorer,
		now:    func() time.Time { return time.Now().UTC() },
		idGen:  uuid.NewString,
	}
}

// NormalizeEmail trims and lowercases an address for lookups.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidEmail reports whether email is a bare address.
func ValidEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// AnswersError converts questionnaire validation failures into an invalid ServiceError.
func AnswersError(err error) error {
	if err == nil {
		return nil
	}
	var fe scoring.FieldErrors
	if errors.As(err, &fe) {
		return NewValidationError("questionnaire incomplete", fe)
	}
	return NewInvalidError(err.Error())
}

// Register stores a new user. It is the only write a completed registration makes.
func (s *AccountService) Register(ctx context.Context, u *models.User) (*models.User, error) {
	if u == nil {
		return nil, NewInvalidError("user required")
	}
	rec := *u
	rec.Email = NormalizeEmail(rec.Email)
	if !ValidEmail(rec.Email) || len(rec.PassHash) == 0 {
		return nil, NewInvalidError("email/password required")
	}
	existing, err := s.store.FindUserByEmail(ctx, rec.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, NewConflictError("email already registered")
	}
	if rec.ID == "" {
		rec.ID = s.idGen()
	}
	if rec.Role == "" {
		rec.Role = models.RoleInvestor
	}
	rec.CreatedAt = s.now()
	if err := s.store.CreateUser(ctx, &rec); err != nil {
		return nil, err
	}
	s.audit(ctx, models.AuditEntry{Actor: rec.ID, Action: "user.register", Target: rec.Email, Note: rec.AccreditationSegment})
	slog.Info("user registered", "user_id", rec.ID, "segment", rec.AccreditationSegment, "accredited", rec.AccreditedStatus)
	return &rec, nil
}

func (s *AccountService) Get(ctx context.Context, id string) (*models.User, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewInvalidError("user id required")
	}
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, NewNotFoundError("user not found")
	}
	return u, nil
}

// Requalify rescores a user's questionnaire and overwrites the stored snapshot.
func (s *AccountService) Requalify(ctx context.Context, userID string, answers scoring.Answers) (*models.User, scoring.Result, error) {
	if err := AnswersError(s.scorer.Validate(answers)); err != nil {
		return nil, scoring.Result{}, err
	}
	res := s.scorer.Score(answers)
	raw, err := json.Marshal(answers)
	if err != nil {
		return nil, scoring.Result{}, err
	}
	u, err := s.store.UpdateAccreditation(ctx, userID, models.Accreditation{
		Status:  s.scorer.Qualified(res.Segment),
		Score:   res.Score,
		Segment: string(res.Segment),
		Answers: string(raw),
		At:      s.now(),
	})
	if err != nil {
		return nil, scoring.Result{}, err
	}
	if u == nil {
		return nil, scoring.Result{}, NewNotFoundError("user not found")
	}
	s.audit(ctx, models.AuditEntry{Actor: userID, Action: "user.requalify", Target: userID, Note: string(res.Segment)})
	return u, res, nil
}

func (s *AccountService) audit(ctx context.Context, e models.AuditEntry) {
	e.Time = s.now()
	if err := s.store.AddAudit(ctx, e); err != nil {
		slog.Warn("audit write failed", "action", e.Action, "error", err)
	}
}
