// Package registration drives the multi-stage investor sign-up flow:
// credentials, profile, questionnaire, result, completion. Each session moves
// through the stages one user action at a time and writes to the user store
// exactly once, on completion.
package registration

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/scoring"
	"github.com/dstlead/dstlead/internal/services"
)

const (
	DefaultMinPasswordLength = 8
	// bcrypt ignores input past this length, so longer passwords are rejected.
	maxPasswordBytes = 72
)

// Registrar persists a finished registration.
type Registrar interface {
	Register(ctx context.Context, u *models.User) (*models.User, error)
}

type CredentialsInput struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"password_confirm"`
	AcceptTerms     bool   `json:"accept_terms"`
}

// Controller applies user actions to sessions. It holds no per-session state
// and can be shared by every session.
type Controller struct {
	scorer         services.Scorer
	users          Registrar
	hash           func(password string) ([]byte, error)
	now            func() time.Time
	minPasswordLen int
}

type Option func(*Controller)

func WithMinPasswordLength(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.minPasswordLen = n
		}
	}
}

func WithHasher(h func(password string) ([]byte, error)) Option {
	return func(c *Controller) {
		if h != nil {
			c.hash = h
		}
	}
}

func NewController(scorer services.Scorer, users Registrar, opts ...Option) *Controller {
	c := &Controller{
		scorer:         scorer,
		users:          users,
		hash:           services.HashPassword,
		now:            func() time.Time { return time.Now().UTC() },
		minPasswordLen: DefaultMinPasswordLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SubmitCredentials validates the account fields and advances to ProfileEntry.
func (c *Controller) SubmitCredentials(s *Session, in CredentialsInput) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.stage.(CredentialsEntry); !ok {
		return wrongStage(s.stage, StageCredentials)
	}
	email := services.NormalizeEmail(in.Email)
	fields := map[string]string{}
	if !services.ValidEmail(email) {
		fields["email"] = "must be a valid email address"
	}
	switch {
	case utf8.RuneCountInString(in.Password) < c.minPasswordLen:
		fields["password"] = fmt.Sprintf("must be at least %d characters", c.minPasswordLen)
	case len(in.Password) > maxPasswordBytes:
		fields["password"] = fmt.Sprintf("must be at most %d bytes", maxPasswordBytes)
	}
	if in.Password != in.PasswordConfirm {
		fields["password_confirm"] = "does not match password"
	}
	if !in.AcceptTerms {
		fields["accept_terms"] = "must be accepted"
	}
	if err := services.NewValidationError("credentials invalid", fields); err != nil {
		return err
	}
	hash, err := c.hash(in.Password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	s.set(ProfileEntry{Credentials: Credentials{Email: email, PassHash: hash}}, c.now())
	return nil
}

// SubmitProfile records the display name and advances to QuestionnaireEntry.
func (c *Controller) SubmitProfile(s *Session, in Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stage.(ProfileEntry)
	if !ok {
		return wrongStage(s.stage, StageProfile)
	}
	p := Profile{
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Phone:     strings.TrimSpace(in.Phone),
	}
	fields := map[string]string{}
	if p.FirstName == "" {
		fields["first_name"] = "required"
	}
	if p.LastName == "" {
		fields["last_name"] = "required"
	}
	if err := services.NewValidationError("profile incomplete", fields); err != nil {
		return err
	}
	s.set(QuestionnaireEntry{Credentials: cur.Credentials, Profile: p}, c.now())
	return nil
}

// SubmitQuestionnaire scores the answers and advances to ResultPresentation.
func (c *Controller) SubmitQuestionnaire(s *Session, answers scoring.Answers) (scoring.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stage.(QuestionnaireEntry)
	if !ok {
		return scoring.Result{}, wrongStage(s.stage, StageQuestionnaire)
	}
	if err := services.AnswersError(c.scorer.Validate(answers)); err != nil {
		return scoring.Result{}, err
	}
	res := c.scorer.Score(answers)
	s.set(ResultPresentation{Credentials: cur.Credentials, Profile: cur.Profile, Answers: answers, Result: res}, c.now())
	return res, nil
}

// Retake drops the current result and reopens the questionnaire with the
// previous answers as defaults.
func (c *Controller) Retake(s *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stage.(ResultPresentation)
	if !ok {
		return wrongStage(s.stage, StageResult)
	}
	prev := cur.Answers
	s.set(QuestionnaireEntry{Credentials: cur.Credentials, Profile: cur.Profile, Defaults: &prev}, c.now())
	return nil
}

// Complete persists the registration. On failure the session stays in
// ResultPresentation with everything intact so the user can retry.
func (c *Controller) Complete(ctx context.Context, s *Session) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.stage.(ResultPresentation)
	if !ok {
		return nil, wrongStage(s.stage, StageResult)
	}
	raw, err := json.Marshal(cur.Answers)
	if err != nil {
		return nil, fmt.Errorf("encode answers: %w", err)
	}
	u := &models.User{
		Email:                cur.Credentials.Email,
		PassHash:             cur.Credentials.PassHash,
		FirstName:            cur.Profile.FirstName,
		LastName:             cur.Profile.LastName,
		Phone:                cur.Profile.Phone,
		Role:                 models.RoleInvestor,
		AccreditedStatus:     c.scorer.Qualified(cur.Result.Segment),
		AccreditationScore:   cur.Result.Score,
		AccreditationSegment: string(cur.Result.Segment),
		QuestionnaireAnswers: string(raw),
	}
	created, err := c.users.Register(ctx, u)
	if err != nil {
		slog.Warn("registration not persisted", "session", s.ID, "error", err)
		return nil, err
	}
	s.set(Completed{User: created}, c.now())
	return created, nil
}

// Reset discards everything collected and returns to CredentialsEntry.
func (c *Controller) Reset(s *Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.set(CredentialsEntry{}, c.now())
}

func wrongStage(cur Stage, want StageName) error {
	return services.NewConflictError(fmt.Sprintf("registration is at stage %s, not %s", cur.Name(), want))
}
