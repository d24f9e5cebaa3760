package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/dstlead/dstlead/internal/middleware"
	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/registration"
	"github.com/dstlead/dstlead/internal/scoring"
	"github.com/dstlead/dstlead/internal/services"
	"github.com/dstlead/dstlead/internal/utils"
)

type resultView struct {
	Score     int             `json:"score"`
	Segment   scoring.Segment `json:"segment"`
	Qualified bool            `json:"qualified"`
	Label     string          `json:"label"`
}

// sessionView is what the SPA sees of a registration. It never includes
// the password hash.
type sessionView struct {
	ID       string                 `json:"id"`
	Stage    registration.StageName `json:"stage"`
	Email    string                 `json:"email,omitempty"`
	Profile  *registration.Profile  `json:"profile,omitempty"`
	Defaults *scoring.Answers       `json:"defaults,omitempty"`
	Answers  *scoring.Answers       `json:"answers,omitempty"`
	Result   *resultView            `json:"result,omitempty"`
	User     *models.User           `json:"user,omitempty"`
	Token    string                 `json:"token,omitempty"`
}

func (rt *Router) result(r *http.Request, res scoring.Result) *resultView {
	locale := middleware.LocaleFromContext(r.Context())
	return &resultView{
		Score:     res.Score,
		Segment:   res.Segment,
		Qualified: rt.engine.Qualified(res.Segment),
		Label:     utils.T(locale, "segment."+string(res.Segment)),
	}
}

func (rt *Router) view(r *http.Request, s *registration.Session) sessionView {
	v := sessionView{ID: s.ID}
	st := s.Stage()
	v.Stage = st.Name()
	switch cur := st.(type) {
	case registration.ProfileEntry:
		v.Email = cur.Credentials.Email
	case registration.QuestionnaireEntry:
		p := cur.Profile
		v.Email, v.Profile, v.Defaults = cur.Credentials.Email, &p, cur.Defaults
	case registration.ResultPresentation:
		p, a := cur.Profile, cur.Answers
		v.Email, v.Profile, v.Answers = cur.Credentials.Email, &p, &a
		v.Result = rt.result(r, cur.Result)
	case registration.Completed:
		v.User = cur.User
		if cur.User != nil {
			v.Email = cur.User.Email
		}
	}
	return v
}

func (rt *Router) session(w http.ResponseWriter, r *http.Request) (*registration.Session, bool) {
	s, err := rt.sessions.Get(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return nil, false
	}
	return s, true
}

// POST /api/registration
func (rt *Router) handleStartRegistration(w http.ResponseWriter, r *http.Request) {
	s := rt.sessions.Start()
	writeJSON(w, http.StatusCreated, rt.view(r, s))
}

// GET /api/registration/{id}
func (rt *Router) handleGetRegistration(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rt.view(r, s))
}

// DELETE /api/registration/{id}
func (rt *Router) handleAbandonRegistration(w http.ResponseWriter, r *http.Request) {
	if !rt.sessions.Abandon(mux.Vars(r)["id"]) {
		writeError(w, r, services.NewNotFoundError("registration session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/registration/{id}/credentials
func (rt *Router) handleCredentials(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	var in registration.CredentialsInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.flow.SubmitCredentials(s, in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.view(r, s))
}

// POST /api/registration/{id}/profile
func (rt *Router) handleProfile(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	var in registration.Profile
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.flow.SubmitProfile(s, in); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.view(r, s))
}

// POST /api/registration/{id}/questionnaire
func (rt *Router) handleQuestionnaire(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	var answers scoring.Answers
	if err := decodeJSON(w, r, &answers); err != nil {
		writeError(w, r, err)
		return
	}
	if _, err := rt.flow.SubmitQuestionnaire(s, answers); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.view(r, s))
}

// POST /api/registration/{id}/retake
func (rt *Router) handleRetake(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	if err := rt.flow.Retake(s); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.view(r, s))
}

// POST /api/registration/{id}/complete
func (rt *Router) handleComplete(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	u, err := rt.flow.Complete(r.Context(), s)
	if err != nil {
		writeError(w, r, err)
		return
	}
	// The user record is the source of truth from here on.
	rt.sessions.Abandon(s.ID)
	v := rt.view(r, s)
	tok, err := rt.logins.IssueToken(u)
	if err != nil {
		slog.Warn("registration completed without a token", "user", u.ID, "error", err)
	} else {
		v.Token = tok.Token
	}
	writeJSON(w, http.StatusCreated, v)
}

// POST /api/registration/{id}/reset
func (rt *Router) handleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := rt.session(w, r)
	if !ok {
		return
	}
	rt.flow.Reset(s)
	writeJSON(w, http.StatusOK, rt.view(r, s))
}
