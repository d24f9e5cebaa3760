package api

import (
	"net/http"

	"github.com/dstlead/dstlead/internal/middleware"
	"github.com/dstlead/dstlead/internal/scoring"
	"github.com/dstlead/dstlead/internal/services"
)

// POST /api/qualify
// { email?: string, answers: {...} }
func (rt *Router) handleQualify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string          `json:"email"`
		Answers scoring.Answers `json:"answers"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := rt.qualify.Evaluate(r.Context(), services.QualifyRequest{Email: req.Email, Answers: req.Answers})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.result(r, scoring.Result{Score: res.Score, Segment: res.Segment}))
}

// GET /api/faqs?category=...
func (rt *Router) handleListFAQs(w http.ResponseWriter, r *http.Request) {
	faqs, err := rt.faqs.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"faqs": faqs})
}

// POST /api/auth/login
func (rt *Router) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := rt.logins.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// GET /api/me
func (rt *Router) handleMe(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	u, err := rt.accounts.Get(r.Context(), uid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

// POST /api/me/requalify
// Body is a full questionnaire; the stored snapshot is replaced.
func (rt *Router) handleRequalify(w http.ResponseWriter, r *http.Request) {
	uid, _ := middleware.UserIDFromContext(r.Context())
	var answers scoring.Answers
	if err := decodeJSON(w, r, &answers); err != nil {
		writeError(w, r, err)
		return
	}
	u, res, err := rt.accounts.Requalify(r.Context(), uid, answers)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": u, "result": rt.result(r, res)})
}
