package api

import (
	"net/http"
	"strconv"

	"github.com/dstlead/dstlead/internal/middleware"
	"github.com/dstlead/dstlead/internal/models"
	"github.com/dstlead/dstlead/internal/services"
)

// POST /api/admin/faqs
func (rt *Router) handleAddFAQ(w http.ResponseWriter, r *http.Request) {
	var f models.FAQ
	if err := decodeJSON(w, r, &f); err != nil {
		writeError(w, r, err)
		return
	}
	out, err := rt.faqs.Add(r.Context(), &f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, out)
}

// GET /api/admin/leads/summary
func (rt *Router) handleLeadSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := rt.analytics.Summary(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// GET /api/admin/leads/export?segment=hot&accredited=1
func (rt *Router) handleLeadExport(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := services.ExportParams{Segment: q.Get("segment")}
	if v := q.Get("accredited"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, r, services.NewInvalidError("accredited must be a boolean"))
			return
		}
		params.AccreditedOnly = b
	}
	res, err := rt.exports.LeadsCSV(r.Context(), params)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		rt.recordExport(r, c.Email, params)
	}
	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+res.Filename)
	_, _ = w.Write(res.Data)
}

func (rt *Router) recordExport(r *http.Request, actor string, p services.ExportParams) {
	note := "segment=" + p.Segment
	if p.AccreditedOnly {
		note += " accredited_only"
	}
	rt.audit.Record(r.Context(), models.AuditEntry{Actor: actor, Action: "leads.export", Target: "leads", Note: note})
}

// GET /api/admin/audit?limit=100
func (rt *Router) handleAudit(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, r, services.NewInvalidError("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	entries, err := rt.audit.List(r.Context(), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// GET /api/admin/schedule
func (rt *Router) handleSchedule(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, rt.engine.Schedule())
}
