package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dstlead/dstlead/internal/middleware"
	"github.com/dstlead/dstlead/internal/registration"
	"github.com/dstlead/dstlead/internal/scoring"
	"github.com/dstlead/dstlead/internal/services"
	"github.com/dstlead/dstlead/internal/utils"
)

const maxBodyBytes = 1 << 20

type Options struct {
	Auth              *middleware.TokenAuth
	TokenTTL          time.Duration
	SessionTTL        time.Duration
	MinPasswordLength int
	// Hasher overrides bcrypt for registration; tests use a cheap one.
	Hasher func(password string) ([]byte, error)
}

// Router owns the services behind the JSON API and mounts them on a mux.Router.
type Router struct {
	engine *scoring.Engine
	auth   *middleware.TokenAuth

	accounts  *services.AccountService
	logins    *services.AuthService
	faqs      *services.FAQService
	analytics *services.AnalyticsService
	exports   *services.ExportService
	qualify   *services.QualifyService
	audit     *services.AuditService

	sessions *registration.Sessions
	flow     *registration.Controller
}

func NewRouter(store Store, engine *scoring.Engine, opts Options) *Router {
	if engine == nil {
		engine = scoring.NewEngine(nil)
	}
	users := newUserStoreAdapter(store)
	segments := make([]string, 0, 4)
	for _, s := range engine.Segments() {
		segments = append(segments, string(s))
	}
	rt := &Router{
		engine:    engine,
		auth:      opts.Auth,
		accounts:  services.NewAccountService(users, engine),
		faqs:      services.NewFAQService(store),
		analytics: services.NewAnalyticsService(store, segments),
		exports:   services.NewExportService(store),
		qualify:   services.NewQualifyService(engine, store),
		audit:     services.NewAuditService(store),
		sessions:  registration.NewSessions(opts.SessionTTL),
	}
	var signer services.TokenSigner
	if opts.Auth != nil {
		signer = opts.Auth.SignToken
	}
	rt.logins = services.NewAuthService(users, signer, opts.TokenTTL)
	rt.flow = registration.NewController(engine, rt.accounts,
		registration.WithMinPasswordLength(opts.MinPasswordLength),
		registration.WithHasher(opts.Hasher),
	)
	return rt
}

func (rt *Router) Sessions() *registration.Sessions { return rt.sessions }
func (rt *Router) Auth() *services.AuthService      { return rt.logins }
func (rt *Router) FAQs() *services.FAQService       { return rt.faqs }

// Register mounts every API route on r.
func (rt *Router) Register(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()
	if rt.auth != nil {
		api.Use(rt.auth.WithAuth)
	}

	api.HandleFunc("/qualify", rt.handleQualify).Methods(http.MethodPost)
	api.HandleFunc("/faqs", rt.handleListFAQs).Methods(http.MethodGet)
	api.HandleFunc("/auth/login", rt.handleLogin).Methods(http.MethodPost)

	reg := api.PathPrefix("/registration").Subrouter()
	reg.HandleFunc("", rt.handleStartRegistration).Methods(http.MethodPost)
	reg.HandleFunc("/{id}", rt.handleGetRegistration).Methods(http.MethodGet)
	reg.HandleFunc("/{id}", rt.handleAbandonRegistration).Methods(http.MethodDelete)
	reg.HandleFunc("/{id}/credentials", rt.handleCredentials).Methods(http.MethodPost)
	reg.HandleFunc("/{id}/profile", rt.handleProfile).Methods(http.MethodPost)
	reg.HandleFunc("/{id}/questionnaire", rt.handleQuestionnaire).Methods(http.MethodPost)
	reg.HandleFunc("/{id}/retake", rt.handleRetake).Methods(http.MethodPost)
	reg.HandleFunc("/{id}/complete", rt.handleComplete).Methods(http.MethodPost)
	reg.HandleFunc("/{id}/reset", rt.handleReset).Methods(http.MethodPost)

	me := api.PathPrefix("/me").Subrouter()
	me.Use(middleware.RequireAuth)
	me.HandleFunc("", rt.handleMe).Methods(http.MethodGet)
	me.HandleFunc("/requalify", rt.handleRequalify).Methods(http.MethodPost)

	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(middleware.RequireAdmin)
	admin.HandleFunc("/faqs", rt.handleAddFAQ).Methods(http.MethodPost)
	admin.HandleFunc("/leads/summary", rt.handleLeadSummary).Methods(http.MethodGet)
	admin.HandleFunc("/leads/export", rt.handleLeadExport).Methods(http.MethodGet)
	admin.HandleFunc("/audit", rt.handleAudit).Methods(http.MethodGet)
	admin.HandleFunc("/schedule", rt.handleSchedule).Methods(http.MethodGet)
}

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func statusFor(code services.ErrorCode) int {
	switch code {
	case services.ErrorInvalid:
		return http.StatusBadRequest
	case services.ErrorUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorForbidden:
		return http.StatusForbidden
	case services.ErrorNotFound:
		return http.StatusNotFound
	case services.ErrorConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	if se, ok := services.AsServiceError(err); ok {
		writeJSON(w, statusFor(se.Code), errorBody{Error: string(se.Code), Message: se.Message, Fields: se.Fields})
		return
	}
	slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	locale := middleware.LocaleFromContext(r.Context())
	writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal", Message: utils.T(locale, "error.internal")})
}

// decodeJSON reads a bounded JSON body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return services.NewInvalidError("malformed JSON body: " + err.Error())
	}
	return nil
}
