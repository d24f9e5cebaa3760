package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"github.com/dstlead/dstlead/internal/middleware"
	"github.com/dstlead/dstlead/internal/scoring"
)

type testServer struct {
	h     http.Handler
	rt    *Router
	store Store
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServerWith(t, NewMemoryStore())
}

func newTestServerWith(t *testing.T, store Store) *testServer {
	t.Helper()
	rt := NewRouter(store, scoring.NewEngine(nil), Options{
		Auth:     middleware.NewTokenAuth([]byte("router-test-secret")),
		TokenTTL: time.Hour,
		Hasher:   func(p string) ([]byte, error) { return []byte("h:" + p), nil },
	})
	m := mux.NewRouter()
	rt.Register(m)
	return &testServer{h: middleware.LocaleMiddleware(m), rt: rt, store: store}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status = %d, want %d; body=%s", rr.Code, want, rr.Body.String())
	}
}

var diamondAnswers = map[string]any{
	"accredited":         "yes",
	"sale_timeline":      "actively_selling",
	"equity_bracket":     "3m_plus",
	"investment_horizon": "10_plus_years",
	"target_return":      "4_6",
	"passive_importance": 5,
}

var warmAnswers = map[string]any{
	"accredited":         "not_sure",
	"sale_timeline":      "within_12_months",
	"equity_bracket":     "1m_3m",
	"investment_horizon": "5_10_years",
	"target_return":      "6_8",
	"passive_importance": 3,
}

// register walks a session up to the result stage and returns its id.
func (s *testServer) register(t *testing.T, email string, answers map[string]any) string {
	t.Helper()
	rr := s.do(t, http.MethodPost, "/api/registration", "", nil)
	expectStatus(t, rr, http.StatusCreated)
	id := decode[sessionView](t, rr).ID
	base := "/api/registration/" + id

	rr = s.do(t, http.MethodPost, base+"/credentials", "", map[string]any{
		"email": email, "password": "s3cretpass", "password_confirm": "s3cretpass", "accept_terms": true,
	})
	expectStatus(t, rr, http.StatusOK)
	rr = s.do(t, http.MethodPost, base+"/profile", "", map[string]any{"first_name": "Ada", "last_name": "Lovelace"})
	expectStatus(t, rr, http.StatusOK)
	rr = s.do(t, http.MethodPost, base+"/questionnaire", "", answers)
	expectStatus(t, rr, http.StatusOK)
	return id
}

func TestRegistrationFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "ada@example.com", warmAnswers)
	base := "/api/registration/" + id

	v := decode[sessionView](t, s.do(t, http.MethodGet, base, "", nil))
	if v.Stage != "result" || v.Result == nil || v.Result.Segment != scoring.SegmentWarm || v.Result.Qualified {
		t.Fatalf("unexpected result view %+v", v)
	}
	if strings.Contains(s.do(t, http.MethodGet, base, "", nil).Body.String(), "s3cretpass") {
		t.Fatalf("session view leaks password")
	}

	rr := s.do(t, http.MethodPost, base+"/retake", "", nil)
	expectStatus(t, rr, http.StatusOK)
	v = decode[sessionView](t, rr)
	if v.Stage != "questionnaire" || v.Defaults == nil || v.Defaults.Accredited != "not_sure" {
		t.Fatalf("retake should expose previous answers: %+v", v)
	}
	expectStatus(t, s.do(t, http.MethodPost, base+"/questionnaire", "", diamondAnswers), http.StatusOK)

	rr = s.do(t, http.MethodPost, base+"/complete", "", nil)
	expectStatus(t, rr, http.StatusCreated)
	v = decode[sessionView](t, rr)
	if v.Stage != "completed" || v.User == nil || v.Token == "" {
		t.Fatalf("unexpected completion %+v", v)
	}
	if v.User.AccreditationSegment != "diamond" || !v.User.AccreditedStatus || v.User.AccreditationScore != 82 {
		t.Fatalf("snapshot should reflect the last answers: %+v", v.User)
	}

	rr = s.do(t, http.MethodGet, "/api/me", v.Token, nil)
	expectStatus(t, rr, http.StatusOK)
	if !strings.Contains(rr.Body.String(), `"email":"ada@example.com"`) || strings.Contains(rr.Body.String(), "PassHash") {
		t.Fatalf("unexpected /api/me body %s", rr.Body.String())
	}

	rr = s.do(t, http.MethodPost, "/api/me/requalify", v.Token, warmAnswers)
	expectStatus(t, rr, http.StatusOK)
	u, _ := s.store.FindUserByEmail(context.Background(), "ada@example.com")
	if u.AccreditationSegment != "warm" || u.RequalifiedAt == nil {
		t.Fatalf("requalify not stored: %+v", u)
	}
}

func TestRegistrationErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/registration/missing", "", nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = s.do(t, http.MethodPost, "/api/registration", "", nil)
	id := decode[sessionView](t, rr).ID
	base := "/api/registration/" + id

	rr = s.do(t, http.MethodPost, base+"/credentials", "", map[string]any{"email": "bad", "password": "x"})
	expectStatus(t, rr, http.StatusBadRequest)
	body := decode[errorBody](t, rr)
	if body.Error != "invalid" || body.Fields["email"] == "" || body.Fields["accept_terms"] == "" {
		t.Fatalf("unexpected error body %+v", body)
	}

	rr = s.do(t, http.MethodPost, base+"/complete", "", nil)
	expectStatus(t, rr, http.StatusConflict)

	req := httptest.NewRequest(http.MethodPost, base+"/credentials", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	s.h.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadRequest)

	expectStatus(t, s.do(t, http.MethodDelete, base, "", nil), http.StatusNoContent)
	expectStatus(t, s.do(t, http.MethodDelete, base, "", nil), http.StatusNotFound)
}

func TestDuplicateEmailKeepsResultStage(t *testing.T) {
	s := newTestServer(t)
	first := s.register(t, "dup@example.com", diamondAnswers)
	expectStatus(t, s.do(t, http.MethodPost, "/api/registration/"+first+"/complete", "", nil), http.StatusCreated)

	second := s.register(t, "DUP@example.com", warmAnswers)
	rr := s.do(t, http.MethodPost, "/api/registration/"+second+"/complete", "", nil)
	expectStatus(t, rr, http.StatusConflict)

	v := decode[sessionView](t, s.do(t, http.MethodGet, "/api/registration/"+second, "", nil))
	if v.Stage != "result" || v.Profile == nil || v.Profile.FirstName != "Ada" {
		t.Fatalf("failed completion must keep state: %+v", v)
	}
	users, _ := s.store.ListUsers(context.Background())
	if len(users) != 1 {
		t.Fatalf("want one stored user, got %d", len(users))
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/registration/"+second+"/reset", "", nil), http.StatusOK)
	v = decode[sessionView](t, s.do(t, http.MethodGet, "/api/registration/"+second, "", nil))
	if v.Stage != "credentials" || v.Email != "" {
		t.Fatalf("reset should clear the session: %+v", v)
	}
}

func TestQualifyAndFAQs(t *testing.T) {
	s := newTestServer(t)
	rr := s.do(t, http.MethodPost, "/api/qualify?lang=es", "", map[string]any{"email": "lead@example.com", "answers": diamondAnswers})
	expectStatus(t, rr, http.StatusOK)
	res := decode[resultView](t, rr)
	if res.Score != 82 || res.Segment != scoring.SegmentDiamond || !res.Qualified || res.Label != "Inversionista prioritario" {
		t.Fatalf("unexpected qualify result %+v", res)
	}

	rr = s.do(t, http.MethodPost, "/api/qualify", "", map[string]any{"answers": map[string]any{"accredited": "maybe"}})
	expectStatus(t, rr, http.StatusBadRequest)

	if _, err := s.rt.FAQs().SeedDefaults(context.Background()); err != nil {
		t.Fatalf("SeedDefaults: %v", err)
	}
	rr = s.do(t, http.MethodGet, "/api/faqs?category=1031", "", nil)
	expectStatus(t, rr, http.StatusOK)
	faqs := decode[map[string][]map[string]any](t, rr)["faqs"]
	if len(faqs) != 2 {
		t.Fatalf("want 2 faqs in category, got %d", len(faqs))
	}
}

func TestAdminSurfaces(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if err := s.rt.Auth().EnsureAdmin(ctx, "admin@example.com", "admin-pass"); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	rr := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "admin-pass"})
	expectStatus(t, rr, http.StatusOK)
	adminTok := decode[map[string]string](t, rr)["token"]

	rr = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@example.com", "password": "wrong"})
	expectStatus(t, rr, http.StatusUnauthorized)

	id := s.register(t, "lead@example.com", diamondAnswers)
	rr = s.do(t, http.MethodPost, "/api/registration/"+id+"/complete", "", nil)
	investorTok := decode[sessionView](t, rr).Token

	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/leads/summary", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/leads/summary", investorTok, nil), http.StatusForbidden)

	rr = s.do(t, http.MethodGet, "/api/admin/leads/summary", adminTok, nil)
	expectStatus(t, rr, http.StatusOK)
	sum := decode[map[string]any](t, rr)
	if sum["total_leads"].(float64) != 1 || sum["accredited"].(float64) != 1 {
		t.Fatalf("unexpected summary %+v", sum)
	}

	rr = s.do(t, http.MethodGet, "/api/admin/leads/export?segment=diamond", adminTok, nil)
	expectStatus(t, rr, http.StatusOK)
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("content type %q", ct)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[1], "lead@example.com") {
		t.Fatalf("unexpected csv %q", rr.Body.String())
	}
	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/leads/export?accredited=maybe", adminTok, nil), http.StatusBadRequest)

	rr = s.do(t, http.MethodPost, "/api/admin/faqs", adminTok, map[string]any{"question": "What is a DST?", "answer": "A trust.", "category": "dst"})
	expectStatus(t, rr, http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/admin/faqs", adminTok, map[string]any{"question": ""}), http.StatusBadRequest)

	rr = s.do(t, http.MethodGet, "/api/admin/audit?limit=1", adminTok, nil)
	expectStatus(t, rr, http.StatusOK)
	entries := decode[map[string][]map[string]any](t, rr)["entries"]
	if len(entries) != 1 || entries[0]["action"] != "leads.export" {
		t.Fatalf("newest audit entry should be the export: %+v", entries)
	}

	expectStatus(t, s.do(t, http.MethodGet, "/api/admin/schedule", adminTok, nil), http.StatusOK)
}

func TestMeRequiresToken(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodGet, "/api/me", "", nil), http.StatusUnauthorized)
	expectStatus(t, s.do(t, http.MethodGet, "/api/me", "not-a-token", nil), http.StatusUnauthorized)
}

func TestCompletedSessionIsDiscarded(t *testing.T) {
	s := newTestServer(t)
	id := s.register(t, "gone@example.com", diamondAnswers)
	base := "/api/registration/" + id
	expectStatus(t, s.do(t, http.MethodPost, base+"/complete", "", nil), http.StatusCreated)

	if n := s.rt.Sessions().Len(); n != 0 {
		t.Fatalf("live sessions after complete = %d, want 0", n)
	}
	expectStatus(t, s.do(t, http.MethodGet, base, "", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, base+"/reset", "", nil), http.StatusNotFound)
	expectStatus(t, s.do(t, http.MethodPost, base+"/complete", "", nil), http.StatusNotFound)
}

func TestCompleteFailsWhenSnapshotUnwritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	store, err := NewMemoryStoreFromPath(filepath.Join(dir, "snapshot.json"))
	if err != nil {
		t.Fatal(err)
	}
	s := newTestServerWith(t, store)
	id := s.register(t, "disk@example.com", diamondAnswers)
	base := "/api/registration/" + id

	if err := os.WriteFile(dir, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	rr := s.do(t, http.MethodPost, base+"/complete", "", nil)
	expectStatus(t, rr, http.StatusInternalServerError)
	if strings.Contains(rr.Body.String(), "token") {
		t.Fatalf("failed completion must not issue a token: %s", rr.Body.String())
	}
	v := decode[sessionView](t, s.do(t, http.MethodGet, base, "", nil))
	if v.Stage != "result" || v.Result == nil || v.Result.Segment != scoring.SegmentDiamond {
		t.Fatalf("session should stay on the result stage: %+v", v)
	}

	if err := os.Remove(dir); err != nil {
		t.Fatal(err)
	}
	rr = s.do(t, http.MethodPost, base+"/complete", "", nil)
	expectStatus(t, rr, http.StatusCreated)
	if decode[sessionView](t, rr).Token == "" {
		t.Fatalf("retry should complete with a token")
	}
}
