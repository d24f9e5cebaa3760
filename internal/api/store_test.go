package api

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dstlead/dstlead/internal/models"
)

func sampleUser(id, email string, at time.Time) *models.User {
	return &models.User{
		ID:                   id,
		Email:                email,
		PassHash:             []byte("hash-" + id),
		FirstName:            "Ada",
		LastName:             "Lovelace",
		Role:                 models.RoleInvestor,
		AccreditedStatus:     true,
		AccreditationScore:   82,
		AccreditationSegment: "diamond",
		CreatedAt:            at,
	}
}

func TestMemoryStoreUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := s.CreateUser(ctx, sampleUser("u2", "b@example.com", t0.Add(time.Hour))); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, sampleUser("u1", "a@example.com", t0)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if err := s.CreateUser(ctx, sampleUser("u3", "A@Example.com", t0)); !errors.Is(err, ErrDuplicateEmail) {
		t.Fatalf("want ErrDuplicateEmail, got %v", err)
	}

	got, _ := s.FindUserByEmail(ctx, "A@EXAMPLE.COM")
	if got == nil || got.ID != "u1" {
		t.Fatalf("case-insensitive lookup failed: %+v", got)
	}
	got.FirstName = "mutated"
	again, _ := s.GetUser(ctx, "u1")
	if again.FirstName != "Ada" {
		t.Fatalf("store returned a shared pointer")
	}
	if missing, err := s.GetUser(ctx, "nope"); missing != nil || err != nil {
		t.Fatalf("missing user should be (nil, nil), got %v %v", missing, err)
	}

	list, _ := s.ListUsers(ctx)
	if len(list) != 2 || list[0].ID != "u1" || list[1].ID != "u2" {
		t.Fatalf("ListUsers should be ordered by creation: %+v", list)
	}

	at := t0.Add(48 * time.Hour)
	u, err := s.UpdateAccreditation(ctx, "u2", models.Accreditation{Status: false, Score: 12, Segment: "cold", Answers: "{}", At: at})
	if err != nil || u == nil {
		t.Fatalf("UpdateAccreditation: %v", err)
	}
	if u.AccreditationSegment != "cold" || u.AccreditedStatus || u.RequalifiedAt == nil || !u.RequalifiedAt.Equal(at) {
		t.Fatalf("unexpected update %+v", u)
	}
	if u, _ := s.UpdateAccreditation(ctx, "nope", models.Accreditation{}); u != nil {
		t.Fatalf("updating a missing user should return nil")
	}
}

func TestMemoryStoreFAQsAndAudit(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	_ = s.AddFAQ(ctx, &models.FAQ{ID: "b", Question: "Q2", Answer: "A", Order: 1})
	_ = s.AddFAQ(ctx, &models.FAQ{ID: "a", Question: "Q1", Answer: "A", Order: 1})
	_ = s.AddFAQ(ctx, &models.FAQ{ID: "c", Question: "Q0", Answer: "A", Order: 0})
	faqs, _ := s.ListFAQs(ctx)
	if len(faqs) != 3 || faqs[0].ID != "c" || faqs[1].ID != "a" {
		t.Fatalf("unexpected faq order %+v", faqs)
	}

	ms := s.(*memoryStore)
	for i := 0; i < maxAuditEntries+3; i++ {
		_ = s.AddAudit(ctx, models.AuditEntry{Action: "x", Note: string(rune('a' + i%26))})
	}
	entries, _ := s.ListAudit(ctx)
	if len(entries) != maxAuditEntries || len(ms.audit) != maxAuditEntries {
		t.Fatalf("audit should be capped at %d, got %d", maxAuditEntries, len(entries))
	}
	if entries[0].Note != "d" {
		t.Fatalf("oldest entries should be dropped first, got %q", entries[0].Note)
	}
}

func TestMemoryStoreSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "snapshot.json")

	s, err := NewMemoryStoreFromPath(path)
	if err != nil {
		t.Fatalf("open empty: %v", err)
	}
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := s.CreateUser(ctx, sampleUser("u1", "a@example.com", t0)); err != nil {
		t.Fatal(err)
	}
	_ = s.AddFAQ(ctx, &models.FAQ{ID: "f1", Question: "Q", Answer: "A"})
	_ = s.AddAudit(ctx, models.AuditEntry{Time: t0, Actor: "u1", Action: "user.register"})

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("snapshot not written: %v", err)
	}

	reopened, err := NewMemoryStoreFromPath(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	u, _ := reopened.FindUserByEmail(ctx, "a@example.com")
	if u == nil || string(u.PassHash) != "hash-u1" || u.AccreditationScore != 82 {
		t.Fatalf("user not restored with hash: %+v", u)
	}
	faqs, _ := reopened.ListFAQs(ctx)
	audit, _ := reopened.ListAudit(ctx)
	if len(faqs) != 1 || len(audit) != 1 {
		t.Fatalf("faqs=%d audit=%d", len(faqs), len(audit))
	}

	snap := MemoryStoreSnapshot(reopened)
	if snap == nil || len(snap.SnapshotUsers()) != 1 {
		t.Fatalf("MemoryStoreSnapshot: %+v", snap)
	}
}

func TestLoadSnapshotErrors(t *testing.T) {
	dir := t.TempDir()
	if _, err := LoadSnapshot(filepath.Join(dir, "missing.json")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("want ErrNotExist, got %v", err)
	}
	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(bad); err == nil {
		t.Fatalf("want decode error")
	}
	if _, err := NewMemoryStoreFromPath(bad); err == nil {
		t.Fatalf("corrupt snapshot should fail to open")
	}
	if MemoryStoreSnapshot(nil) != nil {
		t.Fatalf("non-memory store should yield nil snapshot")
	}
}

func TestMemoryStorePersistFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	s, err := NewMemoryStoreFromPath(filepath.Join(blocker, "snapshot.json"))
	if err != nil {
		t.Fatal(err)
	}
	t0 := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := s.CreateUser(ctx, sampleUser("u1", "a@example.com", t0)); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	// Turn the snapshot directory into a plain file so every write fails.
	if err := os.RemoveAll(blocker); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(blocker, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.CreateUser(ctx, sampleUser("u2", "b@example.com", t0)); err == nil {
		t.Fatalf("CreateUser should fail when the snapshot cannot be written")
	}
	if u, _ := s.FindUserByEmail(ctx, "b@example.com"); u != nil {
		t.Fatalf("failed create must not stay in memory: %+v", u)
	}
	if _, err := s.UpdateAccreditation(ctx, "u1", models.Accreditation{Score: 1, Segment: "cold", At: t0}); err == nil {
		t.Fatalf("UpdateAccreditation should fail")
	}
	if u, _ := s.GetUser(ctx, "u1"); u.AccreditationSegment != "diamond" || u.RequalifiedAt != nil {
		t.Fatalf("failed update must be rolled back: %+v", u)
	}
	if err := s.AddFAQ(ctx, &models.FAQ{ID: "f1", Question: "Q", Answer: "A"}); err == nil {
		t.Fatalf("AddFAQ should fail")
	}
	if err := s.AddAudit(ctx, models.AuditEntry{Action: "x"}); err == nil {
		t.Fatalf("AddAudit should fail")
	}
	faqs, _ := s.ListFAQs(ctx)
	audit, _ := s.ListAudit(ctx)
	if len(faqs) != 0 || len(audit) != 0 {
		t.Fatalf("failed writes left faqs=%d audit=%d", len(faqs), len(audit))
	}

	// Once the directory is back, the same email can register.
	if err := os.Remove(blocker); err != nil {
		t.Fatal(err)
	}
	if err := s.CreateUser(ctx, sampleUser("u2", "b@example.com", t0)); err != nil {
		t.Fatalf("retry after recovery: %v", err)
	}
}
