package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dstlead/dstlead/internal/models"
)

// maxAuditEntries bounds the in-memory audit trail; older entries are dropped first.
const maxAuditEntries = 5000

// storedUser carries the password hash, which models.User never serializes.
type storedUser struct {
	models.User
	PassHash []byte `json:"pass_hash"`
}

// Snapshot is the on-disk form of the memory store.
type Snapshot struct {
	Users []storedUser        `json:"users"`
	FAQs  []*models.FAQ       `json:"faqs"`
	Audit []models.AuditEntry `json:"audit"`
}

// SnapshotUsers returns the users held in a snapshot, hashes included.
func (s *Snapshot) SnapshotUsers() []*models.User {
	out := make([]*models.User, 0, len(s.Users))
	for i := range s.Users {
		u := s.Users[i].User
		u.PassHash = s.Users[i].PassHash
		out = append(out, &u)
	}
	return out
}

type memoryStore struct {
	mu           sync.RWMutex
	users        map[string]*models.User
	usersByEmail map[string]*models.User
	faqs         map[string]*models.FAQ
	audit        []models.AuditEntry
	path         string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:        map[string]*models.User{},
		usersByEmail: map[string]*models.User{},
		faqs:         map[string]*models.FAQ{},
		audit:        []models.AuditEntry{},
	}
}

// NewMemoryStore returns an empty store that lives only in memory.
func NewMemoryStore() Store { return newMemoryStore() }

// NewMemoryStoreFromPath loads the snapshot at path, if any, and rewrites it
// after every mutation. A missing file yields an empty store.
func NewMemoryStoreFromPath(path string) (Store, error) {
	s := newMemoryStore()
	if strings.TrimSpace(path) == "" {
		return s, nil
	}
	s.path = path
	snap, err := LoadSnapshot(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	s.restore(snap)
	return s, nil
}

// LoadSnapshot reads a snapshot file. The error wraps os.ErrNotExist when
// the file is missing.
func LoadSnapshot(path string) (*Snapshot, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// MemoryStoreSnapshot captures the state of a memory store, or nil for any
// other Store implementation.
func MemoryStoreSnapshot(st Store) *Snapshot {
	ms, ok := st.(*memoryStore)
	if !ok {
		return nil
	}
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.snapshotLocked()
}

func (s *memoryStore) restore(snap *Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range snap.SnapshotUsers() {
		s.users[u.ID] = u
		s.usersByEmail[strings.ToLower(u.Email)] = u
	}
	for _, f := range snap.FAQs {
		if f != nil {
			s.faqs[f.ID] = f
		}
	}
	s.audit = append(s.audit, snap.Audit...)
}

func (s *memoryStore) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Users: make([]storedUser, 0, len(s.users)),
		FAQs:  make([]*models.FAQ, 0, len(s.faqs)),
		Audit: append([]models.AuditEntry(nil), s.audit...),
	}
	for _, u := range s.users {
		snap.Users = append(snap.Users, storedUser{User: *u, PassHash: u.PassHash})
	}
	sort.Slice(snap.Users, func(i, j int) bool { return snap.Users[i].CreatedAt.Before(snap.Users[j].CreatedAt) })
	for _, f := range s.faqs {
		cp := *f
		snap.FAQs = append(snap.FAQs, &cp)
	}
	sort.Slice(snap.FAQs, func(i, j int) bool { return snap.FAQs[i].ID < snap.FAQs[j].ID })
	return snap
}

// persistLocked rewrites the snapshot file atomically. Must hold s.mu.
// Callers undo their in-memory change when it fails.
func (s *memoryStore) persistLocked() error {
	if s.path == "" {
		return nil
	}
	if err := writeSnapshot(s.path, s.snapshotLocked()); err != nil {
		slog.Error("memory store: persist snapshot", "path", s.path, "error", err)
		return fmt.Errorf("persist snapshot: %w", err)
	}
	return nil
}

func writeSnapshot(path string, snap *Snapshot) error {
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func cloneUser(u *models.User) *models.User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PassHash = append([]byte(nil), u.PassHash...)
	if u.RequalifiedAt != nil {
		at := *u.RequalifiedAt
		cp.RequalifiedAt = &at
	}
	return &cp
}

// users

func (s *memoryStore) CreateUser(_ context.Context, u *models.User) error {
	if u == nil {
		return fmt.Errorf("nil user")
	}
	key := strings.ToLower(u.Email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.usersByEmail[key]; ok {
		return ErrDuplicateEmail
	}
	if _, ok := s.users[u.ID]; ok {
		return fmt.Errorf("user id %s already exists", u.ID)
	}
	rec := cloneUser(u)
	s.users[rec.ID] = rec
	s.usersByEmail[key] = rec
	if err := s.persistLocked(); err != nil {
		delete(s.users, rec.ID)
		delete(s.usersByEmail, key)
		return err
	}
	return nil
}

func (s *memoryStore) FindUserByEmail(_ context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.usersByEmail[strings.ToLower(email)]), nil
}

func (s *memoryStore) GetUser(_ context.Context, id string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.users[id]), nil
}

func (s *memoryStore) ListUsers(_ context.Context) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUser(u))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memoryStore) UpdateAccreditation(_ context.Context, id string, acc models.Accreditation) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	prev := *u
	at := acc.At
	u.AccreditedStatus = acc.Status
	u.AccreditationScore = acc.Score
	u.AccreditationSegment = acc.Segment
	u.QuestionnaireAnswers = acc.Answers
	u.RequalifiedAt = &at
	if err := s.persistLocked(); err != nil {
		*u = prev
		return nil, err
	}
	return cloneUser(u), nil
}

// faqs

func (s *memoryStore) ListFAQs(_ context.Context) ([]*models.FAQ, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.FAQ, 0, len(s.faqs))
	for _, f := range s.faqs {
		cp := *f
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *memoryStore) AddFAQ(_ context.Context, f *models.FAQ) error {
	if f == nil {
		return fmt.Errorf("nil faq")
	}
	cp := *f
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, existed := s.faqs[cp.ID]
	s.faqs[cp.ID] = &cp
	if err := s.persistLocked(); err != nil {
		if existed {
			s.faqs[cp.ID] = prev
		} else {
			delete(s.faqs, cp.ID)
		}
		return err
	}
	return nil
}

// audit log

func (s *memoryStore) AddAudit(_ context.Context, e models.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.audit
	next := append(append(make([]models.AuditEntry, 0, len(prev)+1), prev...), e)
	if over := len(next) - maxAuditEntries; over > 0 {
		next = next[over:]
	}
	s.audit = next
	if err := s.persistLocked(); err != nil {
		s.audit = prev
		return err
	}
	return nil
}

func (s *memoryStore) ListAudit(_ context.Context) ([]models.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.AuditEntry, len(s.audit))
	copy(out, s.audit)
	return out, nil
}
