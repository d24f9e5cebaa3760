package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/dstlead/dstlead/internal/api"
	"github.com/dstlead/dstlead/internal/models"
)

// auditLimit caps how many of the newest audit rows ListAudit returns.
const auditLimit = 5000

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	for _, stmt := range pragmas {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
		}
	}
	return &SQLiteStore{db: db}, nil
}

func NewStore(db *sql.DB) (api.Store, error) {
	return NewSQLiteStore(db)
}

// Open opens (creating if needed) the database at path and applies migrations.
func Open(path, migrationsDir string) (*sql.DB, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_busy_timeout=5000", path)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if err := RunMigrations(conn, migrationsDir); err != nil {
		conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return conn, nil
}

func toNullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func toNullTime(t *time.Time) sql.NullTime {
	if t == nil || t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

// --- users ---

const userColumns = `id, email, pass_hash, first_name, last_name, phone, role,
	accredited_status, accreditation_score, accreditation_segment,
	questionnaire_answers, created_at, requalified_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u           models.User
		phone       sql.NullString
		answers     sql.NullString
		requalified sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Email, &u.PassHash, &u.FirstName, &u.LastName, &phone, &u.Role,
		&u.AccreditedStatus, &u.AccreditationScore, &u.AccreditationSegment,
		&answers, &u.CreatedAt, &requalified)
	if err != nil {
		return nil, err
	}
	u.Phone = phone.String
	u.QuestionnaireAnswers = answers.String
	u.CreatedAt = u.CreatedAt.UTC()
	if requalified.Valid {
		at := requalified.Time.UTC()
		u.RequalifiedAt = &at
	}
	return &u, nil
}

func (s *SQLiteStore) CreateUser(ctx context.Context, u *models.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	created := u.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, strings.ToLower(u.Email), u.PassHash, u.FirstName, u.LastName, toNullString(u.Phone), u.Role,
		u.AccreditedStatus, u.AccreditationScore, u.AccreditationSegment,
		toNullString(u.QuestionnaireAnswers), created.UTC(), toNullTime(u.RequalifiedAt))
	if isUniqueViolation(err) {
		return api.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *SQLiteStore) queryUser(ctx context.Context, where string, arg any) (*models.User, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}
	return u, nil
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.queryUser(ctx, "email = ? COLLATE NOCASE", strings.TrimSpace(email))
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return s.queryUser(ctx, "id = ?", id)
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateAccreditation(ctx context.Context, id string, acc models.Accreditation) (*models.User, error) {
	at := acc.At
	res, err := s.db.ExecContext(ctx, `UPDATE users SET accredited_status = ?, accreditation_score = ?,
		accreditation_segment = ?, questionnaire_answers = ?, requalified_at = ? WHERE id = ?`,
		acc.Status, acc.Score, acc.Segment, toNullString(acc.Answers), toNullTime(&at), id)
	if err != nil {
		return nil, fmt.Errorf("update accreditation: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil, nil
	}
	return s.GetUser(ctx, id)
}

// --- faqs ---

func (s *SQLiteStore) ListFAQs(ctx context.Context) ([]*models.FAQ, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, question, answer, category, sort_order FROM faqs ORDER BY sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list faqs: %w", err)
	}
	defer rows.Close()
	var out []*models.FAQ
	for rows.Next() {
		var (
			f   models.FAQ
			cat sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Question, &f.Answer, &cat, &f.Order); err != nil {
			return nil, fmt.Errorf("scan faq: %w", err)
		}
		f.Category = cat.String
		out = append(out, &f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AddFAQ(ctx context.Context, f *models.FAQ) error {
	if f == nil {
		return errors.New("nil faq")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO faqs (id, question, answer, category, sort_order) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET question = excluded.question, answer = excluded.answer,
		category = excluded.category, sort_order = excluded.sort_order`,
		f.ID, f.Question, f.Answer, toNullString(f.Category), f.Order)
	if err != nil {
		return fmt.Errorf("insert faq: %w", err)
	}
	return nil
}

// --- audit ---

func (s *SQLiteStore) AddAudit(ctx context.Context, e models.AuditEntry) error {
	ts := e.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO audit_log (ts, actor, action, target, note) VALUES (?, ?, ?, ?, ?)`,
		ts.UTC(), e.Actor, e.Action, toNullString(e.Target), toNullString(e.Note))
	if err != nil {
		return fmt.Errorf("insert audit: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ts, actor, action, target, note FROM audit_log ORDER BY id DESC LIMIT ?`, auditLimit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()
	out := []models.AuditEntry{}
	for rows.Next() {
		var (
			e            models.AuditEntry
			target, note sql.NullString
		)
		if err := rows.Scan(&e.Time, &e.Actor, &e.Action, &target, &note); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Time = e.Time.UTC()
		e.Target, e.Note = target.String, note.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// oldest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

var _ api.Store = (*SQLiteStore)(nil)
