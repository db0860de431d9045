// Package inbox keeps contact submissions in a database so the site owner can
// review them from the admin area. It backs the "inbox" notification channel.
package inbox

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/Zachkp/portfolio/internal/contact"
)

var ErrNotFound = errors.New("message not found")

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Message is a stored submission.
type Message struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Message      string    `json:"message"`
	HashedIP     string    `json:"hashed_ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
	Acknowledged bool      `json:"acknowledged"`
}

// row mirrors the table; timestamps are unix milliseconds so both drivers
// compare them the same way.
type row struct {
	ID           string `db:"id"`
	Name         string `db:"name"`
	Email        string `db:"email"`
	Message      string `db:"message"`
	HashedIP     string `db:"hashed_ip"`
	UserAgent    string `db:"user_agent"`
	SubmittedAt  int64  `db:"submitted_at"`
	Acknowledged bool   `db:"acknowledged"`
}

func (r row) toMessage() Message {
	return Message{
		ID:           r.ID,
		Name:         r.Name,
		Email:        r.Email,
		Message:      r.Message,
		HashedIP:     r.HashedIP,
		UserAgent:    r.UserAgent,
		SubmittedAt:  time.UnixMilli(r.SubmittedAt).UTC(),
		Acknowledged: r.Acknowledged,
	}
}

type Stats struct {
	Total          int64 `json:"total" db:"total"`
	Unacknowledged int64 `json:"unacknowledged" db:"unacknowledged"`
	Today          int64 `json:"today" db:"today"`
	ThisWeek       int64 `json:"this_week" db:"this_week"`
}

type ListOptions struct {
	Limit              int
	UnacknowledgedOnly bool
}

type Store struct {
	db     *sqlx.DB
	driver string
}

// Open connects to the inbox database. For sqlite the DSN is a file path whose
// directory is created if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	if driver == DriverSQLite && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("failed to create inbox directory: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to inbox database: %w", err)
	}
	if driver == DriverSQLite {
		// single writer avoids SQLITE_BUSY under concurrent submissions
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, driver: driver}, nil
}

// NewStore wraps an existing connection.
func NewStore(db *sqlx.DB, driver string) *Store {
	return &Store{db: db, driver: driver}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the messages table if it doesn't exist.
func (s *Store) Migrate(ctx context.Context) error {
	ack := "INTEGER NOT NULL DEFAULT 0"
	if s.driver == DriverPostgres {
		ack = "BOOLEAN NOT NULL DEFAULT FALSE"
	}
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS contact_messages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			message TEXT NOT NULL,
			hashed_ip TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			submitted_at BIGINT NOT NULL,
			acknowledged ` + ack + `
		)`,
		`CREATE INDEX IF NOT EXISTS idx_contact_messages_submitted_at ON contact_messages (submitted_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate inbox: %w", err)
		}
	}
	return nil
}

// Save stores a submission under a fresh id.
func (s *Store) Save(ctx context.Context, sub contact.Submission) (Message, error) {
	r := row{
		ID:           uuid.NewString(),
		Name:         sub.Name,
		Email:        sub.Email,
		Message:      sub.Message,
		HashedIP:     sub.Source.ClientIP,
		UserAgent:    sub.Source.UserAgent,
		SubmittedAt:  sub.SubmittedAt.UnixMilli(),
		Acknowledged: false,
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO contact_messages (id, name, email, message, hashed_ip, user_agent, submitted_at, acknowledged)
		VALUES (:id, :name, :email, :message, :hashed_ip, :user_agent, :submitted_at, :acknowledged)`, r)
	if err != nil {
		return Message{}, fmt.Errorf("failed to save message: %w", err)
	}
	return r.toMessage(), nil
}

func (s *Store) Get(ctx context.Context, id string) (Message, error) {
	var r row
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`
		SELECT id, name, email, message, hashed_ip, user_agent, submitted_at, acknowledged
		FROM contact_messages WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("failed to load message: %w", err)
	}
	return r.toMessage(), nil
}

// List returns messages newest first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Message, error) {
	if opts.Limit <= 0 || opts.Limit > 500 {
		opts.Limit = 200
	}
	q := `SELECT id, name, email, message, hashed_ip, user_agent, submitted_at, acknowledged
		FROM contact_messages`
	if opts.UnacknowledgedOnly {
		q += ` WHERE acknowledged = ?`
	}
	q += ` ORDER BY submitted_at DESC LIMIT ?`

	args := []any{opts.Limit}
	if opts.UnacknowledgedOnly {
		args = []any{false, opts.Limit}
	}

	var rows []row
	if err := s.db.SelectContext(ctx, &rows, s.db.Rebind(q), args...); err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	msgs := make([]Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage())
	}
	return msgs, nil
}

func (s *Store) Acknowledge(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE contact_messages SET acknowledged = ? WHERE id = ?`), true, id)
	if err != nil {
		return fmt.Errorf("failed to acknowledge message: %w", err)
	}
	return expectOne(res)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM contact_messages WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return expectOne(res)
}

// Purge removes messages submitted before cutoff and returns how many went.
func (s *Store) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM contact_messages WHERE submitted_at < ?`), cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("failed to purge messages: %w", err)
	}
	return res.RowsAffected()
}

// Stats counts messages relative to now (UTC days).
func (s *Store) Stats(ctx context.Context, now time.Time) (Stats, error) {
	now = now.UTC()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekAgo := now.Add(-7 * 24 * time.Hour)

	var st Stats
	err := s.db.GetContext(ctx, &st, s.db.Rebind(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN acknowledged = ? THEN 1 ELSE 0 END), 0) AS unacknowledged,
			COALESCE(SUM(CASE WHEN submitted_at >= ? THEN 1 ELSE 0 END), 0) AS today,
			COALESCE(SUM(CASE WHEN submitted_at >= ? THEN 1 ELSE 0 END), 0) AS this_week
		FROM contact_messages`), false, startOfDay.UnixMilli(), weekAgo.UnixMilli())
	if err != nil {
		return Stats{}, fmt.Errorf("failed to load inbox stats: %w", err)
	}
	return st, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
