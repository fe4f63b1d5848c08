package approvals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// SQLiteStore keeps approvals in their own sqlite file, separate from the
// gorm-managed tables. Timestamps are stored as unix nanoseconds.
type SQLiteStore struct {
	dsn string

	mu sync.Mutex
	db *sql.DB
}

func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing sqlite dsn")
	}
	s := &SQLiteStore{dsn: dsn}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Create(ctx context.Context, a Approval) error {
	if err := s.ensureOpen(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO approvals (
  id, org_id, type, content, status,
  requested_by, reviewer_id, review_notes, supersedes,
  created_at_ns, decided_at_ns
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`, a.ID, a.OrgID, a.Type, a.Content, string(a.Status),
		a.RequestedBy, a.ReviewerID, a.ReviewNotes, a.Supersedes,
		a.CreatedAt.UTC().UnixNano(), nullTimeNs(a.DecidedAt),
	)
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Approval, bool, error) {
	if err := s.ensureOpen(); err != nil {
		return Approval{}, false, err
	}
	if strings.TrimSpace(id) == "" {
		return Approval{}, false, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = ?`, id)
	a, err := scanApproval(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Approval{}, false, nil
	}
	if err != nil {
		return Approval{}, false, err
	}
	return a, true, nil
}

func (s *SQLiteStore) Decide(ctx context.Context, a Approval) (bool, error) {
	if err := s.ensureOpen(); err != nil {
		return false, err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE approvals
SET status = ?, reviewer_id = ?, review_notes = ?, decided_at_ns = ?
WHERE id = ? AND status = ?
`, string(a.Status), a.ReviewerID, a.ReviewNotes, nullTimeNs(a.DecidedAt), a.ID, string(StatusPending))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]Approval, error) {
	if err := s.ensureOpen(); err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if f.OrgID != "" {
		where = append(where, "org_id = ?")
		args = append(args, f.OrgID)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.Supersedes != "" {
		where = append(where, "supersedes = ?")
		args = append(args, f.Supersedes)
	}
	q := `SELECT ` + approvalColumns + ` FROM approvals`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY created_at_ns ASC, rowid ASC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

const approvalColumns = `id, org_id, type, content, status,
  requested_by, reviewer_id, review_notes, supersedes,
  created_at_ns, decided_at_ns`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(r rowScanner) (Approval, error) {
	var (
		a           Approval
		status      string
		createdAtNs int64
		decidedAtNs sql.NullInt64
	)
	if err := r.Scan(
		&a.ID, &a.OrgID, &a.Type, &a.Content, &status,
		&a.RequestedBy, &a.ReviewerID, &a.ReviewNotes, &a.Supersedes,
		&createdAtNs, &decidedAtNs,
	); err != nil {
		return Approval{}, err
	}
	a.Status = Status(status)
	a.CreatedAt = time.Unix(0, createdAtNs).UTC()
	if decidedAtNs.Valid {
		t := time.Unix(0, decidedAtNs.Int64).UTC()
		a.DecidedAt = &t
	}
	return a, nil
}

func (s *SQLiteStore) open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return nil
	}
	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return err
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	s.db = db
	return s.migrate()
}

func (s *SQLiteStore) ensureOpen() error {
	if s == nil {
		return fmt.Errorf("nil approval store")
	}
	s.mu.Lock()
	ok := s.db != nil
	s.mu.Unlock()
	if ok {
		return nil
	}
	return s.open()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS approvals (
  id TEXT PRIMARY KEY,
  org_id TEXT NOT NULL DEFAULT '',
  type TEXT NOT NULL,
  content TEXT NOT NULL,
  status TEXT NOT NULL,
  requested_by TEXT NOT NULL DEFAULT '',
  reviewer_id TEXT NOT NULL DEFAULT '',
  review_notes TEXT NOT NULL DEFAULT '',
  supersedes TEXT NOT NULL DEFAULT '',
  created_at_ns INTEGER NOT NULL,
  decided_at_ns INTEGER
);
CREATE INDEX IF NOT EXISTS idx_approvals_status ON approvals(status);
CREATE INDEX IF NOT EXISTS idx_approvals_supersedes ON approvals(supersedes);
`)
	return err
}

func nullTimeNs(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().UnixNano()
}
