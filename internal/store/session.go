package store

import (
	"database/sql"
	"time"
)

// Session statuses.
const (
	StatusActive   = "active"
	StatusCaptured = "captured"
	StatusClosed   = "closed"
)

// Session is a persisted capture attempt.
type Session struct {
	ID        string    `json:"id"`
	Mode      string    `json:"mode"`
	Variant   string    `json:"variant,omitempty"`
	Status    string    `json:"status"`
	Resets    int       `json:"resets"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionRepository provides CRUD operations for sessions.
type SessionRepository struct {
	db *sql.DB
}

// Sessions returns the session repository for this store.
func (s *Store) Sessions() *SessionRepository {
	return &SessionRepository{db: s.db}
}

const sessionColumns = `id, mode, variant, status, resets, created_at, updated_at`

func scanSession(row interface{ Scan(...any) error }) (*Session, error) {
	rec := &Session{}
	err := row.Scan(&rec.ID, &rec.Mode, &rec.Variant, &rec.Status, &rec.Resets, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a new session. An empty Status is stored as active.
func (r *SessionRepository) Create(rec *Session) error {
	now := time.Now()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusActive
	}

	_, err := r.db.Exec(
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Mode, rec.Variant, rec.Status, rec.Resets, rec.CreatedAt, rec.UpdatedAt,
	)
	return err
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(id string) (*Session, error) {
	rec, err := scanSession(r.db.QueryRow(`SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return rec, nil
}

// List retrieves all sessions, newest first.
func (r *SessionRepository) List() ([]*Session, error) {
	rows, err := r.db.Query(`SELECT ` + sessionColumns + ` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Session
	for rows.Next() {
		rec, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetStatus changes a session's status.
func (r *SessionRepository) SetStatus(id, status string) error {
	res, err := r.db.Exec(`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`, status, time.Now(), id)
	if err != nil {
		return err
	}
	return affected(res)
}

// RecordReset increments the reset counter and marks the session active
// again.
func (r *SessionRepository) RecordReset(id string) error {
	res, err := r.db.Exec(
		`UPDATE sessions SET resets = resets + 1, status = ?, updated_at = ? WHERE id = ?`,
		StatusActive, time.Now(), id,
	)
	if err != nil {
		return err
	}
	return affected(res)
}

// CloseActive marks every active or captured session closed. Used at
// startup to clean up after an unclean shutdown.
func (r *SessionRepository) CloseActive() (int64, error) {
	res, err := r.db.Exec(
		`UPDATE sessions SET status = ?, updated_at = ? WHERE status != ?`,
		StatusClosed, time.Now(), StatusClosed,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Delete removes a session and, by cascade, its captures.
func (r *SessionRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
