package store

import (
	"database/sql"
	"time"
)

// Capture is one stored capture. Image holds JPEG bytes and is only
// populated by GetByID.
type Capture struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Mode        string    `json:"mode"`
	HandSide    string    `json:"hand_side,omitempty"`
	FaceQuality float64   `json:"face_quality,omitempty"`
	FrameIndex  int64     `json:"frame_index"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Image       []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
}

// CaptureRepository provides access to captures.
type CaptureRepository struct {
	db *sql.DB
}

// Captures returns the capture repository for this store.
func (s *Store) Captures() *CaptureRepository {
	return &CaptureRepository{db: s.db}
}

const captureMeta = `id, session_id, mode, hand_side, face_quality, frame_index, width, height, created_at`

// Create inserts c and marks its session captured in one transaction.
func (r *CaptureRepository) Create(c *Capture) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO captures (id, session_id, mode, hand_side, face_quality, frame_index, width, height, image, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.SessionID, c.Mode, c.HandSide, c.FaceQuality, c.FrameIndex, c.Width, c.Height, c.Image, c.CreatedAt,
	)
	if err != nil {
		return err
	}

	res, err := tx.Exec(`UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`,
		StatusCaptured, c.CreatedAt, c.SessionID)
	if err != nil {
		return err
	}
	if err := affected(res); err != nil {
		return err
	}

	return tx.Commit()
}

// GetByID retrieves a capture including its image.
func (r *CaptureRepository) GetByID(id string) (*Capture, error) {
	c := &Capture{}
	err := r.db.QueryRow(
		`SELECT `+captureMeta+`, image FROM captures WHERE id = ?`, id,
	).Scan(&c.ID, &c.SessionID, &c.Mode, &c.HandSide, &c.FaceQuality, &c.FrameIndex, &c.Width, &c.Height, &c.CreatedAt, &c.Image)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// ListBySession returns a session's captures without images, oldest first.
func (r *CaptureRepository) ListBySession(sessionID string) ([]*Capture, error) {
	rows, err := r.db.Query(
		`SELECT `+captureMeta+` FROM captures WHERE session_id = ? ORDER BY created_at, frame_index`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Capture
	for rows.Next() {
		c := &Capture{}
		if err := rows.Scan(&c.ID, &c.SessionID, &c.Mode, &c.HandSide, &c.FaceQuality, &c.FrameIndex, &c.Width, &c.Height, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Latest returns the most recent capture without its image.
func (r *CaptureRepository) Latest() (*Capture, error) {
	c := &Capture{}
	err := r.db.QueryRow(
		`SELECT ` + captureMeta + ` FROM captures ORDER BY created_at DESC LIMIT 1`,
	).Scan(&c.ID, &c.SessionID, &c.Mode, &c.HandSide, &c.FaceQuality, &c.FrameIndex, &c.Width, &c.Height, &c.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return c, nil
}

// Delete removes a single capture.
func (r *CaptureRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM captures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affected(res)
}
