package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Sample is a drum sound in the sample bank. Note is the MIDI note the
// backend plays for it; Quadrant is 0 when unbound.
type Sample struct {
	ID        string
	Name      string
	Note      int
	Quadrant  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ErrInvalidQuadrant is returned for quadrants outside 0-4.
var ErrInvalidQuadrant = errors.New("quadrant must be between 1 and 4, or 0 to unbind")

// SampleRepository provides CRUD operations for samples.
type SampleRepository struct {
	db *sql.DB
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{db: s.db}
}

func nullQuadrant(q int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(q), Valid: q != 0}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSample(row rowScanner) (*Sample, error) {
	s := &Sample{}
	var quadrant sql.NullInt64
	if err := row.Scan(&s.ID, &s.Name, &s.Note, &quadrant, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	if quadrant.Valid {
		s.Quadrant = int(quadrant.Int64)
	}
	return s, nil
}

const sampleColumns = `id, name, note, quadrant, created_at, updated_at`

// Create inserts a sample. A quadrant already held by another sample is
// moved to the new one.
func (r *SampleRepository) Create(s *Sample) error {
	if s.Quadrant < 0 || s.Quadrant > 4 {
		return ErrInvalidQuadrant
	}
	now := time.Now()
	s.CreatedAt = now
	s.UpdatedAt = now

	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if s.Quadrant != 0 {
		if _, err := tx.Exec(`UPDATE samples SET quadrant = NULL WHERE quadrant = ?`, s.Quadrant); err != nil {
			return err
		}
	}
	_, err = tx.Exec(
		`INSERT INTO samples (id, name, note, quadrant, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		s.ID, s.Name, s.Note, nullQuadrant(s.Quadrant), s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert sample: %w", err)
	}
	return tx.Commit()
}

// GetByID retrieves a sample by id.
func (r *SampleRepository) GetByID(id string) (*Sample, error) {
	s, err := scanSample(r.db.QueryRow(`SELECT `+sampleColumns+` FROM samples WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return s, err
}

// List returns every sample ordered by name.
func (r *SampleRepository) List() ([]*Sample, error) {
	rows, err := r.db.Query(`SELECT ` + sampleColumns + ` FROM samples ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []*Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		samples = append(samples, s)
	}
	return samples, rows.Err()
}

// Update changes a sample's name and note. Use Assign to move quadrants.
func (r *SampleRepository) Update(s *Sample) error {
	s.UpdatedAt = time.Now()
	result, err := r.db.Exec(
		`UPDATE samples SET name = ?, note = ?, updated_at = ? WHERE id = ?`,
		s.Name, s.Note, s.UpdatedAt, s.ID,
	)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Assign binds a sample to a quadrant, unbinding whichever sample held it.
// Quadrant 0 unbinds the sample.
func (r *SampleRepository) Assign(id string, quadrant int) error {
	if quadrant < 0 || quadrant > 4 {
		return ErrInvalidQuadrant
	}
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if quadrant != 0 {
		if _, err := tx.Exec(`UPDATE samples SET quadrant = NULL WHERE quadrant = ? AND id != ?`, quadrant, id); err != nil {
			return err
		}
	}
	result, err := tx.Exec(
		`UPDATE samples SET quadrant = ?, updated_at = ? WHERE id = ?`,
		nullQuadrant(quadrant), time.Now(), id,
	)
	if err != nil {
		return err
	}
	if err := expectRow(result); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a sample.
func (r *SampleRepository) Delete(id string) error {
	result, err := r.db.Exec(`DELETE FROM samples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectRow(result)
}

// Layout returns quadrant -> sample id for every bound sample.
func (r *SampleRepository) Layout() (map[int]string, error) {
	rows, err := r.db.Query(`SELECT quadrant, id FROM samples WHERE quadrant IS NOT NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	layout := make(map[int]string)
	for rows.Next() {
		var q int
		var id string
		if err := rows.Scan(&q, &id); err != nil {
			return nil, err
		}
		layout[q] = id
	}
	return layout, rows.Err()
}

// Notes returns sample id -> MIDI note for every sample.
func (r *SampleRepository) Notes() (map[string]uint8, error) {
	rows, err := r.db.Query(`SELECT id, note FROM samples`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	notes := make(map[string]uint8)
	for rows.Next() {
		var id string
		var note int
		if err := rows.Scan(&id, &note); err != nil {
			return nil, err
		}
		notes[id] = uint8(note)
	}
	return notes, rows.Err()
}

func expectRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
