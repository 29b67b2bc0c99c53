package store

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/chemtrainer/trainer/internal/model"
)

// EnsureLearner returns the learner with the given external id, registering
// them on first contact. A non-empty name replaces the stored one.
func (s *Store) EnsureLearner(externalID, name string) (*model.Learner, error) {
	l, err := s.GetLearnerByExternalID(externalID)
	if err != nil {
		return nil, err
	}
	if l != nil {
		if name != "" && name != l.Name {
			if _, err := s.db.Exec(`UPDATE learners SET name = $1 WHERE id = $2`, name, l.ID); err != nil {
				return nil, err
			}
			l.Name = name
		}
		return l, nil
	}

	now := time.Now().UTC()
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO learners (external_id, name, created_at) VALUES ($1, $2, $3)
		 ON CONFLICT (external_id) DO UPDATE SET external_id = excluded.external_id
		 RETURNING id`,
		externalID, name, toMillis(now),
	).Scan(&id)
	if err != nil {
		slog.Error("failed to register learner", "external_id", externalID, "error", err)
		return nil, err
	}
	slog.Info("registered learner", "id", id, "external_id", externalID)
	return &model.Learner{ID: id, ExternalID: externalID, Name: name, CreatedAt: fromMillis(toMillis(now))}, nil
}

func scanLearner(row scanner) (*model.Learner, error) {
	var l model.Learner
	var created int64
	err := row.Scan(&l.ID, &l.ExternalID, &l.Name, &created)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	l.CreatedAt = fromMillis(created)
	return &l, nil
}

// GetLearnerByExternalID returns a learner by external id, or nil.
func (s *Store) GetLearnerByExternalID(externalID string) (*model.Learner, error) {
	return scanLearner(s.db.QueryRow(
		`SELECT id, external_id, name, created_at FROM learners WHERE external_id = $1`, externalID))
}

// GetLearner returns a learner by ID, or nil.
func (s *Store) GetLearner(id int64) (*model.Learner, error) {
	return scanLearner(s.db.QueryRow(
		`SELECT id, external_id, name, created_at FROM learners WHERE id = $1`, id))
}

// ListLearners returns all learners.
func (s *Store) ListLearners() ([]model.Learner, error) {
	rows, err := s.db.Query(`SELECT id, external_id, name, created_at FROM learners ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var learners []model.Learner
	for rows.Next() {
		l, err := scanLearner(rows)
		if err != nil {
			return nil, err
		}
		learners = append(learners, *l)
	}
	return learners, rows.Err()
}
