package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chemtrainer/trainer/internal/model"
)

// InsertAssignedWork stores an assigned work and returns its id. The slug must be unique.
// Each question may appear once.
func (s *Store) InsertAssignedWork(aw model.AssignedWork) (int64, error) {
	seen := make(map[int64]bool, len(aw.QuestionIDs))
	for _, qid := range aw.QuestionIDs {
		if seen[qid] {
			return 0, fmt.Errorf("assigned work %q, question %d: %w", aw.Slug, qid, ErrDuplicateQuestion)
		}
		seen[qid] = true
	}
	ids, err := encodeJSON(aw.QuestionIDs)
	if err != nil {
		return 0, err
	}
	if aw.CreatedAt.IsZero() {
		aw.CreatedAt = time.Now()
	}
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO assigned_works (name, slug, question_ids_json, deleted, created_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		aw.Name, aw.Slug, ids, false, toMillis(aw.CreatedAt),
	).Scan(&id)
	return id, err
}

func scanAssignedWork(row scanner) (model.AssignedWork, error) {
	var aw model.AssignedWork
	var ids string
	var created int64
	if err := row.Scan(&aw.ID, &aw.Name, &aw.Slug, &ids, &aw.Deleted, &created); err != nil {
		return aw, err
	}
	if err := json.Unmarshal([]byte(ids), &aw.QuestionIDs); err != nil {
		return aw, fmt.Errorf("decode questions of assigned work %d: %w", aw.ID, err)
	}
	aw.CreatedAt = fromMillis(created)
	return aw, nil
}

// GetAssignedWork returns an assigned work by ID, deleted or not.
func (s *Store) GetAssignedWork(id int64) (model.AssignedWork, error) {
	aw, err := scanAssignedWork(s.db.QueryRow(
		`SELECT id, name, slug, question_ids_json, deleted, created_at FROM assigned_works WHERE id = $1`, id))
	return aw, notFound(err)
}

// GetAssignedWorkBySlug returns a live assigned work by its public slug.
func (s *Store) GetAssignedWorkBySlug(slug string) (model.AssignedWork, error) {
	aw, err := scanAssignedWork(s.db.QueryRow(
		`SELECT id, name, slug, question_ids_json, deleted, created_at
		 FROM assigned_works WHERE slug = $1 AND deleted = $2`, slug, false))
	return aw, notFound(err)
}

// ListAssignedWorks returns live assigned works, newest first.
func (s *Store) ListAssignedWorks() ([]model.AssignedWork, error) {
	rows, err := s.db.Query(
		`SELECT id, name, slug, question_ids_json, deleted, created_at
		 FROM assigned_works WHERE deleted = $1 ORDER BY created_at DESC, id DESC`, false)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var works []model.AssignedWork
	for rows.Next() {
		aw, err := scanAssignedWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, aw)
	}
	return works, rows.Err()
}

// DeleteAssignedWork soft-deletes an assigned work. Works already started from it keep their slots.
func (s *Store) DeleteAssignedWork(id int64) error {
	res, err := s.db.Exec(`UPDATE assigned_works SET deleted = $1 WHERE id = $2 AND deleted = $3`, true, id, false)
	if err != nil {
		return err
	}
	return expectOne(res)
}
