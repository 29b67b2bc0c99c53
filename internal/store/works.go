package store

import (
	"database/sql"
	"fmt"

	"github.com/chemtrainer/trainer/internal/model"
)

const workColumns = `id, owner_id, mode, topic_id, assigned_work_id, started_at, ended_at, share_token`

func scanWork(row scanner) (model.Work, error) {
	var w model.Work
	var topicID, assignedID, ended sql.NullInt64
	var started int64
	var token sql.NullString
	if err := row.Scan(&w.ID, &w.OwnerID, &w.Mode, &topicID, &assignedID, &started, &ended, &token); err != nil {
		return w, err
	}
	w.TopicID = int64Ptr(topicID)
	w.AssignedWorkID = int64Ptr(assignedID)
	w.StartedAt = fromMillis(started)
	w.EndedAt = millisPtr(ended)
	w.ShareToken = token.String
	return w, nil
}

func (s *Store) queryWorks(query string, args ...any) ([]model.Work, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var works []model.Work
	for rows.Next() {
		w, err := scanWork(rows)
		if err != nil {
			return nil, err
		}
		works = append(works, w)
	}
	return works, rows.Err()
}

// CreateWork creates a work with one waiting slot per question, positions 1..n,
// in a single transaction.
func (s *Store) CreateWork(w model.Work, questionIDs []int64) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var workID int64
	err = tx.QueryRow(
		`INSERT INTO works (owner_id, mode, topic_id, assigned_work_id, started_at)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		w.OwnerID, string(w.Mode), nullInt64(w.TopicID), nullInt64(w.AssignedWorkID), toMillis(w.StartedAt),
	).Scan(&workID)
	if err != nil {
		return 0, fmt.Errorf("insert work: %w", err)
	}

	for i, qID := range questionIDs {
		_, err := tx.Exec(
			`INSERT INTO work_questions (work_id, question_id, position, status) VALUES ($1, $2, $3, $4)`,
			workID, qID, i+1, string(model.SlotWaiting),
		)
		if err != nil {
			return 0, fmt.Errorf("insert slot %d: %w", i+1, err)
		}
	}

	return workID, tx.Commit()
}

// GetWork returns a work by ID.
func (s *Store) GetWork(id int64) (model.Work, error) {
	w, err := scanWork(s.db.QueryRow(`SELECT `+workColumns+` FROM works WHERE id = $1`, id))
	return w, notFound(err)
}

// GetWorkByToken returns the ended work carrying a share token.
func (s *Store) GetWorkByToken(token string) (model.Work, error) {
	w, err := scanWork(s.db.QueryRow(
		`SELECT `+workColumns+` FROM works WHERE share_token = $1 AND ended_at IS NOT NULL`, token))
	return w, notFound(err)
}

// OpenWork returns the owner's open work, or nil when there is none.
func (s *Store) OpenWork(ownerID int64) (*model.Work, error) {
	w, err := scanWork(s.db.QueryRow(
		`SELECT `+workColumns+` FROM works WHERE owner_id = $1 AND ended_at IS NULL ORDER BY id DESC LIMIT 1`, ownerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListFinishedWorks returns the owner's ended works, newest first.
func (s *Store) ListFinishedWorks(ownerID int64) ([]model.Work, error) {
	return s.queryWorks(
		`SELECT `+workColumns+` FROM works WHERE owner_id = $1 AND ended_at IS NOT NULL ORDER BY ended_at DESC, id DESC`,
		ownerID)
}

// ListAllFinishedWorks returns every ended work in completion order.
func (s *Store) ListAllFinishedWorks() ([]model.Work, error) {
	return s.queryWorks(`SELECT ` + workColumns + ` FROM works WHERE ended_at IS NOT NULL ORDER BY ended_at, id`)
}

// EndWork stamps the end time and share token. Only an open work is updated;
// ErrNotFound means the work does not exist or was already ended.
func (s *Store) EndWork(w model.Work) error {
	res, err := s.db.Exec(
		`UPDATE works SET ended_at = $1, share_token = $2 WHERE id = $3 AND ended_at IS NULL`,
		nullMillis(w.EndedAt), w.ShareToken, w.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteWork removes a work and its slots.
func (s *Store) DeleteWork(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM work_questions WHERE work_id = $1`, id); err != nil {
		return err
	}
	res, err := tx.Exec(`DELETE FROM works WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if err := expectOne(res); err != nil {
		return err
	}
	return tx.Commit()
}

func scanSlot(row scanner) (model.WorkQuestion, error) {
	var wq model.WorkQuestion
	var mark sql.NullInt64
	var started, ended sql.NullInt64
	err := row.Scan(&wq.ID, &wq.WorkID, &wq.QuestionID, &wq.Position, &wq.Status, &wq.Answer, &mark, &started, &ended)
	if err != nil {
		return wq, err
	}
	if mark.Valid {
		m := int(mark.Int64)
		wq.Mark = &m
	}
	wq.StartedAt = millisPtr(started)
	wq.EndedAt = millisPtr(ended)
	return wq, nil
}

// GetSlots returns a work's slots in position order.
func (s *Store) GetSlots(workID int64) ([]model.WorkQuestion, error) {
	rows, err := s.db.Query(
		`SELECT id, work_id, question_id, position, status, answer, mark, started_at, ended_at
		 FROM work_questions WHERE work_id = $1 ORDER BY position`, workID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var slots []model.WorkQuestion
	for rows.Next() {
		wq, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		slots = append(slots, wq)
	}
	return slots, rows.Err()
}

// UpdateSlots persists the state of the given slots in one transaction.
func (s *Store) UpdateSlots(slots ...*model.WorkQuestion) error {
	if len(slots) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, wq := range slots {
		var mark any
		if wq.Mark != nil {
			mark = *wq.Mark
		}
		res, err := tx.Exec(
			`UPDATE work_questions SET status = $1, answer = $2, mark = $3, started_at = $4, ended_at = $5
			 WHERE id = $6`,
			string(wq.Status), wq.Answer, mark, nullMillis(wq.StartedAt), nullMillis(wq.EndedAt), wq.ID,
		)
		if err != nil {
			return fmt.Errorf("update slot %d: %w", wq.ID, err)
		}
		if err := expectOne(res); err != nil {
			return fmt.Errorf("update slot %d: %w", wq.ID, err)
		}
	}
	return tx.Commit()
}

// MarkTable returns the whole raw-to-scaled conversion table ordered by raw score.
func (s *Store) MarkTable() ([]model.MarkConversionEntry, error) {
	rows, err := s.db.Query(`SELECT raw, scaled FROM mark_conversion ORDER BY raw`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []model.MarkConversionEntry
	for rows.Next() {
		var e model.MarkConversionEntry
		if err := rows.Scan(&e.Raw, &e.Scaled); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ReplaceMarkTable swaps the conversion table for entries.
func (s *Store) ReplaceMarkTable(entries []model.MarkConversionEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM mark_conversion`); err != nil {
		return err
	}
	for _, e := range entries {
		_, err := tx.Exec(
			`INSERT INTO mark_conversion (raw, scaled) VALUES ($1, $2)
			 ON CONFLICT (raw) DO UPDATE SET scaled = excluded.scaled`,
			e.Raw, e.Scaled,
		)
		if err != nil {
			return fmt.Errorf("insert raw %d: %w", e.Raw, err)
		}
	}
	return tx.Commit()
}
