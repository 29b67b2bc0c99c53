package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/chemtrainer/trainer/internal/model"
)

const questionColumns = `id, kind, level, text, answer, full_mark, tags_json, rotate, self_check,
	question_image, answer_image, active, created_at`

func scanQuestion(row scanner) (model.Question, error) {
	var q model.Question
	var tags string
	var created int64
	err := row.Scan(&q.ID, &q.Kind, &q.Level, &q.Text, &q.Answer, &q.FullMark, &tags, &q.Rotate, &q.SelfCheck,
		&q.QuestionImage, &q.AnswerImage, &q.Active, &created)
	if err != nil {
		return q, err
	}
	if err := json.Unmarshal([]byte(tags), &q.Tags); err != nil {
		return q, fmt.Errorf("decode tags of question %d: %w", q.ID, err)
	}
	q.CreatedAt = fromMillis(created)
	return q, nil
}

func (s *Store) queryQuestions(query string, args ...any) ([]model.Question, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// InsertQuestion stores a question and returns its id.
func (s *Store) InsertQuestion(q model.Question) (int64, error) {
	tags, err := encodeJSON(q.Tags)
	if err != nil {
		return 0, err
	}
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now()
	}
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO questions (kind, level, text, answer, full_mark, tags_json, rotate, self_check,
			question_image, answer_image, active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING id`,
		string(q.Kind), q.Level, q.Text, q.Answer, q.FullMark, tags, q.Rotate, q.SelfCheck,
		q.QuestionImage, q.AnswerImage, q.Active, toMillis(q.CreatedAt),
	).Scan(&id)
	return id, err
}

// UpdateQuestion overwrites the editable fields of a question.
func (s *Store) UpdateQuestion(q model.Question) error {
	tags, err := encodeJSON(q.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE questions SET kind = $1, level = $2, text = $3, answer = $4, full_mark = $5, tags_json = $6,
			rotate = $7, self_check = $8, question_image = $9, answer_image = $10
		 WHERE id = $11`,
		string(q.Kind), q.Level, q.Text, q.Answer, q.FullMark, tags, q.Rotate, q.SelfCheck,
		q.QuestionImage, q.AnswerImage, q.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetQuestionActive toggles whether a question can be drawn into new works.
func (s *Store) SetQuestionActive(id int64, active bool) error {
	res, err := s.db.Exec(`UPDATE questions SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// GetQuestion returns a question by ID.
func (s *Store) GetQuestion(id int64) (model.Question, error) {
	q, err := scanQuestion(s.db.QueryRow(`SELECT `+questionColumns+` FROM questions WHERE id = $1`, id))
	return q, notFound(err)
}

// ListQuestions returns all questions, active or not.
func (s *Store) ListQuestions() ([]model.Question, error) {
	return s.queryQuestions(`SELECT ` + questionColumns + ` FROM questions ORDER BY id`)
}

// ActiveQuestions returns the snapshot the sampler draws from.
func (s *Store) ActiveQuestions() ([]model.Question, error) {
	return s.queryQuestions(`SELECT `+questionColumns+` FROM questions WHERE active = $1 ORDER BY id`, true)
}

// QuestionsByID returns the questions with the given ids keyed by id.
// Unknown ids are absent from the map.
func (s *Store) QuestionsByID(ids []int64) (map[int64]model.Question, error) {
	out := make(map[int64]model.Question, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders, args := inList(ids)
	questions, err := s.queryQuestions(`SELECT `+questionColumns+` FROM questions WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	for _, q := range questions {
		out[q.ID] = q
	}
	return out, nil
}

// QuestionCount returns the number of questions in the database.
func (s *Store) QuestionCount() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM questions`).Scan(&count)
	return count, err
}

// InsertTopic stores a topic and returns its id.
func (s *Store) InsertTopic(t model.Topic) (int64, error) {
	tags, err := encodeJSON(t.Tags)
	if err != nil {
		return 0, err
	}
	var id int64
	err = s.db.QueryRow(
		`INSERT INTO topics (volume, name, tags_json, active) VALUES ($1, $2, $3, $4) RETURNING id`,
		t.Volume, t.Name, tags, t.Active,
	).Scan(&id)
	return id, err
}

func scanTopic(row scanner) (model.Topic, error) {
	var t model.Topic
	var tags string
	if err := row.Scan(&t.ID, &t.Volume, &t.Name, &tags, &t.Active); err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(tags), &t.Tags); err != nil {
		return t, fmt.Errorf("decode tags of topic %d: %w", t.ID, err)
	}
	return t, nil
}

// GetTopic returns a topic by ID.
func (s *Store) GetTopic(id int64) (model.Topic, error) {
	t, err := scanTopic(s.db.QueryRow(`SELECT id, volume, name, tags_json, active FROM topics WHERE id = $1`, id))
	return t, notFound(err)
}

// ListTopics returns topics ordered by volume and name.
func (s *Store) ListTopics(activeOnly bool) ([]model.Topic, error) {
	query := `SELECT id, volume, name, tags_json, active FROM topics`
	var args []any
	if activeOnly {
		query += ` WHERE active = $1`
		args = append(args, true)
	}
	query += ` ORDER BY volume, name, id`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var topics []model.Topic
	for rows.Next() {
		t, err := scanTopic(rows)
		if err != nil {
			return nil, err
		}
		topics = append(topics, t)
	}
	return topics, rows.Err()
}

// UpdateTopic overwrites a topic's volume, name and tags.
func (s *Store) UpdateTopic(t model.Topic) error {
	tags, err := encodeJSON(t.Tags)
	if err != nil {
		return err
	}
	res, err := s.db.Exec(
		`UPDATE topics SET volume = $1, name = $2, tags_json = $3 WHERE id = $4`,
		t.Volume, t.Name, tags, t.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// SetTopicActive toggles whether a topic is offered to learners.
func (s *Store) SetTopicActive(id int64, active bool) error {
	res, err := s.db.Exec(`UPDATE topics SET active = $1 WHERE id = $2`, active, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}
