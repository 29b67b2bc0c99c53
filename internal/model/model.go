package model

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// QuestionKind distinguishes exam items from topic drill items.
type QuestionKind string

const (
	// KindExam is a numbered item of the state exam paper.
	KindExam QuestionKind = "exam"
	// KindTopic is a free-standing practice item attached to topics by tag.
	KindTopic QuestionKind = "topic"
)

// WorkMode is the way a session's question list was built.
type WorkMode string

const (
	ModeExam     WorkMode = "exam"
	ModeTopic    WorkMode = "topic"
	ModeAssigned WorkMode = "assigned"
)

// SlotStatus is the presentation state of one question inside a work.
type SlotStatus string

const (
	SlotWaiting  SlotStatus = "waiting"
	SlotCurrent  SlotStatus = "current"
	SlotAnswered SlotStatus = "answered"
	SlotSkipped  SlotStatus = "skipped"
)

// SkippedAnswer is stored as the submitted answer of a slot that was
// force-finished without a retry.
const SkippedAnswer = "skipped"

// Learner is a person working through trainings, identified by an external chat id.
type Learner struct {
	ID         int64     `json:"id"`
	ExternalID string    `json:"external_id"`
	Name       string    `json:"name"`
	CreatedAt  time.Time `json:"created_at"`
}

type learnerCtxKey struct{}

// ContextWithLearner stores the learner in the request context.
func ContextWithLearner(ctx context.Context, l *Learner) context.Context {
	return context.WithValue(ctx, learnerCtxKey{}, l)
}

// LearnerFromContext retrieves the learner from context, or nil.
func LearnerFromContext(ctx context.Context) *Learner {
	l, _ := ctx.Value(learnerCtxKey{}).(*Learner)
	return l
}

// Question is one item of the question bank.
type Question struct {
	ID            int64        `json:"id"`
	Kind          QuestionKind `json:"kind"`
	Level         int          `json:"level"`
	Text          string       `json:"text"`
	Answer        string       `json:"answer"`
	FullMark      int          `json:"full_mark"`
	Tags          []string     `json:"tags"`
	Rotate        bool         `json:"rotate"`
	SelfCheck     bool         `json:"self_check"`
	QuestionImage bool         `json:"question_image"`
	AnswerImage   bool         `json:"answer_image"`
	Active        bool         `json:"active"`
	CreatedAt     time.Time    `json:"created_at"`
}

// HasTag reports whether the question carries tag.
func (q Question) HasTag(tag string) bool {
	for _, t := range q.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Topic groups tags into a drill subject.
type Topic struct {
	ID     int64    `json:"id"`
	Volume string   `json:"volume"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
	Active bool     `json:"active"`
}

// AssignedWork is a fixed question list prepared by an admin and shared by slug.
type AssignedWork struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	QuestionIDs []int64   `json:"question_ids"`
	Deleted     bool      `json:"deleted"`
	CreatedAt   time.Time `json:"created_at"`
}

// Work is one learner's attempt at a set of questions.
type Work struct {
	ID             int64      `json:"id"`
	OwnerID        int64      `json:"owner_id"`
	Mode           WorkMode   `json:"mode"`
	TopicID        *int64     `json:"topic_id,omitempty"`
	AssignedWorkID *int64     `json:"assigned_work_id,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	EndedAt        *time.Time `json:"ended_at,omitempty"`
	ShareToken     string     `json:"share_token,omitempty"`
}

// Open reports whether the work has not been ended yet.
func (w Work) Open() bool {
	return w.EndedAt == nil
}

// WorkQuestion is the state of one question slot inside a work.
type WorkQuestion struct {
	ID         int64      `json:"id"`
	WorkID     int64      `json:"work_id"`
	QuestionID int64      `json:"question_id"`
	Position   int        `json:"position"`
	Status     SlotStatus `json:"status"`
	Answer     string     `json:"answer"`
	Mark       *int       `json:"mark,omitempty"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	EndedAt    *time.Time `json:"ended_at,omitempty"`
}

// MarkConversionEntry maps a raw exam total to the scaled grade.
type MarkConversionEntry struct {
	Raw    int `json:"raw"`
	Scaled int `json:"scaled"`
}

// MarkCounts buckets answered slots by how much of the full mark was earned.
type MarkCounts struct {
	Fully     int `json:"fully"`
	Partially int `json:"partially"`
	Zero      int `json:"zero"`
}

// Summary is the outcome of a finished work.
type Summary struct {
	WorkID      int64      `json:"work_id"`
	Mode        WorkMode   `json:"mode"`
	Name        string     `json:"name"`
	RawTotal    int        `json:"raw_total"`
	MaxTotal    int        `json:"max_total"`
	ScaledTotal *int       `json:"scaled_total,omitempty"`
	ScaledMax   *int       `json:"scaled_max,omitempty"`
	Counts      MarkCounts `json:"counts"`
	Questions   int        `json:"questions"`
	StartedAt   time.Time  `json:"started_at"`
	EndedAt     *time.Time `json:"ended_at,omitempty"`
	ShareToken  string     `json:"share_token,omitempty"`
}

// TrainerConfig holds runtime parameters set via CLI flags.
type TrainerConfig struct {
	TopicSize     int    // questions per topic training
	ExamTagPrefix string // exam item tags are ExamTagPrefix + item number
	ExamItems     int    // number of items in one exam paper
	Lang          string // UI language (en, ru)
}

// BankImport is the seed file format loaded by `trainer import` and `serve --bank`.
type BankImport struct {
	Questions []QuestionImport      `json:"questions"`
	Topics    []TopicImport         `json:"topics"`
	MarkTable []MarkConversionEntry `json:"mark_table"`
}

// QuestionImport is used for loading questions from JSON.
type QuestionImport struct {
	Kind      QuestionKind `json:"kind"`
	Level     int          `json:"level"`
	Text      string       `json:"text"`
	Answer    string       `json:"answer"`
	FullMark  int          `json:"full_mark"`
	Tags      []string     `json:"tags"`
	Rotate    bool         `json:"rotate"`
	SelfCheck bool         `json:"self_check"`
}

// TopicImport is used for loading topics from JSON.
type TopicImport struct {
	Volume string   `json:"volume"`
	Name   string   `json:"name"`
	Tags   []string `json:"tags"`
}

// SlotView combines a slot with its question for display.
type SlotView struct {
	Slot     WorkQuestion `json:"slot"`
	Question Question     `json:"question"`
}

// WorkView combines a work with its slots for display.
type WorkView struct {
	Work    Work       `json:"work"`
	Summary Summary    `json:"summary"`
	Slots   []SlotView `json:"slots"`
}

// Question validates the import record and converts it to an active question.
func (qi QuestionImport) Question() (Question, error) {
	q := Question{
		Kind:      qi.Kind,
		Level:     qi.Level,
		Text:      qi.Text,
		Answer:    qi.Answer,
		FullMark:  qi.FullMark,
		Tags:      qi.Tags,
		Rotate:    qi.Rotate,
		SelfCheck: qi.SelfCheck,
		Active:    true,
	}
	if q.Level == 0 {
		q.Level = 1
	}
	return q, q.Validate()
}

// Validate checks the invariants every stored question must hold.
func (q Question) Validate() error {
	switch q.Kind {
	case KindExam:
		if q.FullMark != 1 && q.FullMark != 2 && !q.SelfCheck {
			return fmt.Errorf("exam question full_mark must be 1 or 2, got %d", q.FullMark)
		}
	case KindTopic:
	default:
		return fmt.Errorf("unknown question kind %q", q.Kind)
	}
	if q.FullMark < 1 {
		return fmt.Errorf("full_mark must be positive, got %d", q.FullMark)
	}
	if len(q.Tags) == 0 {
		return errors.New("question needs at least one tag")
	}
	if q.Text == "" && !q.QuestionImage {
		return errors.New("question needs text or an image")
	}
	return nil
}
