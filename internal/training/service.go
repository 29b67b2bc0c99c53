// Package training runs learners through exam, topic and assigned works.
//
// The service owns the rule that a learner has at most one open work and
// persists every state change made by the workflow machine.
package training

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chemtrainer/trainer/internal/event"
	"github.com/chemtrainer/trainer/internal/grading"
	"github.com/chemtrainer/trainer/internal/model"
	"github.com/chemtrainer/trainer/internal/sampler"
	"github.com/chemtrainer/trainer/internal/scoring"
	"github.com/chemtrainer/trainer/internal/store"
	"github.com/chemtrainer/trainer/internal/workflow"
)

// Repository is the persistence the service needs. *store.Store implements it;
// lookups of missing rows return store.ErrNotFound.
type Repository interface {
	ActiveQuestions() ([]model.Question, error)
	QuestionsByID(ids []int64) (map[int64]model.Question, error)
	SlotQuestions(slots []model.WorkQuestion) (map[int64]model.Question, error)
	GetTopic(id int64) (model.Topic, error)
	GetAssignedWorkBySlug(slug string) (model.AssignedWork, error)
	InsertAssignedWork(aw model.AssignedWork) (int64, error)
	GetLearner(id int64) (*model.Learner, error)

	OpenWork(ownerID int64) (*model.Work, error)
	CreateWork(w model.Work, questionIDs []int64) (int64, error)
	GetWork(id int64) (model.Work, error)
	GetWorkByToken(token string) (model.Work, error)
	ListFinishedWorks(ownerID int64) ([]model.Work, error)
	WorkName(w model.Work) (string, error)
	EndWork(w model.Work) error
	DeleteWork(id int64) error

	GetSlots(workID int64) ([]model.WorkQuestion, error)
	UpdateSlots(slots ...*model.WorkQuestion) error

	MarkTable() ([]model.MarkConversionEntry, error)
}

// Service is the training orchestrator.
type Service struct {
	repo      Repository
	sampler   *sampler.Sampler
	machine   *workflow.Machine
	publisher event.Publisher
	cfg       model.TrainerConfig

	locks sync.Map // owner id -> *sync.Mutex
}

// NewService creates a service. Zero config values fall back to the exam defaults.
func NewService(repo Repository, smp *sampler.Sampler, m *workflow.Machine, pub event.Publisher, cfg model.TrainerConfig) *Service {
	if cfg.TopicSize <= 0 {
		cfg.TopicSize = sampler.DefaultTopicSize
	}
	if cfg.ExamTagPrefix == "" {
		cfg.ExamTagPrefix = "ege_"
	}
	if cfg.ExamItems <= 0 {
		cfg.ExamItems = 34
	}
	return &Service{repo: repo, sampler: smp, machine: m, publisher: pub, cfg: cfg}
}

// Config returns the effective configuration.
func (s *Service) Config() model.TrainerConfig {
	return s.cfg
}

// lock serializes the operations of one learner.
func (s *Service) lock(ownerID int64) func() {
	v, _ := s.locks.LoadOrStore(ownerID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// Prompt is a question as shown to the learner. The canonical answer is only
// included for self-check questions, where the learner grades themselves.
type Prompt struct {
	SlotID        int64              `json:"slot_id"`
	Position      int                `json:"position"`
	Total         int                `json:"total"`
	QuestionID    int64              `json:"question_id"`
	Kind          model.QuestionKind `json:"kind"`
	Text          string             `json:"text"`
	FullMark      int                `json:"full_mark"`
	SelfCheck     bool               `json:"self_check"`
	QuestionImage bool               `json:"question_image"`
	Answer        string             `json:"answer,omitempty"`
}

// Step is what the learner sees after start, resume or next. Prompt is nil
// when no question is left; PendingSkipped then tells whether a redo round
// can be offered before finishing.
type Step struct {
	Work           model.Work `json:"work"`
	Prompt         *Prompt    `json:"prompt,omitempty"`
	Answered       int        `json:"answered"`
	PendingSkipped int        `json:"pending_skipped"`
}

// AnswerResult reports the mark awarded to one answer.
type AnswerResult struct {
	Slot     model.WorkQuestion `json:"slot"`
	Mark     int                `json:"mark"`
	FullMark int                `json:"full_mark"`
	Answer   string             `json:"answer"`
}

// Report is the public result of a finished work.
type Report struct {
	Summary   model.Summary          `json:"summary"`
	Questions []model.QuestionResult `json:"questions"`
}

// StartExam builds an exam paper of one question per exam item.
func (s *Service) StartExam(ownerID int64) (*Step, error) {
	defer s.lock(ownerID)()
	if err := s.ensureNoOpenWork(ownerID); err != nil {
		return nil, err
	}

	pool, err := s.repo.ActiveQuestions()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	exam := pool[:0:0]
	for _, q := range pool {
		if q.Kind == model.KindExam {
			exam = append(exam, q)
		}
	}

	res := s.sampler.QuotaSample(exam, sampler.ExamQuotas(s.cfg.ExamTagPrefix, s.cfg.ExamItems))
	if !res.OK {
		return nil, shortfall(res)
	}
	return s.create(model.Work{OwnerID: ownerID, Mode: model.ModeExam}, res.IDs)
}

// StartTopic builds a topic training balanced across the topic's tags.
func (s *Service) StartTopic(ownerID, topicID int64) (*Step, error) {
	defer s.lock(ownerID)()
	if err := s.ensureNoOpenWork(ownerID); err != nil {
		return nil, err
	}

	topic, err := s.repo.GetTopic(topicID)
	if err != nil {
		return nil, lookupErr(err, "get topic %d", topicID)
	}
	if !topic.Active {
		return nil, fmt.Errorf("topic %d is inactive: %w", topicID, ErrNotFound)
	}

	pool, err := s.repo.ActiveQuestions()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	res := s.sampler.TopicSample(pool, topic, s.cfg.TopicSize)
	if !res.OK {
		return nil, shortfall(res)
	}
	return s.create(model.Work{OwnerID: ownerID, Mode: model.ModeTopic, TopicID: &topic.ID}, res.IDs)
}

// StartAssigned starts the fixed question list published under slug.
func (s *Service) StartAssigned(ownerID int64, slug string) (*Step, error) {
	defer s.lock(ownerID)()
	if err := s.ensureNoOpenWork(ownerID); err != nil {
		return nil, err
	}

	aw, err := s.repo.GetAssignedWorkBySlug(slug)
	if err != nil {
		return nil, lookupErr(err, "get assigned work %q", slug)
	}
	seen := make(map[int64]bool, len(aw.QuestionIDs))
	for _, id := range aw.QuestionIDs {
		if seen[id] {
			return nil, fmt.Errorf("assigned work %q lists question %d twice: %w", slug, id, ErrInvalidRequest)
		}
		seen[id] = true
	}
	questions, err := s.repo.QuestionsByID(aw.QuestionIDs)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) != len(aw.QuestionIDs) || len(aw.QuestionIDs) == 0 {
		return nil, shortfall(sampler.Result{
			Reason:    sampler.ReasonInsufficientPool,
			Requested: len(aw.QuestionIDs),
			Available: len(questions),
		})
	}
	return s.create(model.Work{OwnerID: ownerID, Mode: model.ModeAssigned, AssignedWorkID: &aw.ID}, aw.QuestionIDs)
}

func (s *Service) ensureNoOpenWork(ownerID int64) error {
	open, err := s.repo.OpenWork(ownerID)
	if err != nil {
		return fmt.Errorf("check open work: %w", err)
	}
	if open != nil {
		return fmt.Errorf("work %d: %w", open.ID, ErrOpenWorkExists)
	}
	return nil
}

func (s *Service) create(w model.Work, ids []int64) (*Step, error) {
	w.StartedAt = s.machine.Now()
	id, err := s.repo.CreateWork(w, ids)
	if err != nil {
		return nil, fmt.Errorf("create work: %w", err)
	}
	slog.Info("work started", "work_id", id, "owner_id", w.OwnerID, "mode", w.Mode, "questions", len(ids))
	worksStarted.WithLabelValues(string(w.Mode)).Inc()

	w, err = s.repo.GetWork(id)
	if err != nil {
		return nil, lookupErr(err, "get work %d", id)
	}
	return s.advance(w, false)
}

// Resume returns the learner's open work and presents its next question.
// An interrupted current question is shown again; otherwise skipped
// questions are eligible alongside waiting ones.
func (s *Service) Resume(ownerID int64) (*Step, error) {
	defer s.lock(ownerID)()
	open, err := s.repo.OpenWork(ownerID)
	if err != nil {
		return nil, fmt.Errorf("get open work: %w", err)
	}
	if open == nil {
		return nil, fmt.Errorf("open work of learner %d: %w", ownerID, ErrNotFound)
	}
	return s.advance(*open, true)
}

// Next presents the current question, or opens the next waiting one.
func (s *Service) Next(ownerID, workID int64) (*Step, error) {
	defer s.lock(ownerID)()
	w, err := s.openWork(ownerID, workID)
	if err != nil {
		return nil, err
	}
	return s.advance(w, false)
}

// Discard deletes the learner's open work.
func (s *Service) Discard(ownerID int64) error {
	defer s.lock(ownerID)()
	open, err := s.repo.OpenWork(ownerID)
	if err != nil {
		return fmt.Errorf("get open work: %w", err)
	}
	if open == nil {
		return fmt.Errorf("open work of learner %d: %w", ownerID, ErrNotFound)
	}
	if err := s.repo.DeleteWork(open.ID); err != nil {
		return lookupErr(err, "delete work %d", open.ID)
	}
	slog.Info("work discarded", "work_id", open.ID, "owner_id", ownerID)
	return nil
}

// Answer scores the submitted answer for the current slot and closes it.
// Self-check questions take the learner's own mark instead.
func (s *Service) Answer(ownerID, workID, slotID int64, answer string, selfMark *int) (*AnswerResult, error) {
	defer s.lock(ownerID)()
	w, err := s.openWork(ownerID, workID)
	if err != nil {
		return nil, err
	}
	_, slot, err := s.slot(w.ID, slotID)
	if err != nil {
		return nil, err
	}
	questions, err := s.repo.QuestionsByID([]int64{slot.QuestionID})
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	q, ok := questions[slot.QuestionID]
	if !ok {
		return nil, fmt.Errorf("question %d: %w", slot.QuestionID, ErrNotFound)
	}

	answer = strings.TrimSpace(answer)
	var mark int
	if q.SelfCheck {
		if selfMark == nil {
			return nil, fmt.Errorf("slot %d: mark is required: %w", slotID, ErrInvalidMark)
		}
		m, ok := scoring.SelfCheckMark(q, *selfMark)
		if !ok {
			return nil, fmt.Errorf("slot %d: mark %d outside [0, %d]: %w", slotID, *selfMark, q.FullMark, ErrInvalidMark)
		}
		mark = m
	} else {
		mark = scoring.Score(q, answer)
	}

	if err := s.machine.Close(slot, answer, mark, s.machine.Now(), nil); err != nil {
		slog.Warn("answer ignored", "work_id", w.ID, "slot_id", slotID, "error", err)
		invalidTransitions.WithLabelValues("answer").Inc()
		return nil, err
	}
	if err := s.repo.UpdateSlots(slot); err != nil {
		return nil, fmt.Errorf("save slot %d: %w", slotID, err)
	}
	answersScored.WithLabelValues(string(q.Kind), answerOutcome(mark, q.FullMark)).Inc()

	return &AnswerResult{Slot: *slot, Mark: mark, FullMark: q.FullMark, Answer: q.Answer}, nil
}

// Skip puts the current question aside.
func (s *Service) Skip(ownerID, workID, slotID int64) error {
	defer s.lock(ownerID)()
	w, err := s.openWork(ownerID, workID)
	if err != nil {
		return err
	}
	_, slot, err := s.slot(w.ID, slotID)
	if err != nil {
		return err
	}
	if err := s.machine.Skip(slot); err != nil {
		slog.Warn("skip ignored", "work_id", w.ID, "slot_id", slotID, "error", err)
		invalidTransitions.WithLabelValues("skip").Inc()
		return err
	}
	if err := s.repo.UpdateSlots(slot); err != nil {
		return fmt.Errorf("save slot %d: %w", slotID, err)
	}
	return nil
}

// PendingSkipped returns the skipped slots of a work in position order.
func (s *Service) PendingSkipped(ownerID, workID int64) ([]model.WorkQuestion, error) {
	defer s.lock(ownerID)()
	w, err := s.ownedWork(ownerID, workID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.GetSlots(w.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	pending := workflow.PendingSkipped(slots)
	out := make([]model.WorkQuestion, len(pending))
	for i, p := range pending {
		out[i] = *p
	}
	return out, nil
}

// ResolveSkipped either queues skipped questions for a redo round or closes them with mark 0.
func (s *Service) ResolveSkipped(ownerID, workID int64, retry bool) (*Step, error) {
	defer s.lock(ownerID)()
	w, err := s.openWork(ownerID, workID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.GetSlots(w.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	changed := s.machine.ResolveSkipped(slots, retry)
	if err := s.repo.UpdateSlots(changed...); err != nil {
		return nil, fmt.Errorf("save slots: %w", err)
	}
	slog.Info("skipped questions resolved", "work_id", w.ID, "retry", retry, "slots", len(changed))
	return s.advance(w, false)
}

// Finish ends the work, converts the exam grade and publishes the result.
// Finishing an already finished work returns its summary again.
func (s *Service) Finish(ctx context.Context, ownerID, workID int64) (*model.Summary, error) {
	defer s.lock(ownerID)()
	w, err := s.ownedWork(ownerID, workID)
	if err != nil {
		return nil, err
	}
	slots, err := s.repo.GetSlots(w.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}

	ended := false
	if w.Open() {
		ended, err = s.machine.End(&w, slots)
		if errors.Is(err, workflow.ErrInvalidTransition) {
			slog.Warn("finish refused", "work_id", w.ID, "error", err)
			invalidTransitions.WithLabelValues("finish").Inc()
			return nil, fmt.Errorf("finish work %d: %w", w.ID, ErrUnresolvedSlots)
		}
		if err != nil {
			return nil, err
		}
		if err := s.repo.EndWork(w); err != nil {
			return nil, lookupErr(err, "end work %d", w.ID)
		}
	}

	sum, err := s.summarize(w, slots)
	if err != nil {
		return nil, err
	}
	if ended {
		slog.Info("work finished", "work_id", w.ID, "owner_id", w.OwnerID, "raw", sum.RawTotal, "max", sum.MaxTotal)
		worksFinished.WithLabelValues(string(w.Mode)).Inc()
		s.publish(ctx, w, sum)
	}
	return &sum, nil
}

func (s *Service) publish(ctx context.Context, w model.Work, sum model.Summary) {
	if s.publisher == nil {
		return
	}

	var learnerID string
	if l, err := s.repo.GetLearner(w.OwnerID); err == nil && l != nil {
		learnerID = l.ExternalID
	}
	ev := event.NewWorkCompletedEvent(w.ID, learnerID, string(w.Mode), sum.Name, sum.RawTotal, sum.MaxTotal, sum.ScaledTotal, w.ShareToken)
	if err := s.publisher.PublishWorkCompleted(ctx, ev); err != nil {
		slog.Error("publish work completed", "work_id", w.ID, "error", err)
	}
}

// Result returns the public report of a finished work by its share token.
func (s *Service) Result(token string) (*Report, error) {
	w, err := s.repo.GetWorkByToken(token)
	if err != nil {
		return nil, lookupErr(err, "get work by token")
	}
	slots, err := s.repo.GetSlots(w.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	questions, err := s.repo.SlotQuestions(slots)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	sum, err := s.summarizeWith(w, slots, questions, nil)
	if err != nil {
		return nil, err
	}
	return &Report{Summary: sum, Questions: grading.Details(slots, questions)}, nil
}

// LearnerStats returns one summary per finished work, newest first.
func (s *Service) LearnerStats(ownerID int64) ([]model.Summary, error) {
	works, err := s.repo.ListFinishedWorks(ownerID)
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	conv, err := s.converter()
	if err != nil {
		return nil, err
	}

	stats := make([]model.Summary, 0, len(works))
	for _, w := range works {
		slots, err := s.repo.GetSlots(w.ID)
		if err != nil {
			return nil, fmt.Errorf("get slots of work %d: %w", w.ID, err)
		}
		questions, err := s.repo.SlotQuestions(slots)
		if err != nil {
			return nil, fmt.Errorf("load questions of work %d: %w", w.ID, err)
		}
		sum, err := s.summarizeWith(w, slots, questions, conv)
		if err != nil {
			return nil, err
		}
		stats = append(stats, sum)
	}
	return stats, nil
}

// WorkView returns a work with all its slots and questions.
func (s *Service) WorkView(workID int64) (*model.WorkView, error) {
	w, err := s.repo.GetWork(workID)
	if err != nil {
		return nil, lookupErr(err, "get work %d", workID)
	}
	slots, err := s.repo.GetSlots(w.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}
	questions, err := s.repo.SlotQuestions(slots)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	sum, err := s.summarizeWith(w, slots, questions, nil)
	if err != nil {
		return nil, err
	}
	view := &model.WorkView{Work: w, Summary: sum}
	for _, slot := range slots {
		view.Slots = append(view.Slots, model.SlotView{Slot: slot, Question: questions[slot.QuestionID]})
	}
	return view, nil
}

// AssignedWorkRequest describes a new assigned work.
type AssignedWorkRequest struct {
	Name string `json:"name"`
	// Mode is "tags" for per-tag quotas or "hard_filter" for questions carrying all Tags.
	Mode   string             `json:"mode"`
	Quotas []sampler.TagQuota `json:"quotas,omitempty"`
	Tags   []string           `json:"tags,omitempty"`
	Count  int                `json:"count,omitempty"`
}

const (
	AssignModeTags       = "tags"
	AssignModeHardFilter = "hard_filter"
)

// CreateAssignedWork samples a fixed question list and publishes it under a short slug.
func (s *Service) CreateAssignedWork(req AssignedWorkRequest) (*model.AssignedWork, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required: %w", ErrInvalidRequest)
	}

	pool, err := s.repo.ActiveQuestions()
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}

	var res sampler.Result
	switch req.Mode {
	case AssignModeTags:
		if len(req.Quotas) == 0 {
			return nil, fmt.Errorf("quotas are required: %w", ErrInvalidRequest)
		}
		res = s.sampler.QuotaSample(pool, req.Quotas)
	case AssignModeHardFilter:
		res = s.sampler.IntersectionSample(pool, req.Tags, req.Count)
	default:
		return nil, fmt.Errorf("unknown mode %q: %w", req.Mode, ErrInvalidRequest)
	}
	if !res.OK {
		return nil, shortfall(res)
	}
	if len(res.IDs) == 0 {
		return nil, fmt.Errorf("no questions requested: %w", ErrInvalidRequest)
	}

	aw := model.AssignedWork{Name: name, QuestionIDs: res.IDs, CreatedAt: s.machine.Now()}
	var lastErr error
	for attempt := 0; attempt < 5; attempt++ {
		aw.Slug = slugFor(name, aw.CreatedAt.Add(time.Duration(attempt)))
		id, err := s.repo.InsertAssignedWork(aw)
		if err == nil {
			aw.ID = id
			slog.Info("assigned work created", "id", id, "slug", aw.Slug, "questions", len(aw.QuestionIDs))
			return &aw, nil
		}
		if errors.Is(err, store.ErrDuplicateQuestion) {
			return nil, errors.Join(ErrInvalidRequest, err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("insert assigned work: %w", lastErr)
}

// slugFor derives the six hex character public slug of an assigned work.
func slugFor(name string, at time.Time) string {
	sum := sha256.Sum256([]byte(at.Format(time.RFC3339Nano) + name))
	return hex.EncodeToString(sum[:])[:6]
}

// ownedWork loads a work and checks it belongs to the learner.
func (s *Service) ownedWork(ownerID, workID int64) (model.Work, error) {
	w, err := s.repo.GetWork(workID)
	if err != nil {
		return w, lookupErr(err, "get work %d", workID)
	}
	if w.OwnerID != ownerID {
		return w, fmt.Errorf("work %d of learner %d: %w", workID, ownerID, ErrNotFound)
	}
	return w, nil
}

func (s *Service) openWork(ownerID, workID int64) (model.Work, error) {
	w, err := s.ownedWork(ownerID, workID)
	if err != nil {
		return w, err
	}
	if !w.Open() {
		return w, fmt.Errorf("work %d: %w", workID, ErrWorkClosed)
	}
	return w, nil
}

// slot loads a work's slots and returns a pointer to the one with slotID.
func (s *Service) slot(workID, slotID int64) ([]model.WorkQuestion, *model.WorkQuestion, error) {
	slots, err := s.repo.GetSlots(workID)
	if err != nil {
		return nil, nil, fmt.Errorf("get slots: %w", err)
	}
	for i := range slots {
		if slots[i].ID == slotID {
			return slots, &slots[i], nil
		}
	}
	return nil, nil, fmt.Errorf("slot %d of work %d: %w", slotID, workID, ErrNotFound)
}

// advance presents the current slot or opens the next one.
func (s *Service) advance(w model.Work, resume bool) (*Step, error) {
	slots, err := s.repo.GetSlots(w.ID)
	if err != nil {
		return nil, fmt.Errorf("get slots: %w", err)
	}

	slot := workflow.Current(slots)
	if slot == nil {
		slot = s.machine.OpenNext(slots, resume)
		if slot != nil {
			if err := s.repo.UpdateSlots(slot); err != nil {
				return nil, fmt.Errorf("save slot %d: %w", slot.ID, err)
			}
		}
	}

	step := &Step{Work: w, PendingSkipped: len(workflow.PendingSkipped(slots))}
	for _, sl := range slots {
		if sl.Status == model.SlotAnswered {
			step.Answered++
		}
	}
	if slot == nil {
		return step, nil
	}

	questions, err := s.repo.QuestionsByID([]int64{slot.QuestionID})
	if err != nil {
		return nil, fmt.Errorf("load question: %w", err)
	}
	q, ok := questions[slot.QuestionID]
	if !ok {
		return nil, fmt.Errorf("question %d: %w", slot.QuestionID, ErrNotFound)
	}
	step.Prompt = &Prompt{
		SlotID:        slot.ID,
		Position:      slot.Position,
		Total:         len(slots),
		QuestionID:    q.ID,
		Kind:          q.Kind,
		Text:          q.Text,
		FullMark:      q.FullMark,
		SelfCheck:     q.SelfCheck,
		QuestionImage: q.QuestionImage,
	}
	if q.SelfCheck {
		step.Prompt.Answer = q.Answer
	}
	return step, nil
}

func (s *Service) converter() (*grading.Converter, error) {
	table, err := s.repo.MarkTable()
	if err != nil {
		return nil, fmt.Errorf("load mark table: %w", err)
	}
	return grading.NewConverter(grading.NewMapTable(table)), nil
}

func (s *Service) summarize(w model.Work, slots []model.WorkQuestion) (model.Summary, error) {
	questions, err := s.repo.SlotQuestions(slots)
	if err != nil {
		return model.Summary{}, fmt.Errorf("load questions: %w", err)
	}
	return s.summarizeWith(w, slots, questions, nil)
}

// summarizeWith totals a work. A nil converter is loaded on demand for exam works.
func (s *Service) summarizeWith(w model.Work, slots []model.WorkQuestion, questions map[int64]model.Question, conv *grading.Converter) (model.Summary, error) {
	if conv == nil && w.Mode == model.ModeExam {
		var err error
		if conv, err = s.converter(); err != nil {
			return model.Summary{}, err
		}
	}
	name, err := s.repo.WorkName(w)
	if err != nil {
		return model.Summary{}, fmt.Errorf("name work %d: %w", w.ID, err)
	}
	return grading.Summarize(w, name, slots, questions, conv), nil
}
