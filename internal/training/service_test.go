package training

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chemtrainer/trainer/internal/event"
	"github.com/chemtrainer/trainer/internal/grading"
	"github.com/chemtrainer/trainer/internal/model"
	"github.com/chemtrainer/trainer/internal/sampler"
	"github.com/chemtrainer/trainer/internal/store"
	"github.com/chemtrainer/trainer/internal/workflow"
)

type recordingPublisher struct {
	events []*event.WorkCompletedEvent
}

func (p *recordingPublisher) PublishWorkCompleted(_ context.Context, ev *event.WorkCompletedEvent) error {
	p.events = append(p.events, ev)
	return nil
}

func (p *recordingPublisher) Close() error { return nil }

type fixture struct {
	store   *store.Store
	svc     *Service
	pub     *recordingPublisher
	learner *model.Learner
}

func newFixture(t *testing.T, cfg model.TrainerConfig) *fixture {
	t.Helper()
	s, err := store.New(store.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	l, err := s.EnsureLearner("chat-1", "Learner")
	if err != nil {
		t.Fatalf("EnsureLearner: %v", err)
	}

	tick := 0
	tokens := 0
	m := workflow.New(
		workflow.WithClock(func() time.Time {
			tick++
			return time.Date(2026, 5, 1, 12, 0, tick, 0, time.UTC)
		}),
		workflow.WithTokenFunc(func() string {
			tokens++
			return fmt.Sprintf("token-%d", tokens)
		}),
	)
	pub := &recordingPublisher{}
	svc := NewService(s, sampler.New(rand.NewPCG(3, 4)), m, pub, cfg)
	return &fixture{store: s, svc: svc, pub: pub, learner: l}
}

func (f *fixture) addQuestion(t *testing.T, q model.Question) model.Question {
	t.Helper()
	q.Active = true
	if q.Level == 0 {
		q.Level = 1
	}
	id, err := f.store.InsertQuestion(q)
	if err != nil {
		t.Fatalf("InsertQuestion: %v", err)
	}
	q.ID = id
	return q
}

func (f *fixture) answerAll(t *testing.T, step *Step, answer func(p *Prompt) string) {
	t.Helper()
	for step.Prompt != nil {
		if _, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, answer(step.Prompt), nil); err != nil {
			t.Fatalf("Answer slot %d: %v", step.Prompt.SlotID, err)
		}
		var err error
		step, err = f.svc.Next(f.learner.ID, step.Work.ID)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
	}
}

func TestQuotaWorkEndToEnd(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{})
	answers := map[int64]string{}
	for i := 0; i < 2; i++ {
		q := f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "A", Answer: fmt.Sprintf("a%d", i), FullMark: 1, Tags: []string{"tagA"}})
		answers[q.ID] = q.Answer
	}
	for i := 0; i < 3; i++ {
		q := f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "B", Answer: fmt.Sprintf("b%d", i), FullMark: 2, Tags: []string{"tagB"}})
		answers[q.ID] = q.Answer
	}

	aw, err := f.svc.CreateAssignedWork(AssignedWorkRequest{
		Name:   "Quota drill",
		Mode:   AssignModeTags,
		Quotas: []sampler.TagQuota{{Tag: "tagA", Count: 2}, {Tag: "tagB", Count: 3}},
	})
	if err != nil {
		t.Fatalf("CreateAssignedWork: %v", err)
	}
	if len(aw.Slug) != 6 || len(aw.QuestionIDs) != 5 {
		t.Fatalf("unexpected assigned work %+v", aw)
	}

	step, err := f.svc.StartAssigned(f.learner.ID, aw.Slug)
	if err != nil {
		t.Fatalf("StartAssigned: %v", err)
	}

	// Answer positions 1, 3 and 5 correctly.
	want := 0
	pos := 0
	f.answerAll(t, step, func(p *Prompt) string {
		pos++
		if p.Position != pos {
			t.Fatalf("presented position %d, want %d", p.Position, pos)
		}
		if p.Answer != "" {
			t.Errorf("canonical answer leaked for a scored question")
		}
		if pos%2 == 1 {
			want += p.FullMark
			return answers[p.QuestionID]
		}
		return "wrong"
	})
	if pos != 5 {
		t.Fatalf("presented %d questions, want 5", pos)
	}

	sum, err := f.svc.Finish(context.Background(), f.learner.ID, step.Work.ID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if sum.RawTotal != want {
		t.Errorf("raw total = %d, want %d", sum.RawTotal, want)
	}
	if sum.MaxTotal != 8 || sum.Name != "Quota drill" || sum.ShareToken != "token-1" {
		t.Errorf("unexpected summary %+v", sum)
	}
	if sum.Counts.Fully+sum.Counts.Partially+sum.Counts.Zero != 5 {
		t.Errorf("counts do not cover all slots: %+v", sum.Counts)
	}

	if len(f.pub.events) != 1 || f.pub.events[0].RawTotal != want || f.pub.events[0].LearnerID != "chat-1" {
		t.Errorf("unexpected events %+v", f.pub.events)
	}

	// Finishing again is a no-op returning the same summary.
	again, err := f.svc.Finish(context.Background(), f.learner.ID, step.Work.ID)
	if err != nil {
		t.Fatalf("second Finish: %v", err)
	}
	if again.RawTotal != sum.RawTotal || again.ShareToken != sum.ShareToken {
		t.Errorf("second finish changed summary: %+v", again)
	}
	if len(f.pub.events) != 1 {
		t.Errorf("second finish published again")
	}

	report, err := f.svc.Result(sum.ShareToken)
	if err != nil {
		t.Fatalf("Result: %v", err)
	}
	if len(report.Questions) != 5 || report.Summary.RawTotal != want {
		t.Errorf("unexpected report %+v", report)
	}
	if _, err := f.svc.Result("bogus"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown token, got %v", err)
	}
}

func TestStartExam(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{ExamItems: 3})
	for n := 1; n <= 3; n++ {
		f.addQuestion(t, model.Question{Kind: model.KindExam, Text: "item", Answer: "12", FullMark: 1, Tags: []string{sampler.ExamTag("ege_", n)}})
	}
	// A topic question carrying an exam tag is never drawn into an exam.
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "drill", Answer: "x", FullMark: 1, Tags: []string{"ege_1"}})
	if err := f.store.ReplaceMarkTable([]model.MarkConversionEntry{{Raw: 2, Scaled: 40}}); err != nil {
		t.Fatalf("ReplaceMarkTable: %v", err)
	}

	step, err := f.svc.StartExam(f.learner.ID)
	if err != nil {
		t.Fatalf("StartExam: %v", err)
	}
	if step.Work.Mode != model.ModeExam || step.Prompt == nil || step.Prompt.Total != 3 {
		t.Fatalf("unexpected step %+v", step)
	}

	_, err = f.svc.StartExam(f.learner.ID)
	if !errors.Is(err, ErrOpenWorkExists) {
		t.Fatalf("expected ErrOpenWorkExists, got %v", err)
	}

	answers := []string{"12", "0", "012"}
	i := 0
	f.answerAll(t, step, func(p *Prompt) string {
		if p.Kind != model.KindExam {
			t.Errorf("exam drew a %s question", p.Kind)
		}
		a := answers[i]
		i++
		return a
	})

	sum, err := f.svc.Finish(context.Background(), f.learner.ID, step.Work.ID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if sum.RawTotal != 2 {
		t.Errorf("raw = %d, want 2", sum.RawTotal)
	}
	if sum.ScaledTotal == nil || *sum.ScaledTotal != 40 || sum.ScaledMax == nil || *sum.ScaledMax != grading.ScaledMax {
		t.Errorf("unexpected scaled result %v/%v", sum.ScaledTotal, sum.ScaledMax)
	}
}

func TestStartExamShortfall(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{ExamItems: 2})
	f.addQuestion(t, model.Question{Kind: model.KindExam, Text: "item", Answer: "1", FullMark: 1, Tags: []string{"ege_1"}})

	_, err := f.svc.StartExam(f.learner.ID)
	var short *ShortfallError
	if !errors.As(err, &short) {
		t.Fatalf("expected ShortfallError, got %v", err)
	}
	if short.Result.Tag != "ege_2" || short.Result.Requested != 1 || short.Result.Available != 0 {
		t.Errorf("unexpected shortfall %+v", short.Result)
	}
	open, _ := f.store.OpenWork(f.learner.ID)
	if open != nil {
		t.Error("failed sampling left a work behind")
	}
}

func TestStartTopic(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{TopicSize: 4})
	topicID, err := f.store.InsertTopic(model.Topic{Name: "Acids", Tags: []string{"acid", "oxide"}, Active: true})
	if err != nil {
		t.Fatalf("InsertTopic: %v", err)
	}
	for i := 0; i < 3; i++ {
		f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "acid", Answer: "x", FullMark: 1, Tags: []string{"acid"}})
		f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "oxide", Answer: "y", FullMark: 1, Tags: []string{"oxide"}})
	}

	step, err := f.svc.StartTopic(f.learner.ID, topicID)
	if err != nil {
		t.Fatalf("StartTopic: %v", err)
	}
	if step.Prompt.Total != 4 || *step.Work.TopicID != topicID {
		t.Errorf("unexpected step %+v", step)
	}

	if err := f.svc.Discard(f.learner.ID); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if err := f.svc.Discard(f.learner.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("second discard: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.StartTopic(f.learner.ID, 9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown topic, got %v", err)
	}
	if err := f.store.SetTopicActive(topicID, false); err != nil {
		t.Fatalf("SetTopicActive: %v", err)
	}
	if _, err := f.svc.StartTopic(f.learner.ID, topicID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for inactive topic, got %v", err)
	}
}

func TestSkipAndResolve(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{TopicSize: 3})
	topicID, _ := f.store.InsertTopic(model.Topic{Name: "Salts", Tags: []string{"salt"}, Active: true})
	for i := 0; i < 3; i++ {
		f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "salt", Answer: "NaCl", FullMark: 1, Tags: []string{"salt"}})
	}

	step, err := f.svc.StartTopic(f.learner.ID, topicID)
	if err != nil {
		t.Fatalf("StartTopic: %v", err)
	}
	workID := step.Work.ID
	skipped := step.Prompt.SlotID

	if err := f.svc.Skip(f.learner.ID, workID, skipped); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	// A stale skip of the same slot is refused.
	if err := f.svc.Skip(f.learner.ID, workID, skipped); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}

	step, _ = f.svc.Next(f.learner.ID, workID)
	f.answerAll(t, step, func(*Prompt) string { return "NaCl" })

	pending, err := f.svc.PendingSkipped(f.learner.ID, workID)
	if err != nil {
		t.Fatalf("PendingSkipped: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != skipped {
		t.Fatalf("unexpected pending %+v", pending)
	}

	if _, err := f.svc.Finish(context.Background(), f.learner.ID, workID); !errors.Is(err, ErrUnresolvedSlots) {
		t.Fatalf("expected ErrUnresolvedSlots, got %v", err)
	}

	// Redo round presents the skipped question again.
	step, err = f.svc.ResolveSkipped(f.learner.ID, workID, true)
	if err != nil {
		t.Fatalf("ResolveSkipped: %v", err)
	}
	if step.Prompt == nil || step.Prompt.SlotID != skipped {
		t.Fatalf("expected skipped slot %d presented, got %+v", skipped, step.Prompt)
	}

	// Skip it once more and force-finish.
	if err := f.svc.Skip(f.learner.ID, workID, skipped); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	step, err = f.svc.ResolveSkipped(f.learner.ID, workID, false)
	if err != nil {
		t.Fatalf("ResolveSkipped: %v", err)
	}
	if step.Prompt != nil || step.PendingSkipped != 0 || step.Answered != 3 {
		t.Errorf("unexpected step after force finish %+v", step)
	}

	sum, err := f.svc.Finish(context.Background(), f.learner.ID, workID)
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if sum.RawTotal != 2 || sum.Counts.Zero != 1 {
		t.Errorf("unexpected summary %+v", sum)
	}

	view, err := f.svc.WorkView(workID)
	if err != nil {
		t.Fatalf("WorkView: %v", err)
	}
	for _, sv := range view.Slots {
		if sv.Slot.ID == skipped && sv.Slot.Answer != model.SkippedAnswer {
			t.Errorf("force-finished slot answer = %q", sv.Slot.Answer)
		}
	}
}

func TestResumeSurfacesSkipped(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{TopicSize: 2})
	topicID, _ := f.store.InsertTopic(model.Topic{Name: "Salts", Tags: []string{"salt"}, Active: true})
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "s1", Answer: "a", FullMark: 1, Tags: []string{"salt"}})
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "s2", Answer: "a", FullMark: 1, Tags: []string{"salt"}})

	step, _ := f.svc.StartTopic(f.learner.ID, topicID)
	first := step.Prompt.SlotID

	// Interrupted: resume shows the same current question.
	resumed, err := f.svc.Resume(f.learner.ID)
	if err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if resumed.Prompt.SlotID != first {
		t.Fatalf("resume presented slot %d, want %d", resumed.Prompt.SlotID, first)
	}

	if err := f.svc.Skip(f.learner.ID, step.Work.ID, first); err != nil {
		t.Fatalf("Skip: %v", err)
	}
	resumed, _ = f.svc.Resume(f.learner.ID)
	if resumed.Prompt == nil || resumed.Prompt.SlotID != first {
		t.Errorf("resume should surface skipped slot %d first, got %+v", first, resumed.Prompt)
	}
}

func TestAnswerSelfCheck(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{})
	q := f.addQuestion(t, model.Question{Kind: model.KindExam, Text: "essay", Answer: "model answer", FullMark: 3, SelfCheck: true, Tags: []string{"ege_29"}})
	aw, err := f.svc.CreateAssignedWork(AssignedWorkRequest{Name: "Essay", Mode: AssignModeTags, Quotas: []sampler.TagQuota{{Tag: "ege_29", Count: 1}}})
	if err != nil {
		t.Fatalf("CreateAssignedWork: %v", err)
	}

	step, err := f.svc.StartAssigned(f.learner.ID, aw.Slug)
	if err != nil {
		t.Fatalf("StartAssigned: %v", err)
	}
	if !step.Prompt.SelfCheck || step.Prompt.Answer != q.Answer {
		t.Fatalf("self-check prompt must reveal the answer: %+v", step.Prompt)
	}

	tests := []struct {
		name string
		mark *int
	}{
		{"missing", nil},
		{"too high", intPtr(4)},
		{"negative", intPtr(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, "", tt.mark)
			if !errors.Is(err, ErrInvalidMark) {
				t.Errorf("expected ErrInvalidMark, got %v", err)
			}
		})
	}

	res, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, "my essay", intPtr(2))
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Mark != 2 || res.FullMark != 3 {
		t.Errorf("unexpected result %+v", res)
	}

	// A duplicated answer event is refused and does not change the mark.
	if _, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, "again", intPtr(3)); !errors.Is(err, workflow.ErrInvalidTransition) {
		t.Errorf("expected ErrInvalidTransition, got %v", err)
	}
	slots, _ := f.store.GetSlots(step.Work.ID)
	if *slots[0].Mark != 2 {
		t.Errorf("mark changed to %d", *slots[0].Mark)
	}
}

func TestOwnership(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{TopicSize: 1})
	topicID, _ := f.store.InsertTopic(model.Topic{Name: "Salts", Tags: []string{"salt"}, Active: true})
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "s", Answer: "a", FullMark: 1, Tags: []string{"salt"}})

	step, _ := f.svc.StartTopic(f.learner.ID, topicID)
	other, _ := f.store.EnsureLearner("chat-2", "")

	if _, err := f.svc.Next(other.ID, step.Work.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("Next by another learner: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Answer(other.ID, step.Work.ID, step.Prompt.SlotID, "a", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Answer by another learner: expected ErrNotFound, got %v", err)
	}
	if _, err := f.svc.Answer(f.learner.ID, step.Work.ID, 9999, "a", nil); !errors.Is(err, ErrNotFound) {
		t.Errorf("Answer unknown slot: expected ErrNotFound, got %v", err)
	}

	if _, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, " a ", nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := f.svc.Finish(context.Background(), f.learner.ID, step.Work.ID); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if _, err := f.svc.Next(f.learner.ID, step.Work.ID); !errors.Is(err, ErrWorkClosed) {
		t.Errorf("Next on finished work: expected ErrWorkClosed, got %v", err)
	}

	stats, err := f.svc.LearnerStats(f.learner.ID)
	if err != nil {
		t.Fatalf("LearnerStats: %v", err)
	}
	if len(stats) != 1 || stats[0].RawTotal != 1 {
		t.Errorf("unexpected stats %+v", stats)
	}
	otherStats, _ := f.svc.LearnerStats(other.ID)
	if len(otherStats) != 0 {
		t.Errorf("other learner sees %d works", len(otherStats))
	}
}

func TestCreateAssignedWorkValidation(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{})
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "q", Answer: "a", FullMark: 1, Tags: []string{"a", "b"}})
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "q", Answer: "a", FullMark: 1, Tags: []string{"a"}})

	tests := []struct {
		name      string
		req       AssignedWorkRequest
		invalid   bool
		shortfall sampler.Reason
	}{
		{"no name", AssignedWorkRequest{Mode: AssignModeTags, Quotas: []sampler.TagQuota{{Tag: "a", Count: 1}}}, true, ""},
		{"unknown mode", AssignedWorkRequest{Name: "x", Mode: "random"}, true, ""},
		{"no quotas", AssignedWorkRequest{Name: "x", Mode: AssignModeTags}, true, ""},
		{"one hard tag", AssignedWorkRequest{Name: "x", Mode: AssignModeHardFilter, Tags: []string{"a"}, Count: 1}, false, sampler.ReasonTooFewTags},
		{"hard filter shortfall", AssignedWorkRequest{Name: "x", Mode: AssignModeHardFilter, Tags: []string{"a", "b"}, Count: 2}, false, sampler.ReasonInsufficientPool},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateAssignedWork(tt.req)
			if tt.invalid {
				if !errors.Is(err, ErrInvalidRequest) {
					t.Errorf("expected ErrInvalidRequest, got %v", err)
				}
				return
			}
			var short *ShortfallError
			if !errors.As(err, &short) || short.Result.Reason != tt.shortfall {
				t.Errorf("expected %s shortfall, got %v", tt.shortfall, err)
			}
		})
	}

	aw, err := f.svc.CreateAssignedWork(AssignedWorkRequest{Name: "both", Mode: AssignModeHardFilter, Tags: []string{"a", "b"}, Count: 1})
	if err != nil {
		t.Fatalf("CreateAssignedWork: %v", err)
	}
	if len(aw.QuestionIDs) != 1 {
		t.Errorf("expected 1 question, got %v", aw.QuestionIDs)
	}
}

func TestSlugFor(t *testing.T) {
	at := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := slugFor("Homework", at)
	if len(a) != 6 {
		t.Fatalf("slug %q is not 6 characters", a)
	}
	if a != slugFor("Homework", at) {
		t.Error("slug is not deterministic")
	}
	if a == slugFor("Homework", at.Add(time.Nanosecond)) {
		t.Error("slug ignores creation time")
	}
}

func TestAnswerTrimsSpace(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{TopicSize: 1})
	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "salt", Answer: "NaCl", FullMark: 2, Tags: []string{"salt"}})
	topicID, err := f.store.InsertTopic(model.Topic{Name: "Salts", Tags: []string{"salt"}, Active: true})
	if err != nil {
		t.Fatalf("InsertTopic: %v", err)
	}

	step, err := f.svc.StartTopic(f.learner.ID, topicID)
	if err != nil {
		t.Fatalf("StartTopic: %v", err)
	}
	res, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, "  NaCl\n", nil)
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if res.Mark != 2 {
		t.Errorf("mark = %d, want 2 for an answer padded with spaces", res.Mark)
	}
	if res.Slot.Answer != "NaCl" {
		t.Errorf("stored answer = %q, want trimmed %q", res.Slot.Answer, "NaCl")
	}
}

// duplicateSlugRepo serves one assigned work that lists a question twice.
type duplicateSlugRepo struct {
	*store.Store
	aw model.AssignedWork
}

func (r duplicateSlugRepo) GetAssignedWorkBySlug(slug string) (model.AssignedWork, error) {
	if slug != r.aw.Slug {
		return model.AssignedWork{}, store.ErrNotFound
	}
	return r.aw, nil
}

func TestAssignedWorkDuplicateQuestions(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{})
	q1 := f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "a", Answer: "a", FullMark: 1, Tags: []string{"a"}})
	q2 := f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "b", Answer: "b", FullMark: 1, Tags: []string{"b"}})

	repo := duplicateSlugRepo{Store: f.store, aw: model.AssignedWork{ID: 7, Name: "twice", Slug: "abc123", QuestionIDs: []int64{q1.ID, q2.ID, q1.ID}}}
	svc := NewService(repo, sampler.New(rand.NewPCG(3, 4)), workflow.New(), f.pub, model.TrainerConfig{})

	_, err := svc.StartAssigned(f.learner.ID, "abc123")
	if !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	var short *ShortfallError
	if errors.As(err, &short) {
		t.Errorf("duplicate ids reported as a shortfall: %+v", short.Result)
	}
	if open, _ := f.store.OpenWork(f.learner.ID); open != nil {
		t.Errorf("work was created: %+v", open)
	}
}

func intPtr(v int) *int { return &v }

func TestMetrics(t *testing.T) {
	f := newFixture(t, model.TrainerConfig{TopicSize: 1})
	topicID, _ := f.store.InsertTopic(model.Topic{Name: "Salts", Tags: []string{"salt"}, Active: true})

	before := testutil.ToFloat64(samplingShortfalls.WithLabelValues(string(sampler.ReasonInsufficientPool)))
	if _, err := f.svc.StartTopic(f.learner.ID, topicID); err == nil {
		t.Fatal("expected shortfall on empty bank")
	}
	if got := testutil.ToFloat64(samplingShortfalls.WithLabelValues(string(sampler.ReasonInsufficientPool))); got != before+1 {
		t.Errorf("shortfall counter = %v, want %v", got, before+1)
	}

	f.addQuestion(t, model.Question{Kind: model.KindTopic, Text: "s", Answer: "a", FullMark: 1, Tags: []string{"salt"}})
	started := testutil.ToFloat64(worksStarted.WithLabelValues(string(model.ModeTopic)))
	full := testutil.ToFloat64(answersScored.WithLabelValues(string(model.KindTopic), "full"))

	step, err := f.svc.StartTopic(f.learner.ID, topicID)
	if err != nil {
		t.Fatalf("StartTopic: %v", err)
	}
	if _, err := f.svc.Answer(f.learner.ID, step.Work.ID, step.Prompt.SlotID, "a", nil); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if got := testutil.ToFloat64(worksStarted.WithLabelValues(string(model.ModeTopic))); got != started+1 {
		t.Errorf("started counter = %v, want %v", got, started+1)
	}
	if got := testutil.ToFloat64(answersScored.WithLabelValues(string(model.KindTopic), "full")); got != full+1 {
		t.Errorf("full answers counter = %v, want %v", got, full+1)
	}
}

func TestAnswerOutcome(t *testing.T) {
	tests := []struct {
		mark, full int
		want       string
	}{
		{2, 2, "full"},
		{1, 2, "partial"},
		{0, 2, "zero"},
		{0, 0, "zero"},
	}
	for _, tt := range tests {
		if got := answerOutcome(tt.mark, tt.full); got != tt.want {
			t.Errorf("answerOutcome(%d, %d) = %q, want %q", tt.mark, tt.full, got, tt.want)
		}
	}
}
