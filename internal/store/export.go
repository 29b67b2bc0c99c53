package store

import (
	"fmt"

	"github.com/chemtrainer/trainer/internal/grading"
	"github.com/chemtrainer/trainer/internal/model"
)

// WorkName returns the display name of a work's source: the topic name for
// topic works, the assigned work name for assigned works, "" for exams.
func (s *Store) WorkName(w model.Work) (string, error) {
	switch {
	case w.TopicID != nil:
		t, err := s.GetTopic(*w.TopicID)
		if err != nil {
			return "", fmt.Errorf("get topic %d: %w", *w.TopicID, err)
		}
		return t.Name, nil
	case w.AssignedWorkID != nil:
		aw, err := s.GetAssignedWork(*w.AssignedWorkID)
		if err != nil {
			return "", fmt.Errorf("get assigned work %d: %w", *w.AssignedWorkID, err)
		}
		return aw.Name, nil
	}
	return "", nil
}

// SlotQuestions returns the questions referenced by slots keyed by id.
func (s *Store) SlotQuestions(slots []model.WorkQuestion) (map[int64]model.Question, error) {
	ids := make([]int64, 0, len(slots))
	for _, wq := range slots {
		ids = append(ids, wq.QuestionID)
	}
	return s.QuestionsByID(ids)
}

// ExportAllResults builds export-ready learner results from all finished works.
func (s *Store) ExportAllResults() ([]model.LearnerResult, error) {
	works, err := s.ListAllFinishedWorks()
	if err != nil {
		return nil, fmt.Errorf("list works: %w", err)
	}
	table, err := s.MarkTable()
	if err != nil {
		return nil, fmt.Errorf("load mark table: %w", err)
	}
	conv := grading.NewConverter(grading.NewMapTable(table))

	// Track work count per learner for work_number.
	learnerWorkCount := make(map[int64]int)
	learners := make(map[int64]*model.Learner)

	var results []model.LearnerResult
	for _, w := range works {
		learnerWorkCount[w.OwnerID]++

		slots, err := s.GetSlots(w.ID)
		if err != nil {
			return nil, fmt.Errorf("get slots of work %d: %w", w.ID, err)
		}
		questions, err := s.SlotQuestions(slots)
		if err != nil {
			return nil, fmt.Errorf("get questions of work %d: %w", w.ID, err)
		}
		name, err := s.WorkName(w)
		if err != nil {
			return nil, err
		}

		l, ok := learners[w.OwnerID]
		if !ok {
			l, err = s.GetLearner(w.OwnerID)
			if err != nil {
				return nil, fmt.Errorf("get learner %d: %w", w.OwnerID, err)
			}
			learners[w.OwnerID] = l
		}
		var externalID, displayName string
		if l != nil {
			externalID = l.ExternalID
			displayName = l.Name
		}

		results = append(results, model.LearnerResult{
			ExternalID:  externalID,
			DisplayName: displayName,
			WorkNumber:  learnerWorkCount[w.OwnerID],
			Summary:     grading.Summarize(w, name, slots, questions, conv),
			Questions:   grading.Details(slots, questions),
		})
	}

	return results, nil
}
