package store

import (
	"fmt"

	"github.com/chemtrainer/trainer/internal/model"
)

// ImportStats counts what ImportBank added.
type ImportStats struct {
	Questions int `json:"questions"`
	Topics    int `json:"topics"`
	MarkTable int `json:"mark_table"`
}

// ImportBank validates every record first, then adds questions and topics.
// A non-empty mark table replaces the stored one.
func (s *Store) ImportBank(bank model.BankImport) (ImportStats, error) {
	var stats ImportStats

	questions := make([]model.Question, 0, len(bank.Questions))
	for i, qi := range bank.Questions {
		q, err := qi.Question()
		if err != nil {
			return stats, fmt.Errorf("question %d: %w", i+1, err)
		}
		questions = append(questions, q)
	}
	for i, ti := range bank.Topics {
		if ti.Name == "" || len(ti.Tags) == 0 {
			return stats, fmt.Errorf("topic %d: name and tags are required", i+1)
		}
	}

	for i, q := range questions {
		if _, err := s.InsertQuestion(q); err != nil {
			return stats, fmt.Errorf("insert question %d: %w", i+1, err)
		}
		stats.Questions++
	}
	for i, ti := range bank.Topics {
		t := model.Topic{Volume: ti.Volume, Name: ti.Name, Tags: ti.Tags, Active: true}
		if _, err := s.InsertTopic(t); err != nil {
			return stats, fmt.Errorf("insert topic %d: %w", i+1, err)
		}
		stats.Topics++
	}
	if len(bank.MarkTable) > 0 {
		if err := s.ReplaceMarkTable(bank.MarkTable); err != nil {
			return stats, fmt.Errorf("replace mark table: %w", err)
		}
		stats.MarkTable = len(bank.MarkTable)
	}
	return stats, nil
}
