// Package grading converts raw exam totals to scaled grades and summarizes finished works.
package grading

import (
	"github.com/chemtrainer/trainer/internal/model"
)

// ScaledMax is the top of the scaled exam grade.
const ScaledMax = 100

// Table looks up the scaled grade for a raw total.
type Table interface {
	Lookup(raw int) (int, bool)
}

// MapTable is an in-memory conversion table.
type MapTable map[int]int

// NewMapTable builds a table from stored entries. Later entries win on duplicate raw scores.
func NewMapTable(entries []model.MarkConversionEntry) MapTable {
	t := make(MapTable, len(entries))
	for _, e := range entries {
		t[e.Raw] = e.Scaled
	}
	return t
}

// Lookup implements Table.
func (t MapTable) Lookup(raw int) (int, bool) {
	v, ok := t[raw]
	return v, ok
}

// Converter maps raw exam totals to scaled grades.
type Converter struct {
	table Table
}

// NewConverter creates a converter over table. A nil table converts everything to 0.
func NewConverter(table Table) *Converter {
	return &Converter{table: table}
}

// Convert returns the scaled grade for raw, or 0 when the table has no entry.
func (c *Converter) Convert(raw int) int {
	if c == nil || c.table == nil {
		return 0
	}
	if v, ok := c.table.Lookup(raw); ok {
		return v
	}
	return 0
}

// Summarize totals a work's slots. Questions missing from the map count as
// zero-mark items with no achievable points. Exam works are converted with conv.
func Summarize(work model.Work, name string, slots []model.WorkQuestion, questions map[int64]model.Question, conv *Converter) model.Summary {
	sum := model.Summary{
		WorkID:     work.ID,
		Mode:       work.Mode,
		Name:       name,
		Questions:  len(slots),
		StartedAt:  work.StartedAt,
		EndedAt:    work.EndedAt,
		ShareToken: work.ShareToken,
	}

	for _, s := range slots {
		mark := 0
		if s.Mark != nil {
			mark = *s.Mark
		}
		full := questions[s.QuestionID].FullMark

		sum.RawTotal += mark
		sum.MaxTotal += full

		switch {
		case full > 0 && mark >= full:
			sum.Counts.Fully++
		case mark > 0:
			sum.Counts.Partially++
		default:
			sum.Counts.Zero++
		}
	}

	if work.Mode == model.ModeExam {
		scaled := conv.Convert(sum.RawTotal)
		scaledMax := ScaledMax
		sum.ScaledTotal = &scaled
		sum.ScaledMax = &scaledMax
	}

	return sum
}

// Details lists per-slot results in position order as stored in slots.
func Details(slots []model.WorkQuestion, questions map[int64]model.Question) []model.QuestionResult {
	out := make([]model.QuestionResult, 0, len(slots))
	for _, s := range slots {
		q := questions[s.QuestionID]
		mark := 0
		if s.Mark != nil {
			mark = *s.Mark
		}
		out = append(out, model.QuestionResult{
			Position:  s.Position,
			Kind:      q.Kind,
			Text:      q.Text,
			Tags:      q.Tags,
			Answer:    q.Answer,
			Submitted: s.Answer,
			Status:    s.Status,
			Mark:      mark,
			FullMark:  q.FullMark,
			StartedAt: s.StartedAt,
			EndedAt:   s.EndedAt,
		})
	}
	return out
}
