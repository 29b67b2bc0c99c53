package model

import "time"

// ResultsExport is the top-level JSON structure for training result export.
type ResultsExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Results    []LearnerResult `json:"results"`
}

// LearnerResult holds one completed work for export.
type LearnerResult struct {
	ExternalID  string           `json:"external_id"`
	DisplayName string           `json:"display_name"`
	WorkNumber  int              `json:"work_number"`
	Summary     Summary          `json:"summary"`
	Questions   []QuestionResult `json:"questions"`
}

// QuestionResult holds per-slot data for export.
type QuestionResult struct {
	Position  int          `json:"position"`
	Kind      QuestionKind `json:"kind"`
	Text      string       `json:"text"`
	Tags      []string     `json:"tags"`
	Answer    string       `json:"answer"`
	Submitted string       `json:"submitted"`
	Status    SlotStatus   `json:"status"`
	Mark      int          `json:"mark"`
	FullMark  int          `json:"full_mark"`
	StartedAt *time.Time   `json:"started_at,omitempty"`
	EndedAt   *time.Time   `json:"ended_at,omitempty"`
}
