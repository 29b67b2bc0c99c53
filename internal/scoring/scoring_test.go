package scoring

import (
	"testing"

	"github.com/chemtrainer/trainer/internal/model"
)

func TestScore(t *testing.T) {
	topicItem := model.Question{Kind: model.KindTopic, Answer: "NaCl", FullMark: 3}
	twoPoint := model.Question{Kind: model.KindExam, Answer: "2413", FullMark: 2}
	rotate := model.Question{Kind: model.KindExam, Answer: "35", FullMark: 1, Rotate: true}
	contains := model.Question{Kind: model.KindExam, Answer: "12", FullMark: 1}
	oddMark := model.Question{Kind: model.KindExam, Answer: "1", FullMark: 3}

	tests := []struct {
		name      string
		q         model.Question
		submitted string
		want      int
	}{
		{"topic exact", topicItem, "NaCl", 3},
		{"topic wrong", topicItem, "wrong", 0},
		{"topic case sensitive", topicItem, "nacl", 0},
		{"topic surrounding space", topicItem, " NaCl ", 0},
		{"two point all match", twoPoint, "2413", 2},
		{"two point one mismatch", twoPoint, "2411", 1},
		{"two point two mismatches", twoPoint, "2211", 0},
		{"two point short submission", twoPoint, "241", 1},
		{"two point long submission", twoPoint, "24139", 2},
		{"two point empty", twoPoint, "", 0},
		{"rotate forward", rotate, "35", 1},
		{"rotate reversed", rotate, "53", 1},
		{"rotate superset rejected", rotate, "355", 0},
		{"contains exact", contains, "12", 1},
		{"contains extra characters", contains, "120", 1},
		{"contains reversed rejected", contains, "21", 0},
		{"unsupported full mark", oddMark, "1", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.q, tt.submitted)
			if got != tt.want {
				t.Errorf("Score(%q) = %d, want %d", tt.submitted, got, tt.want)
			}
			if got < 0 || got > tt.q.FullMark {
				t.Errorf("Score(%q) = %d outside [0, %d]", tt.submitted, got, tt.q.FullMark)
			}
		})
	}
}

func TestScoreFourTokenPolicy(t *testing.T) {
	// Three of four positions right earns 1 point; longer answers keep the same rule.
	q := model.Question{Kind: model.KindExam, Answer: "123456", FullMark: 2}
	if got := Score(q, "123450"); got != 1 {
		t.Errorf("one mismatch of six = %d, want 1", got)
	}
	if got := Score(q, "123400"); got != 0 {
		t.Errorf("two mismatches of six = %d, want 0", got)
	}
}

func TestScoreSelfCheckBypassed(t *testing.T) {
	q := model.Question{Kind: model.KindExam, Answer: "long essay", FullMark: 2, SelfCheck: true}
	if got := Score(q, "long essay"); got != 0 {
		t.Errorf("self-check Score = %d, want 0", got)
	}
}

func TestSelfCheckMark(t *testing.T) {
	q := model.Question{Kind: model.KindExam, FullMark: 3, SelfCheck: true}

	tests := []struct {
		picked int
		want   int
		ok     bool
	}{
		{0, 0, true},
		{2, 2, true},
		{3, 3, true},
		{4, 0, false},
		{-1, 0, false},
	}
	for _, tt := range tests {
		got, ok := SelfCheckMark(q, tt.picked)
		if got != tt.want || ok != tt.ok {
			t.Errorf("SelfCheckMark(%d) = %d, %v; want %d, %v", tt.picked, got, ok, tt.want, tt.ok)
		}
	}
}
