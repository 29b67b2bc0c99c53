// Package scoring awards marks for submitted answers.
package scoring

import (
	"strings"

	"github.com/chemtrainer/trainer/internal/model"
)

// Score returns the mark earned by submitted for q. It never fails: any
// answer that does not match a rule earns 0.
//
// Self-check questions are not scored here; see SelfCheckMark.
func Score(q model.Question, submitted string) int {
	if q.SelfCheck {
		return 0
	}
	switch q.Kind {
	case model.KindTopic:
		return exact(q, submitted)
	case model.KindExam:
		switch q.FullMark {
		case 2:
			return positional(q, submitted)
		case 1:
			return single(q, submitted)
		}
	}
	return 0
}

// SelfCheckMark accepts the mark a learner picked for a self-check question.
// It reports false when the pick is outside [0, FullMark], which the picker
// never offers.
func SelfCheckMark(q model.Question, picked int) (int, bool) {
	if picked < 0 || picked > q.FullMark {
		return 0, false
	}
	return picked, true
}

func exact(q model.Question, submitted string) int {
	if submitted == q.Answer {
		return q.FullMark
	}
	return 0
}

// positional compares the answer sequence element by element. One mismatch
// costs one point regardless of the sequence length.
func positional(q model.Question, submitted string) int {
	want := []rune(q.Answer)
	got := []rune(submitted)

	n := min(len(want), len(got))
	matches := 0
	for i := 0; i < n; i++ {
		if want[i] == got[i] {
			matches++
		}
	}

	switch matches {
	case len(want):
		return 2
	case len(want) - 1:
		return 1
	default:
		return 0
	}
}

// single accepts either orientation of a rotate-tolerant answer, otherwise
// any submission containing the answer.
func single(q model.Question, submitted string) int {
	if q.Rotate {
		if submitted == q.Answer || submitted == reverse(q.Answer) {
			return 1
		}
		return 0
	}
	if strings.Contains(submitted, q.Answer) {
		return 1
	}
	return 0
}

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}
