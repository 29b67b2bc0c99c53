package training

import (
	"errors"
	"fmt"

	"github.com/chemtrainer/trainer/internal/sampler"
	"github.com/chemtrainer/trainer/internal/store"
)

var (
	ErrOpenWorkExists  = errors.New("an open work already exists")
	ErrNotFound        = errors.New("not found")
	ErrWorkClosed      = errors.New("work is already finished")
	ErrUnresolvedSlots = errors.New("work has unanswered or skipped questions")
	ErrInvalidMark     = errors.New("self-check mark out of range")
	ErrInvalidRequest  = errors.New("invalid request")
)

// ShortfallError reports that a work could not be built from the question bank.
type ShortfallError struct {
	Result sampler.Result
}

func (e *ShortfallError) Error() string {
	r := e.Result
	switch r.Reason {
	case sampler.ReasonTooFewTags:
		return "intersection sampling needs at least two tags"
	case sampler.ReasonInvalidQuota:
		return fmt.Sprintf("invalid quota %d for tag %q", r.Requested, r.Tag)
	case sampler.ReasonCycleLimit:
		return fmt.Sprintf("could not draw %d questions within the cycle limit", r.Requested)
	}
	if r.Tag != "" {
		return fmt.Sprintf("not enough questions tagged %q: requested %d, available %d", r.Tag, r.Requested, r.Available)
	}
	return fmt.Sprintf("not enough questions: requested %d, available %d", r.Requested, r.Available)
}

func shortfall(res sampler.Result) error {
	samplingShortfalls.WithLabelValues(string(res.Reason)).Inc()
	return &ShortfallError{Result: res}
}

// lookupErr maps a repository miss to ErrNotFound.
func lookupErr(err error, format string, args ...any) error {
	if errors.Is(err, store.ErrNotFound) {
		err = ErrNotFound
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
