// Package workflow drives a work through its question slots one at a time.
//
// The machine mutates slots in place and never touches storage. Every
// transition that is not allowed from the slot's current status returns an
// error wrapping ErrInvalidTransition and leaves the slot untouched, so a
// duplicated or delayed event from the transport cannot corrupt a work.
package workflow

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/chemtrainer/trainer/internal/model"
)

// ErrInvalidTransition is returned for a transition not allowed from the current state.
var ErrInvalidTransition = errors.New("invalid transition")

// Machine applies slot and work transitions.
type Machine struct {
	now      func() time.Time
	newToken func() string
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Machine) { m.now = now }
}

// WithTokenFunc overrides share token generation.
func WithTokenFunc(fn func() string) Option {
	return func(m *Machine) { m.newToken = fn }
}

// New creates a machine using the wall clock and random UUID share tokens.
func New(opts ...Option) *Machine {
	m := &Machine{
		now:      func() time.Time { return time.Now().UTC() },
		newToken: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Now returns the machine's current time.
func (m *Machine) Now() time.Time {
	return m.now()
}

// Current returns the slot currently presented, or nil.
func Current(slots []model.WorkQuestion) *model.WorkQuestion {
	for i := range slots {
		if slots[i].Status == model.SlotCurrent {
			return &slots[i]
		}
	}
	return nil
}

// OpenNext makes the first waiting slot by position current and stamps its start time.
// With resume set, skipped slots are eligible too. It returns nil when nothing is left,
// and also when a slot is already current; use Current to re-present it.
func (m *Machine) OpenNext(slots []model.WorkQuestion, resume bool) *model.WorkQuestion {
	if Current(slots) != nil {
		return nil
	}

	var next *model.WorkQuestion
	for i := range slots {
		s := &slots[i]
		eligible := s.Status == model.SlotWaiting || (resume && s.Status == model.SlotSkipped)
		if !eligible {
			continue
		}
		if next == nil || s.Position < next.Position {
			next = s
		}
	}
	if next == nil {
		return nil
	}

	now := m.now()
	next.Status = model.SlotCurrent
	next.StartedAt = &now
	return next
}

// Close records the answer and mark of the current slot. A non-nil start
// replaces the stamped start time.
func (m *Machine) Close(slot *model.WorkQuestion, answer string, mark int, end time.Time, start *time.Time) error {
	if slot.Status != model.SlotCurrent {
		return fmt.Errorf("close slot %d in status %s: %w", slot.ID, slot.Status, ErrInvalidTransition)
	}
	slot.Status = model.SlotAnswered
	slot.Answer = answer
	slot.Mark = &mark
	slot.EndedAt = &end
	if start != nil {
		slot.StartedAt = start
	}
	return nil
}

// Skip puts the current slot aside and clears its start time.
func (m *Machine) Skip(slot *model.WorkQuestion) error {
	if slot.Status != model.SlotCurrent {
		return fmt.Errorf("skip slot %d in status %s: %w", slot.ID, slot.Status, ErrInvalidTransition)
	}
	slot.Status = model.SlotSkipped
	slot.StartedAt = nil
	return nil
}

// PendingSkipped returns the skipped slots in position order.
func PendingSkipped(slots []model.WorkQuestion) []*model.WorkQuestion {
	var out []*model.WorkQuestion
	for i := range slots {
		if slots[i].Status == model.SlotSkipped {
			out = append(out, &slots[i])
		}
	}
	slices.SortFunc(out, func(a, b *model.WorkQuestion) int {
		return cmp.Compare(a.Position, b.Position)
	})
	return out
}

// ResolveSkipped either returns every skipped slot to the queue (retry) or
// closes it with mark 0. It returns the slots it changed.
func (m *Machine) ResolveSkipped(slots []model.WorkQuestion, retry bool) []*model.WorkQuestion {
	pending := PendingSkipped(slots)
	now := m.now()
	for _, s := range pending {
		if retry {
			s.Status = model.SlotWaiting
			continue
		}
		zero := 0
		start, end := now, now
		s.Status = model.SlotAnswered
		s.Answer = model.SkippedAnswer
		s.Mark = &zero
		s.StartedAt = &start
		s.EndedAt = &end
	}
	return pending
}

// End closes the work and issues its share token. It reports false without
// error when the work was already ended.
func (m *Machine) End(work *model.Work, slots []model.WorkQuestion) (bool, error) {
	if !work.Open() {
		return false, nil
	}
	for _, s := range slots {
		switch s.Status {
		case model.SlotWaiting, model.SlotCurrent, model.SlotSkipped:
			return false, fmt.Errorf("end work %d with slot %d %s: %w", work.ID, s.Position, s.Status, ErrInvalidTransition)
		}
	}

	now := m.now()
	work.EndedAt = &now
	work.ShareToken = m.newToken()
	return true, nil
}
