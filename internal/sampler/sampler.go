// Package sampler builds the ordered question list of a new work from an
// in-memory snapshot of the question bank.
//
// All strategies are pure: they never modify the pool they are given and a
// failed draw returns no partial selection.
package sampler

import (
	"fmt"
	"math/rand/v2"

	"github.com/chemtrainer/trainer/internal/model"
)

const (
	// DefaultTopicSize is the number of questions in a topic training.
	DefaultTopicSize = 20
	// MaxTopicCycles bounds the number of full passes over a topic's tags.
	MaxTopicCycles = 100
)

// Reason explains why a draw failed.
type Reason string

const (
	ReasonInsufficientPool Reason = "insufficient_pool"
	ReasonTooFewTags       Reason = "too_few_tags"
	ReasonInvalidQuota     Reason = "invalid_quota"
	ReasonCycleLimit       Reason = "cycle_limit"
)

// Result is the outcome of a draw. When OK is false, Tag, Requested and
// Available describe the shortfall as far as they apply.
type Result struct {
	OK        bool    `json:"ok"`
	IDs       []int64 `json:"ids,omitempty"`
	Reason    Reason  `json:"reason,omitempty"`
	Tag       string  `json:"tag,omitempty"`
	Requested int     `json:"requested,omitempty"`
	Available int     `json:"available,omitempty"`
}

// TagQuota asks for Count distinct questions carrying Tag.
type TagQuota struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Sampler draws questions uniformly at random without replacement.
type Sampler struct {
	intN func(n int) int
}

// New creates a sampler. A nil source uses the goroutine-safe global generator;
// a non-nil source makes draws reproducible and must not be shared between goroutines.
func New(src rand.Source) *Sampler {
	if src == nil {
		return &Sampler{intN: rand.IntN}
	}
	return &Sampler{intN: rand.New(src).IntN}
}

// ExamTag returns the tag of exam item n.
func ExamTag(prefix string, n int) string {
	return fmt.Sprintf("%s%d", prefix, n)
}

// ExamQuotas returns one question per exam item number, in item order.
func ExamQuotas(prefix string, items int) []TagQuota {
	quotas := make([]TagQuota, 0, items)
	for n := 1; n <= items; n++ {
		quotas = append(quotas, TagQuota{Tag: ExamTag(prefix, n), Count: 1})
	}
	return quotas
}

// QuotaSample draws quota.Count questions per tag, in the order quotas are given.
// A question chosen for an earlier tag is never considered for a later one.
func (s *Sampler) QuotaSample(pool []model.Question, quotas []TagQuota) Result {
	chosen := make(map[int64]bool)
	var ids []int64

	for _, quota := range quotas {
		if quota.Count < 0 {
			return Result{Reason: ReasonInvalidQuota, Tag: quota.Tag, Requested: quota.Count}
		}
		candidates := filter(pool, func(q model.Question) bool {
			return !chosen[q.ID] && q.HasTag(quota.Tag)
		})
		if len(candidates) < quota.Count {
			return Result{
				Reason:    ReasonInsufficientPool,
				Tag:       quota.Tag,
				Requested: quota.Count,
				Available: len(candidates),
			}
		}
		for _, id := range s.draw(candidates, quota.Count) {
			chosen[id] = true
			ids = append(ids, id)
		}
	}

	return Result{OK: true, IDs: ids}
}

// IntersectionSample draws desired questions among those carrying every required tag.
func (s *Sampler) IntersectionSample(pool []model.Question, required []string, desired int) Result {
	if len(required) < 2 {
		return Result{Reason: ReasonTooFewTags, Requested: desired}
	}
	if desired < 0 {
		return Result{Reason: ReasonInvalidQuota, Requested: desired}
	}

	candidates := filter(pool, func(q model.Question) bool {
		for _, tag := range required {
			if !q.HasTag(tag) {
				return false
			}
		}
		return true
	})
	if len(candidates) < desired {
		return Result{Reason: ReasonInsufficientPool, Requested: desired, Available: len(candidates)}
	}

	return Result{OK: true, IDs: s.draw(candidates, desired)}
}

// TopicSample builds a topic training by cycling through the topic's tags and
// drawing one question per tag per pass. A desired count <= 0 means DefaultTopicSize.
func (s *Sampler) TopicSample(pool []model.Question, topic model.Topic, desired int) Result {
	if desired <= 0 {
		desired = DefaultTopicSize
	}

	candidates := filter(pool, func(q model.Question) bool {
		for _, tag := range topic.Tags {
			if q.HasTag(tag) {
				return true
			}
		}
		return false
	})
	if len(candidates) < desired {
		return Result{Reason: ReasonInsufficientPool, Requested: desired, Available: len(candidates)}
	}
	if len(candidates) == desired {
		return Result{OK: true, IDs: idsOf(candidates)}
	}

	remaining := candidates
	ids := make([]int64, 0, desired)
	for cycle := 0; len(ids) < desired; cycle++ {
		if cycle >= MaxTopicCycles {
			return Result{Reason: ReasonCycleLimit, Requested: desired, Available: len(candidates)}
		}
		for _, tag := range topic.Tags {
			var carrying []int
			for i, q := range remaining {
				if q.HasTag(tag) {
					carrying = append(carrying, i)
				}
			}
			if len(carrying) == 0 {
				continue
			}
			pick := carrying[s.intN(len(carrying))]
			ids = append(ids, remaining[pick].ID)
			remaining = append(remaining[:pick:pick], remaining[pick+1:]...)
			if len(ids) == desired {
				break
			}
		}
	}

	return Result{OK: true, IDs: ids}
}

// CountByTag counts active questions per tag.
func CountByTag(pool []model.Question) map[string]int {
	counts := make(map[string]int)
	for _, q := range pool {
		if !q.Active {
			continue
		}
		for _, tag := range q.Tags {
			counts[tag]++
		}
	}
	return counts
}

// draw picks k ids uniformly without replacement using a partial Fisher-Yates shuffle.
func (s *Sampler) draw(candidates []model.Question, k int) []int64 {
	ids := idsOf(candidates)
	for i := 0; i < k; i++ {
		j := i + s.intN(len(ids)-i)
		ids[i], ids[j] = ids[j], ids[i]
	}
	return ids[:k]
}

// filter returns a fresh slice of active questions accepted by keep.
func filter(pool []model.Question, keep func(model.Question) bool) []model.Question {
	var out []model.Question
	for _, q := range pool {
		if q.Active && keep(q) {
			out = append(out, q)
		}
	}
	return out
}

func idsOf(questions []model.Question) []int64 {
	ids := make([]int64, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	return ids
}
