package training

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	worksStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainer_works_started_total",
			Help: "Total number of works started",
		},
		[]string{"mode"},
	)

	worksFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainer_works_finished_total",
			Help: "Total number of works finished",
		},
		[]string{"mode"},
	)

	// outcome: full/partial/zero
	answersScored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainer_answers_total",
			Help: "Total number of answers scored",
		},
		[]string{"kind", "outcome"},
	)

	samplingShortfalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainer_sampling_shortfalls_total",
			Help: "Total number of works that could not be built from the question bank",
		},
		[]string{"reason"},
	)

	invalidTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "trainer_invalid_transitions_total",
			Help: "Total number of refused state changes",
		},
		[]string{"op"},
	)
)

func answerOutcome(mark, full int) string {
	switch {
	case full > 0 && mark >= full:
		return "full"
	case mark > 0:
		return "partial"
	default:
		return "zero"
	}
}
