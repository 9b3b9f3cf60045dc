package voice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboard_voice_commands_total",
			Help: "Transcripts handled by the voice dispatcher, by intent and outcome.",
		},
		[]string{"intent", "outcome"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboard_wizard_transitions_total",
			Help: "Wizard step transitions, by flow and source step.",
		},
		[]string{"flow", "from"},
	)

	persistFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onboard_persist_failures_total",
			Help: "Persistence rules that failed when leaving a flow.",
		},
		[]string{"rule"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "onboard_voice_handler_duration_seconds",
			Help:    "Time spent running a matched command handler.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"intent"},
	)
)
