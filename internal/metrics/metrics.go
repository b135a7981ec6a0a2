// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ticksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dojo_sequencer_ticks_total",
		Help: "Timer ticks applied to running sequencers",
	})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dojo_sequencer_transitions_total",
		Help: "Sequencer phase transitions by target phase",
	}, []string{"phase"})

	commandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dojo_sequencer_commands_total",
		Help: "User commands by name and outcome",
	}, []string{"command", "outcome"}) // outcome=ok|rejected

	sessionsFinished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dojo_sessions_finished_total",
		Help: "Runs that reached the finished state",
	})

	persistenceErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dojo_persistence_errors_total",
		Help: "Failed document loads and saves by operation",
	}, []string{"op"})

	activeRunners = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dojo_active_runners",
		Help: "Sequencer runners held in memory",
	})

	metronomePlaying = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dojo_metronomes_playing",
		Help: "Metronomes currently playing",
	})
)

func IncTick() {
	ticksTotal.Inc()
}

func RecordTransition(phase string) {
	transitionsTotal.WithLabelValues(phase).Inc()
}

func RecordCommand(command string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "rejected"
	}
	commandsTotal.WithLabelValues(command, outcome).Inc()
}

func IncSessionsFinished() {
	sessionsFinished.Inc()
}

func IncPersistenceError(op string) {
	persistenceErrors.WithLabelValues(op).Inc()
}

func SetActiveRunners(n int) {
	activeRunners.Set(float64(n))
}

// MetronomeStarted and MetronomeStopped must be called on edges only.
func MetronomeStarted() {
	metronomePlaying.Inc()
}

func MetronomeStopped() {
	metronomePlaying.Dec()
}
