package metrics

import (
	"errors"

	"github.com/Togather-Foundation/eventease/internal/domain/moderation"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ModerationProposals = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_proposals_total",
			Help:      "Proposals submitted to the moderation engine",
		},
		[]string{"action", "outcome"},
	)

	ModerationDecisions = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_decisions_total",
			Help:      "Decisions handled by the moderation engine",
		},
		[]string{"action", "decision", "outcome"},
	)
)

var _ moderation.Observer = ModerationObserver{}

// ModerationObserver counts engine calls. Plug it in with
// moderation.WithObserver.
type ModerationObserver struct{}

func (ModerationObserver) Proposed(kind moderation.Kind, err error) {
	ModerationProposals.WithLabelValues(kindLabel(kind), Outcome(err)).Inc()
}

func (ModerationObserver) Decided(kind moderation.Kind, decision moderation.Decision, result *moderation.Result, err error) {
	outcome := Outcome(err)
	if err == nil && result != nil && result.Replayed {
		outcome = "replayed"
	}
	decisionLabel := string(decision)
	if decisionLabel == "" {
		decisionLabel = "unknown"
	}
	ModerationDecisions.WithLabelValues(kindLabel(kind), decisionLabel, outcome).Inc()
}

func kindLabel(kind moderation.Kind) string {
	if kind == "" {
		return "unknown"
	}
	return string(kind)
}

// Outcome buckets an engine error into a low-cardinality label value.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, moderation.ErrInvalidRequest):
		return "invalid"
	case errors.Is(err, moderation.ErrForbidden):
		return "forbidden"
	case errors.Is(err, moderation.ErrNotFound):
		return "not_found"
	case errors.Is(err, moderation.ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}
