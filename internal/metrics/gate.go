package metrics

import (
	"net/http"
	"time"

	"github.com/panelops/panelctl/internal/gate"
)

// Gate metric names
const (
	GateRefreshTotal    = "gate_refresh_total"
	GateRefreshDuration = "gate_refresh_duration_ms"
	GateQueuedTotal     = "gate_queued_total"
	GateQueueDepth      = "gate_queue_depth"
	GateReplayedTotal   = "gate_replayed_total"
	GateRejectedTotal   = "gate_rejected_total"
	GateChallengeTotal  = "gate_challenge_total"
)

// GateHooks returns request gate hooks that feed telemetry. extra hooks run after the
// metric is recorded.
func GateHooks(extra ...gate.Hooks) gate.Hooks {
	return gate.Hooks{
		OnRefresh: func(outcome string, elapsed time.Duration) {
			RecordGateRefresh(outcome, elapsed)
			for _, h := range extra {
				if h.OnRefresh != nil {
					h.OnRefresh(outcome, elapsed)
				}
			}
		},
		OnQueued: func(req *http.Request, depth int) {
			RecordGateQueued(depth)
			for _, h := range extra {
				if h.OnQueued != nil {
					h.OnQueued(req, depth)
				}
			}
		},
		OnResume: func(req *http.Request, position int) {
			RecordGateReplayed()
			for _, h := range extra {
				if h.OnResume != nil {
					h.OnResume(req, position)
				}
			}
		},
		OnReject: func(req *http.Request, reason string) {
			RecordGateRejected(reason)
			for _, h := range extra {
				if h.OnReject != nil {
					h.OnReject(req, reason)
				}
			}
		},
	}
}

// RecordGateRefresh records one settled refresh.
func RecordGateRefresh(outcome string, elapsed time.Duration) {
	labels := map[string]string{"outcome": outcome}
	count(GateRefreshTotal, labels)
	observe(GateRefreshDuration, elapsed, labels)
}

// RecordGateQueued records a request parked behind an in-flight refresh.
func RecordGateQueued(depth int) {
	count(GateQueuedTotal, nil)
	gauge(GateQueueDepth, float64(depth), nil)
}

// RecordGateReplayed records a queued request released for resubmission.
func RecordGateReplayed() {
	count(GateReplayedTotal, nil)
}

// RecordGateRejected records an authorization failure returned to the caller.
func RecordGateRejected(reason string) {
	count(GateRejectedTotal, map[string]string{"reason": reason})
}

// RecordChallenge records a second-factor challenge outcome.
func RecordChallenge(outcome string) {
	count(GateChallengeTotal, map[string]string{"outcome": outcome})
}
