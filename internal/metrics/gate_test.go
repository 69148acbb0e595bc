package metrics

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/panelops/panelctl/internal/gate"
)

func TestGateHooksChainExtras(t *testing.T) {
	var calls []string
	hooks := GateHooks(gate.Hooks{
		OnRefresh: func(outcome string, _ time.Duration) { calls = append(calls, "refresh:"+outcome) },
		OnResume:  func(_ *http.Request, position int) { calls = append(calls, "resume") },
	}, gate.Hooks{
		OnReject: func(_ *http.Request, reason string) { calls = append(calls, "reject:"+reason) },
	})

	req, err := http.NewRequest(http.MethodGet, "https://panel.example.test/api/v1/users", nil)
	require.NoError(t, err)

	hooks.OnRefresh(gate.OutcomeRefreshed, time.Millisecond)
	hooks.OnQueued(req, 1)
	hooks.OnResume(req, 1)
	hooks.OnReject(req, gate.RejectAlreadyRetried)

	require.Equal(t, []string{"refresh:" + gate.OutcomeRefreshed, "resume", "reject:" + gate.RejectAlreadyRetried}, calls)
}

func TestRecordersWithoutTelemetry(t *testing.T) {
	RecordGateRefresh(gate.OutcomeError, time.Second)
	RecordGateQueued(3)
	RecordGateReplayed()
	RecordGateRejected(gate.RejectRefreshFailed)
	RecordChallenge(gate.ChallengeResolved)
	RecordUpstreamStatus(http.StatusOK)
	RecordError("UNAUTHORIZED", http.StatusUnauthorized)
}
