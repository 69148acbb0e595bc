package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/errors"

	apperrors "github.com/panelops/panelctl/internal/errors"
	"github.com/panelops/panelctl/internal/metrics"
)

// Probe names a health endpoint.
type Probe string

const (
	ProbeAggregate Probe = "aggregate"
	ProbeLive      Probe = "live"
	ProbeReady     Probe = "ready"
	ProbeStartup   Probe = "startup"
)

// Check results.
const (
	StatusHealthy   = "healthy"
	StatusDegraded  = "degraded"
	StatusUnhealthy = "unhealthy"
	StatusTimeout   = "timeout"
)

var probeTimeouts = map[Probe]time.Duration{
	ProbeAggregate: 5 * time.Second,
	ProbeLive:      2 * time.Second,
	ProbeReady:     5 * time.Second,
	ProbeStartup:   3 * time.Second,
}

// HealthResponse is the body of a passing probe.
type HealthResponse struct {
	Status    string            `json:"status"`
	Probe     Probe             `json:"probe"`
	Version   string            `json:"version,omitempty"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
	Gate      *GateStatus       `json:"gate,omitempty"`
}

// GateStatus shows whether a session refresh is holding requests back.
type GateStatus struct {
	Refreshing bool `json:"refreshing"`
	Queued     int  `json:"queued"`
}

// GateStater is the read side of the request gate.
type GateStater interface {
	Refreshing() bool
	QueueLen() int
}

// HealthChecker defines interface for health checkable components.
// Returning an error wrapping ErrDegraded reports "degraded" instead of "unhealthy".
type HealthChecker interface {
	CheckHealth(ctx context.Context) error
}

// ErrDegraded marks a check that works but is not fully usable.
var ErrDegraded = stderrors.New("degraded")

type registration struct {
	checker HealthChecker
	probes  map[Probe]bool
}

// HealthManager runs the registered checks for each probe.
//
// Liveness only reports that the process serves HTTP; a panel outage must not get the
// gateway restarted. Checks registered without probes run for every other probe.
type HealthManager struct {
	mu       sync.RWMutex
	checkers map[string]registration
	version  string
	gate     GateStater
}

// NewHealthManager creates a new health manager
func NewHealthManager(version string) *HealthManager {
	return &HealthManager{
		checkers: make(map[string]registration),
		version:  version,
	}
}

// RegisterChecker registers checker for the given probes, or for aggregate, ready and
// startup when none are given.
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker, probes ...Probe) {
	if len(probes) == 0 {
		probes = []Probe{ProbeAggregate, ProbeReady, ProbeStartup}
	}
	set := make(map[Probe]bool, len(probes))
	for _, p := range probes {
		set[p] = true
	}

	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = registration{checker: checker, probes: set}
}

// SetGate attaches the request gate so probes report refresh state.
func (hm *HealthManager) SetGate(g GateStater) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.gate = g
}

// runHealthChecks runs the checks for probe in name order until ctx ends.
func (hm *HealthManager) runHealthChecks(ctx context.Context, probe Probe) map[string]string {
	hm.mu.RLock()
	names := make([]string, 0, len(hm.checkers))
	selected := make(map[string]HealthChecker, len(hm.checkers))
	for name, reg := range hm.checkers {
		if reg.probes[probe] {
			names = append(names, name)
			selected[name] = reg.checker
		}
	}
	hm.mu.RUnlock()
	sort.Strings(names)

	checks := make(map[string]string, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			checks[name] = StatusTimeout
			continue
		}
		start := time.Now()
		err := selected[name].CheckHealth(ctx)
		metrics.RecordHealthCheck(name, err == nil, time.Since(start))
		switch {
		case err == nil:
			checks[name] = StatusHealthy
		case stderrors.Is(err, ErrDegraded):
			checks[name] = StatusDegraded
		default:
			checks[name] = StatusUnhealthy
		}
	}
	return checks
}

// determineOverallStatus folds check results; any unhealthy check wins.
func (hm *HealthManager) determineOverallStatus(checks map[string]string) string {
	overall := StatusHealthy
	for _, status := range checks {
		switch status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded, StatusTimeout:
			overall = StatusDegraded
		}
	}
	return overall
}

func (hm *HealthManager) gateStatus() *GateStatus {
	hm.mu.RLock()
	g := hm.gate
	hm.mu.RUnlock()
	if g == nil {
		return nil
	}
	return &GateStatus{Refreshing: g.Refreshing(), Queued: g.QueueLen()}
}

func (hm *HealthManager) serveProbe(w http.ResponseWriter, r *http.Request, probe Probe) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeouts[probe])
	defer cancel()

	checks := hm.runHealthChecks(ctx, probe)
	status := hm.determineOverallStatus(checks)

	if status == StatusUnhealthy {
		envelope := errors.NewErrorEnvelope(apperrors.CodeServiceUnavailable, string(probe)+" probe failed")
		apperrors.RespondWithError(w, r, enrichHealthEnvelope(envelope, probe, status, checks))
		return
	}

	response := HealthResponse{
		Status:    status,
		Probe:     probe,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Gate:      hm.gateStatus(),
	}
	if probe == ProbeAggregate {
		response.Version = hm.version
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// HealthHandler runs every aggregate check and includes the version.
func (hm *HealthManager) HealthHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeAggregate)
}

// LivenessHandler handles liveness probe requests
func (hm *HealthManager) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeLive)
}

// ReadinessHandler reports whether requests can reach the panel.
func (hm *HealthManager) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeReady)
}

// StartupHandler handles startup probe requests
func (hm *HealthManager) StartupHandler(w http.ResponseWriter, r *http.Request) {
	hm.serveProbe(w, r, ProbeStartup)
}

func enrichHealthEnvelope(envelope *errors.ErrorEnvelope, probe Probe, status string, checks map[string]string) *errors.ErrorEnvelope {
	details := map[string]interface{}{
		"status": status,
		"probe":  string(probe),
	}
	if len(checks) > 0 {
		details["checks"] = checks
	}
	envelope = envelope.WithDetails(details)

	var failing []string
	for name, result := range checks {
		if result != StatusHealthy {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)

	contextData := map[string]interface{}{"status": status, "probe": string(probe)}
	if len(failing) > 0 {
		contextData["unhealthy_checks"] = failing
	}
	if updated, err := envelope.WithContext(contextData); err == nil {
		envelope = updated
	}
	return envelope
}

var globalHealthManager *HealthManager

// InitHealthManager initializes the global health manager
func InitHealthManager(version string) {
	globalHealthManager = NewHealthManager(version)
}

// GetHealthManager returns the global health manager
func GetHealthManager() *HealthManager {
	return globalHealthManager
}

func globalProbe(probe Probe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if globalHealthManager == nil {
			envelope := errors.NewErrorEnvelope(apperrors.CodeServiceUnavailable, "health manager not initialized")
			apperrors.RespondWithError(w, r, enrichHealthEnvelope(envelope, probe, "unknown", nil))
			return
		}
		globalHealthManager.serveProbe(w, r, probe)
	}
}

// Package-level handlers backed by the global manager.
var (
	HealthHandler    = globalProbe(ProbeAggregate)
	LivenessHandler  = globalProbe(ProbeLive)
	ReadinessHandler = globalProbe(ProbeReady)
	StartupHandler   = globalProbe(ProbeStartup)
)
