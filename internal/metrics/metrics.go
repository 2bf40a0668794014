// Package metrics exposes Prometheus counters for the auth core. All methods
// are safe on a nil *Metrics so services can run without instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "authgate"

type Metrics struct {
	loginAttempts       *prometheus.CounterVec
	mfaVerifications    *prometheus.CounterVec
	tokenRefreshes      *prometheus.CounterVec
	sessionRevocations  *prometheus.CounterVec
	sweepRemoved        *prometheus.CounterVec
	auditWriteFailures  prometheus.Counter
	blacklistLookups    *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		loginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "login_attempts_total",
			Help:      "Password-stage login attempts by outcome.",
		}, []string{"outcome"}),
		mfaVerifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mfa_verifications_total",
			Help:      "Second-factor verifications by method and outcome.",
		}, []string{"method", "outcome"}),
		tokenRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_refreshes_total",
			Help:      "Refresh token exchanges by outcome.",
		}, []string{"outcome"}),
		sessionRevocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_revocations_total",
			Help:      "Sessions revoked, by revoking party.",
		}, []string{"revoked_by"}),
		sweepRemoved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "maintenance_rows_total",
			Help:      "Rows removed or expired by maintenance sweeps.",
		}, []string{"sweep"}),
		auditWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_write_failures_total",
			Help:      "Audit events that could not be persisted.",
		}),
		blacklistLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "blacklist_lookups_total",
			Help:      "Token blacklist lookups by result.",
		}, []string{"result"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	collectors := []prometheus.Collector{
		m.loginAttempts, m.mfaVerifications, m.tokenRefreshes, m.sessionRevocations,
		m.sweepRemoved, m.auditWriteFailures, m.blacklistLookups,
		m.httpRequests, m.httpRequestDuration,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) LoginAttempt(outcome string) {
	if m == nil {
		return
	}
	m.loginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) MFAVerification(method, outcome string) {
	if m == nil {
		return
	}
	m.mfaVerifications.WithLabelValues(method, outcome).Inc()
}

func (m *Metrics) TokenRefresh(outcome string) {
	if m == nil {
		return
	}
	m.tokenRefreshes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SessionsRevoked(revokedBy string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionRevocations.WithLabelValues(revokedBy).Add(float64(n))
}

func (m *Metrics) SweepRemoved(sweep string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.sweepRemoved.WithLabelValues(sweep).Add(float64(n))
}

func (m *Metrics) AuditWriteFailed() {
	if m == nil {
		return
	}
	m.auditWriteFailures.Inc()
}

func (m *Metrics) BlacklistLookup(result string) {
	if m == nil {
		return
	}
	m.blacklistLookups.WithLabelValues(result).Inc()
}

// ObserveHTTP records one finished request
func (m *Metrics) ObserveHTTP(method, route string, status int, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusClass(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(seconds)
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
