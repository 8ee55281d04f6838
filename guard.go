package authguard

import (
	"time"

	"go.uber.org/zap"

	internalaudit "github.com/authguard-dev/authguard/internal/audit"
	"github.com/authguard-dev/authguard/internal/blacklist"
	"github.com/authguard-dev/authguard/internal/limiters"
	internalmetrics "github.com/authguard-dev/authguard/internal/metrics"
	"github.com/authguard-dev/authguard/internal/rate"
	"github.com/authguard-dev/authguard/session"
	"github.com/authguard-dev/authguard/token"
)

// Guard is the authentication session and abuse-protection engine. Build
// one with [Builder.Build]; all methods are safe for concurrent use.
type Guard struct {
	config Config
	logger *zap.Logger

	tokens     *token.Manager
	sessions   *session.Registry
	denylist   *blacklist.Store
	limiter    *rate.Limiter
	delays     *limiters.DelayTracker
	ipFailures *limiters.IPFailureLimiter
	patterns   *limiters.PatternTracker

	credentials CredentialStore

	audit   *internalaudit.Dispatcher
	metrics *internalmetrics.Metrics
}

// Close drains the audit dispatcher. The Redis client and credential
// store are owned by the caller and left open.
func (g *Guard) Close() {
	if g == nil {
		return
	}
	g.audit.Close()
}

// AuditDropped reports how many audit events were discarded under
// backpressure since startup.
func (g *Guard) AuditDropped() uint64 {
	if g == nil {
		return 0
	}
	return g.audit.Dropped()
}

// MetricsSnapshot copies every engine counter and histogram.
func (g *Guard) MetricsSnapshot() MetricsSnapshot {
	if g == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return g.metrics.TakeSnapshot()
}

func (g *Guard) metricInc(id MetricID) {
	g.metrics.Inc(id)
}

func (g *Guard) observeValidate(start time.Time) {
	g.metrics.Observe(internalmetrics.IDValidateLatency, time.Since(start))
}

// accessTTLFor resolves the per-class access token lifetime.
func (g *Guard) accessTTLFor(class PrincipalClass) time.Duration {
	switch class {
	case ClassService:
		if g.config.Token.ServiceAccessTTL > 0 {
			return g.config.Token.ServiceAccessTTL
		}
	case ClassAdmin:
		if g.config.Token.AdminAccessTTL > 0 {
			return g.config.Token.AdminAccessTTL
		}
	}
	return g.config.Token.AccessTTL
}
