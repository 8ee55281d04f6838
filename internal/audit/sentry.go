package audit

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentrySink forwards critical events to Sentry. Lower severities are
// ignored; they belong in logs and Redis, not an alerting pipeline.
type SentrySink struct {
	minSeverity Severity
}

// NewSentrySink creates a SentrySink. InitSentry (or sentry.Init) must be
// called by the host application before events flow.
func NewSentrySink() *SentrySink {
	return &SentrySink{minSeverity: SeverityCritical}
}

// InitSentry configures the global Sentry client. An empty DSN disables
// reporting without error.
func InitSentry(dsn, environment string) error {
	if dsn == "" {
		return nil
	}

	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// FlushSentry blocks until buffered Sentry events are sent or the
// timeout elapses.
func FlushSentry() {
	sentry.Flush(2 * time.Second)
}

// Emit implements Sink.
func (s *SentrySink) Emit(_ context.Context, event Event) {
	if s == nil || event.Severity < s.minSeverity {
		return
	}

	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelFatal)
		scope.SetTag("event_type", event.EventType)
		if event.PrincipalID != "" {
			scope.SetTag("principal", event.PrincipalID)
		}
		if event.IP != "" {
			scope.SetTag("ip", event.IP)
		}
		extra := map[string]interface{}{
			"event_id":   event.ID,
			"session_id": event.SessionID,
			"device":     event.Device,
			"error":      event.Error,
		}
		for k, v := range event.Data {
			extra["data_"+k] = v
		}
		scope.SetExtras(extra)

		msg := event.Description
		if msg == "" {
			msg = event.EventType
		}
		sentry.CaptureMessage(msg)
	})
}
