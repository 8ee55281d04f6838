package audit

import (
	"context"

	"go.uber.org/zap"
)

// ZapSink writes one structured log line per event, mapped to the
// severity-appropriate zap level.
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a ZapSink over the given logger. A nil logger yields
// a sink that drops everything.
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Emit implements Sink.
func (s *ZapSink) Emit(_ context.Context, event Event) {
	if s == nil || s.logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Time("ts", event.Timestamp),
		zap.String("event_type", event.EventType),
		zap.String("severity", event.Severity.String()),
		zap.Bool("success", event.Success),
	}
	if event.PrincipalID != "" {
		fields = append(fields, zap.String("principal", event.PrincipalID))
	}
	if event.SessionID != "" {
		fields = append(fields, zap.String("session", event.SessionID))
	}
	if event.IP != "" {
		fields = append(fields, zap.String("ip", event.IP))
	}
	if event.Device != "" {
		fields = append(fields, zap.String("device", event.Device))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}
	for k, v := range event.Data {
		fields = append(fields, zap.String("data_"+k, v))
	}

	msg := event.Description
	if msg == "" {
		msg = event.EventType
	}

	switch event.Severity {
	case SeverityCritical, SeverityError:
		s.logger.Error(msg, fields...)
	case SeverityWarning:
		s.logger.Warn(msg, fields...)
	default:
		s.logger.Info(msg, fields...)
	}
}
