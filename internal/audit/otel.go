package audit

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"specsync/internal/audit/domain"
)

// NewOTelEmitter returns an Emitter that sends audit entries as OTel log
// records via the given LoggerProvider. Returns nil when provider is nil.
func NewOTelEmitter(provider *sdklog.LoggerProvider) Emitter {
	if provider == nil {
		return nil
	}
	return &otelEmitter{logger: provider.Logger("specsync.audit")}
}

type otelEmitter struct {
	logger otellog.Logger
}

// Emit converts the entry to an OTel log record and emits it.
func (e *otelEmitter) Emit(ctx context.Context, entry *domain.Entry) error {
	if entry == nil {
		return nil
	}
	rec := otellog.Record{}
	if !entry.CreatedAt.IsZero() {
		rec.SetTimestamp(entry.CreatedAt)
	} else {
		rec.SetTimestamp(time.Now().UTC())
	}
	if entry.Message != "" {
		rec.SetBody(otellog.StringValue(entry.Message))
	}
	rec.AddAttributes(
		otellog.String("machine_id", entry.MachineID),
		otellog.String("action", entry.Action),
		otellog.String("outcome", entry.Outcome),
	)
	if entry.ProjectID != "" {
		rec.AddAttributes(otellog.String("project_id", entry.ProjectID))
	}
	if entry.SpecName != "" {
		rec.AddAttributes(otellog.String("spec_name", entry.SpecName))
	}
	e.logger.Emit(ctx, rec)
	return nil
}
