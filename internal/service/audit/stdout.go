package audit

import (
	"context"
	"encoding/json"

	"github.com/your-org/auth-gateway/internal/config"
	"github.com/your-org/auth-gateway/internal/domain"
	"github.com/your-org/auth-gateway/pkg/logger"
)

// StdoutExporter writes audit events to the application log stream.
type StdoutExporter struct {
	format string
}

// NewStdoutExporter creates a stdout exporter.
func NewStdoutExporter(cfg config.StdoutExportConfig) *StdoutExporter {
	return &StdoutExporter{format: cfg.Format}
}

// Export writes one event.
func (e *StdoutExporter) Export(ctx context.Context, event *domain.AuditEvent) error {
	if e.format == "json" {
		data, err := json.Marshal(event)
		if err != nil {
			return err
		}
		logger.Info("audit",
			logger.String("event_type", string(event.EventType)),
			logger.Any("data", json.RawMessage(data)),
		)
		return nil
	}
	logger.Info("audit",
		logger.String("event_type", string(event.EventType)),
		logger.String("event_id", event.ID),
		logger.String("level", string(event.Level)),
		logger.Any("details", event.Details),
		logger.String("integrity_hash", event.IntegrityHash),
	)
	return nil
}

// Name returns the exporter name.
func (e *StdoutExporter) Name() string {
	return "stdout"
}

// Close closes the exporter.
func (e *StdoutExporter) Close() error {
	return nil
}
