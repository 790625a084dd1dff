package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/grandlivre-erp/grandlivre/internal/invoicing"
	jobmetrics "github.com/grandlivre-erp/grandlivre/internal/jobs"
)

// OverdueScanner flags sent invoices whose due date passed.
type OverdueScanner struct {
	logger  *slog.Logger
	service *invoicing.Service
	metrics *jobmetrics.Metrics
}

// NewOverdueScanner constructs the scanner.
func NewOverdueScanner(logger *slog.Logger, service *invoicing.Service, metrics *jobmetrics.Metrics) *OverdueScanner {
	return &OverdueScanner{logger: logger, service: service, metrics: metrics}
}

// Handle processes TaskOverdueScan tasks.
func (s *OverdueScanner) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := s.metrics.Track("overdue_scan")
	flagged, err := s.service.MarkOverdue(ctx)
	if err != nil {
		s.logger.Error("overdue scan failed", slog.Any("error", err))
		return tracker.End(err)
	}
	s.metrics.AddOverdueInvoices(flagged)
	if flagged > 0 {
		s.logger.Info("overdue scan flagged invoices", slog.Int64("count", flagged))
	}
	return tracker.End(nil)
}
