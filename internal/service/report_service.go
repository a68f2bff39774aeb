package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/canvas-sync-api/internal/models"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
	"github.com/noah-isme/canvas-sync-api/pkg/export"
)

// ReportFormat selects the rendered output of a sync report.
type ReportFormat string

// Supported report formats.
const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Report bundles rendered bytes with transport metadata.
type Report struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportService renders persisted sync runs into downloadable reports.
type ReportService struct {
	pipeline *PipelineService
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	logger   *zap.Logger
}

// NewReportService constructs the service.
func NewReportService(pipeline *PipelineService, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		pipeline: pipeline,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		logger:   logger,
	}
}

// SyncRunReport renders the per-entity outcome table of one run.
func (s *ReportService) SyncRunReport(ctx context.Context, runID string, format ReportFormat) (*Report, error) {
	run, err := s.pipeline.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(run.ResultJSON) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "sync run has no recorded result")
	}

	var result models.SyncResult
	if err := json.Unmarshal(run.ResultJSON, &result); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "stored sync result is unreadable")
	}

	dataset := buildRunDataset(run, &result)
	stamp := run.StartedAt.UTC().Format("20060102_150405")

	switch format {
	case ReportFormatPDF:
		data, err := s.pdf.Render(dataset, fmt.Sprintf("Sync Run %s", run.ID))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &Report{
			Filename:    fmt.Sprintf("sync_run_%s.pdf", stamp),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	case ReportFormatCSV, "":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &Report{
			Filename:    fmt.Sprintf("sync_run_%s.csv", stamp),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported report format %q", format))
	}
}

func buildRunDataset(run *models.SyncRun, result *models.SyncResult) export.Dataset {
	dataset := export.Dataset{
		Headers: []string{"entity", "processed", "created", "updated", "skipped"},
	}
	for _, kind := range models.SyncOrder {
		counts := result.Counts[kind]
		dataset.Rows = append(dataset.Rows, map[string]string{
			"entity":    string(kind),
			"processed": fmt.Sprintf("%d", counts.Processed),
			"created":   fmt.Sprintf("%d", counts.Created),
			"updated":   fmt.Sprintf("%d", counts.Updated),
			"skipped":   fmt.Sprintf("%d", counts.Skipped),
		})
	}
	dataset.Rows = append(dataset.Rows, map[string]string{
		"entity":    "summary",
		"processed": fmt.Sprintf("mode=%s status=%s", run.Mode, run.Status),
		"created":   fmt.Sprintf("conflicts=%d", len(result.Conflicts)),
		"updated":   fmt.Sprintf("rollback=%t", result.RollbackPerformed),
		"skipped":   durationLabel(result.StartedAt, result.CompletedAt),
	})
	if len(result.Errors) > 0 {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"entity":    "errors",
			"processed": strings.Join(result.Errors, "; "),
			"created":   "",
			"updated":   "",
			"skipped":   "",
		})
	}
	return dataset
}

func durationLabel(start, end time.Time) string {
	if end.IsZero() || end.Before(start) {
		return ""
	}
	return end.Sub(start).Round(time.Millisecond).String()
}
