package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canvas-sync-api/internal/service"
	"github.com/noah-isme/canvas-sync-api/pkg/response"
)

// ReportHandler serves downloadable sync run reports.
type ReportHandler struct {
	reports *service.ReportService
	metrics *service.MetricsService
}

// NewReportHandler constructs the report handler.
func NewReportHandler(reports *service.ReportService, metrics *service.MetricsService) *ReportHandler {
	return &ReportHandler{reports: reports, metrics: metrics}
}

// SyncRunReport godoc
// @Summary Download a sync run report
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Run id"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Router /sync/runs/{id}/report [get]
func (h *ReportHandler) SyncRunReport(c *gin.Context) {
	format := service.ReportFormat(c.DefaultQuery("format", "csv"))
	report, err := h.reports.SyncRunReport(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename))
	c.Data(http.StatusOK, report.ContentType, report.Data)
}

// MetricsSummary godoc
// @Summary Lightweight sync counter snapshot
// @Tags Reports
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *ReportHandler) MetricsSummary(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
