package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canvas-sync-api/internal/service"
	"github.com/noah-isme/canvas-sync-api/internal/transform"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
	"github.com/noah-isme/canvas-sync-api/pkg/response"
)

// SyncHandler exposes the sync pipeline: synchronous and queued runs,
// run inspection, and transformation config validation.
type SyncHandler struct {
	pipeline *service.PipelineService
}

// NewSyncHandler constructs the sync handler.
func NewSyncHandler(pipeline *service.PipelineService) *SyncHandler {
	return &SyncHandler{pipeline: pipeline}
}

// Run godoc
// @Summary Execute a sync run synchronously
// @Tags Sync
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync [post]
//
// The request body selects the mode; full is the default.
func (h *SyncHandler) Run(c *gin.Context) {
	h.run(c, "")
}

// RunIncremental godoc
// @Summary Execute an incremental sync run
// @Tags Sync
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/incremental [post]
func (h *SyncHandler) RunIncremental(c *gin.Context) {
	h.run(c, service.SyncModeIncremental)
}

func (h *SyncHandler) run(c *gin.Context, mode string) {
	var req service.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	if mode != "" {
		req.Mode = mode
	}

	start := time.Now()
	run, result, err := h.pipeline.Run(c.Request.Context(), req)
	if err != nil {
		// A failed run may still carry partial accounting worth seeing.
		if result != nil {
			appErr := appErrors.FromError(err)
			response.JSON(c, appErr.Status, gin.H{"run": run, "result": result, "error": appErr}, nil)
			return
		}
		response.Error(c, err)
		return
	}

	meta := map[string]interface{}{"processing_time_ms": time.Since(start).Milliseconds()}
	response.JSON(c, http.StatusOK, gin.H{"run": run, "result": result}, nil, meta)
}

// Enqueue godoc
// @Summary Queue a sync run and return immediately
// @Tags Sync
// @Accept json
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /sync/async [post]
func (h *SyncHandler) Enqueue(c *gin.Context) {
	var req service.SyncRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	run, err := h.pipeline.RunAsync(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, run, nil)
}

// GetRun godoc
// @Summary Get a sync run by id
// @Tags Sync
// @Produce json
// @Param id path string true "Run id"
// @Success 200 {object} response.Envelope
// @Router /sync/runs/{id} [get]
func (h *SyncHandler) GetRun(c *gin.Context) {
	run, err := h.pipeline.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{"run": run}
	if len(run.ResultJSON) > 0 {
		payload["result"] = json.RawMessage(run.ResultJSON)
	}
	response.JSON(c, http.StatusOK, payload, nil)
}

// ValidateConfig godoc
// @Summary Validate a transformation configuration
// @Tags Sync
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /sync/config/validate [post]
func (h *SyncHandler) ValidateConfig(c *gin.Context) {
	var cfg transform.Config
	if err := c.ShouldBindJSON(&cfg); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	report := h.pipeline.ValidateConfig(&cfg)
	status := http.StatusOK
	if !report.Valid {
		status = http.StatusUnprocessableEntity
	}
	response.JSON(c, status, report, nil)
}
