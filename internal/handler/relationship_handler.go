package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/canvas-sync-api/internal/service"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
	"github.com/noah-isme/canvas-sync-api/pkg/response"
)

// RelationshipHandler exposes cross-entity reads and integrity tooling.
type RelationshipHandler struct {
	relationships *service.RelationshipService
}

// NewRelationshipHandler constructs the relationship handler.
func NewRelationshipHandler(relationships *service.RelationshipService) *RelationshipHandler {
	return &RelationshipHandler{relationships: relationships}
}

// StudentEnrollments godoc
// @Summary List a student's enrollments
// @Tags Relationships
// @Produce json
// @Param id path int true "Student id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/enrollments [get]
func (h *RelationshipHandler) StudentEnrollments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	details, err := h.relationships.StudentEnrollments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// StudentPerformance godoc
// @Summary Per-course performance rollup for a student
// @Tags Relationships
// @Produce json
// @Param id path int true "Student id"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/performance [get]
func (h *RelationshipHandler) StudentPerformance(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	rows, err := h.relationships.StudentPerformance(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}

// CourseEnrollments godoc
// @Summary List a course's enrollments
// @Tags Relationships
// @Produce json
// @Param id path int true "Course id"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/enrollments [get]
func (h *RelationshipHandler) CourseEnrollments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	details, err := h.relationships.CourseEnrollments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, details, nil)
}

// CourseAssignments godoc
// @Summary List a course's assignments
// @Tags Relationships
// @Produce json
// @Param id path int true "Course id"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/assignments [get]
func (h *RelationshipHandler) CourseAssignments(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	assignments, err := h.relationships.CourseAssignments(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}

// ValidateIntegrity godoc
// @Summary Validate referential integrity
// @Tags Relationships
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /integrity [get]
func (h *RelationshipHandler) ValidateIntegrity(c *gin.Context) {
	violations, err := h.relationships.ValidateIntegrity(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"valid": len(violations) == 0, "violations": violations}, nil)
}

type repairRequest struct {
	DeleteOrphans bool `json:"delete_orphans"`
}

// RepairIntegrity godoc
// @Summary Report violations and optionally delete orphaned rows
// @Tags Relationships
// @Accept json
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /integrity/repair [post]
//
// Destructive cleanup only happens when the body asks for it.
func (h *RelationshipHandler) RepairIntegrity(c *gin.Context) {
	var req repairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}

	report, err := h.relationships.RepairIntegrity(c.Request.Context(), req.DeleteOrphans)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report, nil)
}

func pathID(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "invalid id parameter")
	}
	return id, nil
}
