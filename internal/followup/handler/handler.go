// Package handler exposes the follow-up module over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"reminder_backend/internal/audit"
	"reminder_backend/internal/followup/service"
	"reminder_backend/internal/followup/transport"
	"reminder_backend/platform/httpkit"
	"reminder_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid id"
)

// Handler handles HTTP requests for the follow-up engine
type Handler struct {
	svc   *service.Service
	val   *validator.Validator
	trail *audit.Recorder
}

// New creates a new follow-up handler
func New(svc *service.Service, val *validator.Validator, trail *audit.Recorder) *Handler {
	return &Handler{svc: svc, val: val, trail: trail}
}

// RegisterRoutes registers the follow-up routes
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/sequences", h.ListSequences)
	rg.POST("/sequences", h.CreateSequence)
	rg.GET("/sequences/:id", h.GetSequence)
	rg.PUT("/sequences/:id", h.UpdateSequence)
	rg.DELETE("/sequences/:id", h.DeleteSequence)

	rg.POST("/sequences/:id/steps", h.AddStep)
	rg.DELETE("/sequences/:id/steps/:stepId", h.DeleteStep)
	rg.POST("/sequences/:id/steps/:stepId/duplicate", h.DuplicateStep)
	rg.POST("/sequences/:id/steps/reorder", h.ReorderStep)
	rg.GET("/sequences/:id/validation", h.ValidateSequence)
	rg.GET("/sequences/:id/duration", h.SequenceDuration)

	rg.GET("/consolidation/candidates", h.ListCandidates)
	rg.POST("/consolidation/reminders", h.CreateReminder)
}

// RegisterAdminRoutes registers the pass trigger routes. These run the
// same passes the scheduler worker runs, on demand.
func (h *Handler) RegisterAdminRoutes(rg *gin.RouterGroup) {
	rg.POST("/passes/escalation", h.RunEscalationPass)
	rg.POST("/passes/consolidation", h.RunConsolidationPass)
	rg.POST("/passes/resume-held", h.RunResumeHeldPass)
	rg.POST("/passes/send-due", h.RunSendDuePass)

	rg.GET("/audit", h.ListAuditTrail)
}

func pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// ListSequences handles GET /api/followups/sequences
func (h *Handler) ListSequences(c *gin.Context) {
	sequences, err := h.svc.ListSequences(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.SequenceResponse, len(sequences))
	for i := range sequences {
		out[i] = transport.ToSequenceResponse(&sequences[i])
	}
	httpkit.OK(c, out)
}

// CreateSequence handles POST /api/followups/sequences
func (h *Handler) CreateSequence(c *gin.Context) {
	var req transport.CreateSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	seq, err := h.svc.CreateSequence(c.Request.Context(), req.Name, req.UAEBusinessHoursOnly, req.RespectHolidays)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToSequenceResponse(seq))
}

// GetSequence handles GET /api/followups/sequences/:id
func (h *Handler) GetSequence(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	seq, err := h.svc.GetSequence(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSequenceResponse(seq))
}

// UpdateSequence handles PUT /api/followups/sequences/:id
func (h *Handler) UpdateSequence(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.UpdateSequenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	seq, err := h.svc.UpdateSequence(c.Request.Context(), id, req.Name, req.Active, req.UAEBusinessHoursOnly, req.RespectHolidays)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSequenceResponse(seq))
}

// DeleteSequence handles DELETE /api/followups/sequences/:id
func (h *Handler) DeleteSequence(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.svc.DeleteSequence(c.Request.Context(), id)) {
		return
	}
	c.Status(http.StatusNoContent)
}

// AddStep handles POST /api/followups/sequences/:id/steps
func (h *Handler) AddStep(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.AddStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	seq, err := h.svc.AddStep(c.Request.Context(), id, req.Type)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToSequenceResponse(seq))
}

// DeleteStep handles DELETE /api/followups/sequences/:id/steps/:stepId
func (h *Handler) DeleteStep(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stepID, ok := pathID(c, "stepId")
	if !ok {
		return
	}

	seq, err := h.svc.DeleteStep(c.Request.Context(), id, stepID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSequenceResponse(seq))
}

// DuplicateStep handles POST /api/followups/sequences/:id/steps/:stepId/duplicate
func (h *Handler) DuplicateStep(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	stepID, ok := pathID(c, "stepId")
	if !ok {
		return
	}

	seq, err := h.svc.DuplicateStep(c.Request.Context(), id, stepID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToSequenceResponse(seq))
}

// ReorderStep handles POST /api/followups/sequences/:id/steps/reorder
func (h *Handler) ReorderStep(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	var req transport.ReorderStepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	seq, err := h.svc.ReorderStep(c.Request.Context(), id, req.From, req.To)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToSequenceResponse(seq))
}

// ValidateSequence handles GET /api/followups/sequences/:id/validation
func (h *Handler) ValidateSequence(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	violations, err := h.svc.ValidateSequence(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ValidationResponse{
		Valid:      len(violations) == 0,
		Violations: violations,
	})
}

// SequenceDuration handles GET /api/followups/sequences/:id/duration
func (h *Handler) SequenceDuration(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	days, err := h.svc.SequenceDuration(c.Request.Context(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.DurationResponse{Days: days})
}

// ListCandidates handles GET /api/followups/consolidation/candidates
func (h *Handler) ListCandidates(c *gin.Context) {
	candidates, err := h.svc.ListCandidates(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}

	out := make([]transport.CandidateResponse, len(candidates))
	for i, cand := range candidates {
		out[i] = transport.ToCandidateResponse(cand)
	}
	httpkit.OK(c, out)
}

// CreateReminder handles POST /api/followups/consolidation/reminders
func (h *Handler) CreateReminder(c *gin.Context) {
	var req transport.CreateReminderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, err.Error())
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	reminder, err := h.svc.CreateReminderForCustomer(c.Request.Context(), req.CustomerID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, transport.ToReminderResponse(reminder))
}

// RunEscalationPass handles POST /api/followups/admin/passes/escalation
func (h *Handler) RunEscalationPass(c *gin.Context) {
	result, err := h.svc.RunEscalationPass(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToEscalationPassResponse(result))
}

// RunConsolidationPass handles POST /api/followups/admin/passes/consolidation
func (h *Handler) RunConsolidationPass(c *gin.Context) {
	result, err := h.svc.RunConsolidationPass(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// RunResumeHeldPass handles POST /api/followups/admin/passes/resume-held
func (h *Handler) RunResumeHeldPass(c *gin.Context) {
	resumed, err := h.svc.ResumeHeldPass(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ResumePassResponse{Resumed: resumed})
}

// RunSendDuePass handles POST /api/followups/admin/passes/send-due
func (h *Handler) RunSendDuePass(c *gin.Context) {
	result, err := h.svc.SendDuePass(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// ListAuditTrail handles GET /api/followups/admin/audit. The event query
// parameter filters by prefix, e.g. event=escalation.
func (h *Handler) ListAuditTrail(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	entries, err := h.trail.List(c.Request.Context(), c.Query("event"), limit)
	if httpkit.HandleError(c, err) {
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	httpkit.OK(c, entries)
}
