// Package handler exposes the intelligence engine over HTTP.
package handler

import (
	"net/http"
	"time"

	"realty_portal_backend/internal/intelligence/service"
	"realty_portal_backend/internal/intelligence/transport"
	"realty_portal_backend/platform/httpkit"
	"realty_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const msgInvalidLeadID = "invalid lead id"

// Handler handles HTTP requests for lead intelligence.
type Handler struct {
	svc   *service.Service
	val   *validator.Validator
	clock func() time.Time
}

// New creates an intelligence handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val, clock: time.Now}
}

// RegisterRoutes registers the intelligence routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/leads/:id/insights", h.GetInsights)
	rg.POST("/leads/:id/insights/prediction", h.Prediction)
	rg.POST("/leads/:id/insights/routing", h.Routing)
	rg.POST("/leads/:id/insights/escalation", h.Escalation)
	rg.POST("/leads/:id/insights/next-actions", h.NextActions)
	rg.POST("/leads/:id/insights/reminders", h.Reminders)
}

// GetInsights returns the combined prediction, escalation, next-action and
// reminder view of one lead.
func (h *Handler) GetInsights(c *gin.Context) {
	leadID, tenantID, ok := h.scope(c)
	if !ok {
		return
	}

	insights, err := h.svc.LeadInsights(c.Request.Context(), tenantID, leadID, h.clock())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, insights)
}

// Prediction scores the lead's win probability.
func (h *Handler) Prediction(c *gin.Context) {
	leadID, tenantID, ok := h.scope(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	prediction, err := h.svc.Prediction(c.Request.Context(), tenantID, leadID, asOf)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, prediction)
}

// Routing ranks the tenant's agents for the lead.
func (h *Handler) Routing(c *gin.Context) {
	leadID, tenantID, ok := h.scope(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	recommendation, err := h.svc.Routing(c.Request.Context(), tenantID, leadID, asOf)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, recommendation)
}

// Escalation assesses the lead's neglect level.
func (h *Handler) Escalation(c *gin.Context) {
	leadID, tenantID, ok := h.scope(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	assessment, err := h.svc.Escalation(c.Request.Context(), tenantID, leadID, asOf)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, assessment)
}

// NextActions suggests the lead's next steps.
func (h *Handler) NextActions(c *gin.Context) {
	leadID, tenantID, ok := h.scope(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	suggestions, err := h.svc.NextActions(c.Request.Context(), tenantID, leadID, asOf)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, suggestions)
}

// Reminders evaluates the reminder rules for the lead. A lead that needs no
// nudge returns {"reminder": null}.
func (h *Handler) Reminders(c *gin.Context) {
	leadID, tenantID, ok := h.scope(c)
	if !ok {
		return
	}
	asOf, ok := h.asOf(c)
	if !ok {
		return
	}

	suggestion, err := h.svc.Reminder(c.Request.Context(), tenantID, leadID, asOf)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"reminder": suggestion})
}

// scope extracts the lead id from the path and the tenant from the caller's
// identity.
func (h *Handler) scope(c *gin.Context) (leadID, tenantID uuid.UUID, ok bool) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidLeadID, nil)
		return uuid.Nil, uuid.Nil, false
	}

	identity := httpkit.MustGetIdentity(c)
	return leadID, identity.TenantID(), true
}

// asOf reads the optional reference-time body. An empty body means "now".
func (h *Handler) asOf(c *gin.Context) (time.Time, bool) {
	var req transport.AsOfRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
			return time.Time{}, false
		}
	}
	return req.Resolve(h.clock()), true
}
