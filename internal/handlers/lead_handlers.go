package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type LeadHandler struct {
	leads   *services.LeadService
	tenants *services.TenantService
}

func NewLeadHandler(leads *services.LeadService, tenants *services.TenantService) *LeadHandler {
	return &LeadHandler{leads: leads, tenants: tenants}
}

func queryInt(r *http.Request, name string) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// HandleListLeads handles GET /v1/leads
func (h *LeadHandler) HandleListLeads(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var filter services.LeadFilter
	var err error
	if filter.Limit, err = queryInt(r, "limit"); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "limit must be an integer")
		return
	}
	if filter.Skip, err = queryInt(r, "skip"); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "skip must be an integer")
		return
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.LeadStatus(v)
		filter.Status = &status
	}
	if v := r.URL.Query().Get("grade"); v != "" {
		grade := models.LeadGrade(v)
		filter.Grade = &grade
	}

	leads, err := h.leads.List(r.Context(), tenantID, filter)
	if err != nil {
		if errors.Is(err, services.ErrValidation) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[LeadHandler] HandleListLeads: failed to list leads")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list leads")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, leads)
}

func parseLeadID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "leadID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid lead ID format")
		return uuid.Nil, false
	}
	return id, true
}

// HandleGetLead handles GET /v1/leads/{leadID}
func (h *LeadHandler) HandleGetLead(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseLeadID(w, r)
	if !ok {
		return
	}

	tenant, err := h.tenants.GetByID(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, services.ErrTenantNotFound) {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[LeadHandler] HandleGetLead: failed to load tenant")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get lead")
		return
	}

	detail, err := h.leads.Get(r.Context(), tenant, id)
	if err != nil {
		if errors.Is(err, services.ErrLeadNotFound) {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("lead_id", id.String()).Msg("[LeadHandler] HandleGetLead: failed to get lead")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get lead")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, detail)
}

// HandleUpdateLead handles PATCH /v1/leads/{leadID}
func (h *LeadHandler) HandleUpdateLead(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := parseLeadID(w, r)
	if !ok {
		return
	}

	var req models.LeadUpdateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	lead, err := h.leads.Update(r.Context(), tenantID, id, authorFromRequest(r), req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, services.ErrLeadNotFound):
			httputil.RespondError(w, http.StatusNotFound, err.Error())
		default:
			log.Error().Err(err).Str("lead_id", id.String()).Msg("[LeadHandler] HandleUpdateLead: failed to update lead")
			httputil.RespondError(w, http.StatusInternalServerError, "Failed to update lead")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusOK, lead)
}

// HandleLeadStats handles GET /v1/leads/stats/summary
func (h *LeadHandler) HandleLeadStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}
	stats, err := h.leads.Stats(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[LeadHandler] HandleLeadStats: failed to compute stats")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get lead stats")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}
