package handlers

import (
	"context"
	"errors"
	"net/http"

	"leadpilot-backend/internal/integrations"
	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/services"
	"leadpilot-backend/pkg/httputil"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// KBService defines the interface expected from the knowledge base service.
type KBService interface {
	AddDocument(ctx context.Context, tenantID string, req models.DocumentUploadRequest, source string) (*models.DocumentResponse, error)
	ImportNotionPage(ctx context.Context, tenantID string, req models.NotionImportRequest) (*models.DocumentResponse, error)
	ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentResponse, error)
	DeleteDocument(ctx context.Context, tenantID string, id uuid.UUID) error
	Stats(ctx context.Context, tenantID string) (*models.KBStatsResponse, error)
}

type KBHandler struct {
	kbService KBService
}

func NewKBHandler(kbSvc KBService) *KBHandler {
	return &KBHandler{
		kbService: kbSvc,
	}
}

// HandleUploadDocument handles POST /v1/knowledge-base/documents
func (h *KBHandler) HandleUploadDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.DocumentUploadRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := h.kbService.AddDocument(r.Context(), tenantID, req, services.SourceUpload)
	if err != nil {
		if errors.Is(err, services.ErrKBValidation) {
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[KBHandler] HandleUploadDocument: failed to add document")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to add document")
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleImportNotion handles POST /v1/knowledge-base/notion
func (h *KBHandler) HandleImportNotion(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var req models.NotionImportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	resp, err := h.kbService.ImportNotionPage(r.Context(), tenantID, req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrKBValidation):
			httputil.RespondError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, integrations.ErrNotionUnauthorized):
			httputil.RespondError(w, http.StatusBadRequest, "Notion rejected the integration token")
		default:
			log.Error().Err(err).Str("tenant_id", tenantID).Str("page_id", req.PageID).Msg("[KBHandler] HandleImportNotion: import failed")
			httputil.RespondError(w, http.StatusBadGateway, "Failed to import Notion page")
		}
		return
	}
	httputil.RespondJSON(w, http.StatusCreated, resp)
}

// HandleListDocuments handles GET /v1/knowledge-base/documents
func (h *KBHandler) HandleListDocuments(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	docs, err := h.kbService.ListDocuments(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[KBHandler] HandleListDocuments: failed to list documents")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.DocumentResponse{}
	}
	httputil.RespondJSON(w, http.StatusOK, docs)
}

// HandleDeleteDocument handles DELETE /v1/knowledge-base/documents/{documentID}
func (h *KBHandler) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	docID, err := uuid.Parse(chi.URLParam(r, "documentID"))
	if err != nil {
		httputil.RespondError(w, http.StatusBadRequest, "Invalid document ID format")
		return
	}

	if err := h.kbService.DeleteDocument(r.Context(), tenantID, docID); err != nil {
		if errors.Is(err, services.ErrDocumentNotFound) {
			httputil.RespondError(w, http.StatusNotFound, err.Error())
			return
		}
		log.Error().Err(err).Str("document_id", docID.String()).Msg("[KBHandler] HandleDeleteDocument: failed to delete document")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to delete document")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStats handles GET /v1/knowledge-base/stats
func (h *KBHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}
	stats, err := h.kbService.Stats(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[KBHandler] HandleStats: failed to compute stats")
		httputil.RespondError(w, http.StatusInternalServerError, "Failed to get knowledge base stats")
		return
	}
	httputil.RespondJSON(w, http.StatusOK, stats)
}
