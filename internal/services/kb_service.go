package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Custom errors for KB service
var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrKBValidation     = errors.New("knowledge base validation failed")
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200

	SourceUpload = "upload"
	SourceNotion = "notion"
)

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// PageImporter reads the text of an external page.
type PageImporter interface {
	ImportPage(ctx context.Context, token, pageID string) (string, error)
}

// KBService manages tenant knowledge-base documents.
type KBService struct {
	store    store.Store
	embedder Embedder // optional
	notion   PageImporter
	size     int
	overlap  int
}

// NewKBService creates a KBService. A nil embedder stores chunks without vectors.
func NewKBService(s store.Store, embedder Embedder, notion PageImporter) *KBService {
	return &KBService{
		store:    s,
		embedder: embedder,
		notion:   notion,
		size:     DefaultChunkSize,
		overlap:  DefaultChunkOverlap,
	}
}

// ChunkText splits text into windows of size runes, each starting
// size-overlap runes after the previous one. Blank windows are dropped.
func ChunkText(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[start:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}

// AddDocument chunks, embeds and stores a document. An embedding failure
// stores the chunks without vectors.
func (s *KBService) AddDocument(ctx context.Context, tenantID string, req models.DocumentUploadRequest, source string) (*models.DocumentResponse, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name cannot be empty", ErrKBValidation)
	}
	if !utf8.ValidString(req.Content) {
		return nil, fmt.Errorf("%w: content must be valid UTF-8", ErrKBValidation)
	}
	texts := ChunkText(req.Content, s.size, s.overlap)
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: content cannot be empty", ErrKBValidation)
	}
	if source == "" {
		source = SourceUpload
	}

	var vectors [][]float32
	if s.embedder != nil {
		v, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("[KBService] AddDocument: embedding failed, storing chunks without vectors")
		} else if len(v) == len(texts) {
			vectors = v
		}
	}

	doc := &models.KBDocument{
		ID:       uuid.New(),
		TenantID: tenantID,
		Name:     name,
		Source:   source,
		Metadata: req.Metadata,
	}
	chunks := make([]models.KBChunk, len(texts))
	for i, text := range texts {
		chunks[i] = models.KBChunk{
			ID:           uuid.New(),
			TenantID:     tenantID,
			DocumentID:   doc.ID,
			DocumentName: name,
			Text:         text,
			ChunkIndex:   i,
			Metadata:     req.Metadata,
		}
		if vectors != nil {
			chunks[i].Embedding = vectors[i]
		}
	}

	if err := s.store.CreateDocument(ctx, doc, chunks); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[KBService] AddDocument: store call failed")
		return nil, fmt.Errorf("failed to save document: %w", err)
	}

	log.Info().Str("tenant_id", tenantID).Str("document_id", doc.ID.String()).Int("chunks", len(chunks)).
		Msg("[KBService] AddDocument: document stored")
	return toDocumentResponse(doc), nil
}

// ImportNotionPage reads a Notion page and stores it as a document. The
// token is used for this call only.
func (s *KBService) ImportNotionPage(ctx context.Context, tenantID string, req models.NotionImportRequest) (*models.DocumentResponse, error) {
	if s.notion == nil {
		return nil, fmt.Errorf("%w: notion import is not enabled", ErrKBValidation)
	}
	if strings.TrimSpace(req.PageID) == "" || strings.TrimSpace(req.Token) == "" {
		return nil, fmt.Errorf("%w: page_id and token are required", ErrKBValidation)
	}
	text, err := s.notion.ImportPage(ctx, req.Token, req.PageID)
	if err != nil {
		return nil, fmt.Errorf("notion import failed: %w", err)
	}
	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = "Notion page " + req.PageID
	}
	return s.AddDocument(ctx, tenantID, models.DocumentUploadRequest{
		Name:     name,
		Content:  text,
		Metadata: map[string]interface{}{"notion_page_id": req.PageID},
	}, SourceNotion)
}

// ListDocuments returns the tenant's documents newest first.
func (s *KBService) ListDocuments(ctx context.Context, tenantID string) ([]models.DocumentResponse, error) {
	docs, err := s.store.ListDocuments(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	resp := make([]models.DocumentResponse, len(docs))
	for i := range docs {
		resp[i] = *toDocumentResponse(&docs[i])
	}
	return resp, nil
}

// DeleteDocument removes a document and its chunks.
func (s *KBService) DeleteDocument(ctx context.Context, tenantID string, id uuid.UUID) error {
	if err := s.store.DeleteDocument(ctx, tenantID, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}

// Stats summarises the tenant's knowledge base.
func (s *KBService) Stats(ctx context.Context, tenantID string) (*models.KBStatsResponse, error) {
	st, err := s.store.GetKBStats(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute kb stats: %w", err)
	}
	return &models.KBStatsResponse{TotalDocuments: st.Documents, TotalChunks: st.Chunks}, nil
}

func toDocumentResponse(d *models.KBDocument) *models.DocumentResponse {
	return &models.DocumentResponse{
		DocumentID:  d.ID,
		Name:        d.Name,
		Source:      d.Source,
		ChunksCount: d.ChunksCount,
		CreatedAt:   d.CreatedAt,
	}
}

// KBRetriever serves the pipeline's retrieval step from the store: the
// tenant's k most recently stored chunks. The query is not used for ranking.
type KBRetriever struct {
	store store.Store
}

func NewKBRetriever(s store.Store) *KBRetriever {
	return &KBRetriever{store: s}
}

func (r *KBRetriever) RetrieveChunks(ctx context.Context, _ string, tenantID string, k int) ([]models.KBChunk, error) {
	if k <= 0 {
		return nil, nil
	}
	return r.store.ListRecentChunks(ctx, tenantID, k)
}
