package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// --- Knowledge Base Methods ---

func encodeMetadata(m map[string]interface{}) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// CreateDocument inserts a document and its chunks in one transaction. The
// chunks are streamed with COPY.
func (s *PostgresStore) CreateDocument(ctx context.Context, doc *models.KBDocument, chunks []models.KBChunk) error {
	meta, err := encodeMetadata(doc.Metadata)
	if err != nil {
		return fmt.Errorf("failed to encode document metadata: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO kb_documents (id, tenant_id, name, source, chunks_count, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		doc.ID, doc.TenantID, doc.Name, doc.Source, len(chunks), meta,
	).Scan(&doc.CreatedAt)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", doc.TenantID).Msg("[PostgresStore] CreateDocument: insert failed")
		return fmt.Errorf("database error creating document: %w", err)
	}
	doc.ChunksCount = len(chunks)

	rows := make([][]any, 0, len(chunks))
	for _, c := range chunks {
		cm, err := encodeMetadata(c.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode chunk metadata: %w", err)
		}
		rows = append(rows, []any{
			c.ID, doc.TenantID, doc.ID, doc.Name, c.Text, c.ChunkIndex, c.Embedding, cm, doc.CreatedAt,
		})
	}
	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"kb_chunks"},
			[]string{"id", "tenant_id", "document_id", "document_name", "text", "chunk_index", "embedding", "metadata", "created_at"},
			pgx.CopyFromRows(rows),
		)
		if err != nil {
			return fmt.Errorf("database error copying chunks: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit document: %w", err)
	}
	log.Info().Str("tenant_id", doc.TenantID).Str("document_id", doc.ID.String()).Int("chunks", len(chunks)).
		Msg("[PostgresStore] CreateDocument: stored")
	return nil
}

// ListDocuments returns the tenant's documents newest first.
func (s *PostgresStore) ListDocuments(ctx context.Context, tenantID string) ([]models.KBDocument, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, name, source, chunks_count, metadata, created_at
		FROM kb_documents
		WHERE tenant_id = $1
		ORDER BY created_at DESC`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("database error listing documents: %w", err)
	}
	defer rows.Close()

	docs := []models.KBDocument{}
	for rows.Next() {
		var d models.KBDocument
		var meta []byte
		if err := rows.Scan(&d.ID, &d.TenantID, &d.Name, &d.Source, &d.ChunksCount, &meta, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning document row: %w", err)
		}
		if err := json.Unmarshal(meta, &d.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode document metadata: %w", err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating document rows: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document; its chunks go with it.
func (s *PostgresStore) DeleteDocument(ctx context.Context, tenantID string, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM kb_documents WHERE id = $1 AND tenant_id = $2`, id, tenantID)
	if err != nil {
		return fmt.Errorf("database error deleting document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListRecentChunks returns up to limit of the tenant's most recently stored chunks.
func (s *PostgresStore) ListRecentChunks(ctx context.Context, tenantID string, limit int) ([]models.KBChunk, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, tenant_id, document_id, document_name, text, chunk_index, embedding, metadata, created_at
		FROM kb_chunks
		WHERE tenant_id = $1
		ORDER BY created_at DESC, chunk_index ASC
		LIMIT $2`, tenantID, limit)
	if err != nil {
		return nil, fmt.Errorf("database error listing chunks: %w", err)
	}
	defer rows.Close()

	chunks := []models.KBChunk{}
	for rows.Next() {
		var c models.KBChunk
		var meta []byte
		if err := rows.Scan(&c.ID, &c.TenantID, &c.DocumentID, &c.DocumentName, &c.Text, &c.ChunkIndex,
			&c.Embedding, &meta, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning chunk row: %w", err)
		}
		if err := json.Unmarshal(meta, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode chunk metadata: %w", err)
		}
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chunk rows: %w", err)
	}
	return chunks, nil
}

// GetKBStats counts the tenant's documents and chunks.
func (s *PostgresStore) GetKBStats(ctx context.Context, tenantID string) (*store.KBStats, error) {
	stats := &store.KBStats{}
	err := s.db.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM kb_documents WHERE tenant_id = $1),
			(SELECT COUNT(*) FROM kb_chunks WHERE tenant_id = $1)`, tenantID,
	).Scan(&stats.Documents, &stats.Chunks)
	if err != nil {
		return nil, fmt.Errorf("database error computing kb stats: %w", err)
	}
	return stats, nil
}
