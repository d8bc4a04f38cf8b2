package models

import (
	"time"

	"github.com/google/uuid"
)

// KBDocument is an uploaded knowledge-base document. Its text lives in KBChunks.
type KBDocument struct {
	ID          uuid.UUID              `db:"id"`
	TenantID    string                 `db:"tenant_id"`
	Name        string                 `db:"name"`
	Source      string                 `db:"source"` // upload, notion
	ChunksCount int                    `db:"chunks_count"`
	Metadata    map[string]interface{} `db:"metadata"` // Stored as JSONB
	CreatedAt   time.Time              `db:"created_at"`
}

// KBChunk is a retrievable slice of a document.
type KBChunk struct {
	ID           uuid.UUID              `db:"id"`
	TenantID     string                 `db:"tenant_id"`
	DocumentID   uuid.UUID              `db:"document_id"`
	DocumentName string                 `db:"document_name"`
	Text         string                 `db:"text"`
	ChunkIndex   int                    `db:"chunk_index"`
	Embedding    []float32              `db:"embedding"` // nil when embedding failed
	Metadata     map[string]interface{} `db:"metadata"`
	CreatedAt    time.Time              `db:"created_at"`
}
