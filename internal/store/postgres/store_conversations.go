package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// --- Conversation Methods ---

// GetConversation loads a session transcript. Returns store.ErrNotFound if absent.
func (s *PostgresStore) GetConversation(ctx context.Context, tenantID, sessionID string) (*models.Conversation, error) {
	query := `
		SELECT session_id, tenant_id, lead_id, messages, summary, language, user_agent, ip_address,
			created_at, updated_at, last_message_at
		FROM conversations
		WHERE session_id = $1 AND tenant_id = $2`

	c := &models.Conversation{}
	var messages []byte
	err := s.db.QueryRow(ctx, query, sessionID, tenantID).Scan(
		&c.SessionID,
		&c.TenantID,
		&c.LeadID,
		&messages,
		&c.Summary,
		&c.Language,
		&c.UserAgent,
		&c.IPAddress,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.LastMessageAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Error().Err(err).Str("session_id", sessionID).Msg("[PostgresStore] GetConversation: query failed")
		return nil, fmt.Errorf("database error fetching conversation: %w", err)
	}
	if err := json.Unmarshal(messages, &c.Messages); err != nil {
		return nil, fmt.Errorf("failed to decode conversation messages: %w", err)
	}
	return c, nil
}

// The WHERE guard keeps the transcript append-only: a write carrying fewer
// messages than are stored is ignored.
const upsertConversation = `
	INSERT INTO conversations (session_id, tenant_id, lead_id, messages, summary, language, user_agent, ip_address,
		created_at, updated_at, last_message_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	ON CONFLICT (tenant_id, session_id) DO UPDATE SET
		lead_id = COALESCE(EXCLUDED.lead_id, conversations.lead_id),
		messages = EXCLUDED.messages,
		summary = COALESCE(EXCLUDED.summary, conversations.summary),
		updated_at = EXCLUDED.updated_at,
		last_message_at = EXCLUDED.last_message_at
	WHERE jsonb_array_length(EXCLUDED.messages) >= jsonb_array_length(conversations.messages)`

const upsertLead = `
	INSERT INTO leads (id, tenant_id, conversation_id, session_id, fields, score, grade, status, assigned_to,
		notes, tags, source, created_at, updated_at, last_contact_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	ON CONFLICT (id) DO UPDATE SET
		fields = EXCLUDED.fields,
		score = EXCLUDED.score,
		grade = EXCLUDED.grade,
		updated_at = EXCLUDED.updated_at,
		last_contact_at = EXCLUDED.last_contact_at`

const insertScoreHistory = `
	INSERT INTO lead_score_history (lead_id, score, grade, reason, created_at)
	VALUES ($1, $2, $3, $4, $5)`

// SaveTurn persists one chat turn atomically: the conversation, and when
// present the lead row plus its new score-history entry. A stale transcript
// drops the whole turn.
func (s *PostgresStore) SaveTurn(ctx context.Context, arg store.SaveTurnParams) error {
	if arg.Conversation == nil {
		return fmt.Errorf("save turn: conversation is required")
	}
	c := arg.Conversation
	messages, err := json.Marshal(c.Messages)
	if err != nil {
		return fmt.Errorf("failed to encode messages: %w", err)
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after Commit

	tag, err := tx.Exec(ctx, upsertConversation,
		c.SessionID,
		c.TenantID,
		c.LeadID,
		messages,
		c.Summary,
		c.Language,
		c.UserAgent,
		c.IPAddress,
		c.CreatedAt,
		c.UpdatedAt,
		c.LastMessageAt,
	)
	if err != nil {
		log.Error().Err(err).Str("session_id", c.SessionID).Msg("[PostgresStore] SaveTurn: conversation upsert failed")
		return fmt.Errorf("database error saving conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		log.Warn().Str("tenant_id", c.TenantID).Str("session_id", c.SessionID).Msg("[PostgresStore] SaveTurn: stale transcript ignored")
		return nil
	}

	if arg.Lead != nil {
		l := arg.Lead
		fields, err := json.Marshal(l.Fields)
		if err != nil {
			return fmt.Errorf("failed to encode lead fields: %w", err)
		}
		notes, err := json.Marshal(nonNilNotes(l.Notes))
		if err != nil {
			return fmt.Errorf("failed to encode lead notes: %w", err)
		}
		if _, err := tx.Exec(ctx, upsertLead,
			l.ID,
			l.TenantID,
			l.ConversationID,
			l.SessionID,
			fields,
			l.Score,
			string(l.Grade),
			string(l.Status),
			l.AssignedTo,
			notes,
			nonNilTags(l.Tags),
			l.Source,
			l.CreatedAt,
			l.UpdatedAt,
			l.LastContactAt,
		); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("lead for session %s: %w", l.SessionID, store.ErrConflict)
			}
			log.Error().Err(err).Str("lead_id", l.ID.String()).Msg("[PostgresStore] SaveTurn: lead upsert failed")
			return fmt.Errorf("database error saving lead: %w", err)
		}
		if e := arg.ScoreEntry; e != nil {
			if _, err := tx.Exec(ctx, insertScoreHistory, l.ID, e.Score, string(e.Grade), e.Reason, e.Timestamp); err != nil {
				return fmt.Errorf("database error appending score history: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit turn: %w", err)
	}
	return nil
}

func nonNilNotes(n []models.LeadNote) []models.LeadNote {
	if n == nil {
		return []models.LeadNote{}
	}
	return n
}

func nonNilTags(t []string) []string {
	if t == nil {
		return []string{}
	}
	return t
}
