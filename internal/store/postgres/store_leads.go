package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog/log"
)

// --- Lead Methods ---

const leadColumns = `id, tenant_id, conversation_id, session_id, fields, score, grade, status, assigned_to,
	notes, tags, source, created_at, updated_at, last_contact_at`

func scanLead(row rowScanner) (*models.Lead, error) {
	l := &models.Lead{}
	var fields, notes []byte
	var grade, status string
	if err := row.Scan(
		&l.ID,
		&l.TenantID,
		&l.ConversationID,
		&l.SessionID,
		&fields,
		&l.Score,
		&grade,
		&status,
		&l.AssignedTo,
		&notes,
		&l.Tags,
		&l.Source,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.LastContactAt,
	); err != nil {
		return nil, err
	}
	l.Grade = models.LeadGrade(grade)
	l.Status = models.LeadStatus(status)
	if err := json.Unmarshal(fields, &l.Fields); err != nil {
		return nil, fmt.Errorf("failed to decode lead fields: %w", err)
	}
	if err := json.Unmarshal(notes, &l.Notes); err != nil {
		return nil, fmt.Errorf("failed to decode lead notes: %w", err)
	}
	return l, nil
}

func (s *PostgresStore) loadScoreHistory(ctx context.Context, l *models.Lead) error {
	rows, err := s.db.Query(ctx, `
		SELECT score, grade, reason, created_at
		FROM lead_score_history
		WHERE lead_id = $1
		ORDER BY id`, l.ID)
	if err != nil {
		return fmt.Errorf("database error loading score history: %w", err)
	}
	defer rows.Close()

	l.ScoreHistory = l.ScoreHistory[:0]
	for rows.Next() {
		var e models.ScoreHistoryEntry
		var grade string
		if err := rows.Scan(&e.Score, &grade, &e.Reason, &e.Timestamp); err != nil {
			return fmt.Errorf("error scanning score history row: %w", err)
		}
		e.Grade = models.LeadGrade(grade)
		l.ScoreHistory = append(l.ScoreHistory, e)
	}
	return rows.Err()
}

func (s *PostgresStore) getLead(ctx context.Context, where string, args ...any) (*models.Lead, error) {
	l, err := scanLead(s.db.QueryRow(ctx, `SELECT `+leadColumns+` FROM leads WHERE `+where, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching lead: %w", err)
	}
	if err := s.loadScoreHistory(ctx, l); err != nil {
		return nil, err
	}
	return l, nil
}

// GetLeadBySession returns the lead attached to a chat session, with its full score history.
func (s *PostgresStore) GetLeadBySession(ctx context.Context, tenantID, sessionID string) (*models.Lead, error) {
	return s.getLead(ctx, `session_id = $1 AND tenant_id = $2`, sessionID, tenantID)
}

// GetLeadByID returns a tenant's lead by id, with its full score history.
func (s *PostgresStore) GetLeadByID(ctx context.Context, tenantID string, id uuid.UUID) (*models.Lead, error) {
	return s.getLead(ctx, `id = $1 AND tenant_id = $2`, id, tenantID)
}

// ListLeads returns the tenant's leads newest first. Score history is not
// loaded for list results.
func (s *PostgresStore) ListLeads(ctx context.Context, arg store.ListLeadsParams) ([]models.Lead, error) {
	where := []string{"tenant_id = $1"}
	args := []any{arg.TenantID}
	if arg.Status != nil {
		args = append(args, string(*arg.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if arg.Grade != nil {
		args = append(args, string(*arg.Grade))
		where = append(where, fmt.Sprintf("grade = $%d", len(args)))
	}
	limit := arg.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit, arg.Skip)
	query := fmt.Sprintf(`SELECT %s FROM leads WHERE %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		leadColumns, strings.Join(where, " AND "), len(args)-1, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", arg.TenantID).Msg("[PostgresStore] ListLeads: query failed")
		return nil, fmt.Errorf("database error listing leads: %w", err)
	}
	defer rows.Close()

	leads := []models.Lead{}
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning lead row: %w", err)
		}
		leads = append(leads, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating lead rows: %w", err)
	}
	return leads, nil
}

// UpdateLead applies manual edits, building the SET clause from the
// provided fields. Notes are appended to the existing list.
func (s *PostgresStore) UpdateLead(ctx context.Context, arg store.UpdateLeadParams) (*models.Lead, error) {
	setClauses := []string{}
	args := []any{}

	if arg.Status != nil {
		args = append(args, string(*arg.Status))
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if arg.AssignedTo != nil {
		args = append(args, *arg.AssignedTo)
		setClauses = append(setClauses, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if len(arg.Notes) > 0 {
		notes, err := json.Marshal(arg.Notes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notes: %w", err)
		}
		args = append(args, notes)
		setClauses = append(setClauses, fmt.Sprintf("notes = notes || $%d::jsonb", len(args)))
	}
	if arg.Tags != nil {
		args = append(args, arg.Tags)
		setClauses = append(setClauses, fmt.Sprintf("tags = $%d", len(args)))
	}

	if len(setClauses) == 0 {
		return s.GetLeadByID(ctx, arg.TenantID, arg.ID)
	}
	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, arg.ID, arg.TenantID)

	query := fmt.Sprintf(`UPDATE leads SET %s WHERE id = $%d AND tenant_id = $%d`,
		strings.Join(setClauses, ", "), len(args)-1, len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		log.Error().Err(err).Str("lead_id", arg.ID.String()).Msg("[PostgresStore] UpdateLead: update failed")
		return nil, fmt.Errorf("database error updating lead: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, store.ErrNotFound
	}
	return s.GetLeadByID(ctx, arg.TenantID, arg.ID)
}

// GetLeadStats counts the tenant's leads by grade and new status.
func (s *PostgresStore) GetLeadStats(ctx context.Context, tenantID string) (*store.LeadStats, error) {
	query := `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE grade = 'HOT'),
			COUNT(*) FILTER (WHERE grade = 'WARM'),
			COUNT(*) FILTER (WHERE grade = 'COLD'),
			COUNT(*) FILTER (WHERE status = 'new')
		FROM leads
		WHERE tenant_id = $1`

	stats := &store.LeadStats{}
	if err := s.db.QueryRow(ctx, query, tenantID).Scan(
		&stats.Total, &stats.Hot, &stats.Warm, &stats.Cold, &stats.New,
	); err != nil {
		return nil, fmt.Errorf("database error computing lead stats: %w", err)
	}
	return stats, nil
}
