package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"leadpilot-backend/internal/models"
	"leadpilot-backend/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// Compile-time check to ensure PostgresStore implements store.Store
var _ store.Store = (*PostgresStore)(nil)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates missing tables and indexes. Safe to run on every start.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	log.Info().Msg("[PostgresStore] EnsureSchema: schema is up to date")
	return nil
}

// rowScanner is satisfied by pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- Tenant Methods ---

const tenantColumns = `id, tenant_key, name, email, settings, encrypted_slack_token, active, created_at, updated_at`

func scanTenant(row rowScanner) (*models.Tenant, error) {
	t := &models.Tenant{}
	var settings []byte
	if err := row.Scan(
		&t.ID,
		&t.Key,
		&t.Name,
		&t.Email,
		&settings,
		&t.EncryptedSlackToken,
		&t.Active,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(settings) > 0 {
		if err := json.Unmarshal(settings, &t.Settings); err != nil {
			return nil, fmt.Errorf("failed to decode tenant settings: %w", err)
		}
	}
	t.Settings.ApplyDefaults()
	return t, nil
}

// CreateTenant inserts a new tenant. Returns store.ErrConflict when the id or key is taken.
func (s *PostgresStore) CreateTenant(ctx context.Context, tenant *models.Tenant) error {
	settings, err := json.Marshal(tenant.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode tenant settings: %w", err)
	}
	query := `
		INSERT INTO tenants (id, tenant_key, name, email, settings, encrypted_slack_token, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		tenant.ID,
		tenant.Key,
		tenant.Name,
		tenant.Email,
		settings,
		tenant.EncryptedSlackToken,
		tenant.Active,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		log.Error().Err(err).Str("tenant_id", tenant.ID).Msg("[PostgresStore] CreateTenant: insert failed")
		return fmt.Errorf("database error creating tenant: %w", err)
	}
	log.Debug().Str("tenant_id", tenant.ID).Msg("[PostgresStore] CreateTenant: inserted")
	return nil
}

// UpsertTenant inserts or replaces a tenant by id. A nil sealed token keeps
// the stored one.
func (s *PostgresStore) UpsertTenant(ctx context.Context, tenant *models.Tenant) error {
	settings, err := json.Marshal(tenant.Settings)
	if err != nil {
		return fmt.Errorf("failed to encode tenant settings: %w", err)
	}
	query := `
		INSERT INTO tenants (id, tenant_key, name, email, settings, encrypted_slack_token, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			tenant_key = EXCLUDED.tenant_key,
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			settings = EXCLUDED.settings,
			encrypted_slack_token = COALESCE(EXCLUDED.encrypted_slack_token, tenants.encrypted_slack_token),
			active = EXCLUDED.active,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err = s.db.QueryRow(ctx, query,
		tenant.ID,
		tenant.Key,
		tenant.Name,
		tenant.Email,
		settings,
		tenant.EncryptedSlackToken,
		tenant.Active,
	).Scan(&tenant.CreatedAt, &tenant.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("database error upserting tenant: %w", err)
	}
	return nil
}

// GetTenantByID retrieves a tenant by id. Returns store.ErrNotFound if absent.
func (s *PostgresStore) GetTenantByID(ctx context.Context, id string) (*models.Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = $1`, id)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching tenant: %w", err)
	}
	return t, nil
}

// GetTenantByKey retrieves a tenant by its public widget key.
func (s *PostgresStore) GetTenantByKey(ctx context.Context, key string) (*models.Tenant, error) {
	row := s.db.QueryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE tenant_key = $1`, key)
	t, err := scanTenant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("database error fetching tenant by key: %w", err)
	}
	return t, nil
}

// UpdateTenantSettings replaces the settings document. A nil token leaves the
// stored Slack token untouched.
func (s *PostgresStore) UpdateTenantSettings(ctx context.Context, tenantID string, settings models.TenantSettings, encryptedSlackToken []byte) (*models.Tenant, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode tenant settings: %w", err)
	}
	query := `
		UPDATE tenants
		SET settings = $1,
			encrypted_slack_token = COALESCE($2, encrypted_slack_token),
			updated_at = NOW()
		WHERE id = $3
		RETURNING ` + tenantColumns

	t, err := scanTenant(s.db.QueryRow(ctx, query, raw, encryptedSlackToken, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[PostgresStore] UpdateTenantSettings: update failed")
		return nil, fmt.Errorf("database error updating tenant settings: %w", err)
	}
	return t, nil
}

// --- User Methods ---

// GetUserByEmail retrieves a user by their email address.
// Returns store.ErrNotFound if the user does not exist.
func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `
		SELECT id, tenant_id, email, full_name, role, hashed_password, active, created_at, updated_at
		FROM users
		WHERE email = $1`

	user := &models.User{}
	err := s.db.QueryRow(ctx, query, email).Scan(
		&user.ID,
		&user.TenantID,
		&user.Email,
		&user.FullName,
		&user.Role,
		&user.HashedPassword,
		&user.Active,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			log.Debug().Str("email", email).Msg("[PostgresStore] GetUserByEmail: user not found")
			return nil, store.ErrNotFound
		}
		log.Error().Err(err).Str("email", email).Msg("[PostgresStore] GetUserByEmail: query failed")
		return nil, fmt.Errorf("database error fetching user by email: %w", err)
	}
	return user, nil
}

// CountUsers returns how many users belong to a tenant.
func (s *PostgresStore) CountUsers(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = $1`, tenantID).Scan(&n); err != nil {
		log.Error().Err(err).Str("tenant_id", tenantID).Msg("[PostgresStore] CountUsers: query failed")
		return 0, fmt.Errorf("database error counting users: %w", err)
	}
	return n, nil
}

// CreateUser inserts a new user record. Returns store.ErrConflict on a duplicate email.
func (s *PostgresStore) CreateUser(ctx context.Context, user *models.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, full_name, role, hashed_password, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query,
		user.ID,
		user.TenantID,
		user.Email,
		user.FullName,
		user.Role,
		user.HashedPassword,
		user.Active,
	).Scan(&user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == uniqueViolation {
				return store.ErrConflict
			}
			log.Error().Str("email", user.Email).Str("code", pgErr.Code).Str("detail", pgErr.Detail).
				Msg("[PostgresStore] CreateUser: PostgreSQL error executing insert")
		} else {
			log.Error().Err(err).Str("email", user.Email).Msg("[PostgresStore] CreateUser: insert failed")
		}
		return fmt.Errorf("database error creating user: %w", err)
	}
	log.Debug().Str("user_id", user.ID.String()).Str("tenant_id", user.TenantID).Msg("[PostgresStore] CreateUser: inserted")
	return nil
}
