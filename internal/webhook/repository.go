// Package webhook implements API-key authenticated lead intake from external
// forms and ad platforms.
package webhook

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// APIKey identifies an integration allowed to push leads. Only the SHA-256
// hash of the key is stored.
type APIKey struct {
	ID             uuid.UUID  `json:"id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	Name           string     `json:"name"`
	IsActive       bool       `json:"is_active"`
	LastUsedAt     *time.Time `json:"last_used_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// Repository implements API key persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a webhook repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

// CreateKey generates a new API key for an organization. The plaintext key is
// returned exactly once; afterwards only its hash exists.
func (r *Repository) CreateKey(ctx context.Context, organizationID uuid.UUID, name string) (APIKey, string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return APIKey{}, "", fmt.Errorf("generate api key: %w", err)
	}
	plaintext := "whk_" + hex.EncodeToString(raw)

	row := r.pool.QueryRow(ctx, `
		INSERT INTO webhook_api_keys (organization_id, name, key_hash)
		VALUES ($1, $2, $3)
		RETURNING id, organization_id, name, is_active, last_used_at, created_at
	`, organizationID, name, hashKey(plaintext))

	var key APIKey
	err := row.Scan(&key.ID, &key.OrganizationID, &key.Name, &key.IsActive, &key.LastUsedAt, &key.CreatedAt)
	if err != nil {
		return APIKey{}, "", fmt.Errorf("create api key: %w", err)
	}
	return key, plaintext, nil
}

// ResolveKey looks up an active key by its plaintext value and stamps its last
// use. Returns the owning organization.
func (r *Repository) ResolveKey(ctx context.Context, plaintext string) (APIKey, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE webhook_api_keys
		SET last_used_at = now()
		WHERE key_hash = $1 AND is_active = true
		RETURNING id, organization_id, name, is_active, last_used_at, created_at
	`, hashKey(plaintext))

	var key APIKey
	err := row.Scan(&key.ID, &key.OrganizationID, &key.Name, &key.IsActive, &key.LastUsedAt, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, apperr.Unauthorized("invalid api key")
		}
		return APIKey{}, fmt.Errorf("resolve api key: %w", err)
	}
	return key, nil
}

// ListKeys returns an organization's keys, newest first.
func (r *Repository) ListKeys(ctx context.Context, organizationID uuid.UUID) ([]APIKey, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, organization_id, name, is_active, last_used_at, created_at
		FROM webhook_api_keys
		WHERE organization_id = $1
		ORDER BY created_at DESC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		var key APIKey
		if err := rows.Scan(&key.ID, &key.OrganizationID, &key.Name, &key.IsActive, &key.LastUsedAt, &key.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate api keys: %w", err)
	}
	return keys, nil
}

// RevokeKey deactivates a key.
func (r *Repository) RevokeKey(ctx context.Context, keyID, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE webhook_api_keys
		SET is_active = false
		WHERE id = $1 AND organization_id = $2
	`, keyID, organizationID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("api key not found")
	}
	return nil
}
