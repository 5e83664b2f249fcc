// Package repository provides PostgreSQL persistence for round-robin queues,
// members, distribution rules and the assignment log.
package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadflow_backend/platform/apperr"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Assignment channels recorded in the log.
const (
	ViaRule            = "rule"
	ViaPipelineDefault = "pipeline_default"
	ViaFallback        = "fallback"
	ViaManual          = "manual"
)

// Queue is a round-robin distribution queue.
type Queue struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Name             string
	TargetPipelineID *uuid.UUID
	TargetStageID    *uuid.UUID
	IsFallback       bool
	IsActive         bool
	CounterResetAt   *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Member is a user participating in a queue with a selection weight.
type Member struct {
	ID        uuid.UUID
	QueueID   uuid.UUID
	UserID    uuid.UUID
	Weight    int
	Position  int
	IsActive  bool
	UserName  string
	UserEmail string
}

// Rule routes matching leads to a queue. Nil predicate fields are wildcards.
type Rule struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	Name             string
	Priority         int
	QueueID          uuid.UUID
	Source           *string
	CampaignContains *string
	City             *string
	Tags             []string
	PipelineID       *uuid.UUID
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Repository implements distribution persistence with PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// New creates a distribution repository.
func New(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const queueCols = `
	id, organization_id, name, target_pipeline_id, target_stage_id,
	is_fallback, is_active, counter_reset_at, created_at, updated_at`

func scanQueue(row pgx.Row) (Queue, error) {
	var q Queue
	err := row.Scan(&q.ID, &q.OrganizationID, &q.Name, &q.TargetPipelineID, &q.TargetStageID,
		&q.IsFallback, &q.IsActive, &q.CounterResetAt, &q.CreatedAt, &q.UpdatedAt)
	return q, err
}

// CreateQueueParams holds the fields for a new queue.
type CreateQueueParams struct {
	OrganizationID   uuid.UUID
	Name             string
	TargetPipelineID *uuid.UUID
	TargetStageID    *uuid.UUID
	IsFallback       bool
}

// CreateQueue inserts a queue.
func (r *Repository) CreateQueue(ctx context.Context, params CreateQueueParams) (Queue, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO round_robin_queues (organization_id, name, target_pipeline_id, target_stage_id, is_fallback)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING`+queueCols+`
	`, params.OrganizationID, params.Name, params.TargetPipelineID, params.TargetStageID, params.IsFallback)

	queue, err := scanQueue(row)
	if err != nil {
		return Queue{}, fmt.Errorf("create queue: %w", err)
	}
	return queue, nil
}

// GetQueue returns a queue scoped to its organization.
func (r *Repository) GetQueue(ctx context.Context, queueID, organizationID uuid.UUID) (Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+queueCols+`
		FROM round_robin_queues
		WHERE id = $1 AND organization_id = $2
	`, queueID, organizationID)

	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Queue{}, apperr.NotFound("queue not found")
		}
		return Queue{}, fmt.Errorf("get queue: %w", err)
	}
	return queue, nil
}

// ListQueues returns an organization's active queues.
func (r *Repository) ListQueues(ctx context.Context, organizationID uuid.UUID) ([]Queue, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+queueCols+`
		FROM round_robin_queues
		WHERE organization_id = $1 AND is_active = true
		ORDER BY created_at ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list queues: %w", err)
	}
	defer rows.Close()

	var queues []Queue
	for rows.Next() {
		queue, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queue: %w", err)
		}
		queues = append(queues, queue)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queues: %w", err)
	}
	return queues, nil
}

// GetFallbackQueue returns the organization's generic fallback queue, if any.
func (r *Repository) GetFallbackQueue(ctx context.Context, organizationID uuid.UUID) (Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT`+queueCols+`
		FROM round_robin_queues
		WHERE organization_id = $1 AND is_fallback = true AND is_active = true
	`, organizationID)

	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Queue{}, apperr.NotFound("fallback queue not found")
		}
		return Queue{}, fmt.Errorf("get fallback queue: %w", err)
	}
	return queue, nil
}

// GetPipelineDefaultQueue returns the queue configured as a pipeline's default.
func (r *Repository) GetPipelineDefaultQueue(ctx context.Context, pipelineID, organizationID uuid.UUID) (Queue, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT q.id, q.organization_id, q.name, q.target_pipeline_id, q.target_stage_id,
		       q.is_fallback, q.is_active, q.counter_reset_at, q.created_at, q.updated_at
		FROM pipelines p
		JOIN round_robin_queues q ON q.id = p.default_queue_id AND q.is_active = true
		WHERE p.id = $1 AND p.organization_id = $2
	`, pipelineID, organizationID)

	queue, err := scanQueue(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Queue{}, apperr.NotFound("pipeline default queue not found")
		}
		return Queue{}, fmt.Errorf("get pipeline default queue: %w", err)
	}
	return queue, nil
}

// ResetCounter starts a fresh counting window for a queue. Historical
// assignment log rows are kept; counting simply restarts at the stamp.
func (r *Repository) ResetCounter(ctx context.Context, queueID, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE round_robin_queues
		SET counter_reset_at = now(), updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, queueID, organizationID)
	if err != nil {
		return fmt.Errorf("reset queue counter: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("queue not found")
	}
	return nil
}

// AddMemberParams holds the fields for a new queue member.
type AddMemberParams struct {
	QueueID  uuid.UUID
	UserID   uuid.UUID
	Weight   int
	Position int
}

// AddMember adds a user to a queue. Re-adding an existing member updates its
// weight and position instead of failing.
func (r *Repository) AddMember(ctx context.Context, params AddMemberParams) (Member, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO round_robin_members (queue_id, user_id, weight, position)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (queue_id, user_id) DO UPDATE SET
			weight = EXCLUDED.weight,
			position = EXCLUDED.position,
			is_active = true,
			updated_at = now()
		RETURNING id, queue_id, user_id, weight, position, is_active
	`, params.QueueID, params.UserID, params.Weight, params.Position)

	var m Member
	err := row.Scan(&m.ID, &m.QueueID, &m.UserID, &m.Weight, &m.Position, &m.IsActive)
	if err != nil {
		return Member{}, fmt.Errorf("add queue member: %w", err)
	}
	return m, nil
}

// RemoveMember deactivates a queue member.
func (r *Repository) RemoveMember(ctx context.Context, queueID, userID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE round_robin_members
		SET is_active = false, updated_at = now()
		WHERE queue_id = $1 AND user_id = $2
	`, queueID, userID)
	if err != nil {
		return fmt.Errorf("remove queue member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("queue member not found")
	}
	return nil
}

// ListActiveMembers returns a queue's active members ordered by position.
// Members whose user account was deactivated are excluded.
func (r *Repository) ListActiveMembers(ctx context.Context, queueID uuid.UUID) ([]Member, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.queue_id, m.user_id, m.weight, m.position, m.is_active, u.name, u.email
		FROM round_robin_members m
		JOIN users u ON u.id = m.user_id AND u.is_active = true
		WHERE m.queue_id = $1 AND m.is_active = true
		ORDER BY m.position ASC, m.created_at ASC
	`, queueID)
	if err != nil {
		return nil, fmt.Errorf("list queue members: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ID, &m.QueueID, &m.UserID, &m.Weight, &m.Position, &m.IsActive, &m.UserName, &m.UserEmail); err != nil {
			return nil, fmt.Errorf("scan queue member: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue members: %w", err)
	}
	return members, nil
}

const ruleCols = `
	id, organization_id, name, priority, queue_id,
	source, campaign_contains, city, tags, pipeline_id, is_active, created_at, updated_at`

func scanRule(row pgx.Row) (Rule, error) {
	var rule Rule
	err := row.Scan(&rule.ID, &rule.OrganizationID, &rule.Name, &rule.Priority, &rule.QueueID,
		&rule.Source, &rule.CampaignContains, &rule.City, &rule.Tags, &rule.PipelineID,
		&rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	return rule, err
}

// CreateRuleParams holds the fields for a new distribution rule.
type CreateRuleParams struct {
	OrganizationID   uuid.UUID
	Name             string
	Priority         int
	QueueID          uuid.UUID
	Source           *string
	CampaignContains *string
	City             *string
	Tags             []string
	PipelineID       *uuid.UUID
}

// CreateRule inserts a distribution rule.
func (r *Repository) CreateRule(ctx context.Context, params CreateRuleParams) (Rule, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO distribution_rules (
			organization_id, name, priority, queue_id,
			source, campaign_contains, city, tags, pipeline_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING`+ruleCols+`
	`, params.OrganizationID, params.Name, params.Priority, params.QueueID,
		params.Source, params.CampaignContains, params.City, params.Tags, params.PipelineID)

	rule, err := scanRule(row)
	if err != nil {
		return Rule{}, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

// ListActiveRules returns an organization's active rules ordered by priority.
// Lower priority values are evaluated first; creation order breaks ties.
func (r *Repository) ListActiveRules(ctx context.Context, organizationID uuid.UUID) ([]Rule, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT`+ruleCols+`
		FROM distribution_rules
		WHERE organization_id = $1 AND is_active = true
		ORDER BY priority ASC, created_at ASC
	`, organizationID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rules: %w", err)
	}
	return rules, nil
}

// DeleteRule deactivates a distribution rule.
func (r *Repository) DeleteRule(ctx context.Context, ruleID, organizationID uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE distribution_rules
		SET is_active = false, updated_at = now()
		WHERE id = $1 AND organization_id = $2
	`, ruleID, organizationID)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("rule not found")
	}
	return nil
}

// InsertAssignmentParams holds the fields for an assignment log entry.
type InsertAssignmentParams struct {
	OrganizationID uuid.UUID
	QueueID        uuid.UUID
	UserID         uuid.UUID
	LeadID         uuid.UUID
	RuleID         *uuid.UUID
	Via            string
}

// InsertAssignment appends to the assignment log.
func (r *Repository) InsertAssignment(ctx context.Context, params InsertAssignmentParams) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO assignment_log (organization_id, queue_id, user_id, lead_id, rule_id, via)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, params.OrganizationID, params.QueueID, params.UserID, params.LeadID, params.RuleID, params.Via)
	if err != nil {
		return fmt.Errorf("insert assignment log: %w", err)
	}
	return nil
}

// CountAssignmentsSince returns per-user assignment counts for a queue. A nil
// since counts the whole log; otherwise only entries at or after the stamp
// count, which is how counter resets take effect without deleting history.
func (r *Repository) CountAssignmentsSince(ctx context.Context, queueID uuid.UUID, since *time.Time) (map[uuid.UUID]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, count(*)
		FROM assignment_log
		WHERE queue_id = $1 AND ($2::timestamptz IS NULL OR assigned_at >= $2)
		GROUP BY user_id
	`, queueID, since)
	if err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	defer rows.Close()

	counts := make(map[uuid.UUID]int64)
	for rows.Next() {
		var userID uuid.UUID
		var count int64
		if err := rows.Scan(&userID, &count); err != nil {
			return nil, fmt.Errorf("scan assignment count: %w", err)
		}
		counts[userID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assignment counts: %w", err)
	}
	return counts, nil
}
