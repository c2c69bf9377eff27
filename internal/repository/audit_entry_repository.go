package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/ticket-access/internal/domain"
	"github.com/spec-kit/ticket-access/internal/persistence"
)

// AuditEntryFilter captures compliance query parameters: by actor, by target
// resource, and by time range.
type AuditEntryFilter struct {
	ActorUserID      *string
	TargetResourceID *string
	Actions          []domain.Action
	Outcome          *domain.Outcome
	From             *time.Time
	To               *time.Time
	Limit            int
	Offset           int
}

// AuditEntryRepository stores audit entries. Write-once: the interface
// deliberately exposes no update or delete, and the backing table rejects
// both at the database level.
type AuditEntryRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	ListWithFilter(ctx context.Context, filter AuditEntryFilter) ([]domain.AuditEntry, error)
}

type auditEntryRepository struct {
	pool *pgxpool.Pool
}

// NewAuditEntryRepository builds repository.
func NewAuditEntryRepository(pool *pgxpool.Pool) AuditEntryRepository {
	return &auditEntryRepository{pool: pool}
}

func (r *auditEntryRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
        INSERT INTO audit_entries (actor_user_id, actor_role, action, target_resource_id, outcome, source_address)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at`
	return persistence.QuerierFrom(ctx, r.pool).QueryRow(ctx, query,
		entry.ActorUserID,
		entry.ActorRole,
		entry.Action,
		entry.TargetResourceID,
		entry.Outcome,
		entry.SourceAddr,
	).Scan(&entry.ID, &entry.CreatedAt)
}

func (r *auditEntryRepository) ListWithFilter(ctx context.Context, filter AuditEntryFilter) ([]domain.AuditEntry, error) {
	base := `SELECT id, actor_user_id, actor_role, action, target_resource_id, outcome, source_address, created_at
             FROM audit_entries`
	clauses := []string{"1=1"}
	args := []any{}

	if filter.ActorUserID != nil {
		args = append(args, *filter.ActorUserID)
		clauses = append(clauses, fmt.Sprintf("actor_user_id=$%d", len(args)))
	}
	if filter.TargetResourceID != nil {
		args = append(args, *filter.TargetResourceID)
		clauses = append(clauses, fmt.Sprintf("target_resource_id=$%d", len(args)))
	}
	if len(filter.Actions) > 0 {
		placeholders := make([]string, len(filter.Actions))
		for i, action := range filter.Actions {
			args = append(args, action)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("action IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.Outcome != nil {
		args = append(args, *filter.Outcome)
		clauses = append(clauses, fmt.Sprintf("outcome=$%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY id DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := persistence.QuerierFrom(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAuditEntries(rows)
}

func scanAuditEntries(rows pgx.Rows) ([]domain.AuditEntry, error) {
	var result []domain.AuditEntry
	for rows.Next() {
		var entry domain.AuditEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.ActorUserID,
			&entry.ActorRole,
			&entry.Action,
			&entry.TargetResourceID,
			&entry.Outcome,
			&entry.SourceAddr,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}
