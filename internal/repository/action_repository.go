package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promorang/maturity-service/internal/domain"
)

// ActionRepository stores immutable verified-action events.
type ActionRepository interface {
	Create(ctx context.Context, action *domain.VerifiedAction) error
	CountByUserAndType(ctx context.Context, userID string, actionType domain.VerifiedActionType) (int, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.VerifiedAction, error)
}

type actionRepository struct {
	pool *pgxpool.Pool
}

// NewActionRepository instantiates repository.
func NewActionRepository(pool *pgxpool.Pool) ActionRepository {
	return &actionRepository{pool: pool}
}

func (r *actionRepository) Create(ctx context.Context, action *domain.VerifiedAction) error {
	const query = `
        INSERT INTO verified_actions (user_id, action_type, metadata, surface)
        VALUES ($1,$2,$3,$4)
        RETURNING id, verified_at`
	return r.pool.QueryRow(ctx, query,
		action.UserID,
		action.ActionType,
		action.Metadata,
		action.Surface,
	).Scan(&action.ID, &action.VerifiedAt)
}

func (r *actionRepository) CountByUserAndType(ctx context.Context, userID string, actionType domain.VerifiedActionType) (int, error) {
	const query = `
        SELECT COUNT(*) FROM verified_actions WHERE user_id=$1 AND action_type=$2`
	var count int
	if err := r.pool.QueryRow(ctx, query, userID, actionType).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *actionRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.VerifiedAction, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
        SELECT id, user_id, action_type, metadata, surface, verified_at
        FROM verified_actions WHERE user_id=$1
        ORDER BY verified_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanActions(rows)
}

func scanActions(rows pgx.Rows) ([]domain.VerifiedAction, error) {
	var result []domain.VerifiedAction
	for rows.Next() {
		var action domain.VerifiedAction
		if err := rows.Scan(
			&action.ID,
			&action.UserID,
			&action.ActionType,
			&action.Metadata,
			&action.Surface,
			&action.VerifiedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, action)
	}
	return result, rows.Err()
}
