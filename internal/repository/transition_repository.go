package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promorang/maturity-service/internal/domain"
)

// TransitionRepository stores the immutable maturity audit trail.
type TransitionRepository interface {
	Create(ctx context.Context, transition *domain.MaturityTransition) error
	ListByUser(ctx context.Context, userID string) ([]domain.MaturityTransition, error)
}

type transitionRepository struct {
	pool *pgxpool.Pool
}

// NewTransitionRepository builds repository.
func NewTransitionRepository(pool *pgxpool.Pool) TransitionRepository {
	return &transitionRepository{pool: pool}
}

func (r *transitionRepository) Create(ctx context.Context, transition *domain.MaturityTransition) error {
	const query = `
        INSERT INTO maturity_transitions (user_id, from_state, to_state, trigger_reason, trigger_metadata)
        VALUES ($1,$2,$3,$4,$5)
        RETURNING id, created_at`
	return r.pool.QueryRow(ctx, query,
		transition.UserID,
		transition.FromState,
		transition.ToState,
		transition.Reason,
		transition.Metadata,
	).Scan(&transition.ID, &transition.CreatedAt)
}

func (r *transitionRepository) ListByUser(ctx context.Context, userID string) ([]domain.MaturityTransition, error) {
	const query = `
        SELECT id, user_id, from_state, to_state, trigger_reason, trigger_metadata, created_at
        FROM maturity_transitions WHERE user_id=$1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.MaturityTransition
	for rows.Next() {
		var transition domain.MaturityTransition
		if err := rows.Scan(
			&transition.ID,
			&transition.UserID,
			&transition.FromState,
			&transition.ToState,
			&transition.Reason,
			&transition.Metadata,
			&transition.CreatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, transition)
	}
	return result, rows.Err()
}
