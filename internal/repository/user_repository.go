package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/promorang/maturity-service/internal/domain"
)

// ErrStaleState signals that a guarded maturity-state update lost a
// race: the row no longer holds the expected current state.
var ErrStaleState = errors.New("maturity state changed concurrently")

// UserRepository defines persistence access for platform users. The
// wallet columns are read-only here; only the maturity columns are
// written by this service.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	UpdateMaturityState(ctx context.Context, userID string, from, to domain.MaturityState) error
	SetMaturityState(ctx context.Context, userID string, state domain.MaturityState) error
	ApplyVerifiedAction(ctx context.Context, userID, surface string, countable bool) error
	IncrementVerifiedActions(ctx context.Context, userID string) error
	SetLastUsedSurface(ctx context.Context, userID, surface string) error
	SetFirstRewardReceived(ctx context.Context, userID string) (bool, error)
	ListActiveSince(ctx context.Context, since time.Time, limit int) ([]string, error)
}

type userRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a Postgres-backed implementation.
func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepository{pool: pool}
}

const userColumns = `id, email, password_hash, role, user_type,
       points_balance, keys_balance, gems_balance,
       maturity_state, verified_actions_count, first_reward_received_at,
       last_used_surface, created_at, updated_at`

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (email, password_hash, role, user_type, maturity_state)
        VALUES ($1, $2, $3, $4, $5)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		user.Email,
		user.PasswordHash,
		user.Role,
		user.UserType,
		user.MaturityState,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.fetchSingle(ctx, `SELECT `+userColumns+` FROM users WHERE email=$1`, email)
}

func (r *userRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.User, error) {
	var user domain.User
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.UserType,
		&user.PointsBalance,
		&user.KeysBalance,
		&user.GemsBalance,
		&user.MaturityState,
		&user.VerifiedActionsCount,
		&user.FirstRewardAt,
		&user.LastUsedSurface,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateMaturityState performs a guarded write: the row must still hold
// the expected pre-promotion state, otherwise ErrStaleState is returned
// and no transition should be logged.
func (r *userRepository) UpdateMaturityState(ctx context.Context, userID string, from, to domain.MaturityState) error {
	const query = `
        UPDATE users SET maturity_state=$1, updated_at=NOW()
        WHERE id=$2 AND maturity_state=$3`
	cmd, err := r.pool.Exec(ctx, query, to, userID, from)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleState
	}
	return nil
}

// SetMaturityState writes the state unconditionally. Manual override
// and operator-pro grants use this path and may lower the state.
func (r *userRepository) SetMaturityState(ctx context.Context, userID string, state domain.MaturityState) error {
	const query = `UPDATE users SET maturity_state=$1, updated_at=NOW() WHERE id=$2`
	cmd, err := r.pool.Exec(ctx, query, state, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ApplyVerifiedAction bumps the verified-actions counter (when the
// action is countable) and records the surface in one statement.
func (r *userRepository) ApplyVerifiedAction(ctx context.Context, userID, surface string, countable bool) error {
	increment := 0
	if countable {
		increment = 1
	}
	const query = `
        UPDATE users SET verified_actions_count = verified_actions_count + $1,
            last_used_surface=$2, updated_at=NOW()
        WHERE id=$3`
	cmd, err := r.pool.Exec(ctx, query, increment, surface, userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// IncrementVerifiedActions is the dedicated fallback increment used
// when the combined update fails.
func (r *userRepository) IncrementVerifiedActions(ctx context.Context, userID string) error {
	const query = `
        UPDATE users SET verified_actions_count = verified_actions_count + 1, updated_at=NOW()
        WHERE id=$1`
	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

func (r *userRepository) SetLastUsedSurface(ctx context.Context, userID, surface string) error {
	const query = `UPDATE users SET last_used_surface=$1, updated_at=NOW() WHERE id=$2`
	_, err := r.pool.Exec(ctx, query, surface, userID)
	return err
}

// SetFirstRewardReceived marks the first reward timestamp, first write
// wins. Returns whether this call performed the write.
func (r *userRepository) SetFirstRewardReceived(ctx context.Context, userID string) (bool, error) {
	const query = `
        UPDATE users SET first_reward_received_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND first_reward_received_at IS NULL`
	cmd, err := r.pool.Exec(ctx, query, userID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// ListActiveSince returns ids of users touched since the given time
// whose state can still advance automatically. POWER_USER and above
// never promote without manual action, so they are skipped.
func (r *userRepository) ListActiveSince(ctx context.Context, since time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	const query = `
        SELECT id FROM users
        WHERE updated_at >= $1 AND maturity_state < $2
        ORDER BY updated_at DESC LIMIT $3`
	rows, err := r.pool.Query(ctx, query, since, domain.MaturityPowerUser, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
