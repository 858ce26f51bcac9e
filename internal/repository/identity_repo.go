package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"admin-console/internal/model"
)

const uniqueViolation = "23505"

type IdentityRepository struct {
	pool *pgxpool.Pool
}

func NewIdentityRepository(pool *pgxpool.Pool) *IdentityRepository {
	return &IdentityRepository{pool: pool}
}

const identityColumns = `uid, email, display_name, password_hash, disabled,
	failed_login_attempts, locked_until, created_at, updated_at`

func scanIdentity(row pgx.Row) (model.IdentityRecord, error) {
	var rec model.IdentityRecord
	err := row.Scan(&rec.UID, &rec.Email, &rec.DisplayName, &rec.PasswordHash, &rec.Disabled,
		&rec.FailedLoginAttempts, &rec.LockedUntil, &rec.CreatedAt, &rec.UpdatedAt)
	return rec, err
}

func (r *IdentityRepository) FindByID(ctx context.Context, uid string) (model.IdentityRecord, error) {
	rec, err := scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE uid = $1`, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.IdentityRecord{}, model.ErrIdentityNotFound
	}
	if err != nil {
		return model.IdentityRecord{}, fmt.Errorf("find identity by id: %w", err)
	}
	return rec, nil
}

func (r *IdentityRepository) FindByEmail(ctx context.Context, email string) (model.IdentityRecord, error) {
	rec, err := scanIdentity(r.pool.QueryRow(ctx,
		`SELECT `+identityColumns+` FROM identities WHERE lower(email) = lower($1)`, strings.TrimSpace(email)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.IdentityRecord{}, model.ErrIdentityNotFound
	}
	if err != nil {
		return model.IdentityRecord{}, fmt.Errorf("find identity by email: %w", err)
	}
	return rec, nil
}

func (r *IdentityRepository) Create(ctx context.Context, rec model.IdentityRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO identities (uid, email, display_name, password_hash, disabled, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.UID, rec.Email, rec.DisplayName, rec.PasswordHash, rec.Disabled, rec.CreatedAt, rec.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return model.ErrIdentityExists
	}
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) UpdatePassword(ctx context.Context, uid string, passwordHash string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities SET password_hash = $2, failed_login_attempts = 0, locked_until = NULL, updated_at = $3
		 WHERE uid = $1`,
		uid, passwordHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrIdentityNotFound
	}
	return nil
}

func (r *IdentityRepository) SetDisabled(ctx context.Context, uid string, disabled bool) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities SET disabled = $2, updated_at = $3 WHERE uid = $1`,
		uid, disabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set identity disabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrIdentityNotFound
	}
	return nil
}

// RecordFailedSignIn bumps the failure counter and returns the new count.
func (r *IdentityRepository) RecordFailedSignIn(ctx context.Context, uid string) (int, error) {
	var attempts int
	err := r.pool.QueryRow(ctx,
		`UPDATE identities SET failed_login_attempts = failed_login_attempts + 1, updated_at = $2
		 WHERE uid = $1 RETURNING failed_login_attempts`,
		uid, time.Now().UTC()).Scan(&attempts)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, model.ErrIdentityNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("record failed sign-in: %w", err)
	}
	return attempts, nil
}

// Lock sets locked_until and restarts the failure count, so the lapsed
// lock grants a full set of attempts.
func (r *IdentityRepository) Lock(ctx context.Context, uid string, until time.Time) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE identities SET locked_until = $2, failed_login_attempts = 0, updated_at = $3 WHERE uid = $1`,
		uid, until, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("lock identity: %w", err)
	}
	return nil
}

func (r *IdentityRepository) ResetFailedSignIns(ctx context.Context, uid string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE identities SET failed_login_attempts = 0, locked_until = NULL, updated_at = $2 WHERE uid = $1`,
		uid, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset failed sign-ins: %w", err)
	}
	return nil
}
