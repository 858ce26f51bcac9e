package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"admin-console/internal/model"
)

type AdminRepository struct {
	pool *pgxpool.Pool
}

func NewAdminRepository(pool *pgxpool.Pool) *AdminRepository {
	return &AdminRepository{pool: pool}
}

func (r *AdminRepository) FindByUserID(ctx context.Context, userID string) (model.AdminRecord, error) {
	var rec model.AdminRecord
	err := r.pool.QueryRow(ctx,
		`SELECT a.user_id, i.email, a.role, a.admin_access, a.disabled, a.updated_at
		 FROM admins a JOIN identities i ON i.uid = a.user_id
		 WHERE a.user_id = $1`, userID).
		Scan(&rec.UserID, &rec.Email, &rec.Role, &rec.AdminAccess, &rec.Disabled, &rec.UpdatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return model.AdminRecord{}, model.ErrAdminNotFound
	}
	if err != nil {
		return model.AdminRecord{}, fmt.Errorf("find admin: %w", err)
	}
	return rec, nil
}

// Upsert grants or replaces the admin record of an identity.
func (r *AdminRepository) Upsert(ctx context.Context, rec model.AdminRecord) error {
	access := rec.AdminAccess
	if access == nil {
		access = []string{}
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO admins (user_id, role, admin_access, disabled, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE
		 SET role = EXCLUDED.role, admin_access = EXCLUDED.admin_access,
		     disabled = EXCLUDED.disabled, updated_at = EXCLUDED.updated_at`,
		rec.UserID, rec.Role, access, rec.Disabled, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("upsert admin: %w", err)
	}
	return nil
}

func (r *AdminRepository) Revoke(ctx context.Context, userID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM admins WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("revoke admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.ErrAdminNotFound
	}
	return nil
}

func (r *AdminRepository) List(ctx context.Context) ([]model.AdminRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT a.user_id, i.email, a.role, a.admin_access, a.disabled, a.updated_at
		 FROM admins a JOIN identities i ON i.uid = a.user_id
		 ORDER BY lower(i.email)`)
	if err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	defer rows.Close()

	admins := make([]model.AdminRecord, 0)
	for rows.Next() {
		var rec model.AdminRecord
		if err := rows.Scan(&rec.UserID, &rec.Email, &rec.Role, &rec.AdminAccess, &rec.Disabled, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan admin: %w", err)
		}
		admins = append(admins, rec)
	}
	return admins, rows.Err()
}
