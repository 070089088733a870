package postgres

import (
	"context"

	"github.com/and161185/ecoquest/internal/model"
	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
)

// BadgeRepo implements BadgeRepository using PostgreSQL.
type BadgeRepo struct{ db *DB }

// NewBadgeRepo constructs a badge repository.
func NewBadgeRepo(db *DB) *BadgeRepo { return &BadgeRepo{db: db} }

// List returns every badge ordered by threshold.
func (r *BadgeRepo) List(ctx context.Context) ([]model.Badge, error) {
	const q = `SELECT id, name, description, icon, threshold FROM badges ORDER BY threshold, name`
	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, storageErr(err)
	}
	out, err := pgx.CollectRows(rows, scanBadge)
	if err != nil {
		return nil, storageErr(err)
	}
	return out, nil
}

// Upsert inserts or updates a badge by name and sets b.ID to the stored id.
func (r *BadgeRepo) Upsert(ctx context.Context, b *model.Badge) error {
	if b.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return err
		}
		b.ID = id
	}
	const q = `
INSERT INTO badges (id, name, description, icon, threshold)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (name) DO UPDATE
SET description = EXCLUDED.description, icon = EXCLUDED.icon, threshold = EXCLUDED.threshold
RETURNING id`
	return storageErr(r.db.Pool.QueryRow(ctx, q, b.ID, b.Name, b.Description, b.Icon, b.Threshold).Scan(&b.ID))
}

func scanBadge(row pgx.CollectableRow) (model.Badge, error) {
	var b model.Badge
	err := row.Scan(&b.ID, &b.Name, &b.Description, &b.Icon, &b.Threshold)
	return b, err
}
