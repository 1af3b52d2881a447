package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk/internal/entities"
)

type PromotionRepository struct {
	db *pgxpool.Pool
}

func NewPromotionRepository(db *pgxpool.Pool) *PromotionRepository {
	return &PromotionRepository{db: db}
}

const promotionColumns = "id, code, title, description, discount, valid_until, active, created_at"

func (r *PromotionRepository) query(ctx context.Context, sql string, args ...any) ([]entities.Promotion, error) {
	rows, err := r.db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.Promotion{}
	for rows.Next() {
		var p entities.Promotion
		if err := rows.Scan(&p.ID, &p.Code, &p.Title, &p.Description, &p.Discount, &p.ValidUntil, &p.Active, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListActive returns active campaigns that have not expired at now.
func (r *PromotionRepository) ListActive(ctx context.Context, now time.Time) ([]entities.Promotion, error) {
	return r.query(ctx, `
		SELECT `+promotionColumns+` FROM promotions
		WHERE active AND (valid_until IS NULL OR valid_until > $1)
		ORDER BY created_at DESC
	`, now)
}

func (r *PromotionRepository) List(ctx context.Context) ([]entities.Promotion, error) {
	return r.query(ctx, "SELECT "+promotionColumns+" FROM promotions ORDER BY created_at DESC")
}

func (r *PromotionRepository) Create(ctx context.Context, p *entities.Promotion) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO promotions (code, title, description, discount, valid_until, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, p.Code, p.Title, p.Description, p.Discount, p.ValidUntil, p.Active).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert promotion: %w", err)
	}
	return nil
}

func (r *PromotionRepository) Update(ctx context.Context, p *entities.Promotion) error {
	err := r.db.QueryRow(ctx, `
		UPDATE promotions SET code = $2, title = $3, description = $4, discount = $5, valid_until = $6, active = $7
		WHERE id = $1
		RETURNING created_at
	`, p.ID, p.Code, p.Title, p.Description, p.Discount, p.ValidUntil, p.Active).Scan(&p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.ErrNotFound
	}
	return err
}

func (r *PromotionRepository) Delete(ctx context.Context, id int) error {
	tag, err := r.db.Exec(ctx, "DELETE FROM promotions WHERE id = $1", id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}
