package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk/internal/entities"
)

type ReturnRepository struct {
	db *pgxpool.Pool
}

func NewReturnRepository(db *pgxpool.Pool) *ReturnRepository {
	return &ReturnRepository{db: db}
}

const returnColumns = "id, order_id, email, reason, description, has_photos, status, created_at, updated_at"

func scanReturn(row pgx.Row) (*entities.ReturnRequest, error) {
	var rr entities.ReturnRequest
	err := row.Scan(&rr.ID, &rr.OrderID, &rr.Email, &rr.Reason, &rr.Description, &rr.HasPhotos, &rr.Status, &rr.CreatedAt, &rr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rr, nil
}

func (r *ReturnRepository) Create(ctx context.Context, rr *entities.ReturnRequest) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO return_requests (id, order_id, email, reason, description, has_photos, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, rr.ID, rr.OrderID, rr.Email, rr.Reason, rr.Description, rr.HasPhotos, rr.Status, rr.CreatedAt, rr.UpdatedAt)
	if isUniqueViolation(err) {
		return entities.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert return request: %w", err)
	}
	return nil
}

func (r *ReturnRepository) GetByID(ctx context.Context, id string) (*entities.ReturnRequest, error) {
	rr, err := scanReturn(r.db.QueryRow(ctx, "SELECT "+returnColumns+" FROM return_requests WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return rr, err
}

// List filters by status when it is non-empty, newest first.
func (r *ReturnRepository) List(ctx context.Context, status entities.ReturnStatus, limit int) ([]entities.ReturnRequest, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+returnColumns+` FROM return_requests
		WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.ReturnRequest{}
	for rows.Next() {
		rr, err := scanReturn(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rr)
	}
	return out, rows.Err()
}

func (r *ReturnRepository) UpdateStatus(ctx context.Context, id string, status entities.ReturnStatus) error {
	tag, err := r.db.Exec(ctx, "UPDATE return_requests SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}
