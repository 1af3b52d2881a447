package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk/internal/entities"
)

type DeadLetterRepository struct {
	db *pgxpool.Pool
}

func NewDeadLetterRepository(db *pgxpool.Pool) *DeadLetterRepository {
	return &DeadLetterRepository{db: db}
}

const deadLetterColumns = "id, source, payload, error, attempts, created_at, replayed_at"

func scanDeadLetter(row pgx.Row) (*entities.DeadLetter, error) {
	var dl entities.DeadLetter
	var payload []byte
	if err := row.Scan(&dl.ID, &dl.Source, &payload, &dl.Error, &dl.Attempts, &dl.CreatedAt, &dl.ReplayedAt); err != nil {
		return nil, err
	}
	dl.Payload = payload
	return &dl, nil
}

func (r *DeadLetterRepository) Store(ctx context.Context, dl *entities.DeadLetter) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO dead_letters (source, payload, error, attempts)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, dl.Source, []byte(dl.Payload), dl.Error, dl.Attempts).Scan(&dl.ID, &dl.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert dead letter: %w", err)
	}
	return nil
}

func (r *DeadLetterRepository) List(ctx context.Context, limit int) ([]entities.DeadLetter, error) {
	rows, err := r.db.Query(ctx, "SELECT "+deadLetterColumns+" FROM dead_letters ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []entities.DeadLetter{}
	for rows.Next() {
		dl, err := scanDeadLetter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *dl)
	}
	return out, rows.Err()
}

func (r *DeadLetterRepository) GetByID(ctx context.Context, id int) (*entities.DeadLetter, error) {
	dl, err := scanDeadLetter(r.db.QueryRow(ctx, "SELECT "+deadLetterColumns+" FROM dead_letters WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return dl, err
}

func (r *DeadLetterRepository) MarkReplayed(ctx context.Context, id int) error {
	_, err := r.db.Exec(ctx, "UPDATE dead_letters SET replayed_at = NOW() WHERE id = $1", id)
	return err
}
