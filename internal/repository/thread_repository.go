package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ThreadRepository keeps agent transcripts keyed by thread handle.
type ThreadRepository struct {
	db *pgxpool.Pool
}

func NewThreadRepository(db *pgxpool.Pool) *ThreadRepository {
	return &ThreadRepository{db: db}
}

// LoadThread returns nil when the thread is unknown.
func (r *ThreadRepository) LoadThread(ctx context.Context, id string) ([]byte, error) {
	var transcript []byte
	err := r.db.QueryRow(ctx, "SELECT transcript FROM agent_threads WHERE id = $1", id).Scan(&transcript)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return transcript, nil
}

func (r *ThreadRepository) SaveThread(ctx context.Context, id string, transcript []byte) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO agent_threads (id, transcript, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (id) DO UPDATE SET transcript = EXCLUDED.transcript, updated_at = NOW()
	`, id, transcript)
	return err
}
