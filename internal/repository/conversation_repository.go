package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk/internal/entities"
	"supportdesk/internal/interfaces"
)

type ConversationRepository struct {
	db *pgxpool.Pool
}

func NewConversationRepository(db *pgxpool.Pool) *ConversationRepository {
	return &ConversationRepository{db: db}
}

const conversationColumns = "id, customer_id, channel, status, COALESCE(thread_id, ''), window_key, created_at, updated_at"

func scanConversation(row pgx.Row) (*entities.Conversation, error) {
	var c entities.Conversation
	err := row.Scan(&c.ID, &c.CustomerID, &c.Channel, &c.Status, &c.ThreadID, &c.WindowKey, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetByID returns entities.ErrNotFound for unknown ids.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, "SELECT "+conversationColumns+" FROM conversations WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, entities.ErrNotFound
	}
	return c, err
}

func (r *ConversationRepository) FindActive(ctx context.Context, customerID string, channel entities.Channel, updatedSince time.Time) (*entities.Conversation, error) {
	c, err := scanConversation(r.db.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations
		WHERE customer_id = $1 AND channel = $2 AND status = 'active' AND updated_at >= $3
		ORDER BY updated_at DESC
		LIMIT 1
	`, customerID, channel, updatedSince))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return c, err
}

func (r *ConversationRepository) Create(ctx context.Context, c *entities.Conversation) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO conversations (id, customer_id, channel, status, thread_id, window_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, c.ID, c.CustomerID, c.Channel, c.Status, nullIfEmpty(c.ThreadID), c.WindowKey, c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return entities.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert conversation: %w", err)
	}
	return nil
}

func (r *ConversationRepository) UpdateThreadID(ctx context.Context, id, threadID string) error {
	return r.exec(ctx, "UPDATE conversations SET thread_id = $2 WHERE id = $1", id, threadID)
}

func (r *ConversationRepository) UpdateStatus(ctx context.Context, id string, status entities.ConversationStatus) error {
	return r.exec(ctx, "UPDATE conversations SET status = $2, updated_at = NOW() WHERE id = $1", id, status)
}

func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	return r.exec(ctx, "UPDATE conversations SET updated_at = NOW() WHERE id = $1", id)
}

func (r *ConversationRepository) exec(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}

func (r *ConversationRepository) List(ctx context.Context, f interfaces.ConversationFilter) ([]entities.Conversation, error) {
	var where []string
	var args []any
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Channel != "" {
		args = append(args, f.Channel)
		where = append(where, fmt.Sprintf("channel = $%d", len(args)))
	}
	query := "SELECT " + conversationColumns + " FROM conversations"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	conversations := []entities.Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	return conversations, rows.Err()
}
