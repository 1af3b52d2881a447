package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk/internal/entities"
)

// UsageRepository keeps per-day, per-channel message counters.
type UsageRepository struct {
	db  *pgxpool.Pool
	now func() time.Time
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db, now: time.Now}
}

func (r *UsageRepository) IncrementUsage(ctx context.Context, channel entities.Channel, received, sent int) error {
	today := r.now().UTC().Format("2006-01-02")
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_usage (date, channel, messages_received, messages_sent)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (date, channel)
		DO UPDATE SET messages_received = message_usage.messages_received + EXCLUDED.messages_received,
		              messages_sent = message_usage.messages_sent + EXCLUDED.messages_sent
	`, today, channel, received, sent)
	return err
}

// UsageHistory returns the last days of counters, oldest first.
func (r *UsageRepository) UsageHistory(ctx context.Context, days int) ([]entities.DailyUsage, error) {
	startDate := r.now().UTC().AddDate(0, 0, -days).Format("2006-01-02")
	rows, err := r.db.Query(ctx, `
		SELECT date, channel, messages_received, messages_sent
		FROM message_usage
		WHERE date >= $1
		ORDER BY date ASC, channel ASC
	`, startDate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	usage := []entities.DailyUsage{}
	for rows.Next() {
		var u entities.DailyUsage
		if err := rows.Scan(&u.Date, &u.Channel, &u.MessagesReceived, &u.MessagesSent); err != nil {
			return nil, err
		}
		usage = append(usage, u)
	}
	return usage, rows.Err()
}
