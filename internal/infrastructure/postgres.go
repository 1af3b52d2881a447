package infrastructure

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

type PostgresClient struct {
	Pool *pgxpool.Pool
}

func NewPostgresClient(ctx context.Context, connString string, maxConns int32) (*PostgresClient, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse connection string: %w", err)
	}

	if maxConns > 0 {
		config.MaxConns = maxConns
	}
	config.MinConns = 1
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &PostgresClient{Pool: pool}, nil
}

// schema is applied in order; every statement is idempotent.
var schema = []struct {
	name string
	sql  string
}{
	{"customers", `
		CREATE TABLE IF NOT EXISTS customers (
			id UUID PRIMARY KEY,
			phone VARCHAR(32),
			email VARCHAR(255),
			name VARCHAR(255) NOT NULL DEFAULT '',
			external_id BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS customers_phone_key ON customers (phone) WHERE phone IS NOT NULL;
		CREATE UNIQUE INDEX IF NOT EXISTS customers_email_key ON customers (lower(email)) WHERE email IS NOT NULL;
	`},
	{"conversations", `
		CREATE TABLE IF NOT EXISTS conversations (
			id UUID PRIMARY KEY,
			customer_id UUID NOT NULL REFERENCES customers(id),
			channel VARCHAR(20) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			thread_id VARCHAR(100),
			window_key VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE UNIQUE INDEX IF NOT EXISTS conversations_window_key ON conversations (customer_id, channel, window_key) WHERE status = 'active';
		CREATE INDEX IF NOT EXISTS conversations_active_idx ON conversations (customer_id, channel, updated_at DESC) WHERE status = 'active';
	`},
	{"messages", `
		CREATE TABLE IF NOT EXISTS messages (
			id UUID PRIMARY KEY,
			conversation_id UUID NOT NULL REFERENCES conversations(id),
			role VARCHAR(20) NOT NULL,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			external_id VARCHAR(128),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages (conversation_id, created_at);
		CREATE INDEX IF NOT EXISTS messages_external_idx ON messages (external_id) WHERE external_id IS NOT NULL;
	`},
	{"return_requests", `
		CREATE TABLE IF NOT EXISTS return_requests (
			id VARCHAR(64) PRIMARY KEY,
			order_id BIGINT NOT NULL,
			email VARCHAR(255) NOT NULL,
			reason TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			has_photos BOOLEAN NOT NULL DEFAULT FALSE,
			status VARCHAR(20) NOT NULL DEFAULT 'requested',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"promotions", `
		CREATE TABLE IF NOT EXISTS promotions (
			id SERIAL PRIMARY KEY,
			code VARCHAR(50) NOT NULL DEFAULT '',
			title VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			discount VARCHAR(50) NOT NULL DEFAULT '',
			valid_until TIMESTAMPTZ,
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"dead_letters", `
		CREATE TABLE IF NOT EXISTS dead_letters (
			id SERIAL PRIMARY KEY,
			source VARCHAR(50) NOT NULL,
			payload JSONB NOT NULL,
			error TEXT NOT NULL,
			attempts INT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			replayed_at TIMESTAMPTZ
		);
	`},
	{"users", `
		CREATE TABLE IF NOT EXISTS users (
			id SERIAL PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			password_hash VARCHAR(255) NOT NULL,
			role VARCHAR(20) NOT NULL DEFAULT 'agent',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"bot_config", `
		CREATE TABLE IF NOT EXISTS bot_config (
			key VARCHAR(50) PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"agent_threads", `
		CREATE TABLE IF NOT EXISTS agent_threads (
			id VARCHAR(100) PRIMARY KEY,
			transcript JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`},
	{"message_usage", `
		CREATE TABLE IF NOT EXISTS message_usage (
			date DATE NOT NULL,
			channel VARCHAR(20) NOT NULL,
			messages_received INT NOT NULL DEFAULT 0,
			messages_sent INT NOT NULL DEFAULT 0,
			PRIMARY KEY (date, channel)
		);
	`},
}

func (p *PostgresClient) Migrate(ctx context.Context) error {
	for _, step := range schema {
		if _, err := p.Pool.Exec(ctx, step.sql); err != nil {
			return fmt.Errorf("create %s table: %w", step.name, err)
		}
	}
	log.Info().Int("tables", len(schema)).Msg("database schema up to date")
	return nil
}

func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.Pool.Ping(ctx)
}

func (p *PostgresClient) Close() {
	p.Pool.Close()
}
