package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"supportdesk/internal/config"
	"supportdesk/internal/infrastructure"
	"supportdesk/internal/repository"
	"supportdesk/internal/tools"
)

// stores groups the Postgres repositories.
type stores struct {
	customers     *repository.CustomerRepository
	conversations *repository.ConversationRepository
	messages      *repository.MessageRepository
	returns       *repository.ReturnRepository
	promotions    *repository.PromotionRepository
	deadLetters   *repository.DeadLetterRepository
	users         *repository.UserRepository
	config        *repository.ConfigRepository
	usage         *repository.UsageRepository
	threads       *repository.ThreadRepository
}

func openDatabase(ctx context.Context, cfg *config.Config) (*infrastructure.PostgresClient, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("database.url is required")
	}
	pg, err := infrastructure.NewPostgresClient(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pg.Migrate(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, nil
}

func newStores(pg *infrastructure.PostgresClient) *stores {
	return &stores{
		customers:     repository.NewCustomerRepository(pg.Pool),
		conversations: repository.NewConversationRepository(pg.Pool),
		messages:      repository.NewMessageRepository(pg.Pool),
		returns:       repository.NewReturnRepository(pg.Pool),
		promotions:    repository.NewPromotionRepository(pg.Pool),
		deadLetters:   repository.NewDeadLetterRepository(pg.Pool),
		users:         repository.NewUserRepository(pg.Pool),
		config:        repository.NewConfigRepository(pg.Pool),
		usage:         repository.NewUsageRepository(pg.Pool),
		threads:       repository.NewThreadRepository(pg.Pool),
	}
}

func newCommerce(cfg *config.Config) *infrastructure.WooCommerceClient {
	if !cfg.WooCommerceEnabled() {
		log.Warn().Msg("WooCommerce credentials missing, store tools will report errors")
	}
	wc := cfg.WooCommerce
	return infrastructure.NewWooCommerceClient(wc.BaseURL, wc.ConsumerKey, wc.ConsumerSecret, wc.Timeout, wc.RetryMax)
}

func newToolRegistry(cfg *config.Config, commerce *infrastructure.WooCommerceClient, s *stores) *tools.Registry {
	return tools.NewToolset(commerce,
		tools.WithReturnStore(s.returns),
		tools.WithPromotionStore(s.promotions),
		tools.WithCategories(cfg.Tools.Categories),
	).Registry()
}
