package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"supportdesk/internal/entities"
)

type CustomerRepository struct {
	db *pgxpool.Pool
}

func NewCustomerRepository(db *pgxpool.Pool) *CustomerRepository {
	return &CustomerRepository{db: db}
}

const customerColumns = "id, COALESCE(phone, ''), COALESCE(email, ''), name, COALESCE(external_id, 0), created_at, updated_at"

func scanCustomer(row pgx.Row) (*entities.Customer, error) {
	var c entities.Customer
	err := row.Scan(&c.ID, &c.Phone, &c.Email, &c.Name, &c.ExternalID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CustomerRepository) GetByID(ctx context.Context, id string) (*entities.Customer, error) {
	return scanCustomer(r.db.QueryRow(ctx, "SELECT "+customerColumns+" FROM customers WHERE id = $1", id))
}

func (r *CustomerRepository) FindByPhone(ctx context.Context, phone string) (*entities.Customer, error) {
	return scanCustomer(r.db.QueryRow(ctx, "SELECT "+customerColumns+" FROM customers WHERE phone = $1", phone))
}

func (r *CustomerRepository) FindByEmail(ctx context.Context, email string) (*entities.Customer, error) {
	return scanCustomer(r.db.QueryRow(ctx, "SELECT "+customerColumns+" FROM customers WHERE lower(email) = lower($1)", email))
}

func (r *CustomerRepository) Create(ctx context.Context, c *entities.Customer) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO customers (id, phone, email, name, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, c.ID, nullIfEmpty(c.Phone), nullIfEmpty(c.Email), c.Name, nullIfZero(c.ExternalID), c.CreatedAt, c.UpdatedAt)
	if isUniqueViolation(err) {
		return entities.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("insert customer: %w", err)
	}
	return nil
}

func (r *CustomerRepository) UpdateEmail(ctx context.Context, id, email string) error {
	tag, err := r.db.Exec(ctx, "UPDATE customers SET email = $2, updated_at = NOW() WHERE id = $1", id, email)
	if isUniqueViolation(err) {
		return entities.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update customer email: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) UpdateExternalID(ctx context.Context, id string, externalID int64) error {
	tag, err := r.db.Exec(ctx, "UPDATE customers SET external_id = $2, updated_at = NOW() WHERE id = $1", id, externalID)
	if err != nil {
		return fmt.Errorf("update customer external id: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entities.ErrNotFound
	}
	return nil
}
