package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// addressesOneDefault is the partial unique index allowing one default per user.
const addressesOneDefault = "addresses_one_default_per_user"

const addressColumns = `id, user_id, address_line1, address_line2, city, state, postal_code,
	country, is_default, created_at, updated_at`

type addressRepository struct {
	db *sql.DB
}

// NewAddressRepository creates the relational address adapter
func NewAddressRepository(db *sql.DB) repository.RelationalAddressStore {
	return &addressRepository{db: db}
}

func scanAddress(row rowScanner) (*domain.Address, error) {
	address := &domain.Address{}
	var line2, city, state, postal, country sql.NullString
	err := row.Scan(
		&address.ID,
		&address.UserID,
		&address.AddressLine1,
		&line2,
		&city,
		&state,
		&postal,
		&country,
		&address.IsDefault,
		&address.CreatedAt,
		&address.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	address.AddressLine2 = nullString(line2)
	address.City = nullString(city)
	address.State = nullString(state)
	address.PostalCode = nullString(postal)
	address.Country = nullString(country)
	return address, nil
}

// GetByID retrieves an address by ID
func (r *addressRepository) GetByID(ctx context.Context, id int64) (*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE id = $1`

	address, err := scanAddress(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to find address by ID: %w", err)
	}
	return address, nil
}

// GetByOwner lists a user's addresses, newest first
func (r *addressRepository) GetByOwner(ctx context.Context, userID int64) ([]*domain.Address, error) {
	query := `SELECT ` + addressColumns + ` FROM addresses WHERE user_id = $1 ORDER BY created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	addresses := []*domain.Address{}
	for rows.Next() {
		address, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, address)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

// Add inserts an address and returns it with its generated ID
func (r *addressRepository) Add(ctx context.Context, address *domain.Address) (*domain.Address, error) {
	query := `
		INSERT INTO addresses (user_id, address_line1, address_line2, city, state, postal_code,
			country, is_default, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	now := time.Now().UTC()
	saved := *address
	saved.CreatedAt = now
	saved.UpdatedAt = now

	err := r.db.QueryRowContext(ctx, query,
		saved.UserID,
		saved.AddressLine1,
		saved.AddressLine2,
		saved.City,
		saved.State,
		saved.PostalCode,
		saved.Country,
		saved.IsDefault,
		saved.CreatedAt,
		saved.UpdatedAt,
	).Scan(&saved.ID)
	if err != nil {
		if isUniqueViolation(err, addressesOneDefault) {
			return nil, repository.ErrDefaultAddressConflict
		}
		return nil, fmt.Errorf("failed to create address: %w", err)
	}

	return &saved, nil
}

// Update overwrites an existing address
func (r *addressRepository) Update(ctx context.Context, address *domain.Address) error {
	query := `
		UPDATE addresses
		SET address_line1 = $2, address_line2 = $3, city = $4, state = $5, postal_code = $6,
		    country = $7, is_default = $8, updated_at = $9
		WHERE id = $1
	`

	address.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(ctx, query,
		address.ID,
		address.AddressLine1,
		address.AddressLine2,
		address.City,
		address.State,
		address.PostalCode,
		address.Country,
		address.IsDefault,
		address.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, addressesOneDefault) {
			return repository.ErrDefaultAddressConflict
		}
		return fmt.Errorf("failed to update address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrAddressNotFound
	}

	return nil
}

// Delete removes an address
func (r *addressRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete address: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// UnsetDefault clears the default flag on the user's other addresses
func (r *addressRepository) UnsetDefault(ctx context.Context, userID int64, exceptID int64) error {
	query := `
		UPDATE addresses
		SET is_default = FALSE, updated_at = $3
		WHERE user_id = $1 AND is_default AND id <> $2
	`

	if _, err := r.db.ExecContext(ctx, query, userID, exceptID, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to unset default addresses: %w", err)
	}
	return nil
}
