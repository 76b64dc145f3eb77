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

type cartRepository struct {
	db *sql.DB
}

// NewCartRepository creates the relational cart adapter
func NewCartRepository(db *sql.DB) repository.RelationalCartStore {
	return &cartRepository{db: db}
}

// GetByID retrieves a cart and its items by cart ID
func (r *cartRepository) GetByID(ctx context.Context, id int64) (*domain.Cart, error) {
	return r.findOne(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE id = $1`, id)
}

// GetByOwner retrieves the cart owned by a user
func (r *cartRepository) GetByOwner(ctx context.Context, userID int64) (*domain.Cart, error) {
	return r.findOne(ctx, `SELECT id, user_id, created_at, updated_at FROM carts WHERE user_id = $1`, userID)
}

func (r *cartRepository) findOne(ctx context.Context, query string, arg interface{}) (*domain.Cart, error) {
	cart := &domain.Cart{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&cart.ID, &cart.UserID, &cart.CreatedAt, &cart.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart: %w", err)
	}

	items, err := r.loadItems(ctx, cart.ID)
	if err != nil {
		return nil, err
	}
	cart.Items = items

	return cart, nil
}

func (r *cartRepository) loadItems(ctx context.Context, cartID int64) ([]domain.CartItem, error) {
	query := `
		SELECT id, product_id, product_name, price, brand, image_url, stock_quantity, quantity, added_at
		FROM cart_items
		WHERE cart_id = $1
		ORDER BY added_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, cartID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart items: %w", err)
	}
	defer rows.Close()

	items := []domain.CartItem{}
	for rows.Next() {
		var item domain.CartItem
		var brand, imageURL sql.NullString
		err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.ProductName,
			&item.Price,
			&brand,
			&imageURL,
			&item.StockQuantity,
			&item.Quantity,
			&item.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.Brand = nullString(brand)
		item.ImageURL = nullString(imageURL)
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// Add inserts a cart with its items in one transaction
func (r *cartRepository) Add(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	saved := *cart
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	err = tx.QueryRowContext(ctx,
		`INSERT INTO carts (user_id, created_at, updated_at) VALUES ($1, $2, $3) RETURNING id`,
		saved.UserID, saved.CreatedAt, saved.UpdatedAt,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create cart: %w", err)
	}

	saved.Items, err = insertItems(ctx, tx, saved.ID, cart.Items)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit cart: %w", err)
	}

	return &saved, nil
}

// Update replaces the cart's items and touches updated_at
func (r *cartRepository) Update(ctx context.Context, cart *domain.Cart) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	cart.UpdatedAt = time.Now().UTC()
	result, err := tx.ExecContext(ctx, `UPDATE carts SET updated_at = $2 WHERE id = $1`, cart.ID, cart.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrCartNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE cart_id = $1`, cart.ID); err != nil {
		return fmt.Errorf("failed to clear cart items: %w", err)
	}

	items, err := insertItems(ctx, tx, cart.ID, cart.Items)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cart: %w", err)
	}
	cart.Items = items

	return nil
}

// Delete removes a cart and, through the foreign key, its items
func (r *cartRepository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM carts WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete cart: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

func insertItems(ctx context.Context, tx *sql.Tx, cartID int64, items []domain.CartItem) ([]domain.CartItem, error) {
	query := `
		INSERT INTO cart_items (cart_id, product_id, product_name, price, brand, image_url,
			stock_quantity, quantity, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	saved := make([]domain.CartItem, 0, len(items))
	for _, item := range items {
		if item.AddedAt.IsZero() {
			item.AddedAt = time.Now().UTC()
		}
		err := tx.QueryRowContext(ctx, query,
			cartID,
			item.ProductID,
			item.ProductName,
			item.Price,
			item.Brand,
			item.ImageURL,
			item.StockQuantity,
			item.Quantity,
			item.AddedAt,
		).Scan(&item.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to insert cart item: %w", err)
		}
		saved = append(saved, item)
	}

	return saved, nil
}
