package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

const productColumns = `
	p.id, p.name, p.description, p.price, p.category_id, COALESCE(c.name, ''),
	p.image_url, p.stock_quantity, p.brand, p.rating, p.review_count,
	p.specifications, p.is_active, p.created_at, p.updated_at`

type productRepository struct {
	db *sql.DB
}

// NewProductRepository creates the relational product adapter
func NewProductRepository(db *sql.DB) repository.RelationalProductStore {
	return &productRepository{db: db}
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	product := &domain.Product{}
	var description, imageURL, brand, specs sql.NullString
	err := row.Scan(
		&product.ID,
		&product.Name,
		&description,
		&product.Price,
		&product.CategoryID,
		&product.CategoryName,
		&imageURL,
		&product.StockQuantity,
		&brand,
		&product.Rating,
		&product.ReviewCount,
		&specs,
		&product.IsActive,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	product.Description = nullString(description)
	product.ImageURL = nullString(imageURL)
	product.Brand = nullString(brand)
	product.Specifications = nullString(specs)
	return product, nil
}

// GetByID retrieves a product by ID, active or not
func (r *productRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.id = $1`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}
	return product, nil
}

// GetAll retrieves every active product
func (r *productRepository) GetAll(ctx context.Context) ([]*domain.Product, error) {
	return r.Search(ctx, repository.ProductFilter{})
}

// Search filters active products by text, category, price range and brand
func (r *productRepository) Search(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	conditions := []string{"p.is_active = TRUE"}
	args := []interface{}{}
	next := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q := strings.TrimSpace(filter.Query); q != "" {
		p := next("%" + q + "%")
		conditions = append(conditions, fmt.Sprintf("(p.name ILIKE %[1]s OR p.description ILIKE %[1]s OR p.brand ILIKE %[1]s)", p))
	}
	if filter.CategoryID != nil {
		conditions = append(conditions, "p.category_id = "+next(*filter.CategoryID))
	}
	if filter.MinPrice != nil {
		conditions = append(conditions, "p.price >= "+next(*filter.MinPrice))
	}
	if filter.MaxPrice != nil {
		conditions = append(conditions, "p.price <= "+next(*filter.MaxPrice))
	}
	if b := strings.TrimSpace(filter.Brand); b != "" {
		conditions = append(conditions, "p.brand = "+next(b))
	}

	query := `SELECT` + productColumns + `
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY p.created_at DESC, p.id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

// Add inserts a product and returns it with its generated ID
func (r *productRepository) Add(ctx context.Context, product *domain.Product) (*domain.Product, error) {
	query := `
		INSERT INTO products (name, description, price, category_id, image_url, stock_quantity,
			brand, rating, review_count, specifications, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	now := time.Now().UTC()
	saved := *product
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	err := r.db.QueryRowContext(
		ctx,
		query,
		saved.Name,
		saved.Description,
		saved.Price,
		saved.CategoryID,
		saved.ImageURL,
		saved.StockQuantity,
		saved.Brand,
		saved.Rating,
		saved.ReviewCount,
		saved.Specifications,
		saved.IsActive,
		saved.CreatedAt,
		saved.UpdatedAt,
	).Scan(&saved.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	return &saved, nil
}

// Update overwrites an existing product
func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	query := `
		UPDATE products
		SET name = $2, description = $3, price = $4, category_id = $5, image_url = $6,
		    stock_quantity = $7, brand = $8, rating = $9, review_count = $10, specifications = $11,
		    is_active = $12, updated_at = $13
		WHERE id = $1
	`

	product.UpdatedAt = time.Now().UTC()
	result, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Description,
		product.Price,
		product.CategoryID,
		product.ImageURL,
		product.StockQuantity,
		product.Brand,
		product.Rating,
		product.ReviewCount,
		product.Specifications,
		product.IsActive,
		product.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrProductNotFound
	}

	return nil
}

// Delete soft-deletes a product by clearing its active flag
func (r *productRepository) Delete(ctx context.Context, id int64) (bool, error) {
	query := `UPDATE products SET is_active = FALSE, updated_at = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("failed to delete product: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}
