// Package repository defines the store adapter contracts shared by the
// relational (postgres) and document (mongodb) implementations.
//
// Every adapter generates its own store-native id on Add and never accepts a
// caller supplied one. Adapters only touch their own store.
package repository

import (
	"context"
	"errors"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCategoryNotFound = errors.New("category not found")
	ErrCartNotFound     = errors.New("cart not found")
	ErrAddressNotFound  = errors.New("address not found")

	ErrCategoryAlreadyExists = errors.New("category with this name already exists")
	// ErrDefaultAddressConflict is returned when a store-level uniqueness
	// constraint rejects a second default address for the same owner.
	ErrDefaultAddressConflict = errors.New("owner already has a default address")
)

// ProductFilter narrows a product search. Nil pointers and empty strings
// disable the corresponding criterion.
type ProductFilter struct {
	Query      string
	CategoryID *int64
	MinPrice   *decimal.Decimal
	MaxPrice   *decimal.Decimal
	Brand      string
}

// RelationalProductStore is the product adapter for the relational store.
type RelationalProductStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetAll(ctx context.Context) ([]*domain.Product, error)
	Search(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	Add(ctx context.Context, product *domain.Product) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// DocumentProductStore is the product adapter for the document store.
type DocumentProductStore interface {
	GetByID(ctx context.Context, id string) (*domain.ProductDocument, error)
	GetAll(ctx context.Context) ([]*domain.ProductDocument, error)
	Search(ctx context.Context, filter ProductFilter) ([]*domain.ProductDocument, error)
	Add(ctx context.Context, product *domain.ProductDocument) (*domain.ProductDocument, error)
	Update(ctx context.Context, product *domain.ProductDocument) error
	Delete(ctx context.Context, id string) (bool, error)
}

// CategoryStore gives access to relational categories.
type CategoryStore interface {
	Create(ctx context.Context, category *domain.Category) (*domain.Category, error)
	List(ctx context.Context) ([]*domain.Category, error)
	FindByID(ctx context.Context, id int64) (*domain.Category, error)
}

// RelationalCartStore is the cart adapter for the relational store.
type RelationalCartStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Cart, error)
	GetByOwner(ctx context.Context, userID int64) (*domain.Cart, error)
	Add(ctx context.Context, cart *domain.Cart) (*domain.Cart, error)
	// Update replaces the cart's items with cart.Items.
	Update(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, id int64) (bool, error)
}

// DocumentCartStore is the cart adapter for the document store.
type DocumentCartStore interface {
	GetByID(ctx context.Context, id string) (*domain.CartDocument, error)
	GetByOwner(ctx context.Context, userID string) (*domain.CartDocument, error)
	Add(ctx context.Context, cart *domain.CartDocument) (*domain.CartDocument, error)
	Update(ctx context.Context, cart *domain.CartDocument) error
	Delete(ctx context.Context, id string) (bool, error)
}

// RelationalAddressStore is the address adapter for the relational store.
type RelationalAddressStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Address, error)
	GetByOwner(ctx context.Context, userID int64) ([]*domain.Address, error)
	Add(ctx context.Context, address *domain.Address) (*domain.Address, error)
	Update(ctx context.Context, address *domain.Address) error
	Delete(ctx context.Context, id int64) (bool, error)
	// UnsetDefault clears IsDefault on every address of the owner except
	// exceptID (0 means no exception).
	UnsetDefault(ctx context.Context, userID int64, exceptID int64) error
}

// DocumentAddressStore is the address adapter for the document store.
type DocumentAddressStore interface {
	GetByID(ctx context.Context, id string) (*domain.AddressDocument, error)
	GetByOwner(ctx context.Context, userID string) ([]*domain.AddressDocument, error)
	Add(ctx context.Context, address *domain.AddressDocument) (*domain.AddressDocument, error)
	Update(ctx context.Context, address *domain.AddressDocument) error
	Delete(ctx context.Context, id string) (bool, error)
	// UnsetDefault clears IsDefault on every address of the owner except
	// exceptID ("" means no exception).
	UnsetDefault(ctx context.Context, userID string, exceptID string) error
}
