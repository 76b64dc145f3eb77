package service

import "errors"

// Validation errors are returned before any store is touched.
var (
	ErrInvalidQuantity      = errors.New("quantity must be at least 1")
	ErrInsufficientStock    = errors.New("insufficient stock")
	ErrCartItemNotFound     = errors.New("item not found in cart")
	ErrAddressLine1Required = errors.New("address line 1 is required")
	ErrProductNameRequired  = errors.New("product name is required")
	ErrNegativePrice        = errors.New("price must not be negative")
	ErrNegativeStock        = errors.New("stock quantity must not be negative")
	ErrCategoryRequired     = errors.New("category is required")
	ErrOwnerRequired        = errors.New("owner id is required")
)

// errMissingDocument is what a secondary write reports when the linked
// document no longer exists.
var errMissingDocument = errors.New("linked document not found")
