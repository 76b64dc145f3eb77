// Package identity records which relational row and which document are the
// same logical entity.
package identity

import (
	"context"
	"errors"

	"storefront/internal/domain"
)

var (
	ErrLinkNotFound = errors.New("identity link not found")
	// ErrLinkConflict means one side of the pair is already linked to a
	// different counterpart.
	ErrLinkConflict = errors.New("identity link conflicts with an existing link")
)

// Mapper translates ids between the relational and the document id spaces.
// Link is idempotent: linking the same pair twice is not an error.
type Mapper interface {
	Link(ctx context.Context, entity domain.EntityType, relationalID int64, documentID string) error
	ResolveDocumentID(ctx context.Context, entity domain.EntityType, relationalID int64) (string, error)
	ResolveRelationalID(ctx context.Context, entity domain.EntityType, documentID string) (int64, error)
}

// Directory is a Mapper whose links can also be listed.
type Directory interface {
	Mapper
	// Links returns the newest links of an entity type first. A limit of
	// zero or less returns all of them.
	Links(ctx context.Context, entity domain.EntityType, limit int64) ([]domain.IdentityLink, error)
}
