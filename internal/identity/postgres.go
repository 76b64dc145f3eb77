package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"storefront/internal/domain"
)

type postgresMapper struct {
	db *sql.DB
}

// NewPostgresMapper stores links in the identity_links table. Uniqueness of
// both sides is enforced by the table's constraints, so concurrent callers
// need no in-process locking.
func NewPostgresMapper(db *sql.DB) Directory {
	return &postgresMapper{db: db}
}

func (m *postgresMapper) Link(ctx context.Context, entity domain.EntityType, relationalID int64, documentID string) error {
	query := `
		INSERT INTO identity_links (entity_type, relational_id, document_id, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT DO NOTHING
	`

	result, err := m.db.ExecContext(ctx, query, entity, relationalID, documentID)
	if err != nil {
		return fmt.Errorf("failed to insert identity link: %w", err)
	}

	inserted, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if inserted == 1 {
		return nil
	}

	// Nothing inserted: either the same pair already exists or one side is
	// taken by another link.
	existing, err := m.ResolveDocumentID(ctx, entity, relationalID)
	if errors.Is(err, ErrLinkNotFound) {
		return ErrLinkConflict
	}
	if err != nil {
		return err
	}
	if existing != documentID {
		return ErrLinkConflict
	}
	return nil
}

func (m *postgresMapper) ResolveDocumentID(ctx context.Context, entity domain.EntityType, relationalID int64) (string, error) {
	var documentID string
	err := m.db.QueryRowContext(ctx,
		`SELECT document_id FROM identity_links WHERE entity_type = $1 AND relational_id = $2`,
		entity, relationalID,
	).Scan(&documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrLinkNotFound
		}
		return "", fmt.Errorf("failed to resolve document id: %w", err)
	}
	return documentID, nil
}

func (m *postgresMapper) ResolveRelationalID(ctx context.Context, entity domain.EntityType, documentID string) (int64, error) {
	var relationalID int64
	err := m.db.QueryRowContext(ctx,
		`SELECT relational_id FROM identity_links WHERE entity_type = $1 AND document_id = $2`,
		entity, documentID,
	).Scan(&relationalID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrLinkNotFound
		}
		return 0, fmt.Errorf("failed to resolve relational id: %w", err)
	}
	return relationalID, nil
}

func (m *postgresMapper) Links(ctx context.Context, entity domain.EntityType, limit int64) ([]domain.IdentityLink, error) {
	var rowLimit interface{}
	if limit > 0 {
		rowLimit = limit
	}

	rows, err := m.db.QueryContext(ctx, `
		SELECT entity_type, relational_id, document_id, created_at
		FROM identity_links
		WHERE entity_type = $1
		ORDER BY created_at DESC, relational_id DESC
		LIMIT $2
	`, entity, rowLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to list identity links: %w", err)
	}
	defer rows.Close()

	links := []domain.IdentityLink{}
	for rows.Next() {
		var link domain.IdentityLink
		if err := rows.Scan(&link.EntityType, &link.RelationalID, &link.DocumentID, &link.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan identity link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}
