package domain

import (
	"strconv"
	"time"
)

// EntityType names an entity kind that can live in both stores.
type EntityType string

const (
	EntityProduct EntityType = "product"
	EntityCart    EntityType = "cart"
	EntityAddress EntityType = "address"
)

// IdentityLink records that a relational row and a document are the same
// logical entity.
type IdentityLink struct {
	EntityType   EntityType `json:"entity_type" db:"entity_type"`
	RelationalID int64      `json:"relational_id" db:"relational_id"`
	DocumentID   string     `json:"document_id" db:"document_id"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
}

// ParseRelationalID reports whether id is a relational (integer) id.
func ParseRelationalID(id string) (int64, bool) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// FormatRelationalID renders a relational id as an opaque string id.
func FormatRelationalID(id int64) string {
	return strconv.FormatInt(id, 10)
}
