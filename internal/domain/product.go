package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
)

// Product is the relational (system-of-record) shape of a catalog item.
type Product struct {
	ID             int64           `json:"id" db:"id"`
	Name           string          `json:"name" db:"name"`
	Description    string          `json:"description" db:"description"`
	Price          decimal.Decimal `json:"price" db:"price"`
	CategoryID     int64           `json:"category_id" db:"category_id"`
	CategoryName   string          `json:"category_name" db:"category_name"`
	ImageURL       string          `json:"image_url" db:"image_url"`
	StockQuantity  int             `json:"stock_quantity" db:"stock_quantity"`
	Brand          string          `json:"brand" db:"brand"`
	Rating         decimal.Decimal `json:"rating" db:"rating"`
	ReviewCount    int             `json:"review_count" db:"review_count"`
	Specifications string          `json:"specifications" db:"specifications"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// CategoryInfo is the category reference embedded in product documents.
type CategoryInfo struct {
	ID   int64  `bson:"id" json:"id"`
	Name string `bson:"name" json:"name"`
}

// ProductDocument is the denormalized document-store shape of a catalog item.
// SpecificationsJSON is the text as written; Specifications is its parsed,
// queryable form with key order kept. Documents written before
// SpecificationsJSON existed carry only the parsed form.
type ProductDocument struct {
	ID                 string          `bson:"_id,omitempty"`
	Name               string          `bson:"name"`
	Description        string          `bson:"description"`
	Price              decimal.Decimal `bson:"price"`
	Category           CategoryInfo    `bson:"category"`
	ImageURL           string          `bson:"imageUrl"`
	StockQuantity      int             `bson:"stockQuantity"`
	Brand              string          `bson:"brand"`
	Rating             decimal.Decimal `bson:"rating"`
	ReviewCount        int             `bson:"reviewCount"`
	Specifications     bson.D          `bson:"specifications,omitempty"`
	SpecificationsJSON string          `bson:"specificationsJson,omitempty"`
	IsActive           bool            `bson:"isActive"`
	CreatedAt          time.Time       `bson:"createdAt"`
	UpdatedAt          time.Time       `bson:"updatedAt"`
}

// Category represents a product category
type Category struct {
	ID          int64     `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
