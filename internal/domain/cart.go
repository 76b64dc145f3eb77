package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cart is the relational cart row plus its item rows.
type Cart struct {
	ID        int64
	UserID    int64
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem is a line in a relational cart. The product fields are a display
// snapshot taken when the line was added, not a live join.
type CartItem struct {
	ID            int64
	ProductID     int64
	ProductName   string
	Price         decimal.Decimal
	Brand         string
	ImageURL      string
	StockQuantity int
	Quantity      int
	AddedAt       time.Time
}

// CartDocument is the document-store cart: one active document per owner.
type CartDocument struct {
	ID          string             `bson:"_id,omitempty"`
	UserID      string             `bson:"userId"`
	Items       []CartItemDocument `bson:"items"`
	TotalAmount decimal.Decimal    `bson:"totalAmount"`
	TotalItems  int                `bson:"totalItems"`
	IsActive    bool               `bson:"isActive"`
	CreatedAt   time.Time          `bson:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt"`
}

// CartItemDocument is an embedded cart line. ProductID is in whatever id space
// the product was known by when the line was written.
type CartItemDocument struct {
	ProductID     string          `bson:"productId"`
	ProductName   string          `bson:"productName"`
	Price         decimal.Decimal `bson:"price"`
	Quantity      int             `bson:"quantity"`
	ImageURL      string          `bson:"imageUrl"`
	Brand         string          `bson:"brand"`
	StockQuantity int             `bson:"stockQuantity"`
	AddedAt       time.Time       `bson:"addedAt"`
}

// Subtotal returns price × quantity for the line.
func (i CartItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Subtotal returns price × quantity for the line.
func (i CartItemDocument) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Recalculate refreshes the persisted totals from the current items.
func (c *CartDocument) Recalculate() {
	total := decimal.Zero
	count := 0
	for _, item := range c.Items {
		total = total.Add(item.Subtotal())
		count += item.Quantity
	}
	c.TotalAmount = total
	c.TotalItems = count
}
