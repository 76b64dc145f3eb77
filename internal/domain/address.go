package domain

import "time"

// Address is the relational shipping address row.
type Address struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	AddressLine1 string    `db:"address_line1"`
	AddressLine2 string    `db:"address_line2"`
	City         string    `db:"city"`
	State        string    `db:"state"`
	PostalCode   string    `db:"postal_code"`
	Country      string    `db:"country"`
	IsDefault    bool      `db:"is_default"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

// AddressDocument is the document-store shipping address.
type AddressDocument struct {
	ID           string    `bson:"_id,omitempty"`
	UserID       string    `bson:"userId"`
	AddressLine1 string    `bson:"addressLine1"`
	AddressLine2 string    `bson:"addressLine2"`
	City         string    `bson:"city"`
	State        string    `bson:"state"`
	PostalCode   string    `bson:"postalCode"`
	Country      string    `bson:"country"`
	IsDefault    bool      `bson:"isDefault"`
	CreatedAt    time.Time `bson:"createdAt"`
	UpdatedAt    time.Time `bson:"updatedAt"`
}
