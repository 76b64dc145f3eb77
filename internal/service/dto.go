package service

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"storefront/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProductDTO is the store-independent product shape handed to consumers.
type ProductDTO struct {
	ID             string          `json:"id"`
	RelationalID   *int64          `json:"relational_id,omitempty"`
	DocumentID     string          `json:"document_id,omitempty"`
	Name           string          `json:"name"`
	Description    string          `json:"description"`
	Price          decimal.Decimal `json:"price"`
	CategoryID     int64           `json:"category_id"`
	CategoryName   string          `json:"category_name"`
	ImageURL       string          `json:"image_url"`
	StockQuantity  int             `json:"stock_quantity"`
	Brand          string          `json:"brand"`
	Rating         decimal.Decimal `json:"rating"`
	ReviewCount    int             `json:"review_count"`
	Specifications string          `json:"specifications,omitempty"`
	IsActive       bool            `json:"is_active"`
	IsAvailable    bool            `json:"is_available"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type CartItemDTO struct {
	ProductID     string          `json:"product_id"`
	ProductName   string          `json:"product_name"`
	Price         decimal.Decimal `json:"price"`
	Quantity      int             `json:"quantity"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	ImageURL      string          `json:"image_url"`
	Brand         string          `json:"brand"`
	StockQuantity int             `json:"stock_quantity"`
	AddedAt       time.Time       `json:"added_at"`
}

// CartDTO totals are always recomputed from Items.
type CartDTO struct {
	ID           string          `json:"id,omitempty"`
	RelationalID *int64          `json:"relational_id,omitempty"`
	DocumentID   string          `json:"document_id,omitempty"`
	UserID       string          `json:"user_id"`
	Items        []CartItemDTO   `json:"items"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TotalItems   int             `json:"total_items"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

type AddressDTO struct {
	ID           string    `json:"id"`
	RelationalID *int64    `json:"relational_id,omitempty"`
	DocumentID   string    `json:"document_id,omitempty"`
	UserID       string    `json:"user_id"`
	AddressLine1 string    `json:"address_line1"`
	AddressLine2 string    `json:"address_line2"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	PostalCode   string    `json:"postal_code"`
	Country      string    `json:"country"`
	IsDefault    bool      `json:"is_default"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func int64Ptr(v int64) *int64 {
	return &v
}

func productFromRelational(p *domain.Product) ProductDTO {
	return ProductDTO{
		ID:             domain.FormatRelationalID(p.ID),
		RelationalID:   int64Ptr(p.ID),
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		CategoryID:     p.CategoryID,
		CategoryName:   p.CategoryName,
		ImageURL:       p.ImageURL,
		StockQuantity:  p.StockQuantity,
		Brand:          p.Brand,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		Specifications: p.Specifications,
		IsActive:       p.IsActive,
		IsAvailable:    p.IsActive && p.StockQuantity > 0,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

func productFromDocument(p *domain.ProductDocument) ProductDTO {
	return ProductDTO{
		ID:             p.ID,
		DocumentID:     p.ID,
		Name:           p.Name,
		Description:    p.Description,
		Price:          p.Price,
		CategoryID:     p.Category.ID,
		CategoryName:   p.Category.Name,
		ImageURL:       p.ImageURL,
		StockQuantity:  p.StockQuantity,
		Brand:          p.Brand,
		Rating:         p.Rating,
		ReviewCount:    p.ReviewCount,
		Specifications: specificationsFromDocument(p),
		IsActive:       p.IsActive,
		IsAvailable:    p.IsActive && p.StockQuantity > 0,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// productDocumentFrom snapshots a relational product into its document shape.
func productDocumentFrom(p *domain.Product, documentID string) *domain.ProductDocument {
	return &domain.ProductDocument{
		ID:                 documentID,
		Name:               p.Name,
		Description:        p.Description,
		Price:              p.Price,
		Category:           domain.CategoryInfo{ID: p.CategoryID, Name: p.CategoryName},
		ImageURL:           p.ImageURL,
		StockQuantity:      p.StockQuantity,
		Brand:              p.Brand,
		Rating:             p.Rating,
		ReviewCount:        p.ReviewCount,
		Specifications:     specificationsToDocument(p.Specifications),
		SpecificationsJSON: p.Specifications,
		IsActive:           p.IsActive,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
}

// specificationsToDocument parses a JSON object into an ordered document.
// Anything that is not a single JSON object yields nil.
func specificationsToDocument(specs string) bson.D {
	dec := json.NewDecoder(strings.NewReader(specs))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil || tok != json.Delim('{') {
		return nil
	}
	doc, err := decodeObject(dec)
	if err != nil {
		return nil
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil
	}
	return doc
}

func decodeObject(dec *json.Decoder) (bson.D, error) {
	doc := bson.D{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected object key %v", tok)
		}
		value, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		doc = append(doc, bson.E{Key: key, Value: value})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeValue(dec *json.Decoder) (interface{}, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return decodeObject(dec)
		}
		arr := bson.A{}
		for dec.More() {
			item, err := decodeValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, item)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	case json.Number:
		return numberValue(v), nil
	default:
		return v, nil
	}
}

// numberValue stores integers that fit in int64 as int64 and every other
// number as Decimal128, which keeps the written digits.
func numberValue(n json.Number) interface{} {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if d, err := primitive.ParseDecimal128(n.String()); err == nil {
		return d
	}
	f, _ := n.Float64()
	return f
}

func specificationsFromDocument(p *domain.ProductDocument) string {
	if p.SpecificationsJSON != "" || len(p.Specifications) == 0 {
		return p.SpecificationsJSON
	}
	out, err := bson.MarshalExtJSON(p.Specifications, false, false)
	if err != nil {
		return ""
	}
	return string(out)
}

func cartItemDTO(productID string, name string, price decimal.Decimal, quantity int, imageURL, brand string, stock int, addedAt time.Time) CartItemDTO {
	return CartItemDTO{
		ProductID:     productID,
		ProductName:   name,
		Price:         price,
		Quantity:      quantity,
		Subtotal:      price.Mul(decimal.NewFromInt(int64(quantity))),
		ImageURL:      imageURL,
		Brand:         brand,
		StockQuantity: stock,
		AddedAt:       addedAt,
	}
}

func withTotals(cart CartDTO) CartDTO {
	total := decimal.Zero
	count := 0
	for _, item := range cart.Items {
		total = total.Add(item.Subtotal)
		count += item.Quantity
	}
	cart.TotalAmount = total
	cart.TotalItems = count
	return cart
}

func cartFromRelational(c *domain.Cart) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemDTO(domain.FormatRelationalID(item.ProductID), item.ProductName,
			item.Price, item.Quantity, item.ImageURL, item.Brand, item.StockQuantity, item.AddedAt))
	}
	return withTotals(CartDTO{
		ID:           domain.FormatRelationalID(c.ID),
		RelationalID: int64Ptr(c.ID),
		UserID:       domain.FormatRelationalID(c.UserID),
		Items:        items,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	})
}

// cartFromDocument ignores the persisted totals and recomputes them.
func cartFromDocument(c *domain.CartDocument) CartDTO {
	items := make([]CartItemDTO, 0, len(c.Items))
	for _, item := range c.Items {
		items = append(items, cartItemDTO(item.ProductID, item.ProductName,
			item.Price, item.Quantity, item.ImageURL, item.Brand, item.StockQuantity, item.AddedAt))
	}
	return withTotals(CartDTO{
		ID:         c.ID,
		DocumentID: c.ID,
		UserID:     c.UserID,
		Items:      items,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	})
}

func emptyCart(owner string) CartDTO {
	return withTotals(CartDTO{UserID: owner, Items: []CartItemDTO{}})
}

func addressFromRelational(a *domain.Address) AddressDTO {
	return AddressDTO{
		ID:           domain.FormatRelationalID(a.ID),
		RelationalID: int64Ptr(a.ID),
		UserID:       domain.FormatRelationalID(a.UserID),
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func addressFromDocument(a *domain.AddressDocument) AddressDTO {
	return AddressDTO{
		ID:           a.ID,
		DocumentID:   a.ID,
		UserID:       a.UserID,
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func addressDocumentFrom(a *domain.Address, documentID string) *domain.AddressDocument {
	return &domain.AddressDocument{
		ID:           documentID,
		UserID:       domain.FormatRelationalID(a.UserID),
		AddressLine1: a.AddressLine1,
		AddressLine2: a.AddressLine2,
		City:         a.City,
		State:        a.State,
		PostalCode:   a.PostalCode,
		Country:      a.Country,
		IsDefault:    a.IsDefault,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}
