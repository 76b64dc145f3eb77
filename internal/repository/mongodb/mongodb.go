// Package mongodb implements the document store adapters on the official
// MongoDB driver. Document ids are opaque strings generated from ObjectIDs.
package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	ProductsCollection  = "products"
	CartsCollection     = "carts"
	AddressesCollection = "addresses"
)

func newDocumentID() string {
	return primitive.NewObjectID().Hex()
}

// EnsureIndexes creates the indexes the adapters rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		ProductsCollection: {
			{Keys: bson.D{{Key: "name", Value: "text"}, {Key: "description", Value: "text"}, {Key: "brand", Value: "text"}}},
			{Keys: bson.D{{Key: "category.id", Value: 1}, {Key: "price", Value: 1}, {Key: "brand", Value: 1}}},
		},
		CartsCollection: {
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("one_active_cart_per_user").
					SetPartialFilterExpression(bson.D{{Key: "isActive", Value: true}}),
			},
		},
		AddressesCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
			{
				Keys: bson.D{{Key: "userId", Value: 1}},
				Options: options.Index().
					SetUnique(true).
					SetName("one_default_address_per_user").
					SetPartialFilterExpression(bson.D{{Key: "isDefault", Value: true}}),
			},
		},
	}

	for collection, models := range indexes {
		if _, err := db.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", collection, err)
		}
	}
	return nil
}
