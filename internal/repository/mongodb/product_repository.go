package mongodb

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type productRepository struct {
	collection *mongo.Collection
}

// NewProductRepository creates the document product adapter
func NewProductRepository(db *mongo.Database) repository.DocumentProductStore {
	return &productRepository{collection: db.Collection(ProductsCollection)}
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.ProductDocument, error) {
	var product domain.ProductDocument
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product document: %w", err)
	}
	return &product, nil
}

func (r *productRepository) GetAll(ctx context.Context) ([]*domain.ProductDocument, error) {
	return r.Search(ctx, repository.ProductFilter{})
}

// Search mirrors the relational search: case-insensitive substring match on
// name, description and brand plus exact filters.
func (r *productRepository) Search(ctx context.Context, filter repository.ProductFilter) ([]*domain.ProductDocument, error) {
	query := bson.M{"isActive": true}

	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(q), Options: "i"}
		query["$or"] = bson.A{
			bson.M{"name": pattern},
			bson.M{"description": pattern},
			bson.M{"brand": pattern},
		}
	}
	if filter.CategoryID != nil {
		query["category.id"] = *filter.CategoryID
	}
	price := bson.M{}
	if filter.MinPrice != nil {
		price["$gte"] = *filter.MinPrice
	}
	if filter.MaxPrice != nil {
		price["$lte"] = *filter.MaxPrice
	}
	if len(price) > 0 {
		query["price"] = price
	}
	if b := strings.TrimSpace(filter.Brand); b != "" {
		query["brand"] = b
	}

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to search product documents: %w", err)
	}
	defer cursor.Close(ctx)

	products := []*domain.ProductDocument{}
	if err := cursor.All(ctx, &products); err != nil {
		return nil, fmt.Errorf("failed to decode product documents: %w", err)
	}
	return products, nil
}

func (r *productRepository) Add(ctx context.Context, product *domain.ProductDocument) (*domain.ProductDocument, error) {
	now := time.Now().UTC()
	saved := *product
	saved.ID = newDocumentID()
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, &saved); err != nil {
		return nil, fmt.Errorf("failed to insert product document: %w", err)
	}
	return &saved, nil
}

func (r *productRepository) Update(ctx context.Context, product *domain.ProductDocument) error {
	product.UpdatedAt = time.Now().UTC()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return fmt.Errorf("failed to replace product document: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrProductNotFound
	}
	return nil
}

// Delete deactivates the product document.
func (r *productRepository) Delete(ctx context.Context, id string) (bool, error) {
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate product document: %w", err)
	}
	return result.MatchedCount > 0, nil
}
