package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"storefront/internal/domain"
	"storefront/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type cartRepository struct {
	collection *mongo.Collection
}

// NewCartRepository creates the document cart adapter
func NewCartRepository(db *mongo.Database) repository.DocumentCartStore {
	return &cartRepository{collection: db.Collection(CartsCollection)}
}

func (r *cartRepository) findOne(ctx context.Context, filter bson.M) (*domain.CartDocument, error) {
	var cart domain.CartDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&cart); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrCartNotFound
		}
		return nil, fmt.Errorf("failed to find cart document: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []domain.CartItemDocument{}
	}
	return &cart, nil
}

func (r *cartRepository) GetByID(ctx context.Context, id string) (*domain.CartDocument, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByOwner returns the owner's active cart.
func (r *cartRepository) GetByOwner(ctx context.Context, userID string) (*domain.CartDocument, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "isActive": true})
}

func (r *cartRepository) Add(ctx context.Context, cart *domain.CartDocument) (*domain.CartDocument, error) {
	now := time.Now().UTC()
	saved := *cart
	saved.ID = newDocumentID()
	saved.IsActive = true
	if saved.Items == nil {
		saved.Items = []domain.CartItemDocument{}
	}
	if saved.CreatedAt.IsZero() {
		saved.CreatedAt = now
	}
	saved.UpdatedAt = now
	saved.Recalculate()

	if _, err := r.collection.InsertOne(ctx, &saved); err != nil {
		return nil, fmt.Errorf("failed to insert cart document: %w", err)
	}
	return &saved, nil
}

func (r *cartRepository) Update(ctx context.Context, cart *domain.CartDocument) error {
	cart.UpdatedAt = time.Now().UTC()
	if cart.Items == nil {
		cart.Items = []domain.CartItemDocument{}
	}
	cart.Recalculate()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": cart.ID}, cart)
	if err != nil {
		return fmt.Errorf("failed to replace cart document: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrCartNotFound
	}
	return nil
}

// Delete marks the cart inactive; cart documents are never hard-deleted.
func (r *cartRepository) Delete(ctx context.Context, id string) (bool, error) {
	update := bson.M{"$set": bson.M{"isActive": false, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id, "isActive": true}, update)
	if err != nil {
		return false, fmt.Errorf("failed to deactivate cart document: %w", err)
	}
	return result.MatchedCount > 0, nil
}
