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
	"go.mongodb.org/mongo-driver/mongo/options"
)

type addressRepository struct {
	collection *mongo.Collection
}

// NewAddressRepository creates the document address adapter
func NewAddressRepository(db *mongo.Database) repository.DocumentAddressStore {
	return &addressRepository{collection: db.Collection(AddressesCollection)}
}

func (r *addressRepository) GetByID(ctx context.Context, id string) (*domain.AddressDocument, error) {
	var address domain.AddressDocument
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&address); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to find address document: %w", err)
	}
	return &address, nil
}

func (r *addressRepository) GetByOwner(ctx context.Context, userID string) ([]*domain.AddressDocument, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list address documents: %w", err)
	}
	defer cursor.Close(ctx)

	addresses := []*domain.AddressDocument{}
	if err := cursor.All(ctx, &addresses); err != nil {
		return nil, fmt.Errorf("failed to decode address documents: %w", err)
	}
	return addresses, nil
}

func (r *addressRepository) Add(ctx context.Context, address *domain.AddressDocument) (*domain.AddressDocument, error) {
	now := time.Now().UTC()
	saved := *address
	saved.ID = newDocumentID()
	saved.CreatedAt = now
	saved.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, &saved); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repository.ErrDefaultAddressConflict
		}
		return nil, fmt.Errorf("failed to insert address document: %w", err)
	}
	return &saved, nil
}

func (r *addressRepository) Update(ctx context.Context, address *domain.AddressDocument) error {
	address.UpdatedAt = time.Now().UTC()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": address.ID}, address)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrDefaultAddressConflict
		}
		return fmt.Errorf("failed to replace address document: %w", err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrAddressNotFound
	}
	return nil
}

func (r *addressRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to delete address document: %w", err)
	}
	return result.DeletedCount > 0, nil
}

func (r *addressRepository) UnsetDefault(ctx context.Context, userID string, exceptID string) error {
	filter := bson.M{"userId": userID, "isDefault": true}
	if exceptID != "" {
		filter["_id"] = bson.M{"$ne": exceptID}
	}
	update := bson.M{"$set": bson.M{"isDefault": false, "updatedAt": time.Now().UTC()}}

	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to unset default address documents: %w", err)
	}
	return nil
}
