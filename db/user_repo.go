package db

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"taskflow/models"
)

type UserRepo struct {
	cli    *mongo.Client
	logger *log.Logger
}

func NewUserRepo(client *mongo.Client, logger *log.Logger) *UserRepo {
	return &UserRepo{cli: client, logger: logger}
}

func (ur *UserRepo) collection() *mongo.Collection {
	return ur.cli.Database(database).Collection("users")
}

func (ur *UserRepo) Insert(ctx context.Context, user *models.User) error {
	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	_, err := ur.collection().InsertOne(ctx, user)
	return err
}

func (ur *UserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	var user models.User
	err = ur.collection().FindOne(ctx, bson.M{"_id": objectID}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ur *UserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := ur.collection().FindOne(ctx, bson.M{"email": email}).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	} else if err != nil {
		return nil, err
	}
	return &user, nil
}

func (ur *UserRepo) EmailExists(ctx context.Context, email string) (bool, error) {
	count, err := ur.collection().CountDocuments(ctx, bson.M{"email": email})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (ur *UserRepo) List(ctx context.Context) ([]models.User, error) {
	cursor, err := ur.collection().Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (ur *UserRepo) UpdateActive(ctx context.Context, id string, isActive bool) (*models.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}
	result, err := ur.collection().UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{"is_active": isActive}},
	)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, ErrNotFound
	}
	return ur.GetByID(ctx, id)
}

func (ur *UserRepo) Delete(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}
	result, err := ur.collection().DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (ur *UserRepo) Count(ctx context.Context) (int64, error) {
	return ur.collection().CountDocuments(ctx, bson.M{})
}

// Refs resolves a set of user IDs into display references in one query.
// Unknown IDs are silently skipped; the caller decides how to present the
// missing ones.
func (ur *UserRepo) Refs(ctx context.Context, ids []string) (map[string]models.UserRef, error) {
	refs := make(map[string]models.UserRef, len(ids))
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, objectID)
	}
	if len(objectIDs) == 0 {
		return refs, nil
	}
	cursor, err := ur.collection().Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := cursor.All(ctx, &users); err != nil {
		return nil, err
	}
	for i := range users {
		refs[users[i].ID.Hex()] = *users[i].Ref()
	}
	return refs, nil
}
