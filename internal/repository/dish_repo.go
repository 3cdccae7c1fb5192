package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"foodieqa/internal/model"
)

// DishStore looks up dish records by exact name. A missing record is
// (nil, nil), never an error.
type DishStore interface {
	Get(ctx context.Context, name string) (*model.DishRecord, error)
}

// DishRepo handles MongoDB operations for dish records
type DishRepo interface {
	DishStore
	Upsert(ctx context.Context, rec *model.DishRecord) error
	Count(ctx context.Context) (int64, error)
	EnsureIndexes(ctx context.Context) error
}

type dishRepo struct {
	collection *mongo.Collection
}

// NewDishRepo creates a new dish repository
func NewDishRepo(db *mongo.Database) DishRepo {
	return &dishRepo{
		collection: db.Collection("dishes"),
	}
}

func (r *dishRepo) Get(ctx context.Context, name string) (*model.DishRecord, error) {
	var rec model.DishRecord
	err := r.collection.FindOne(ctx, dishFilter(name)).Decode(&rec)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *dishRepo) Upsert(ctx context.Context, rec *model.DishRecord) error {
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now()
	}
	opts := options.Replace().SetUpsert(true)
	_, err := r.collection.ReplaceOne(ctx, dishFilter(rec.DishName), rec, opts)
	return err
}

func (r *dishRepo) Count(ctx context.Context) (int64, error) {
	return r.collection.CountDocuments(ctx, bson.M{})
}

func (r *dishRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "dishName", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return err
}

func dishFilter(name string) bson.M {
	return bson.M{"dishName": name}
}
