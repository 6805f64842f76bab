package repository

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type CartRepo struct {
	coll *mongo.Collection
}

func NewCartRepo(m *Mongo) *CartRepo {
	return &CartRepo{coll: m.database.Collection("carts")}
}

func (r *CartRepo) FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error) {
	var cart models.Cart
	err := r.coll.FindOne(ctx, bson.M{"user": user}).Decode(&cart)
	if err != nil {
		return nil, translateErr(err)
	}
	return &cart, nil
}

func (r *CartRepo) Create(ctx context.Context, cart *models.Cart) error {
	res, err := r.coll.InsertOne(ctx, cart)
	if err != nil {
		return err
	}
	cart.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

// Save writes the cart's current items and derived total back.
func (r *CartRepo) Save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": cart.ID},
		bson.M{"$set": bson.M{
			"items":     cart.Items,
			"total":     cart.Total,
			"updatedAt": cart.UpdatedAt,
		}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
