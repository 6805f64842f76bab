package repository

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// OrderFilter narrows the admin order listing.
type OrderFilter struct {
	Status    models.OrderStatus
	StartDate time.Time
	EndDate   time.Time
	Page      int
	Limit     int
}

type OrderRepo struct {
	coll *mongo.Collection
}

func NewOrderRepo(m *Mongo) *OrderRepo {
	return &OrderRepo{coll: m.database.Collection("orders")}
}

func (r *OrderRepo) Create(ctx context.Context, order *models.Order) error {
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	res, err := r.coll.InsertOne(ctx, order)
	if err != nil {
		return err
	}
	order.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *OrderRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order)
	if err != nil {
		return nil, translateErr(err)
	}
	return &order, nil
}

// Update writes back status, payment and tracking mutations. Item
// snapshots and the price breakdown are immutable after creation and are
// deliberately not part of the update document.
func (r *OrderRepo) Update(ctx context.Context, order *models.Order) error {
	order.UpdatedAt = time.Now()
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": order.ID},
		bson.M{"$set": bson.M{
			"status":         order.Status,
			"isPaid":         order.IsPaid,
			"paidAt":         order.PaidAt,
			"paymentResult":  order.PaymentResult,
			"isDelivered":    order.IsDelivered,
			"deliveredAt":    order.DeliveredAt,
			"trackingNumber": order.TrackingNumber,
			"updatedAt":      order.UpdatedAt,
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

func (r *OrderRepo) ListByUser(ctx context.Context, user primitive.ObjectID, page, limit int) ([]models.Order, int64, error) {
	query := bson.M{"user": user}
	return r.list(ctx, query, page, limit)
}

func (r *OrderRepo) ListAll(ctx context.Context, filter OrderFilter) ([]models.Order, int64, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}
	if !filter.StartDate.IsZero() || !filter.EndDate.IsZero() {
		created := bson.M{}
		if !filter.StartDate.IsZero() {
			created["$gte"] = filter.StartDate
		}
		if !filter.EndDate.IsZero() {
			created["$lte"] = filter.EndDate
		}
		query["createdAt"] = created
	}
	return r.list(ctx, query, filter.Page, filter.Limit)
}

func (r *OrderRepo) list(ctx context.Context, query bson.M, page, limit int) ([]models.Order, int64, error) {
	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var orders []models.Order
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}
