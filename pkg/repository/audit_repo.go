package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuditEntry records an admin mutation (product edits, order status
// changes, role changes) for after-the-fact review.
type AuditEntry struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    string             `bson:"action" json:"action"`
	EntityID  string             `bson:"entityId" json:"entityId"`
	Actor     string             `bson:"actor" json:"actor"`
	Data      bson.M             `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type AuditRepo struct {
	coll *mongo.Collection
}

func NewAuditRepo(m *Mongo) *AuditRepo {
	return &AuditRepo{coll: m.database.Collection("audit_logs")}
}

func (r *AuditRepo) Record(ctx context.Context, entry *AuditEntry) error {
	entry.CreatedAt = time.Now()
	_, err := r.coll.InsertOne(ctx, entry)
	return err
}

func (r *AuditRepo) ListByEntity(ctx context.Context, entityID string, limit int64) ([]*AuditEntry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(limit)
	cursor, err := r.coll.Find(ctx, bson.M{"entityId": entityID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var entries []*AuditEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
