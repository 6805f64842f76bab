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

// ProductFilter narrows and orders the catalog listing. Zero values mean
// "no constraint"; Page and Limit are expected to be normalized by the
// caller.
type ProductFilter struct {
	ActiveOnly bool
	Search     string
	Category   string
	Brand      string
	Featured   bool
	MinPrice   float64
	MaxPrice   float64
	SortField  string
	SortDesc   bool
	Page       int
	Limit      int
}

type ProductRepo struct {
	coll *mongo.Collection
}

func NewProductRepo(m *Mongo) *ProductRepo {
	return &ProductRepo{coll: m.database.Collection("products")}
}

func (r *ProductRepo) Create(ctx context.Context, product *models.Product) error {
	now := time.Now()
	product.CreatedAt = now
	product.UpdatedAt = now
	res, err := r.coll.InsertOne(ctx, product)
	if err != nil {
		return err
	}
	product.ID = res.InsertedID.(primitive.ObjectID)
	return nil
}

func (r *ProductRepo) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&product)
	if err != nil {
		return nil, translateErr(err)
	}
	return &product, nil
}

func (r *ProductRepo) Update(ctx context.Context, product *models.Product) error {
	product.UpdatedAt = time.Now()
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": product.ID}, product)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (f *ProductFilter) query() bson.M {
	query := bson.M{}
	if f.ActiveOnly {
		query["isActive"] = true
	}
	if f.Search != "" {
		query["$text"] = bson.M{"$search": f.Search}
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Brand != "" {
		query["brand"] = f.Brand
	}
	if f.Featured {
		query["isFeatured"] = true
	}
	if f.MinPrice > 0 || f.MaxPrice > 0 {
		price := bson.M{}
		if f.MinPrice > 0 {
			price["$gte"] = f.MinPrice
		}
		if f.MaxPrice > 0 {
			price["$lte"] = f.MaxPrice
		}
		query["price"] = price
	}
	return query
}

func (r *ProductRepo) List(ctx context.Context, filter ProductFilter) ([]models.Product, int64, error) {
	query := filter.query()

	total, err := r.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	sortField := "createdAt"
	sortOrder := -1
	if filter.SortField != "" {
		sortField = filter.SortField
		if filter.SortDesc {
			sortOrder = -1
		} else {
			sortOrder = 1
		}
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: sortOrder}}).
		SetSkip(int64((filter.Page - 1) * filter.Limit)).
		SetLimit(int64(filter.Limit))
	cursor, err := r.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var products []models.Product
	if err := cursor.All(ctx, &products); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

func (r *ProductRepo) Categories(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "category")
}

func (r *ProductRepo) Brands(ctx context.Context) ([]string, error) {
	return r.distinct(ctx, "brand")
}

func (r *ProductRepo) distinct(ctx context.Context, field string) ([]string, error) {
	values, err := r.coll.Distinct(ctx, field, bson.M{})
	if err != nil {
		return nil, err
	}
	result := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok && s != "" {
			result = append(result, s)
		}
	}
	return result, nil
}

// AdjustStock atomically increments the stock counter by delta, which may
// be negative. Used when cancelled orders return their items.
func (r *ProductRepo) AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error {
	res, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stock": delta}, "$set": bson.M{"updatedAt": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
