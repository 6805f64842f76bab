package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Categories is the fixed set of product categories accepted on create
// and update.
var Categories = []string{
	"Electronics",
	"Clothing",
	"Books",
	"Home & Garden",
	"Sports",
	"Beauty",
	"Toys",
	"Automotive",
	"Health",
	"Food & Beverages",
	"Other",
}

func ValidCategory(category string) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// Rating is a single customer review. One per user per product.
type Rating struct {
	User      primitive.ObjectID `bson:"user" json:"user"`
	Rating    int                `bson:"rating" json:"rating"`
	Review    string             `bson:"review,omitempty" json:"review,omitempty"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}

type Product struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name          string             `bson:"name" json:"name"`
	Description   string             `bson:"description" json:"description"`
	Price         float64            `bson:"price" json:"price"`
	Stock         int                `bson:"stock" json:"stock"`
	Category      string             `bson:"category" json:"category"`
	Brand         string             `bson:"brand,omitempty" json:"brand,omitempty"`
	Images        []string           `bson:"images" json:"images"`
	IsActive      bool               `bson:"isActive" json:"isActive"`
	IsFeatured    bool               `bson:"isFeatured" json:"isFeatured"`
	Ratings       []Rating           `bson:"ratings,omitempty" json:"ratings,omitempty"`
	AverageRating float64            `bson:"averageRating" json:"averageRating"`
	NumReviews    int                `bson:"numReviews" json:"numReviews"`
	CreatedBy     primitive.ObjectID `bson:"createdBy,omitempty" json:"createdBy,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func (p *Product) HasReviewBy(user primitive.ObjectID) bool {
	for _, r := range p.Ratings {
		if r.User == user {
			return true
		}
	}
	return false
}

// AddRating appends a review and recomputes the aggregate fields.
func (p *Product) AddRating(r Rating) {
	p.Ratings = append(p.Ratings, r)
	p.RecalculateRating()
}

func (p *Product) RecalculateRating() {
	p.NumReviews = len(p.Ratings)
	if p.NumReviews == 0 {
		p.AverageRating = 0
		return
	}
	sum := 0
	for _, r := range p.Ratings {
		sum += r.Rating
	}
	p.AverageRating = float64(sum) / float64(p.NumReviews)
}

// FirstImage returns the primary image URI, used for order item snapshots.
func (p *Product) FirstImage() string {
	if len(p.Images) == 0 {
		return ""
	}
	return p.Images[0]
}
