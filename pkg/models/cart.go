package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrItemNotFound = errors.New("item not found in cart")

// CartItem holds a product reference with the unit price snapshotted at
// the time the item was added.
type CartItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Price    float64            `bson:"price" json:"price"`
}

// Cart is the per-user pre-checkout line-item collection. Total is derived
// and recomputed on every mutation.
type Cart struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User      primitive.ObjectID `bson:"user" json:"user"`
	Items     []CartItem         `bson:"items" json:"items"`
	Total     float64            `bson:"total" json:"total"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

func NewCart(user primitive.ObjectID) *Cart {
	now := time.Now()
	return &Cart{
		User:      user,
		Items:     []CartItem{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddItem merges quantity into an existing line for the product or appends
// a new line. The price snapshot is refreshed to the current unit price.
func (c *Cart) AddItem(product primitive.ObjectID, quantity int, price float64) {
	for i := range c.Items {
		if c.Items[i].Product == product {
			c.Items[i].Quantity += quantity
			c.Items[i].Price = price
			c.RecalculateTotal()
			return
		}
	}
	c.Items = append(c.Items, CartItem{Product: product, Quantity: quantity, Price: price})
	c.RecalculateTotal()
}

func (c *Cart) UpdateItemQuantity(product primitive.ObjectID, quantity int) error {
	for i := range c.Items {
		if c.Items[i].Product == product {
			c.Items[i].Quantity = quantity
			c.RecalculateTotal()
			return nil
		}
	}
	return ErrItemNotFound
}

func (c *Cart) RemoveItem(product primitive.ObjectID) {
	for i := range c.Items {
		if c.Items[i].Product == product {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			c.RecalculateTotal()
			return
		}
	}
}

func (c *Cart) Clear() {
	c.Items = []CartItem{}
	c.Total = 0
}

func (c *Cart) RecalculateTotal() {
	total := 0.0
	for _, item := range c.Items {
		total += item.Price * float64(item.Quantity)
	}
	c.Total = total
}

// ItemCount is the total quantity across all lines, shown in the UI header.
func (c *Cart) ItemCount() int {
	count := 0
	for _, item := range c.Items {
		count += item.Quantity
	}
	return count
}
