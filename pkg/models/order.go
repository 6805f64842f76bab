package models

import (
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusProcessing OrderStatus = "processing"
	StatusShipped    OrderStatus = "shipped"
	StatusDelivered  OrderStatus = "delivered"
	StatusCancelled  OrderStatus = "cancelled"
	StatusRefunded   OrderStatus = "refunded"

	// StatusPaymentFailed is set only by the payment webhook when the
	// processor reports a declined charge. It is not accepted on the
	// admin status route.
	StatusPaymentFailed OrderStatus = "payment_failed"
)

func ValidOrderStatus(status OrderStatus) bool {
	switch status {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled, StatusRefunded:
		return true
	default:
		return false
	}
}

const (
	PaymentMethodStripe         = "stripe"
	PaymentMethodPayPal         = "paypal"
	PaymentMethodCashOnDelivery = "cash_on_delivery"
)

func ValidPaymentMethod(method string) bool {
	switch method {
	case PaymentMethodStripe, PaymentMethodPayPal, PaymentMethodCashOnDelivery:
		return true
	default:
		return false
	}
}

const (
	TaxRate               = 0.10
	FreeShippingThreshold = 100.0
	FlatShippingPrice     = 10.0
)

// PriceBreakdown computes tax, shipping and grand total from the items
// subtotal. Shipping is free strictly above the threshold.
func PriceBreakdown(itemsPrice float64) (taxPrice, shippingPrice, totalPrice float64) {
	taxPrice = itemsPrice * TaxRate
	if itemsPrice > FreeShippingThreshold {
		shippingPrice = 0
	} else {
		shippingPrice = FlatShippingPrice
	}
	totalPrice = itemsPrice + taxPrice + shippingPrice
	return taxPrice, shippingPrice, totalPrice
}

// OrderItem is copied from the cart at checkout; it keeps the product's
// name, price and image as they were at the time of purchase.
type OrderItem struct {
	Product  primitive.ObjectID `bson:"product" json:"product"`
	Name     string             `bson:"name" json:"name"`
	Price    float64            `bson:"price" json:"price"`
	Quantity int                `bson:"quantity" json:"quantity"`
	Image    string             `bson:"image,omitempty" json:"image,omitempty"`
}

type ShippingAddress struct {
	Street  string `bson:"street" json:"street"`
	City    string `bson:"city" json:"city"`
	State   string `bson:"state" json:"state"`
	ZipCode string `bson:"zipCode" json:"zipCode"`
	Country string `bson:"country" json:"country"`
}

// PaymentResult is the confirmation metadata reported by the payment
// processor once a charge succeeds.
type PaymentResult struct {
	ID           string `bson:"id" json:"id"`
	Status       string `bson:"status" json:"status"`
	UpdateTime   string `bson:"updateTime" json:"updateTime"`
	EmailAddress string `bson:"emailAddress,omitempty" json:"emailAddress,omitempty"`
}

type Order struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	User            primitive.ObjectID `bson:"user" json:"user"`
	Items           []OrderItem        `bson:"items" json:"items"`
	ShippingAddress ShippingAddress    `bson:"shippingAddress" json:"shippingAddress"`
	PaymentMethod   string             `bson:"paymentMethod" json:"paymentMethod"`
	ItemsPrice      float64            `bson:"itemsPrice" json:"itemsPrice"`
	TaxPrice        float64            `bson:"taxPrice" json:"taxPrice"`
	ShippingPrice   float64            `bson:"shippingPrice" json:"shippingPrice"`
	TotalPrice      float64            `bson:"totalPrice" json:"totalPrice"`
	Status          OrderStatus        `bson:"status" json:"status"`
	IsPaid          bool               `bson:"isPaid" json:"isPaid"`
	PaidAt          *time.Time         `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	PaymentResult   *PaymentResult     `bson:"paymentResult,omitempty" json:"paymentResult,omitempty"`
	IsDelivered     bool               `bson:"isDelivered" json:"isDelivered"`
	DeliveredAt     *time.Time         `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
	TrackingNumber  string             `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	Notes           string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt       time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// MarkPaid records the payment confirmation. It is idempotent: once an
// order is paid, further confirmations (client call or webhook) are
// no-ops and the original payment metadata is preserved. Returns whether
// the order transitioned.
func (o *Order) MarkPaid(result PaymentResult) bool {
	if o.IsPaid {
		return false
	}
	now := time.Now()
	o.IsPaid = true
	o.PaidAt = &now
	o.PaymentResult = &result
	o.UpdatedAt = now
	return true
}

// CanCancel reports whether the order is early enough in its lifecycle to
// be cancelled by its owner.
func (o *Order) CanCancel() bool {
	return o.Status == StatusPending || o.Status == StatusProcessing
}

// UpdateStatus moves the order to the given status. Delivered additionally
// stamps the delivery fields.
func (o *Order) UpdateStatus(status OrderStatus) error {
	if !ValidOrderStatus(status) {
		return fmt.Errorf("invalid order status: %s", status)
	}
	now := time.Now()
	o.Status = status
	o.UpdatedAt = now
	if status == StatusDelivered {
		o.IsDelivered = true
		o.DeliveredAt = &now
	}
	return nil
}
