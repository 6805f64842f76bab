package payment

import "context"

// Intent statuses and event types surfaced to callers. They mirror the
// processor's wire values so handler logic can stay provider-agnostic.
const (
	StatusSucceeded = "succeeded"

	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
)

// Intent is the processor's handle for an in-progress charge attempt.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	OrderID      string
	ReceiptEmail string
}

type IntentParams struct {
	AmountCents  int64
	Currency     string
	CustomerID   string
	OrderID      string
	UserID       string
	Description  string
	ReceiptEmail string
}

type CardMethod struct {
	ID       string `json:"id"`
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"expMonth"`
	ExpYear  int64  `json:"expYear"`
}

// Event is a verified webhook callback. Intent is populated for
// payment-intent events and nil otherwise.
type Event struct {
	Type   string
	Intent *Intent
}

// Provider abstracts the payment processor so handlers can be exercised
// against a fake in tests.
type Provider interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	CreateIntent(ctx context.Context, params IntentParams) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	ListCardMethods(ctx context.Context, customerID string) ([]CardMethod, error)
	VerifyWebhook(payload []byte, signature string) (*Event, error)
}
