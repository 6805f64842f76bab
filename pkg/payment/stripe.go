package payment

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeProvider implements Provider against the Stripe API.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

var _ Provider = (*StripeProvider)(nil)

func NewStripeProvider(secretKey, webhookSecret string) *StripeProvider {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (s *StripeProvider) CreateCustomer(ctx context.Context, email, name, userID string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("userId", userID)

	customer, err := s.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return customer.ID, nil
}

func (s *StripeProvider) CreateIntent(ctx context.Context, p IntentParams) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:       stripe.Int64(p.AmountCents),
		Currency:     stripe.String(p.Currency),
		Description:  stripe.String(p.Description),
		ReceiptEmail: stripe.String(p.ReceiptEmail),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	}
	params.Context = ctx
	params.AddMetadata("orderId", p.OrderID)
	params.AddMetadata("userId", p.UserID)
	params.SetIdempotencyKey(uuid.NewString())

	intent, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}
	return fromStripeIntent(intent), nil
}

func (s *StripeProvider) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	intent, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve payment intent: %w", err)
	}
	return fromStripeIntent(intent), nil
}

func (s *StripeProvider) ListCardMethods(ctx context.Context, customerID string) ([]CardMethod, error) {
	params := &stripe.PaymentMethodListParams{
		Customer: stripe.String(customerID),
		Type:     stripe.String("card"),
	}
	params.Context = ctx

	var methods []CardMethod
	iter := s.api.PaymentMethods.List(params)
	for iter.Next() {
		pm := iter.PaymentMethod()
		method := CardMethod{ID: pm.ID}
		if pm.Card != nil {
			method.Brand = string(pm.Card.Brand)
			method.Last4 = pm.Card.Last4
			method.ExpMonth = pm.Card.ExpMonth
			method.ExpYear = pm.Card.ExpYear
		}
		methods = append(methods, method)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to list payment methods: %w", err)
	}
	return methods, nil
}

func (s *StripeProvider) VerifyWebhook(payload []byte, signature string) (*Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("webhook signature verification failed: %w", err)
	}

	result := &Event{Type: string(event.Type)}
	switch event.Type {
	case EventPaymentSucceeded, EventPaymentFailed:
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
			return nil, fmt.Errorf("failed to parse webhook payment intent: %w", err)
		}
		result.Intent = fromStripeIntent(&intent)
	}
	return result, nil
}

func fromStripeIntent(intent *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		Amount:       intent.Amount,
		Currency:     string(intent.Currency),
		OrderID:      intent.Metadata["orderId"],
		ReceiptEmail: intent.ReceiptEmail,
	}
}
