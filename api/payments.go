package api

import (
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type createIntentRequest struct {
	OrderID string `json:"orderId"`
}

// createPaymentIntent opens a charge attempt with the processor for an
// unpaid order. The caller must own the order.
func (s *Server) createPaymentIntent(c *gin.Context) {
	var req createIntentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	orderID, err := primitive.ObjectIDFromHex(req.OrderID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	userID := currentUserID(c)
	order, err := s.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error("Failed to fetch order for payment", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating payment intent")
		return
	}
	if order.User != userID {
		respondError(c, http.StatusForbidden, "Not authorized to pay for this order")
		return
	}
	if order.IsPaid {
		respondError(c, http.StatusBadRequest, "Order is already paid")
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), userID)
	if err != nil {
		s.logger.Error("Failed to fetch user for payment", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating payment intent")
		return
	}

	customerID, err := s.ensureCustomer(c, user)
	if err != nil {
		s.logger.Error("Failed to ensure payment customer", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating payment intent")
		return
	}

	intent, err := s.payments.CreateIntent(c.Request.Context(), payment.IntentParams{
		AmountCents:  int64(math.Round(order.TotalPrice * 100)),
		Currency:     "usd",
		CustomerID:   customerID,
		OrderID:      order.ID.Hex(),
		UserID:       userID.Hex(),
		Description:  "Order " + order.ID.Hex(),
		ReceiptEmail: user.Email,
	})
	if err != nil {
		s.logger.Error("Failed to create payment intent", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating payment intent")
		return
	}

	respondOK(c, "", gin.H{
		"clientSecret":    intent.ClientSecret,
		"paymentIntentId": intent.ID,
	})
}

// ensureCustomer lazily creates the processor-side customer record and
// persists its id on the user.
func (s *Server) ensureCustomer(c *gin.Context, user *models.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	customerID, err := s.payments.CreateCustomer(c.Request.Context(), user.Email, user.Name, user.ID.Hex())
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(c.Request.Context(), user.ID, customerID); err != nil {
		return "", err
	}
	user.StripeCustomerID = customerID
	return customerID, nil
}

type confirmPaymentRequest struct {
	OrderID         string `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId"`
}

// confirmPayment checks the intent status with the processor and marks
// the order paid. Safe to call more than once; the webhook may already
// have settled the order.
func (s *Server) confirmPayment(c *gin.Context) {
	var req confirmPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	orderID, err := primitive.ObjectIDFromHex(req.OrderID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error("Failed to fetch order for confirmation", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error confirming payment")
		return
	}
	if order.User != currentUserID(c) {
		respondError(c, http.StatusForbidden, "Not authorized to confirm this order")
		return
	}

	intent, err := s.payments.RetrieveIntent(c.Request.Context(), req.PaymentIntentID)
	if err != nil {
		s.logger.Error("Failed to retrieve payment intent", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error confirming payment")
		return
	}
	if intent.Status != payment.StatusSucceeded {
		respondError(c, http.StatusBadRequest, "Payment not completed")
		return
	}

	if order.MarkPaid(models.PaymentResult{
		ID:           intent.ID,
		Status:       intent.Status,
		UpdateTime:   time.Now().UTC().Format(time.RFC3339),
		EmailAddress: intent.ReceiptEmail,
	}) {
		if err := s.orders.Update(c.Request.Context(), order); err != nil {
			s.logger.Error("Failed to mark order paid", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Error confirming payment")
			return
		}
		s.recordAudit("payment_confirmed", order.ID.Hex(), currentUserID(c).Hex(), map[string]interface{}{"paymentIntentId": intent.ID})
	}

	respondOK(c, "Payment confirmed", order)
}

// paymentWebhook handles asynchronous processor callbacks. The signature
// is verified before anything else; delivery is at-least-once so paid
// orders are left untouched on replays.
func (s *Server) paymentWebhook(c *gin.Context) {
	payload, err := c.GetRawData()
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid payload")
		return
	}

	event, err := s.payments.VerifyWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		s.logger.Warn("Webhook signature verification failed", zap.Error(err))
		respondError(c, http.StatusBadRequest, "Webhook signature verification failed")
		return
	}

	switch event.Type {
	case payment.EventPaymentSucceeded:
		s.handlePaymentSucceeded(c, event.Intent)
	case payment.EventPaymentFailed:
		s.handlePaymentFailed(c, event.Intent)
	default:
		s.logger.Debug("Unhandled webhook event", zap.String("type", event.Type))
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (s *Server) handlePaymentSucceeded(c *gin.Context, intent *payment.Intent) {
	if intent == nil || intent.OrderID == "" {
		return
	}
	orderID, err := primitive.ObjectIDFromHex(intent.OrderID)
	if err != nil {
		s.logger.Warn("Webhook carried invalid order id", zap.String("orderId", intent.OrderID))
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		s.logger.Warn("Webhook order not found", zap.String("orderId", intent.OrderID), zap.Error(err))
		return
	}

	if order.MarkPaid(models.PaymentResult{
		ID:           intent.ID,
		Status:       intent.Status,
		UpdateTime:   time.Now().UTC().Format(time.RFC3339),
		EmailAddress: intent.ReceiptEmail,
	}) {
		if err := s.orders.Update(c.Request.Context(), order); err != nil {
			s.logger.Error("Failed to mark order paid from webhook", zap.Error(err))
			return
		}
		s.logger.Info("Order paid via webhook",
			zap.String("orderId", order.ID.Hex()),
			zap.String("paymentIntentId", intent.ID))
	}
}

func (s *Server) handlePaymentFailed(c *gin.Context, intent *payment.Intent) {
	if intent == nil || intent.OrderID == "" {
		return
	}
	orderID, err := primitive.ObjectIDFromHex(intent.OrderID)
	if err != nil {
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), orderID)
	if err != nil {
		s.logger.Warn("Webhook order not found", zap.String("orderId", intent.OrderID), zap.Error(err))
		return
	}
	if order.IsPaid {
		return
	}

	order.Status = models.StatusPaymentFailed
	order.UpdatedAt = time.Now()
	if err := s.orders.Update(c.Request.Context(), order); err != nil {
		s.logger.Error("Failed to record payment failure", zap.Error(err))
		return
	}
	s.logger.Info("Payment failed for order", zap.String("orderId", order.ID.Hex()))
}

func (s *Server) listPaymentMethods(c *gin.Context) {
	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to fetch user for payment methods", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching payment methods")
		return
	}
	if user.StripeCustomerID == "" {
		respondOK(c, "", []payment.CardMethod{})
		return
	}

	methods, err := s.payments.ListCardMethods(c.Request.Context(), user.StripeCustomerID)
	if err != nil {
		s.logger.Error("Failed to list payment methods", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching payment methods")
		return
	}
	if methods == nil {
		methods = []payment.CardMethod{}
	}
	respondOK(c, "", methods)
}

func (s *Server) createCustomer(c *gin.Context) {
	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to fetch user for customer creation", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating customer")
		return
	}

	customerID, err := s.ensureCustomer(c, user)
	if err != nil {
		s.logger.Error("Failed to create customer", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating customer")
		return
	}
	respondOK(c, "", gin.H{"customerId": customerID})
}

func (s *Server) getPaymentStatus(c *gin.Context) {
	intent, err := s.payments.RetrieveIntent(c.Request.Context(), c.Param("paymentIntentId"))
	if err != nil {
		s.logger.Error("Failed to retrieve payment intent", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching payment status")
		return
	}
	respondOK(c, "", gin.H{
		"status":   intent.Status,
		"amount":   intent.Amount,
		"currency": intent.Currency,
	})
}
