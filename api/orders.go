package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type createOrderRequest struct {
	ShippingAddress models.ShippingAddress `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	Notes           string                 `json:"notes"`
}

func (r *createOrderRequest) validate() []FieldError {
	var errs []FieldError
	addr := &r.ShippingAddress
	for _, f := range []struct {
		field string
		value string
	}{
		{"shippingAddress.street", addr.Street},
		{"shippingAddress.city", addr.City},
		{"shippingAddress.state", addr.State},
		{"shippingAddress.zipCode", addr.ZipCode},
		{"shippingAddress.country", addr.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, FieldError{Field: f.field, Message: "This field is required"})
		}
	}
	if !models.ValidPaymentMethod(r.PaymentMethod) {
		errs = append(errs, FieldError{Field: "paymentMethod", Message: "Invalid payment method"})
	}
	return errs
}

// createOrder converts the caller's cart into an order. Every line is
// re-validated against the live product; stock is reserved at payment
// time, not here.
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	userID := currentUserID(c)
	cart, err := s.carts.FindByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusBadRequest, "Cart is empty")
			return
		}
		s.logger.Error("Failed to load cart for checkout", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating order")
		return
	}
	if len(cart.Items) == 0 {
		respondError(c, http.StatusBadRequest, "Cart is empty")
		return
	}

	items := make([]models.OrderItem, 0, len(cart.Items))
	itemsPrice := 0.0
	for _, line := range cart.Items {
		product, err := s.products.FindByID(c.Request.Context(), line.Product)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				respondError(c, http.StatusBadRequest, "A product in your cart is no longer available")
				return
			}
			s.logger.Error("Failed to fetch product for checkout", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Error creating order")
			return
		}
		if !product.IsActive {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("%s is no longer available", product.Name))
			return
		}
		if line.Quantity > product.Stock {
			respondError(c, http.StatusBadRequest, fmt.Sprintf("Insufficient stock for %s", product.Name))
			return
		}
		items = append(items, models.OrderItem{
			Product:  product.ID,
			Name:     product.Name,
			Price:    product.Price,
			Quantity: line.Quantity,
			Image:    product.FirstImage(),
		})
		itemsPrice += product.Price * float64(line.Quantity)
	}

	taxPrice, shippingPrice, totalPrice := models.PriceBreakdown(itemsPrice)

	order := &models.Order{
		User:            userID,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		ItemsPrice:      itemsPrice,
		TaxPrice:        taxPrice,
		ShippingPrice:   shippingPrice,
		TotalPrice:      totalPrice,
		Notes:           strings.TrimSpace(req.Notes),
	}
	if err := s.orders.Create(c.Request.Context(), order); err != nil {
		s.logger.Error("Failed to create order", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating order")
		return
	}

	cart.Clear()
	if err := s.carts.Save(c.Request.Context(), cart); err != nil {
		s.logger.Warn("Failed to clear cart after checkout", zap.Error(err))
	}
	s.invalidateCartCount(c, userID)

	s.recordAudit("create_order", order.ID.Hex(), userID.Hex(), map[string]interface{}{"total": order.TotalPrice})
	respondCreated(c, "Order created successfully", order)
}

func (s *Server) listOrders(c *gin.Context) {
	page, limit := pageParams(c)
	orders, total, err := s.orders.ListByUser(c.Request.Context(), currentUserID(c), page, limit)
	if err != nil {
		s.logger.Error("Failed to list orders", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	respondPage(c, orders, len(orders), page, limit, total)
}

func (s *Server) listAllOrders(c *gin.Context) {
	page, limit := pageParams(c)
	filter := repository.OrderFilter{
		Status: models.OrderStatus(c.Query("status")),
		Page:   page,
		Limit:  limit,
	}
	if t, err := time.Parse("2006-01-02", c.Query("startDate")); err == nil {
		filter.StartDate = t
	}
	if t, err := time.Parse("2006-01-02", c.Query("endDate")); err == nil {
		filter.EndDate = t.Add(24*time.Hour - time.Nanosecond)
	}

	orders, total, err := s.orders.ListAll(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list all orders", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching orders")
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	respondPage(c, orders, len(orders), page, limit, total)
}

// loadOrder fetches an order and enforces the owner-or-admin rule common
// to the order and payment routes.
func (s *Server) loadOrder(c *gin.Context, id primitive.ObjectID) (*models.Order, bool) {
	order, err := s.orders.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Order not found")
			return nil, false
		}
		s.logger.Error("Failed to fetch order", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching order")
		return nil, false
	}
	if order.User != currentUserID(c) && !isAdmin(c) {
		respondError(c, http.StatusForbidden, "Not authorized to access this order")
		return nil, false
	}
	return order, true
}

func (s *Server) getOrder(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}
	order, ok := s.loadOrder(c, id)
	if !ok {
		return
	}
	respondOK(c, "", order)
}

type updateStatusRequest struct {
	Status         models.OrderStatus `json:"status"`
	TrackingNumber string             `json:"trackingNumber"`
}

func (s *Server) updateOrderStatus(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error("Failed to fetch order for status update", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating order")
		return
	}

	if err := order.UpdateStatus(req.Status); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order status")
		return
	}
	if tn := strings.TrimSpace(req.TrackingNumber); tn != "" {
		order.TrackingNumber = tn
	}

	if err := s.orders.Update(c.Request.Context(), order); err != nil {
		s.logger.Error("Failed to update order status", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating order")
		return
	}

	s.recordAudit("update_order_status", order.ID.Hex(), currentUserID(c).Hex(), map[string]interface{}{"status": string(req.Status)})
	respondOK(c, "Order status updated", order)
}

// cancelOrder lets the owner cancel while the order is still pending or
// processing. Reserved stock is returned to the catalog.
func (s *Server) cancelOrder(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order ID")
		return
	}

	order, err := s.orders.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Order not found")
			return
		}
		s.logger.Error("Failed to fetch order for cancel", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error cancelling order")
		return
	}
	if order.User != currentUserID(c) {
		respondError(c, http.StatusForbidden, "Not authorized to cancel this order")
		return
	}
	if !order.CanCancel() {
		respondError(c, http.StatusBadRequest, "Order cannot be cancelled at this stage")
		return
	}

	if err := order.UpdateStatus(models.StatusCancelled); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid order status")
		return
	}
	if err := s.orders.Update(c.Request.Context(), order); err != nil {
		s.logger.Error("Failed to cancel order", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error cancelling order")
		return
	}

	for _, item := range order.Items {
		if err := s.products.AdjustStock(c.Request.Context(), item.Product, item.Quantity); err != nil {
			s.logger.Warn("Failed to restore stock",
				zap.String("product", item.Product.Hex()),
				zap.Int("quantity", item.Quantity),
				zap.Error(err))
		}
	}

	s.recordAudit("cancel_order", order.ID.Hex(), currentUserID(c).Hex(), nil)
	respondOK(c, "Order cancelled successfully", order)
}
