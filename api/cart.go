package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const cartCountTTL = 10 * time.Minute

// loadOrCreateCart fetches the caller's cart, creating an empty one on
// first access.
func (s *Server) loadOrCreateCart(c *gin.Context, userID primitive.ObjectID) (*models.Cart, error) {
	cart, err := s.carts.FindByUser(c.Request.Context(), userID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	cart = models.NewCart(userID)
	if err := s.carts.Create(c.Request.Context(), cart); err != nil {
		return nil, err
	}
	return cart, nil
}

func (s *Server) getCart(c *gin.Context) {
	userID := currentUserID(c)
	cart, err := s.loadOrCreateCart(c, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching cart")
		return
	}
	// Legacy documents may lack the items field entirely.
	if cart.Items == nil {
		cart.Items = []models.CartItem{}
	}

	// Drop lines whose product has since been deactivated or deleted, and
	// clamp lines that now exceed available stock. Only a confirmed missing
	// product prunes a line; any other lookup failure aborts so a transient
	// error cannot wipe the cart.
	changed := false
	kept := make([]models.CartItem, 0, len(cart.Items))
	for _, item := range cart.Items {
		product, err := s.products.FindByID(c.Request.Context(), item.Product)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				changed = true
				continue
			}
			s.logger.Error("Failed to check cart product", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Error fetching cart")
			return
		}
		if !product.IsActive || product.Stock == 0 {
			changed = true
			continue
		}
		if item.Quantity > product.Stock {
			item.Quantity = product.Stock
			changed = true
		}
		kept = append(kept, item)
	}
	if changed {
		cart.Items = kept
		cart.RecalculateTotal()
		if err := s.carts.Save(c.Request.Context(), cart); err != nil {
			s.logger.Error("Failed to save pruned cart", zap.Error(err))
			respondError(c, http.StatusInternalServerError, "Error fetching cart")
			return
		}
		s.invalidateCartCount(c, userID)
	}

	respondOK(c, "", cart)
}

func (s *Server) getCartCount(c *gin.Context) {
	userID := currentUserID(c)
	key := repository.CartCountKey(userID.Hex())

	if s.cache != nil {
		var count int
		if err := s.cache.GetJSON(c.Request.Context(), key, &count); err == nil {
			respondOK(c, "", gin.H{"count": count})
			return
		}
	}

	cart, err := s.carts.FindByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondOK(c, "", gin.H{"count": 0})
			return
		}
		s.logger.Error("Failed to load cart for count", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching cart count")
		return
	}

	count := cart.ItemCount()
	if s.cache != nil {
		if err := s.cache.SetJSON(c.Request.Context(), key, count, cartCountTTL); err != nil {
			s.logger.Warn("Failed to cache cart count", zap.Error(err))
		}
	}
	respondOK(c, "", gin.H{"count": count})
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

func (s *Server) addToCart(c *gin.Context) {
	var req addToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	productID, err := primitive.ObjectIDFromHex(req.ProductID)
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := s.products.FindByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("Failed to fetch product for cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding to cart")
		return
	}
	if !product.IsActive {
		respondError(c, http.StatusBadRequest, "Product is not available")
		return
	}

	userID := currentUserID(c)
	cart, err := s.loadOrCreateCart(c, userID)
	if err != nil {
		s.logger.Error("Failed to load cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding to cart")
		return
	}

	requested := req.Quantity
	for _, item := range cart.Items {
		if item.Product == productID {
			requested += item.Quantity
		}
	}
	if requested > product.Stock {
		respondError(c, http.StatusBadRequest, "Insufficient stock")
		return
	}

	cart.AddItem(productID, req.Quantity, product.Price)
	if err := s.carts.Save(c.Request.Context(), cart); err != nil {
		s.logger.Error("Failed to save cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding to cart")
		return
	}

	s.invalidateCartCount(c, userID)
	respondOK(c, "Item added to cart", cart)
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

func (s *Server) updateCartItem(c *gin.Context) {
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Quantity < 1 {
		respondError(c, http.StatusBadRequest, "Quantity must be at least 1")
		return
	}

	product, err := s.products.FindByID(c.Request.Context(), productID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("Failed to fetch product for cart update", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating cart")
		return
	}
	if req.Quantity > product.Stock {
		respondError(c, http.StatusBadRequest, "Insufficient stock")
		return
	}

	userID := currentUserID(c)
	cart, err := s.carts.FindByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Cart not found")
			return
		}
		s.logger.Error("Failed to load cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating cart")
		return
	}

	if err := cart.UpdateItemQuantity(productID, req.Quantity); err != nil {
		respondError(c, http.StatusNotFound, "Item not found in cart")
		return
	}
	if err := s.carts.Save(c.Request.Context(), cart); err != nil {
		s.logger.Error("Failed to save cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating cart")
		return
	}

	s.invalidateCartCount(c, userID)
	respondOK(c, "Cart updated", cart)
}

func (s *Server) removeCartItem(c *gin.Context) {
	productID, err := primitive.ObjectIDFromHex(c.Param("productId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	userID := currentUserID(c)
	cart, err := s.carts.FindByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Cart not found")
			return
		}
		s.logger.Error("Failed to load cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error removing item")
		return
	}

	cart.RemoveItem(productID)
	if err := s.carts.Save(c.Request.Context(), cart); err != nil {
		s.logger.Error("Failed to save cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error removing item")
		return
	}

	s.invalidateCartCount(c, userID)
	respondOK(c, "Item removed from cart", cart)
}

func (s *Server) clearCart(c *gin.Context) {
	userID := currentUserID(c)
	cart, err := s.carts.FindByUser(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondOK(c, "Cart cleared", models.NewCart(userID))
			return
		}
		s.logger.Error("Failed to load cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error clearing cart")
		return
	}

	cart.Clear()
	if err := s.carts.Save(c.Request.Context(), cart); err != nil {
		s.logger.Error("Failed to save cart", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error clearing cart")
		return
	}

	s.invalidateCartCount(c, userID)
	respondOK(c, "Cart cleared", cart)
}

func (s *Server) invalidateCartCount(c *gin.Context, userID primitive.ObjectID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(c.Request.Context(), repository.CartCountKey(userID.Hex())); err != nil {
		s.logger.Warn("Failed to invalidate cart count", zap.Error(err))
	}
}
