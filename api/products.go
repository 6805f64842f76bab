package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const productCacheTTL = 5 * time.Minute

type cachedProductPage struct {
	Products []models.Product `json:"products"`
	Total    int64            `json:"total"`
}

func (s *Server) listProducts(c *gin.Context) {
	page, limit := pageParams(c)

	adminView := c.Query("admin") == "true" && isAdmin(c)

	filter := repository.ProductFilter{
		ActiveOnly: !adminView,
		Search:     c.Query("search"),
		Category:   c.Query("category"),
		Brand:      c.Query("brand"),
		Featured:   c.Query("featured") == "true",
		SortField:  c.Query("sort"),
		SortDesc:   c.Query("order") == "desc",
		Page:       page,
		Limit:      limit,
	}
	if v, err := strconv.ParseFloat(c.Query("minPrice"), 64); err == nil {
		filter.MinPrice = v
	}
	if v, err := strconv.ParseFloat(c.Query("maxPrice"), 64); err == nil {
		filter.MaxPrice = v
	}

	// The unfiltered public listing is the hottest read; serve it from
	// redis when possible.
	cacheable := s.cache != nil && !adminView &&
		filter.Search == "" && filter.Category == "" && filter.Brand == "" &&
		!filter.Featured && filter.MinPrice == 0 && filter.MaxPrice == 0 &&
		filter.SortField == ""
	cacheKey := repository.ProductListKey(page, limit)

	if cacheable {
		var cached cachedProductPage
		if err := s.cache.GetJSON(c.Request.Context(), cacheKey, &cached); err == nil {
			respondPage(c, cached.Products, len(cached.Products), page, limit, cached.Total)
			return
		}
	}

	products, total, err := s.products.List(c.Request.Context(), filter)
	if err != nil {
		s.logger.Error("Failed to list products", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching products")
		return
	}
	if products == nil {
		products = []models.Product{}
	}

	if cacheable {
		if err := s.cache.SetJSON(c.Request.Context(), cacheKey, cachedProductPage{Products: products, Total: total}, productCacheTTL); err != nil {
			s.logger.Warn("Failed to cache product listing", zap.Error(err))
		} else {
			s.cacheMu.Lock()
			s.cachedPages[cacheKey] = struct{}{}
			s.cacheMu.Unlock()
		}
	}

	respondPage(c, products, len(products), page, limit, total)
}

func (s *Server) getProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := s.products.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("Failed to fetch product", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching product")
		return
	}
	respondOK(c, "", product)
}

type productRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       *float64 `json:"price"`
	Stock       *int     `json:"stock"`
	Category    string   `json:"category"`
	Brand       string   `json:"brand"`
	Images      []string `json:"images"`
	IsActive    *bool    `json:"isActive"`
	IsFeatured  *bool    `json:"isFeatured"`
}

func (r *productRequest) validate() []FieldError {
	var errs []FieldError
	r.Name = strings.TrimSpace(r.Name)
	r.Description = strings.TrimSpace(r.Description)
	if len(r.Name) < 2 || len(r.Name) > 100 {
		errs = append(errs, FieldError{Field: "name", Message: "Product name must be between 2 and 100 characters"})
	}
	if len(r.Description) < 10 || len(r.Description) > 1000 {
		errs = append(errs, FieldError{Field: "description", Message: "Description must be between 10 and 1000 characters"})
	}
	if r.Price == nil || *r.Price < 0 {
		errs = append(errs, FieldError{Field: "price", Message: "Price must be a positive number"})
	}
	if r.Stock == nil || *r.Stock < 0 {
		errs = append(errs, FieldError{Field: "stock", Message: "Stock must be a non-negative integer"})
	}
	if !models.ValidCategory(r.Category) {
		errs = append(errs, FieldError{Field: "category", Message: "Invalid category"})
	}
	if len(r.Images) == 0 {
		errs = append(errs, FieldError{Field: "images", Message: "At least one image is required"})
	}
	return errs
}

func (s *Server) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	product := &models.Product{
		Name:        req.Name,
		Description: req.Description,
		Price:       *req.Price,
		Stock:       *req.Stock,
		Category:    req.Category,
		Brand:       req.Brand,
		Images:      req.Images,
		IsActive:    true,
		CreatedBy:   currentUserID(c),
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	if err := s.products.Create(c.Request.Context(), product); err != nil {
		s.logger.Error("Failed to create product", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error creating product")
		return
	}

	s.invalidateProductCache(c)
	s.recordAudit("create_product", product.ID.Hex(), currentUserID(c).Hex(), map[string]interface{}{"name": product.Name})
	respondCreated(c, "", product)
}

func (s *Server) updateProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	product, err := s.products.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("Failed to fetch product for update", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating product")
		return
	}

	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		product.Name = name
	}
	if desc := strings.TrimSpace(req.Description); desc != "" {
		product.Description = desc
	}
	if req.Price != nil && *req.Price >= 0 {
		product.Price = *req.Price
	}
	if req.Stock != nil && *req.Stock >= 0 {
		product.Stock = *req.Stock
	}
	if req.Category != "" {
		if !models.ValidCategory(req.Category) {
			respondValidation(c, []FieldError{{Field: "category", Message: "Invalid category"}})
			return
		}
		product.Category = req.Category
	}
	if req.Brand != "" {
		product.Brand = req.Brand
	}
	if len(req.Images) > 0 {
		product.Images = req.Images
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if req.IsFeatured != nil {
		product.IsFeatured = *req.IsFeatured
	}

	if err := s.products.Update(c.Request.Context(), product); err != nil {
		s.logger.Error("Failed to update product", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating product")
		return
	}

	s.invalidateProductCache(c)
	s.recordAudit("update_product", product.ID.Hex(), currentUserID(c).Hex(), map[string]interface{}{"name": product.Name})
	respondOK(c, "", product)
}

func (s *Server) deleteProduct(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	if err := s.products.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("Failed to delete product", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error deleting product")
		return
	}

	s.invalidateProductCache(c)
	s.recordAudit("delete_product", id.Hex(), currentUserID(c).Hex(), nil)
	respondOK(c, "Product deleted successfully", nil)
}

type reviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

func (s *Server) addReview(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid product ID")
		return
	}

	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	var errs []FieldError
	if req.Rating < 1 || req.Rating > 5 {
		errs = append(errs, FieldError{Field: "rating", Message: "Rating must be between 1 and 5"})
	}
	if len(req.Review) > 500 {
		errs = append(errs, FieldError{Field: "review", Message: "Review cannot exceed 500 characters"})
	}
	if len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	product, err := s.products.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "Product not found")
			return
		}
		s.logger.Error("Failed to fetch product for review", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding review")
		return
	}

	userID := currentUserID(c)
	if product.HasReviewBy(userID) {
		respondError(c, http.StatusBadRequest, "Product already reviewed")
		return
	}

	product.AddRating(models.Rating{
		User:      userID,
		Rating:    req.Rating,
		Review:    strings.TrimSpace(req.Review),
		CreatedAt: time.Now(),
	})

	if err := s.products.Update(c.Request.Context(), product); err != nil {
		s.logger.Error("Failed to save review", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding review")
		return
	}
	respondCreated(c, "Review added successfully", nil)
}

func (s *Server) getCategories(c *gin.Context) {
	categories, err := s.products.Categories(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to fetch categories", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching categories")
		return
	}
	respondOK(c, "", categories)
}

func (s *Server) getBrands(c *gin.Context) {
	brands, err := s.products.Brands(c.Request.Context())
	if err != nil {
		s.logger.Error("Failed to fetch brands", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching brands")
		return
	}
	respondOK(c, "", brands)
}

// invalidateProductCache drops every cached listing page after a catalog
// mutation.
func (s *Server) invalidateProductCache(c *gin.Context) {
	if s.cache == nil {
		return
	}
	s.cacheMu.Lock()
	keys := make([]string, 0, len(s.cachedPages))
	for key := range s.cachedPages {
		keys = append(keys, key)
	}
	s.cachedPages = make(map[string]struct{})
	s.cacheMu.Unlock()

	if len(keys) == 0 {
		return
	}
	if err := s.cache.Del(c.Request.Context(), keys...); err != nil {
		s.logger.Warn("Failed to invalidate product cache", zap.Error(err))
	}
}
