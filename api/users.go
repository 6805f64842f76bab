package api

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func (s *Server) listUsers(c *gin.Context) {
	page, limit := pageParams(c)
	users, total, err := s.users.List(c.Request.Context(), page, limit)
	if err != nil {
		s.logger.Error("Failed to list users", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching users")
		return
	}
	if users == nil {
		users = []models.User{}
	}
	respondPage(c, users, len(users), page, limit, total)
}

func (s *Server) getUser(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("Failed to fetch user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching user")
		return
	}
	respondOK(c, "", user)
}

type updateRoleRequest struct {
	Role string `json:"role"`
}

func (s *Server) updateUserRole(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}

	var req updateRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if !models.ValidRole(req.Role) {
		respondError(c, http.StatusBadRequest, "Invalid role")
		return
	}

	user, err := s.users.UpdateRole(c.Request.Context(), id, req.Role)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("Failed to update user role", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating user role")
		return
	}

	s.recordAudit("update_user_role", id.Hex(), currentUserID(c).Hex(), map[string]interface{}{"role": req.Role})
	respondOK(c, "User role updated", user)
}

func (s *Server) deleteUser(c *gin.Context) {
	id, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid user ID")
		return
	}
	if id == currentUserID(c) {
		respondError(c, http.StatusBadRequest, "Cannot delete your own account")
		return
	}

	if err := s.users.Delete(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("Failed to delete user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error deleting user")
		return
	}

	s.recordAudit("delete_user", id.Hex(), currentUserID(c).Hex(), nil)
	respondOK(c, "User deleted successfully", nil)
}

func (s *Server) getUserStats(c *gin.Context) {
	ctx := c.Request.Context()

	total, err := s.users.Count(ctx)
	if err != nil {
		s.logger.Error("Failed to count users", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching user stats")
		return
	}

	monthStart := time.Now().AddDate(0, -1, 0)
	newThisMonth, err := s.users.CountSince(ctx, monthStart)
	if err != nil {
		s.logger.Error("Failed to count new users", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching user stats")
		return
	}

	verified, err := s.users.CountVerified(ctx, true)
	if err != nil {
		s.logger.Error("Failed to count verified users", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching user stats")
		return
	}

	respondOK(c, "", gin.H{
		"total":           total,
		"newThisMonth":    newThisMonth,
		"verifiedUsers":   verified,
		"unverifiedUsers": total - verified,
	})
}

type addressRequest struct {
	Street    string `json:"street"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	Country   string `json:"country"`
	IsDefault bool   `json:"isDefault"`
}

func (r *addressRequest) validate() []FieldError {
	var errs []FieldError
	for _, f := range []struct {
		field string
		value string
	}{
		{"street", r.Street},
		{"city", r.City},
		{"state", r.State},
		{"zipCode", r.ZipCode},
		{"country", r.Country},
	} {
		if strings.TrimSpace(f.value) == "" {
			errs = append(errs, FieldError{Field: f.field, Message: "This field is required"})
		}
	}
	return errs
}

func (s *Server) addAddress(c *gin.Context) {
	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to fetch user for address", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding address")
		return
	}

	user.AddAddress(models.Address{
		Street:    strings.TrimSpace(req.Street),
		City:      strings.TrimSpace(req.City),
		State:     strings.TrimSpace(req.State),
		ZipCode:   strings.TrimSpace(req.ZipCode),
		Country:   strings.TrimSpace(req.Country),
		IsDefault: req.IsDefault,
	})

	if err := s.users.Update(c.Request.Context(), user); err != nil {
		s.logger.Error("Failed to save address", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error adding address")
		return
	}
	respondCreated(c, "Address added successfully", user.Addresses)
}

func (s *Server) updateAddress(c *gin.Context) {
	addressID, err := primitive.ObjectIDFromHex(c.Param("addressId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid address ID")
		return
	}

	var req addressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to fetch user for address update", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating address")
		return
	}

	idx := user.FindAddress(addressID)
	if idx < 0 {
		respondError(c, http.StatusNotFound, "Address not found")
		return
	}

	addr := &user.Addresses[idx]
	if v := strings.TrimSpace(req.Street); v != "" {
		addr.Street = v
	}
	if v := strings.TrimSpace(req.City); v != "" {
		addr.City = v
	}
	if v := strings.TrimSpace(req.State); v != "" {
		addr.State = v
	}
	if v := strings.TrimSpace(req.ZipCode); v != "" {
		addr.ZipCode = v
	}
	if v := strings.TrimSpace(req.Country); v != "" {
		addr.Country = v
	}
	if req.IsDefault {
		for i := range user.Addresses {
			user.Addresses[i].IsDefault = i == idx
		}
	}

	if err := s.users.Update(c.Request.Context(), user); err != nil {
		s.logger.Error("Failed to save address update", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating address")
		return
	}
	respondOK(c, "Address updated successfully", user.Addresses)
}

func (s *Server) deleteAddress(c *gin.Context) {
	addressID, err := primitive.ObjectIDFromHex(c.Param("addressId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "Invalid address ID")
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		s.logger.Error("Failed to fetch user for address delete", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error deleting address")
		return
	}

	idx := user.FindAddress(addressID)
	if idx < 0 {
		respondError(c, http.StatusNotFound, "Address not found")
		return
	}

	user.RemoveAddress(idx)
	if err := s.users.Update(c.Request.Context(), user); err != nil {
		s.logger.Error("Failed to save address removal", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error deleting address")
		return
	}
	respondOK(c, "Address deleted successfully", user.Addresses)
}
