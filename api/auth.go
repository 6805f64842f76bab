package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Phone    string `json:"phone"`
}

func (r *registerRequest) validate() []FieldError {
	var errs []FieldError
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(strings.ToLower(r.Email))
	if len(r.Name) < 2 {
		errs = append(errs, FieldError{Field: "name", Message: "Name must be at least 2 characters"})
	}
	if r.Email == "" || !strings.Contains(r.Email, "@") {
		errs = append(errs, FieldError{Field: "email", Message: "Valid email is required"})
	}
	if len(r.Password) < 6 {
		errs = append(errs, FieldError{Field: "password", Message: "Password must be at least 6 characters"})
	}
	return errs
}

func (s *Server) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}
	if errs := req.validate(); len(errs) > 0 {
		respondValidation(c, errs)
		return
	}

	if _, err := s.users.FindByEmail(c.Request.Context(), req.Email); err == nil {
		respondError(c, http.StatusBadRequest, "User with this email already exists")
		return
	} else if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Failed to check existing user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error registering user")
		return
	}

	hashed, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error("Failed to hash password", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error registering user")
		return
	}

	user := &models.User{
		Name:     req.Name,
		Email:    req.Email,
		Password: hashed,
		Phone:    req.Phone,
		Role:     models.RoleUser,
	}
	if err := s.users.Create(c.Request.Context(), user); err != nil {
		s.logger.Error("Failed to create user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error registering user")
		return
	}

	token, err := s.tokens.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		s.logger.Error("Failed to generate token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error registering user")
		return
	}

	respondCreated(c, "User registered successfully", gin.H{"user": user, "token": token})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.users.FindByEmail(c.Request.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusUnauthorized, "Invalid credentials")
			return
		}
		s.logger.Error("Failed to look up user", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error logging in")
		return
	}

	if !auth.CheckPassword(user.Password, req.Password) {
		respondError(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := s.tokens.Generate(user.ID.Hex(), user.Role)
	if err != nil {
		s.logger.Error("Failed to generate token", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error logging in")
		return
	}

	respondOK(c, "Login successful", gin.H{"user": user, "token": token})
}

func (s *Server) getProfile(c *gin.Context) {
	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("Failed to fetch profile", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching profile")
		return
	}
	respondOK(c, "", user)
}

type updateProfileRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (s *Server) updateProfile(c *gin.Context) {
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := s.users.FindByID(c.Request.Context(), currentUserID(c))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			respondError(c, http.StatusNotFound, "User not found")
			return
		}
		s.logger.Error("Failed to fetch user for update", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating profile")
		return
	}

	if name := strings.TrimSpace(req.Name); name != "" {
		user.Name = name
	}
	if phone := strings.TrimSpace(req.Phone); phone != "" {
		user.Phone = phone
	}

	if err := s.users.Update(c.Request.Context(), user); err != nil {
		s.logger.Error("Failed to update profile", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error updating profile")
		return
	}
	respondOK(c, "Profile updated successfully", user)
}
