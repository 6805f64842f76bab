package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const (
	ctxUserID = "userId"
	ctxRole   = "role"
)

// requireAuth validates the bearer token and loads the caller's identity
// into the request context.
func (s *Server) requireAuth(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		respondError(c, http.StatusUnauthorized, "Authorization header required")
		c.Abort()
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		respondError(c, http.StatusUnauthorized, "Invalid Authorization header format")
		c.Abort()
		return
	}

	claims, err := s.tokens.Parse(parts[1])
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid or expired token")
		c.Abort()
		return
	}

	userID, err := primitive.ObjectIDFromHex(claims.UserID)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "Invalid token subject")
		c.Abort()
		return
	}

	c.Set(ctxUserID, userID)
	c.Set(ctxRole, claims.Role)
	c.Next()
}

func (s *Server) requireAdmin(c *gin.Context) {
	if currentRole(c) != "admin" {
		respondError(c, http.StatusForbidden, "Admin access required")
		c.Abort()
		return
	}
	c.Next()
}

func currentUserID(c *gin.Context) primitive.ObjectID {
	id, _ := c.Get(ctxUserID)
	userID, _ := id.(primitive.ObjectID)
	return userID
}

func currentRole(c *gin.Context) string {
	return c.GetString(ctxRole)
}

func isAdmin(c *gin.Context) bool {
	return currentRole(c) == "admin"
}

func intQuery(c *gin.Context, key string, fallback int) int {
	value, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return fallback
	}
	return value
}

func loggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
