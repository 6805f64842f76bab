package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// All endpoints answer with the same envelope: {success, message?, data}
// on success, {success:false, message, errors?} on failure.

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func respondData(c *gin.Context, status int, message string, data interface{}) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func respondOK(c *gin.Context, message string, data interface{}) {
	respondData(c, http.StatusOK, message, data)
}

func respondCreated(c *gin.Context, message string, data interface{}) {
	respondData(c, http.StatusCreated, message, data)
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

func respondValidation(c *gin.Context, errors []FieldError) {
	c.JSON(http.StatusBadRequest, gin.H{
		"success": false,
		"message": "Validation failed",
		"errors":  errors,
	})
}

type pageRef struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

type pagination struct {
	Next *pageRef `json:"next,omitempty"`
	Prev *pageRef `json:"prev,omitempty"`
}

// respondPage wraps a listing with count/pagination/total the way the
// storefront UI expects.
func respondPage(c *gin.Context, data interface{}, count, page, limit int, total int64) {
	p := pagination{}
	if int64(page*limit) < total {
		p.Next = &pageRef{Page: page + 1, Limit: limit}
	}
	if page > 1 {
		p.Prev = &pageRef{Page: page - 1, Limit: limit}
	}
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"count":      count,
		"pagination": p,
		"total":      total,
		"data":       data,
	})
}

func pageParams(c *gin.Context) (page, limit int) {
	page = intQuery(c, "page", 1)
	limit = intQuery(c, "limit", 10)
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}
