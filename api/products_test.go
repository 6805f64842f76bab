package api

import (
	"net/http"
	"testing"
)

func TestCreateAndGetProduct(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")
	_, userToken := env.seedUser(t, "user@example.com", "user")

	payload := map[string]interface{}{
		"name":        "Mechanical Keyboard",
		"description": "A sturdy keyboard with tactile switches",
		"price":       89.99,
		"stock":       25,
		"category":    "Electronics",
		"brand":       "KeyCo",
		"images":      []string{"kb.jpg"},
	}

	// Only admins can create.
	rec, _ := env.do(t, http.MethodPost, "/api/products", userToken, payload)
	assertStatus(t, rec, http.StatusForbidden)

	rec, body := env.do(t, http.MethodPost, "/api/products", adminToken, payload)
	assertStatus(t, rec, http.StatusCreated)
	created := body["data"].(map[string]interface{})
	if created["isActive"] != true {
		t.Error("new product should default to active")
	}
	id := created["id"].(string)

	// Public read needs no auth.
	rec, body = env.do(t, http.MethodGet, "/api/products/"+id, "", nil)
	assertStatus(t, rec, http.StatusOK)
	if body["data"].(map[string]interface{})["name"] != "Mechanical Keyboard" {
		t.Errorf("name = %v", body["data"].(map[string]interface{})["name"])
	}
}

func TestCreateProductValidation(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")

	rec, body := env.do(t, http.MethodPost, "/api/products", adminToken, map[string]interface{}{
		"name":        "X",
		"description": "short",
		"price":       -1,
		"category":    "Nonsense",
	})
	assertStatus(t, rec, http.StatusBadRequest)
	if body["message"] != "Validation failed" {
		t.Errorf("message = %v", body["message"])
	}
	// name, description, price, stock, category, images all fail.
	if errs := body["errors"].([]interface{}); len(errs) != 6 {
		t.Errorf("field errors = %d, want 6", len(errs))
	}
}

func TestListProductsHidesInactive(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")
	env.seedProduct(t, "Visible", 10, 5)
	hidden := env.seedProduct(t, "Hidden", 10, 5)
	env.products.products[hidden.ID].IsActive = false

	rec, body := env.do(t, http.MethodGet, "/api/products", "", nil)
	assertStatus(t, rec, http.StatusOK)
	if body["total"].(float64) != 1 {
		t.Errorf("public total = %v, want 1", body["total"])
	}

	// Admin view includes inactive products.
	rec, body = env.do(t, http.MethodGet, "/api/products?admin=true", adminToken, nil)
	assertStatus(t, rec, http.StatusOK)
	if body["total"].(float64) != 2 {
		t.Errorf("admin total = %v, want 2", body["total"])
	}

	// The admin flag means nothing without an admin token.
	rec, body = env.do(t, http.MethodGet, "/api/products?admin=true", "", nil)
	assertStatus(t, rec, http.StatusOK)
	if body["total"].(float64) != 1 {
		t.Errorf("anonymous admin-flag total = %v, want 1", body["total"])
	}
}

func TestUpdateAndDeleteProduct(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")
	product := env.seedProduct(t, "Old Name", 10, 5)

	rec, body := env.do(t, http.MethodPut, "/api/products/"+product.ID.Hex(), adminToken, map[string]interface{}{
		"name":  "New Name",
		"price": 15.5,
	})
	assertStatus(t, rec, http.StatusOK)
	updated := body["data"].(map[string]interface{})
	if updated["name"] != "New Name" {
		t.Errorf("name = %v", updated["name"])
	}
	if updated["price"].(float64) != 15.5 {
		t.Errorf("price = %v", updated["price"])
	}
	// Untouched fields survive a partial update.
	if updated["stock"].(float64) != 5 {
		t.Errorf("stock = %v, want 5", updated["stock"])
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/products/"+product.ID.Hex(), adminToken, nil)
	assertStatus(t, rec, http.StatusOK)

	rec, _ = env.do(t, http.MethodGet, "/api/products/"+product.ID.Hex(), "", nil)
	assertStatus(t, rec, http.StatusNotFound)
}

func TestAddReview(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "reviewer@example.com", "user")
	product := env.seedProduct(t, "Reviewable", 10, 5)

	rec, _ := env.do(t, http.MethodPost, "/api/products/"+product.ID.Hex()+"/reviews", token, map[string]interface{}{
		"rating": 4,
		"review": "Works as expected",
	})
	assertStatus(t, rec, http.StatusCreated)

	rec, body := env.do(t, http.MethodGet, "/api/products/"+product.ID.Hex(), "", nil)
	assertStatus(t, rec, http.StatusOK)
	data := body["data"].(map[string]interface{})
	if data["averageRating"].(float64) != 4 {
		t.Errorf("averageRating = %v, want 4", data["averageRating"])
	}
	if data["numReviews"].(float64) != 1 {
		t.Errorf("numReviews = %v, want 1", data["numReviews"])
	}

	// One review per user.
	rec, body = env.do(t, http.MethodPost, "/api/products/"+product.ID.Hex()+"/reviews", token, map[string]interface{}{
		"rating": 1,
	})
	assertStatus(t, rec, http.StatusBadRequest)
	if body["message"] != "Product already reviewed" {
		t.Errorf("message = %v", body["message"])
	}

	// Rating bounds.
	rec, _ = env.do(t, http.MethodPost, "/api/products/"+product.ID.Hex()+"/reviews", token, map[string]interface{}{
		"rating": 6,
	})
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestProductCacheInvalidation(t *testing.T) {
	env := newTestEnvWithCache(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")
	env.seedProduct(t, "First", 10, 5)

	// Prime the cache with a non-default page size.
	rec, body := env.do(t, http.MethodGet, "/api/products?limit=7", "", nil)
	assertStatus(t, rec, http.StatusOK)
	if body["total"].(float64) != 1 {
		t.Fatalf("total = %v, want 1", body["total"])
	}
	if len(env.cache.data) != 1 {
		t.Fatalf("cached pages = %d, want 1", len(env.cache.data))
	}

	rec, _ = env.do(t, http.MethodPost, "/api/products", adminToken, map[string]interface{}{
		"name":        "Second Product",
		"description": "Added after the listing was cached",
		"price":       20.0,
		"stock":       3,
		"category":    "Electronics",
		"images":      []string{"second.jpg"},
	})
	assertStatus(t, rec, http.StatusCreated)

	// The mutation invalidates every cached page, whatever its limit.
	rec, body = env.do(t, http.MethodGet, "/api/products?limit=7", "", nil)
	assertStatus(t, rec, http.StatusOK)
	if body["total"].(float64) != 2 {
		t.Errorf("total = %v after create, want 2 (stale cache served)", body["total"])
	}
}

func TestCategoriesAndBrands(t *testing.T) {
	env := newTestEnv(t)
	p := env.seedProduct(t, "Branded", 10, 5)
	env.products.products[p.ID].Brand = "Acme"

	rec, body := env.do(t, http.MethodGet, "/api/products/categories", "", nil)
	assertStatus(t, rec, http.StatusOK)
	if cats := body["data"].([]interface{}); len(cats) != 1 || cats[0] != "Electronics" {
		t.Errorf("categories = %v", cats)
	}

	rec, body = env.do(t, http.MethodGet, "/api/products/brands", "", nil)
	assertStatus(t, rec, http.StatusOK)
	if brands := body["data"].([]interface{}); len(brands) != 1 || brands[0] != "Acme" {
		t.Errorf("brands = %v", brands)
	}
}
