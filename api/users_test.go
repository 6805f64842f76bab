package api

import (
	"net/http"
	"testing"
)

func TestUpdateUserRole(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")
	user, _ := env.seedUser(t, "user@example.com", "user")

	rec, body := env.do(t, http.MethodPut, "/api/users/"+user.ID.Hex()+"/role", adminToken, map[string]interface{}{
		"role": "admin",
	})
	assertStatus(t, rec, http.StatusOK)
	if body["data"].(map[string]interface{})["role"] != "admin" {
		t.Errorf("role = %v", body["data"].(map[string]interface{})["role"])
	}

	rec, _ = env.do(t, http.MethodPut, "/api/users/"+user.ID.Hex()+"/role", adminToken, map[string]interface{}{
		"role": "superuser",
	})
	assertStatus(t, rec, http.StatusBadRequest)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	admin, adminToken := env.seedUser(t, "admin@example.com", "admin")
	user, _ := env.seedUser(t, "user@example.com", "user")

	// Admins cannot delete themselves.
	rec, body := env.do(t, http.MethodDelete, "/api/users/"+admin.ID.Hex(), adminToken, nil)
	assertStatus(t, rec, http.StatusBadRequest)
	if body["message"] != "Cannot delete your own account" {
		t.Errorf("message = %v", body["message"])
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/users/"+user.ID.Hex(), adminToken, nil)
	assertStatus(t, rec, http.StatusOK)

	rec, _ = env.do(t, http.MethodGet, "/api/users/"+user.ID.Hex(), adminToken, nil)
	assertStatus(t, rec, http.StatusNotFound)
}

func TestUserStats(t *testing.T) {
	env := newTestEnv(t)
	_, adminToken := env.seedUser(t, "admin@example.com", "admin")
	env.seedUser(t, "a@example.com", "user")
	env.seedUser(t, "b@example.com", "user")

	rec, body := env.do(t, http.MethodGet, "/api/users/stats", adminToken, nil)
	assertStatus(t, rec, http.StatusOK)
	stats := body["data"].(map[string]interface{})
	if stats["total"].(float64) != 3 {
		t.Errorf("total = %v, want 3", stats["total"])
	}
	if stats["newThisMonth"].(float64) != 3 {
		t.Errorf("newThisMonth = %v, want 3", stats["newThisMonth"])
	}
	if stats["unverifiedUsers"].(float64) != 3 {
		t.Errorf("unverifiedUsers = %v, want 3", stats["unverifiedUsers"])
	}
}

func TestAddressLifecycle(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "mover@example.com", "user")

	rec, body := env.do(t, http.MethodPost, "/api/users/addresses", token, map[string]interface{}{
		"street":  "1 First St",
		"city":    "Springfield",
		"state":   "IL",
		"zipCode": "62701",
		"country": "USA",
	})
	assertStatus(t, rec, http.StatusCreated)
	addresses := body["data"].([]interface{})
	if len(addresses) != 1 {
		t.Fatalf("addresses = %d, want 1", len(addresses))
	}
	first := addresses[0].(map[string]interface{})
	if first["isDefault"] != true {
		t.Error("first address should be the default")
	}
	addressID := first["id"].(string)

	rec, body = env.do(t, http.MethodPut, "/api/users/addresses/"+addressID, token, map[string]interface{}{
		"city": "Shelbyville",
	})
	assertStatus(t, rec, http.StatusOK)
	updated := body["data"].([]interface{})[0].(map[string]interface{})
	if updated["city"] != "Shelbyville" {
		t.Errorf("city = %v", updated["city"])
	}
	if updated["street"] != "1 First St" {
		t.Error("partial update clobbered the street")
	}

	rec, body = env.do(t, http.MethodDelete, "/api/users/addresses/"+addressID, token, nil)
	assertStatus(t, rec, http.StatusOK)
	if len(body["data"].([]interface{})) != 0 {
		t.Error("address not removed")
	}
}

func TestAddressValidation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.seedUser(t, "mover@example.com", "user")

	rec, body := env.do(t, http.MethodPost, "/api/users/addresses", token, map[string]interface{}{
		"street": "1 First St",
	})
	assertStatus(t, rec, http.StatusBadRequest)
	if errs := body["errors"].([]interface{}); len(errs) != 4 {
		t.Errorf("field errors = %d, want 4", len(errs))
	}
}
