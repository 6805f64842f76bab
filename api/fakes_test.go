package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// In-memory stores backing the handler tests. Not safe for concurrent
// use; the tests are sequential.

type fakeUserStore struct {
	users map[primitive.ObjectID]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[primitive.ObjectID]*models.User)}
}

func (f *fakeUserStore) Create(_ context.Context, user *models.User) error {
	user.ID = primitive.NewObjectID()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	if user.Role == "" {
		user.Role = models.RoleUser
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUserStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) Update(_ context.Context, user *models.User) error {
	if _, ok := f.users[user.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeUserStore) UpdateRole(_ context.Context, id primitive.ObjectID, role string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.Role = role
	cp := *u
	return &cp, nil
}

func (f *fakeUserStore) SetStripeCustomerID(_ context.Context, id primitive.ObjectID, customerID string) error {
	u, ok := f.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.StripeCustomerID = customerID
	return nil
}

func (f *fakeUserStore) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := f.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeUserStore) List(_ context.Context, page, limit int) ([]models.User, int64, error) {
	all := make([]models.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (f *fakeUserStore) Count(_ context.Context) (int64, error) {
	return int64(len(f.users)), nil
}

func (f *fakeUserStore) CountSince(_ context.Context, since time.Time) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeUserStore) CountVerified(_ context.Context, verified bool) (int64, error) {
	var n int64
	for _, u := range f.users {
		if u.IsEmailVerified == verified {
			n++
		}
	}
	return n, nil
}

type fakeProductStore struct {
	products map[primitive.ObjectID]*models.Product
	findErr  error
}

func newFakeProductStore() *fakeProductStore {
	return &fakeProductStore{products: make(map[primitive.ObjectID]*models.Product)}
}

func (f *fakeProductStore) Create(_ context.Context, product *models.Product) error {
	product.ID = primitive.NewObjectID()
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeProductStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	p, ok := f.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeProductStore) Update(_ context.Context, product *models.Product) error {
	if _, ok := f.products[product.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *product
	f.products[product.ID] = &cp
	return nil
}

func (f *fakeProductStore) Delete(_ context.Context, id primitive.ObjectID) error {
	if _, ok := f.products[id]; !ok {
		return repository.ErrNotFound
	}
	delete(f.products, id)
	return nil
}

func (f *fakeProductStore) List(_ context.Context, filter repository.ProductFilter) ([]models.Product, int64, error) {
	all := make([]models.Product, 0, len(f.products))
	for _, p := range f.products {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		all = append(all, *p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func (f *fakeProductStore) Categories(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range f.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeProductStore) Brands(_ context.Context) ([]string, error) {
	seen := map[string]bool{}
	var out []string
	for _, p := range f.products {
		if p.Brand != "" && !seen[p.Brand] {
			seen[p.Brand] = true
			out = append(out, p.Brand)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (f *fakeProductStore) AdjustStock(_ context.Context, id primitive.ObjectID, delta int) error {
	p, ok := f.products[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.Stock += delta
	return nil
}

type fakeCartStore struct {
	carts map[primitive.ObjectID]*models.Cart
}

func newFakeCartStore() *fakeCartStore {
	return &fakeCartStore{carts: make(map[primitive.ObjectID]*models.Cart)}
}

func copyCartItems(items []models.CartItem) []models.CartItem {
	cp := make([]models.CartItem, len(items))
	copy(cp, items)
	return cp
}

func (f *fakeCartStore) FindByUser(_ context.Context, user primitive.ObjectID) (*models.Cart, error) {
	c, ok := f.carts[user]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	cp.Items = copyCartItems(c.Items)
	return &cp, nil
}

func (f *fakeCartStore) Create(_ context.Context, cart *models.Cart) error {
	cart.ID = primitive.NewObjectID()
	cp := *cart
	cp.Items = copyCartItems(cart.Items)
	f.carts[cart.User] = &cp
	return nil
}

func (f *fakeCartStore) Save(_ context.Context, cart *models.Cart) error {
	cp := *cart
	cp.Items = copyCartItems(cart.Items)
	f.carts[cart.User] = &cp
	return nil
}

type fakeOrderStore struct {
	orders map[primitive.ObjectID]*models.Order
}

func newFakeOrderStore() *fakeOrderStore {
	return &fakeOrderStore{orders: make(map[primitive.ObjectID]*models.Order)}
}

func (f *fakeOrderStore) Create(_ context.Context, order *models.Order) error {
	order.ID = primitive.NewObjectID()
	if order.Status == "" {
		order.Status = models.StatusPending
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderStore) FindByID(_ context.Context, id primitive.ObjectID) (*models.Order, error) {
	o, ok := f.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (f *fakeOrderStore) Update(_ context.Context, order *models.Order) error {
	if _, ok := f.orders[order.ID]; !ok {
		return repository.ErrNotFound
	}
	cp := *order
	f.orders[order.ID] = &cp
	return nil
}

func (f *fakeOrderStore) ListByUser(_ context.Context, user primitive.ObjectID, page, limit int) ([]models.Order, int64, error) {
	var all []models.Order
	for _, o := range f.orders {
		if o.User == user {
			all = append(all, *o)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, page, limit), int64(len(all)), nil
}

func (f *fakeOrderStore) ListAll(_ context.Context, filter repository.OrderFilter) ([]models.Order, int64, error) {
	var all []models.Order
	for _, o := range f.orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		all = append(all, *o)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return paginate(all, filter.Page, filter.Limit), int64(len(all)), nil
}

func paginate[T any](all []T, page, limit int) []T {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= len(all) {
		return []T{}
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end]
}

// fakeProvider scripts payment processor behavior per test.
type fakeProvider struct {
	createIntentFunc   func(ctx context.Context, params payment.IntentParams) (*payment.Intent, error)
	retrieveIntentFunc func(ctx context.Context, id string) (*payment.Intent, error)
	verifyWebhookFunc  func(payload []byte, signature string) (*payment.Event, error)
	customers          int
}

func (f *fakeProvider) CreateCustomer(_ context.Context, email, name, userID string) (string, error) {
	f.customers++
	return "cus_test", nil
}

func (f *fakeProvider) CreateIntent(ctx context.Context, params payment.IntentParams) (*payment.Intent, error) {
	if f.createIntentFunc != nil {
		return f.createIntentFunc(ctx, params)
	}
	return &payment.Intent{
		ID:           "pi_test",
		ClientSecret: "pi_test_secret",
		Status:       "requires_payment_method",
		Amount:       params.AmountCents,
		Currency:     params.Currency,
		OrderID:      params.OrderID,
	}, nil
}

func (f *fakeProvider) RetrieveIntent(ctx context.Context, id string) (*payment.Intent, error) {
	if f.retrieveIntentFunc != nil {
		return f.retrieveIntentFunc(ctx, id)
	}
	return &payment.Intent{ID: id, Status: payment.StatusSucceeded}, nil
}

func (f *fakeProvider) ListCardMethods(_ context.Context, customerID string) ([]payment.CardMethod, error) {
	return []payment.CardMethod{}, nil
}

func (f *fakeProvider) VerifyWebhook(payload []byte, signature string) (*payment.Event, error) {
	if f.verifyWebhookFunc != nil {
		return f.verifyWebhookFunc(payload, signature)
	}
	return &payment.Event{Type: "noop"}, nil
}

// fakeCache is an in-memory stand-in for the redis wrapper.
type fakeCache struct {
	data map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: make(map[string][]byte)}
}

func (f *fakeCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	b, ok := f.data[key]
	if !ok {
		return errors.New("cache miss")
	}
	return json.Unmarshal(b, dest)
}

func (f *fakeCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	b, err := json.Marshal(value)
	if err != nil {
		return err
	}
	f.data[key] = b
	return nil
}

func (f *fakeCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

type testEnv struct {
	server   *Server
	users    *fakeUserStore
	products *fakeProductStore
	carts    *fakeCartStore
	orders   *fakeOrderStore
	provider *fakeProvider
	cache    *fakeCache
	tokens   *auth.TokenManager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, nil)
}

func newTestEnvWithCache(t *testing.T) *testEnv {
	t.Helper()
	return buildTestEnv(t, newFakeCache())
}

func buildTestEnv(t *testing.T, cache *fakeCache) *testEnv {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{Env: "test"},
		JWT:    config.JWTConfig{Secret: "test-secret", TTL: time.Hour},
	}
	env := &testEnv{
		users:    newFakeUserStore(),
		products: newFakeProductStore(),
		carts:    newFakeCartStore(),
		orders:   newFakeOrderStore(),
		provider: &fakeProvider{},
		cache:    cache,
		tokens:   auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL),
	}
	var serverCache Cache
	if cache != nil {
		serverCache = cache
	}
	env.server = NewServer(cfg, zap.NewNop(), Stores{
		Users:    env.users,
		Products: env.products,
		Carts:    env.carts,
		Orders:   env.orders,
	}, env.provider, serverCache)
	return env
}

// seedUser creates a user directly in the store and returns it with a
// valid bearer token.
func (e *testEnv) seedUser(t *testing.T, email, role string) (*models.User, string) {
	t.Helper()
	hash, err := auth.HashPassword("password123")
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{Name: "Test User", Email: email, Password: hash, Role: role}
	if err := e.users.Create(context.Background(), user); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	token, err := e.tokens.Generate(user.ID.Hex(), role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	return user, token
}

func (e *testEnv) seedProduct(t *testing.T, name string, price float64, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:        name,
		Description: "A product used in tests",
		Price:       price,
		Stock:       stock,
		Category:    "Electronics",
		Images:      []string{"test.jpg"},
		IsActive:    true,
	}
	if err := e.products.Create(context.Background(), product); err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product
}

// do performs a request against the server and decodes the JSON envelope.
func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, decoded
}

func assertStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body: %s)", rec.Code, want, rec.Body.String())
	}
}
