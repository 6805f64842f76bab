package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/example/storefront/pkg/auth"
	"github.com/example/storefront/pkg/config"
	"github.com/example/storefront/pkg/models"
	"github.com/example/storefront/pkg/payment"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Store interfaces consumed by the handlers. The mongo-backed repositories
// in pkg/repository satisfy them; tests substitute in-memory fakes.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id primitive.ObjectID, role string) (*models.User, error)
	SetStripeCustomerID(ctx context.Context, id primitive.ObjectID, customerID string) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, page, limit int) ([]models.User, int64, error)
	Count(ctx context.Context) (int64, error)
	CountSince(ctx context.Context, since time.Time) (int64, error)
	CountVerified(ctx context.Context, verified bool) (int64, error)
}

type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, filter repository.ProductFilter) ([]models.Product, int64, error)
	Categories(ctx context.Context) ([]string, error)
	Brands(ctx context.Context) ([]string, error)
	AdjustStock(ctx context.Context, id primitive.ObjectID, delta int) error
}

type CartStore interface {
	FindByUser(ctx context.Context, user primitive.ObjectID) (*models.Cart, error)
	Create(ctx context.Context, cart *models.Cart) error
	Save(ctx context.Context, cart *models.Cart) error
}

type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error)
	Update(ctx context.Context, order *models.Order) error
	ListByUser(ctx context.Context, user primitive.ObjectID, page, limit int) ([]models.Order, int64, error)
	ListAll(ctx context.Context, filter repository.OrderFilter) ([]models.Order, int64, error)
}

type AuditStore interface {
	Record(ctx context.Context, entry *repository.AuditEntry) error
	ListByEntity(ctx context.Context, entityID string, limit int64) ([]*repository.AuditEntry, error)
}

// Cache is the optional redis layer. A nil Cache disables caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) error
	SetJSON(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Stores struct {
	Users    UserStore
	Products ProductStore
	Carts    CartStore
	Orders   OrderStore
	Audit    AuditStore
}

type Server struct {
	config   *config.Config
	logger   *zap.Logger
	router   *gin.Engine
	tokens   *auth.TokenManager
	users    UserStore
	products ProductStore
	carts    CartStore
	orders   OrderStore
	audit    AuditStore
	payments payment.Provider
	cache    Cache

	// Listing cache keys written since the last catalog mutation, so
	// invalidation covers every page/limit combination actually cached.
	cacheMu     sync.Mutex
	cachedPages map[string]struct{}
}

func NewServer(cfg *config.Config, logger *zap.Logger, st Stores, pay payment.Provider, cache Cache) *Server {
	if cfg.Server.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))

	origins := cfg.CORS.AllowOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Stripe-Signature"},
		AllowCredentials: true,
	}))

	s := &Server{
		config:   cfg,
		logger:   logger,
		router:   router,
		tokens:   auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.TTL),
		users:    st.Users,
		products: st.Products,
		carts:    st.Carts,
		orders:   st.Orders,
		audit:    st.Audit,
		payments: pay,
		cache:    cache,

		cachedPages: make(map[string]struct{}),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/api/health", s.health)

	api := s.router.Group("/api")

	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", s.register)
		authRoutes.POST("/login", s.login)
		authRoutes.GET("/me", s.requireAuth, s.getProfile)
		authRoutes.PUT("/profile", s.requireAuth, s.updateProfile)
	}

	products := api.Group("/products")
	{
		products.GET("", s.listProducts)
		products.GET("/categories", s.getCategories)
		products.GET("/brands", s.getBrands)
		products.GET("/:id", s.getProduct)
		products.POST("", s.requireAuth, s.requireAdmin, s.createProduct)
		products.PUT("/:id", s.requireAuth, s.requireAdmin, s.updateProduct)
		products.DELETE("/:id", s.requireAuth, s.requireAdmin, s.deleteProduct)
		products.POST("/:id/reviews", s.requireAuth, s.addReview)
	}

	cart := api.Group("/cart", s.requireAuth)
	{
		cart.GET("", s.getCart)
		cart.GET("/count", s.getCartCount)
		cart.POST("", s.addToCart)
		cart.PUT("/:productId", s.updateCartItem)
		cart.DELETE("/:productId", s.removeCartItem)
		cart.DELETE("", s.clearCart)
	}

	orders := api.Group("/orders", s.requireAuth)
	{
		orders.POST("", s.createOrder)
		orders.GET("", s.listOrders)
		orders.GET("/admin/all", s.requireAdmin, s.listAllOrders)
		orders.GET("/:id", s.getOrder)
		orders.PUT("/:id/status", s.requireAdmin, s.updateOrderStatus)
		orders.PUT("/:id/cancel", s.cancelOrder)
	}

	payments := api.Group("/payments")
	{
		payments.POST("/webhook", s.paymentWebhook)
		payments.POST("/create-payment-intent", s.requireAuth, s.createPaymentIntent)
		payments.POST("/confirm", s.requireAuth, s.confirmPayment)
		payments.GET("/methods", s.requireAuth, s.listPaymentMethods)
		payments.POST("/create-customer", s.requireAuth, s.createCustomer)
		payments.GET("/status/:paymentIntentId", s.requireAuth, s.getPaymentStatus)
	}

	users := api.Group("/users", s.requireAuth)
	{
		users.GET("", s.requireAdmin, s.listUsers)
		users.GET("/stats", s.requireAdmin, s.getUserStats)
		users.GET("/:id", s.requireAdmin, s.getUser)
		users.PUT("/:id/role", s.requireAdmin, s.updateUserRole)
		users.DELETE("/:id", s.requireAdmin, s.deleteUser)
		users.POST("/addresses", s.addAddress)
		users.PUT("/addresses/:addressId", s.updateAddress)
		users.DELETE("/addresses/:addressId", s.deleteAddress)
	}

	api.GET("/audit/:entityId", s.requireAuth, s.requireAdmin, s.listAuditEntries)

	s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

// Handler exposes the router for the http.Server and for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":      "OK",
		"message":     "E-commerce API is running",
		"environment": s.config.Server.Env,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}

// listAuditEntries returns the recent audit trail for one entity
// (a product, order, or user id).
func (s *Server) listAuditEntries(c *gin.Context) {
	if s.audit == nil {
		respondOK(c, "", []repository.AuditEntry{})
		return
	}
	entries, err := s.audit.ListByEntity(c.Request.Context(), c.Param("entityId"), 50)
	if err != nil {
		s.logger.Error("Failed to list audit entries", zap.Error(err))
		respondError(c, http.StatusInternalServerError, "Error fetching audit entries")
		return
	}
	if entries == nil {
		entries = []*repository.AuditEntry{}
	}
	respondOK(c, "", entries)
}

func (s *Server) recordAudit(action, entityID, actor string, data map[string]interface{}) {
	if s.audit == nil {
		return
	}
	entry := &repository.AuditEntry{
		Action:   action,
		EntityID: entityID,
		Actor:    actor,
		Data:     data,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.Record(ctx, entry); err != nil {
			s.logger.Warn("Failed to record audit entry", zap.String("action", action), zap.Error(err))
		}
	}()
}
