package httpserver

import (
	"context"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/logger"
	"storefront/internal/reconcile"
	"storefront/internal/session"
)

// CommerceSession is the per-customer view of the commerce API the handlers
// operate through. *commerce.SessionClient satisfies it.
type CommerceSession interface {
	Token() string
	ActiveOrder(ctx context.Context) (*domain.Order, error)
	AddItem(ctx context.Context, variantID string, quantity int) (*domain.Order, error)
	AdjustLine(ctx context.Context, lineID string, quantity int) error
	RemoveLine(ctx context.Context, lineID string) error
	TransitionToPayment(ctx context.Context) (*domain.Order, error)
	Products(ctx context.Context, take, skip int) ([]domain.Product, error)
	ProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
}

// SessionFactory binds a commerce session token to a CommerceSession.
type SessionFactory func(token string) CommerceSession

// SessionStore is what the HTTP layer needs from the session manager.
type SessionStore interface {
	Issue(ctx context.Context) (*session.Session, error)
	Resolve(ctx context.Context, token string) (*session.Session, error)
	Bind(ctx context.Context, s *session.Session, commerceToken, orderID string) error
}

// ContentAPI reads editorial content.
type ContentAPI interface {
	Posts(ctx context.Context, page, perPage int) ([]domain.Post, error)
	PostBySlug(ctx context.Context, slug string) (*domain.Post, error)
	PageBySlug(ctx context.Context, slug string) (*domain.Page, error)
}

// Deps carries everything the routes need.
type Deps struct {
	Commerce   SessionFactory
	Sessions   SessionStore
	Orders     cache.OrderCache
	Reconciler *reconcile.Reconciler
	Content    ContentAPI
}

// buildRouter wires routes for the storefront API.
func buildRouter(log *zap.Logger, db *pgxpool.Pool, deps Deps, allowedOrigins []string) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(logger.GinMiddleware(log), logger.GinRecovery(log))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowOrigins = allowedOrigins
	corsCfg.AllowHeaders = append(corsCfg.AllowHeaders, "Authorization")
	router.Use(cors.New(corsCfg))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(db))

	h := &handlers{deps: deps, logger: log}

	api := router.Group("/api")
	api.POST("/session", h.createSession)

	api.GET("/products", h.listProducts)
	api.GET("/products/:slug", h.getProduct)

	api.GET("/content/posts", h.listPosts)
	api.GET("/content/posts/:slug", h.getPost)
	api.GET("/content/pages/:slug", h.getPage)

	authed := api.Group("")
	authed.Use(sessionMiddleware(deps.Sessions))
	authed.GET("/cart", h.getCart)
	authed.PUT("/cart", h.updateCart)
	authed.POST("/cart/lines", h.addCartLine)
	authed.POST("/checkout", h.checkout)

	return router, nil
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}
