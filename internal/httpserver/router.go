package httpserver

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/idempotency"
	cartsvc "storefront-cart/internal/service/cart"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cartService interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	AddToCart(ctx context.Context, userID string, in cartsvc.AddInput) (*domain.CartLine, error)
	Increment(ctx context.Context, userID string, in cartsvc.ItemInput) (*domain.CartLine, error)
	Decrement(ctx context.Context, userID string, in cartsvc.ItemInput) (*domain.CartLine, error)
	Remove(ctx context.Context, userID string, in cartsvc.ItemInput) error
	ClearCart(ctx context.Context, userID string) error
	DeleteCart(ctx context.Context, userID string) error
	ApplyDiscount(ctx context.Context, userID string, in cartsvc.DiscountInput) (*domain.DiscountCode, error)
	RemoveDiscount(ctx context.Context, userID string, in cartsvc.DiscountInput) error
}

type itemService interface {
	List(ctx context.Context) ([]domain.Item, error)
	Get(ctx context.Context, id string) (*domain.Item, error)
	Search(ctx context.Context, query string) ([]domain.Item, error)
}

// Deps are the collaborators the router needs. Idempotency is optional.
type Deps struct {
	CartSvc        cartService
	ItemSvc        itemService
	Store          Pinger
	JWTSecret      string
	CORSOrigins    []string
	Idempotency    idempotency.Store
	IdempotencyTTL time.Duration
}

// buildRouter wires routes for the API.
func buildRouter(logger *zap.Logger, deps Deps) (*gin.Engine, error) {
	if deps.CartSvc == nil || deps.ItemSvc == nil {
		return nil, errors.New("cart and item services are required")
	}
	if deps.JWTSecret == "" {
		return nil, errors.New("jwt secret is required")
	}

	router := gin.New()
	router.Use(requestLogger(logger), gin.Recovery(), cors.New(corsConfig(deps.CORSOrigins)))

	router.GET("/healthz", healthHandler)
	router.GET("/readyz", readyHandler(deps.Store))

	items := &itemHandler{svc: deps.ItemSvc, logger: logger.Named("item.handler")}
	itemRoutes := router.Group("/items")
	itemRoutes.GET("", items.list)
	itemRoutes.GET("/search", items.search)
	itemRoutes.GET("/:id", items.get)

	carts := &cartHandler{svc: deps.CartSvc, logger: logger.Named("cart.handler")}
	cartRoutes := router.Group("/cart", authMiddleware([]byte(deps.JWTSecret), logger))
	cartRoutes.GET("", carts.get)

	mutations := cartRoutes.Group("")
	if deps.Idempotency != nil {
		ttl := deps.IdempotencyTTL
		if ttl <= 0 {
			ttl = 10 * time.Minute
		}
		mutations.Use(idempotencyMiddleware(deps.Idempotency, ttl, logger))
	}
	mutations.POST("/add", carts.add)
	mutations.PATCH("/inc-item", carts.increment)
	mutations.PATCH("/dec-item", carts.decrement)
	mutations.DELETE("/remove", carts.remove)
	mutations.DELETE("", carts.deleteCart)
	mutations.POST("/clear", carts.clear)
	mutations.POST("/add-discount", carts.applyDiscount)
	mutations.DELETE("/remove-discount", carts.removeDiscount)

	router.NoRoute(func(c *gin.Context) {
		respondError(c, logger, domain.ErrNotFound)
	})

	return router, nil
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Authorization", "Content-Type", headerIdempotencyKey},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
