package httpserver

import (
	"context"
	"strings"
	"time"

	"storefront-cart/internal/domain"
	"storefront-cart/internal/idempotency"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	userIDKey            = "user_id"
	headerIdempotencyKey = "Idempotency-Key"
)

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID := c.GetString(userIDKey); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		switch {
		case status >= 500:
			logger.Error("request", fields...)
		case status >= 400:
			logger.Warn("request", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// authMiddleware accepts HS256 bearer tokens and stores the subject claim as
// the caller's user id.
func authMiddleware(secret []byte, logger *zap.Logger) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return func(c *gin.Context) {
		raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			respondError(c, logger, domain.ErrUnauthorized)
			return
		}

		claims := &jwt.RegisteredClaims{}
		token, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
			return secret, nil
		})
		if err != nil || !token.Valid {
			logger.Debug("rejected bearer token", zap.Error(err))
			respondError(c, logger, domain.ErrUnauthorized)
			return
		}
		if claims.Subject == "" {
			respondError(c, logger, domain.ErrUnauthorized)
			return
		}

		c.Set(userIDKey, claims.Subject)
		c.Next()
	}
}

// idempotencyMiddleware rejects a repeated Idempotency-Key from the same user on
// the same route. Requests without the header pass through. When the store is
// unreachable the request is served anyway.
func idempotencyMiddleware(store idempotency.Store, ttl time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(headerIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		scoped := strings.Join([]string{c.GetString(userIDKey), c.Request.Method, c.FullPath(), key}, ":")

		fresh, err := store.Reserve(c.Request.Context(), scoped, ttl)
		if err != nil {
			logger.Warn("idempotency store unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !fresh {
			respondError(c, logger, domain.ErrDuplicateRequest)
			return
		}

		c.Next()

		// A failed request may be retried with the same key.
		if c.Writer.Status() >= 500 {
			if err := store.Forget(context.WithoutCancel(c.Request.Context()), scoped); err != nil {
				logger.Warn("idempotency key not released", zap.Error(err))
			}
		}
	}
}

func userID(c *gin.Context) string {
	return c.GetString(userIDKey)
}
