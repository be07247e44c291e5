package httpserver

import (
	"fmt"
	"net/http"

	"storefront-cart/internal/domain"
	cartsvc "storefront-cart/internal/service/cart"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type cartHandler struct {
	svc    cartService
	logger *zap.Logger
}

func (h *cartHandler) get(c *gin.Context) {
	cart, err := h.svc.GetCart(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, cart)
}

func (h *cartHandler) add(c *gin.Context) {
	var in cartsvc.AddInput
	if !h.bind(c, &in) {
		return
	}
	line, err := h.svc.AddToCart(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusCreated, line)
}

func (h *cartHandler) increment(c *gin.Context) {
	var in cartsvc.ItemInput
	if !h.bind(c, &in) {
		return
	}
	line, err := h.svc.Increment(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, line)
}

func (h *cartHandler) decrement(c *gin.Context) {
	var in cartsvc.ItemInput
	if !h.bind(c, &in) {
		return
	}
	line, err := h.svc.Decrement(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if line == nil {
		respondMessage(c, http.StatusOK, "item removed from cart")
		return
	}
	respondData(c, http.StatusOK, line)
}

func (h *cartHandler) remove(c *gin.Context) {
	var in cartsvc.ItemInput
	if !h.bind(c, &in) {
		return
	}
	if err := h.svc.Remove(c.Request.Context(), userID(c), in); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "item removed from cart")
}

func (h *cartHandler) clear(c *gin.Context) {
	if err := h.svc.ClearCart(c.Request.Context(), userID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "cart cleared")
}

func (h *cartHandler) deleteCart(c *gin.Context) {
	if err := h.svc.DeleteCart(c.Request.Context(), userID(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "cart deleted")
}

func (h *cartHandler) applyDiscount(c *gin.Context) {
	var in cartsvc.DiscountInput
	if !h.bind(c, &in) {
		return
	}
	code, err := h.svc.ApplyDiscount(c.Request.Context(), userID(c), in)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondData(c, http.StatusOK, code)
}

func (h *cartHandler) removeDiscount(c *gin.Context) {
	var in cartsvc.DiscountInput
	if !h.bind(c, &in) {
		return
	}
	if err := h.svc.RemoveDiscount(c.Request.Context(), userID(c), in); err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondMessage(c, http.StatusOK, "discount removed from cart")
}

func (h *cartHandler) bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, h.logger, fmt.Errorf("%w: malformed body: %v", domain.ErrInvalidInput, err))
		return false
	}
	return true
}
