package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/lumenshop/storefront/internal/application"
	"github.com/lumenshop/storefront/internal/domain/entity"
	"github.com/lumenshop/storefront/pkg/response"
	"github.com/lumenshop/storefront/pkg/validation"
)

type CartHandler struct {
	Svc    *application.CartService
	Logger *logrus.Logger
}

func NewCartHandler(svc *application.CartService, logger *logrus.Logger) *CartHandler {
	return &CartHandler{Svc: svc, Logger: logger}
}

type mergeItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

type mergeRequest struct {
	SessionID string             `json:"sessionId" binding:"required,uuid"`
	Items     []mergeItemRequest `json:"items" binding:"required,dive"`
}

func cartPayload(cart *entity.Cart) gin.H {
	items := make([]gin.H, 0, len(cart.Items))
	for _, it := range cart.Items {
		items = append(items, gin.H{"productId": it.ProductID, "quantity": it.Quantity})
	}
	return gin.H{"items": items}
}

// GetCart GET /api/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.Svc.GetCart(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "failed to load cart", nil)
		return
	}
	response.Success(c, http.StatusOK, cartPayload(cart), "cart", nil)
}

// Merge POST /api/cart/merge
// Appends guest line items into the user's cart. Safe to retry: a replay with
// the same guest session id returns the current cart unchanged.
func (h *CartHandler) Merge(c *gin.Context) {
	var req mergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	items := make([]entity.CartItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, entity.CartItem{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	cart, err := h.Svc.MergeGuestItems(c.Request.Context(), c.GetString("userID"), req.SessionID, items)
	if err != nil {
		response.Error[any](c, http.StatusInternalServerError, "failed to merge cart", nil)
		return
	}
	response.Success(c, http.StatusOK, cartPayload(cart), "cart merged", nil)
}
