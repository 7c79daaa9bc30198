package router

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopbridge/cart-service/pkg/cart"
	"github.com/shopbridge/cart-service/pkg/catalog"
	"github.com/shopbridge/cart-service/pkg/global"
	"github.com/shopbridge/cart-service/pkg/models"
)

// Handler maps the HTTP surface onto the cart store. The catalog is optional:
// when present it backfills product snapshot fields the add request left out.
type Handler struct {
	store      *cart.Store
	sweeper    *cart.Sweeper
	catalog    *catalog.Service
	extendDays int
}

func NewHandler(store *cart.Store, sweeper *cart.Sweeper, cat *catalog.Service, extendDays int) *Handler {
	if extendDays < 1 {
		extendDays = 7
	}
	return &Handler{
		store:      store,
		sweeper:    sweeper,
		catalog:    cat,
		extendDays: extendDays,
	}
}

func RegisterRoutes(engine *gin.Engine, h *Handler) {
	api := engine.Group("/api")
	{
		api.GET("/health", h.HealthCheck)

		cartGroup := api.Group("/cart")
		{
			cartGroup.POST("/add", h.AddToCart)
			cartGroup.POST("/cleanup", h.CleanupExpiredItems)

			byUser := cartGroup.Group("/:userId", UserIDMiddleware())
			{
				byUser.GET("", h.GetCartItems)
				byUser.DELETE("", h.ClearCart)
				byUser.PUT("/items/:itemKey/quantity", h.UpdateQuantity)
				byUser.DELETE("/items/:itemKey", h.RemoveFromCart)
				byUser.POST("/extend-expiry", h.ExtendExpiry)
				byUser.POST("/make-permanent", h.MakePermanent)
			}
		}
	}
}

func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Backend connection failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]string{"status": "OK", "backend": "Connected"}))
}

// GetCartItems lists the user's cart. A backend fault is logged and degrades
// to an empty list so unrelated browse flows keep working.
func (h *Handler) GetCartItems(c *gin.Context) {
	userID := c.GetInt64("userID")

	items, err := h.store.ListItems(c.Request.Context(), userID)
	if err != nil {
		log.Printf("Listing cart for user %d degraded to empty: %v", userID, err)
	}
	c.JSON(http.StatusOK, global.SuccessResponse(items))
}

func (h *Handler) AddToCart(c *gin.Context) {
	var req models.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", []global.ValidationError{
			{Field: "body", Message: err.Error(), Code: "json_parse_error"},
		}))
		return
	}

	ctx := c.Request.Context()

	// Backfill the product snapshot from the catalog when the request omits
	// it and a catalog is wired.
	if h.catalog != nil && (req.Name == "" || req.Price <= 0) {
		product, err := h.catalog.GetProduct(ctx, req.ProductID)
		switch {
		case errors.Is(err, catalog.ErrProductNotFound):
			c.JSON(http.StatusNotFound, global.ErrorResponse("Product not found", []global.ValidationError{
				{Field: "productId", Message: "no product exists with this id", Code: "not_found"},
			}))
			return
		case err != nil:
			log.Printf("Catalog lookup for product %d failed: %v", req.ProductID, err)
			c.JSON(http.StatusInternalServerError, global.ErrorResponse("Failed to resolve product", nil))
			return
		}
		if req.Name == "" {
			req.Name = product.Name
		}
		if req.ImageURL == "" {
			req.ImageURL = product.ImageURL
		}
		if req.Price <= 0 {
			req.Price = product.Price
		}
	}

	item, err := h.store.AddItem(ctx, cart.AddItemInput{
		UserID:      req.UserID,
		ProductID:   req.ProductID,
		Quantity:    req.Quantity,
		UnitPrice:   req.Price,
		DisplayName: req.Name,
		ImageRef:    req.ImageURL,
	})
	if err != nil {
		h.renderError(c, err, "Failed to add item to cart")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(item))
}

func (h *Handler) UpdateQuantity(c *gin.Context) {
	userID := c.GetInt64("userID")
	itemKey := c.Param("itemKey")

	var req models.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", []global.ValidationError{
			{Field: "body", Message: err.Error(), Code: "json_parse_error"},
		}))
		return
	}

	if err := h.store.UpdateQuantity(c.Request.Context(), userID, itemKey, req.Quantity); err != nil {
		h.renderError(c, err, "Failed to update quantity")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(nil))
}

func (h *Handler) RemoveFromCart(c *gin.Context) {
	userID := c.GetInt64("userID")
	itemKey := c.Param("itemKey")

	if err := h.store.RemoveItem(c.Request.Context(), userID, itemKey); err != nil {
		h.renderError(c, err, "Failed to remove item")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(nil))
}

func (h *Handler) ClearCart(c *gin.Context) {
	userID := c.GetInt64("userID")

	if err := h.store.ClearCart(c.Request.Context(), userID); err != nil {
		h.renderError(c, err, "Failed to clear cart")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(nil))
}

func (h *Handler) ExtendExpiry(c *gin.Context) {
	userID := c.GetInt64("userID")

	req := models.ExtendExpiryRequest{Days: h.extendDays}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, global.ErrorResponse("Invalid request body", []global.ValidationError{
				{Field: "body", Message: err.Error(), Code: "json_parse_error"},
			}))
			return
		}
	}

	if err := h.store.ExtendExpiry(c.Request.Context(), userID, req.Days); err != nil {
		h.renderError(c, err, "Failed to extend cart expiry")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(nil))
}

func (h *Handler) MakePermanent(c *gin.Context) {
	userID := c.GetInt64("userID")

	if err := h.store.MakePermanent(c.Request.Context(), userID); err != nil {
		h.renderError(c, err, "Failed to make cart permanent")
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(nil))
}

func (h *Handler) CleanupExpiredItems(c *gin.Context) {
	removed, err := h.sweeper.Sweep(c.Request.Context())
	if err != nil {
		log.Printf("Triggered sweep failed after removing %d items: %v", removed, err)
		c.JSON(http.StatusInternalServerError, global.ErrorResponse("Sweep failed", nil))
		return
	}
	c.JSON(http.StatusOK, global.SuccessResponse(map[string]int{"removed": removed}))
}

func (h *Handler) renderError(c *gin.Context, err error, message string) {
	switch {
	case errors.Is(err, cart.ErrNotFound):
		c.JSON(http.StatusNotFound, global.ErrorResponse("Not found", nil))
	case errors.Is(err, cart.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, global.ErrorResponse("Cart is empty", nil))
	case errors.Is(err, cart.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, global.ErrorResponse(err.Error(), nil))
	default:
		log.Printf("%s: %v", message, err)
		c.JSON(http.StatusInternalServerError, global.ErrorResponse(message, nil))
	}
}
