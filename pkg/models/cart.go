package models

import "time"

// Cart models for the Redis-backed cart store. JSON field names are the wire
// format stored in Redis hash fields, one encoded LineItem per field.

// LineItem is one product in a user's cart. A nil ExpiresAt means the item is
// permanent: it is never dropped by lazy expiration or the background sweep.
type LineItem struct {
	ItemKey     string     `json:"cartItemId"`
	UserID      int64      `json:"userId"`
	ProductID   int64      `json:"productId"`
	Quantity    int        `json:"quantity"`
	UnitPrice   float64    `json:"price"`
	DisplayName string     `json:"name"`
	ImageRef    string     `json:"imageUrl,omitempty"`
	ExpiresAt   *time.Time `json:"expiryTime,omitempty"`
}

type AddToCartRequest struct {
	UserID    int64   `json:"userId" binding:"required"`
	ProductID int64   `json:"productId" binding:"required"`
	Quantity  int     `json:"quantity" binding:"required,min=1"`
	Price     float64 `json:"price"`
	Name      string  `json:"name"`
	ImageURL  string  `json:"imageUrl"`
}

type UpdateQuantityRequest struct {
	Quantity int `json:"quantity" binding:"required"`
}

type ExtendExpiryRequest struct {
	Days int `json:"days"`
}
