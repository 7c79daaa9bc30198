package cart

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopbridge/cart-service/pkg/models"
)

// encodeItem serializes a line item to the JSON document stored as a hash
// field value.
func encodeItem(item models.LineItem) ([]byte, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("encoding line item %s: %w", item.ItemKey, err)
	}
	return data, nil
}

// decodeItem is the inverse of encodeItem. Malformed input, or a document
// missing its item key, reports ErrCorruptRecord.
func decodeItem(data []byte) (models.LineItem, error) {
	var item models.LineItem
	if err := json.Unmarshal(data, &item); err != nil {
		return models.LineItem{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	if item.ItemKey == "" {
		return models.LineItem{}, fmt.Errorf("%w: record has no item key", ErrCorruptRecord)
	}
	return item, nil
}

// expired reports whether the item's logical expiry has passed. Permanent
// items (no expiry) never expire.
func expired(item models.LineItem, now time.Time) bool {
	return item.ExpiresAt != nil && item.ExpiresAt.Before(now)
}
