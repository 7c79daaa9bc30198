package cart

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/shopbridge/cart-service/pkg/models"
)

const keyPrefix = "cart:"

const (
	DefaultItemTTL   = 24 * time.Hour
	DefaultOpTimeout = 5 * time.Second
)

// hdelIfEqual deletes a hash field only when its value still matches the bytes
// the caller read. A record renewed between the read and the delete no longer
// matches and is left alone.
var hdelIfEqual = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] then
	return redis.call("HDEL", KEYS[1], ARGV[1])
end
return 0
`)

func cartKey(userID int64) string {
	return fmt.Sprintf("%s%d", keyPrefix, userID)
}

// ItemKey derives the stable per-user item identifier for a product.
func ItemKey(userID, productID int64) string {
	return fmt.Sprintf("%d:%d", userID, productID)
}

// Config tunes a Store. Zero values fall back to the defaults above.
type Config struct {
	// ItemTTL is the default expiry horizon for new and merged items.
	ItemTTL time.Duration
	// OpTimeout bounds every backend round trip.
	OpTimeout time.Duration
}

// Store owns the mapping from users to their cart line items. All durable
// state lives in Redis: one hash per user keyed cart:{userId}, one field per
// item, value = JSON-encoded LineItem, plus a key TTL on the hash itself. The
// Redis handle is injected and owned by the caller.
type Store struct {
	rdb       *redis.Client
	locks     *userLocks
	itemTTL   time.Duration
	opTimeout time.Duration
	now       func() time.Time
}

func NewStore(rdb *redis.Client, cfg Config) *Store {
	if cfg.ItemTTL <= 0 {
		cfg.ItemTTL = DefaultItemTTL
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	return &Store{
		rdb:       rdb,
		locks:     newUserLocks(),
		itemTTL:   cfg.ItemTTL,
		opTimeout: cfg.OpTimeout,
		now:       time.Now,
	}
}

// Ping verifies the backend connection.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.rdb.Ping(ctx).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

// ListItems returns the user's non-expired items ordered by item key. Expired
// records found along the way are deleted (lazy cleanup) and excluded; corrupt
// records are logged and skipped. A backend fault yields an empty slice plus
// the fault, so callers can keep rendering an empty cart.
func (s *Store) ListItems(ctx context.Context, userID int64) ([]models.LineItem, error) {
	if userID <= 0 {
		return []models.LineItem{}, fmt.Errorf("%w: user id must be positive", ErrInvalidArgument)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := cartKey(userID)
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return []models.LineItem{}, backendErr(err)
	}

	items := make([]models.LineItem, 0, len(fields))
	for field, raw := range fields {
		item, decErr := decodeItem([]byte(raw))
		if decErr != nil {
			log.Printf("Skipping unreadable cart record %s/%s: %v", key, field, decErr)
			continue
		}
		if expired(item, s.now()) {
			if delErr := s.deleteIfUnchanged(ctx, key, field, raw); delErr != nil {
				log.Printf("Lazy delete of expired item %s/%s failed: %v", key, field, delErr)
			}
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].ItemKey < items[j].ItemKey })
	return items, nil
}

// AddItemInput carries everything needed to create an item, including the
// denormalized product snapshot taken at add time.
type AddItemInput struct {
	UserID      int64
	ProductID   int64
	Quantity    int
	UnitPrice   float64
	DisplayName string
	ImageRef    string
}

func (in AddItemInput) validate() error {
	if in.UserID <= 0 || in.ProductID <= 0 {
		return fmt.Errorf("%w: ids must be positive", ErrInvalidArgument)
	}
	if in.Quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidArgument)
	}
	if in.UnitPrice < 0 {
		return fmt.Errorf("%w: unit price must not be negative", ErrInvalidArgument)
	}
	return nil
}

// AddItem creates the item for (userID, productID) or merges into the existing
// one: quantities accumulate and the expiry is refreshed to now+TTL. Merging
// into a permanent item preserves permanence; an ordinary add never
// reintroduces an expiry that MakePermanent cleared. The container TTL is
// refreshed alongside unless the container key has been pinned.
func (s *Store) AddItem(ctx context.Context, in AddItemInput) (*models.LineItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	unlock, err := s.locks.lock(ctx, in.UserID)
	if err != nil {
		return nil, fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := cartKey(in.UserID)
	field := ItemKey(in.UserID, in.ProductID)

	keyTTL, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return nil, backendErr(err)
	}

	var item models.LineItem
	raw, err := s.rdb.HGet(ctx, key, field).Result()
	switch {
	case err == nil:
		existing, decErr := decodeItem([]byte(raw))
		if decErr != nil {
			log.Printf("Replacing unreadable cart record %s/%s: %v", key, field, decErr)
			item = s.newItem(in, field)
		} else {
			item = existing
			item.Quantity += in.Quantity
			if item.ExpiresAt != nil {
				exp := s.now().Add(s.itemTTL)
				item.ExpiresAt = &exp
			}
		}
	case errors.Is(err, redis.Nil):
		item = s.newItem(in, field)
	default:
		return nil, backendErr(err)
	}

	data, err := encodeItem(item)
	if err != nil {
		return nil, err
	}
	if err := s.rdb.HSet(ctx, key, field, data).Err(); err != nil {
		return nil, backendErr(err)
	}

	// keyTTL of -1 means the container was pinned by MakePermanent; resetting
	// it would put every permanent item back on the clock.
	if keyTTL != -1 {
		if err := s.rdb.Expire(ctx, key, s.itemTTL).Err(); err != nil {
			return nil, backendErr(err)
		}
	}
	return &item, nil
}

func (s *Store) newItem(in AddItemInput, field string) models.LineItem {
	exp := s.now().Add(s.itemTTL)
	return models.LineItem{
		ItemKey:     field,
		UserID:      in.UserID,
		ProductID:   in.ProductID,
		Quantity:    in.Quantity,
		UnitPrice:   in.UnitPrice,
		DisplayName: in.DisplayName,
		ImageRef:    in.ImageRef,
		ExpiresAt:   &exp,
	}
}

// UpdateQuantity replaces the quantity of an existing item, leaving its expiry
// untouched. Quantity below 1 is rejected; removal stays its own operation.
// A missing, expired, or unreadable record reports ErrNotFound.
func (s *Store) UpdateQuantity(ctx context.Context, userID int64, itemKey string, quantity int) error {
	if userID <= 0 || itemKey == "" {
		return fmt.Errorf("%w: user id and item key are required", ErrInvalidArgument)
	}
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidArgument)
	}

	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := cartKey(userID)
	raw, err := s.rdb.HGet(ctx, key, itemKey).Result()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return backendErr(err)
	}

	item, decErr := decodeItem([]byte(raw))
	if decErr != nil {
		log.Printf("Unreadable cart record %s/%s on update: %v", key, itemKey, decErr)
		return ErrNotFound
	}
	if expired(item, s.now()) {
		if delErr := s.deleteIfUnchanged(ctx, key, itemKey, raw); delErr != nil {
			log.Printf("Lazy delete of expired item %s/%s failed: %v", key, itemKey, delErr)
		}
		return ErrNotFound
	}

	item.Quantity = quantity
	data, err := encodeItem(item)
	if err != nil {
		return err
	}
	if err := s.rdb.HSet(ctx, key, itemKey, data).Err(); err != nil {
		return backendErr(err)
	}
	return nil
}

// RemoveItem deletes one item from the user's cart.
func (s *Store) RemoveItem(ctx context.Context, userID int64, itemKey string) error {
	if userID <= 0 || itemKey == "" {
		return fmt.Errorf("%w: user id and item key are required", ErrInvalidArgument)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	removed, err := s.rdb.HDel(ctx, cartKey(userID), itemKey).Result()
	if err != nil {
		return backendErr(err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// ClearCart deletes the whole container, items and TTL together.
func (s *Store) ClearCart(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidArgument)
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	removed, err := s.rdb.Del(ctx, cartKey(userID)).Result()
	if err != nil {
		return backendErr(err)
	}
	if removed == 0 {
		return ErrNotFound
	}
	return nil
}

// ExtendExpiry moves every current item's expiry to now + days and resets the
// container TTL to the same horizon, never one without the other. An empty
// cart reports ErrEmptyCart.
func (s *Store) ExtendExpiry(ctx context.Context, userID int64, days int) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidArgument)
	}
	if days < 1 {
		return fmt.Errorf("%w: days must be at least 1", ErrInvalidArgument)
	}

	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := cartKey(userID)
	items, err := s.liveItems(ctx, key)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrEmptyCart
	}

	horizon := time.Duration(days) * 24 * time.Hour
	exp := s.now().Add(horizon)

	pipe := s.rdb.TxPipeline()
	for _, item := range items {
		item.ExpiresAt = &exp
		data, err := encodeItem(item)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, item.ItemKey, data)
	}
	pipe.Expire(ctx, key, horizon)
	if _, err := pipe.Exec(ctx); err != nil {
		return backendErr(err)
	}
	return nil
}

// MakePermanent clears the expiry on every current item and removes the
// container TTL entirely. From then on items leave the cart only by explicit
// removal or clear.
func (s *Store) MakePermanent(ctx context.Context, userID int64) error {
	if userID <= 0 {
		return fmt.Errorf("%w: user id must be positive", ErrInvalidArgument)
	}

	unlock, err := s.locks.lock(ctx, userID)
	if err != nil {
		return fmt.Errorf("acquiring user lock: %w", err)
	}
	defer unlock()

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	key := cartKey(userID)
	items, err := s.liveItems(ctx, key)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return ErrEmptyCart
	}

	pipe := s.rdb.TxPipeline()
	for _, item := range items {
		item.ExpiresAt = nil
		data, err := encodeItem(item)
		if err != nil {
			return err
		}
		pipe.HSet(ctx, key, item.ItemKey, data)
	}
	pipe.Persist(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return backendErr(err)
	}
	return nil
}

// liveItems reads every decodable, non-expired record under key. Expired
// records are lazily deleted on the way through, matching ListItems.
func (s *Store) liveItems(ctx context.Context, key string) ([]models.LineItem, error) {
	fields, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, backendErr(err)
	}

	items := make([]models.LineItem, 0, len(fields))
	for field, raw := range fields {
		item, decErr := decodeItem([]byte(raw))
		if decErr != nil {
			log.Printf("Skipping unreadable cart record %s/%s: %v", key, field, decErr)
			continue
		}
		if expired(item, s.now()) {
			if delErr := s.deleteIfUnchanged(ctx, key, field, raw); delErr != nil {
				log.Printf("Lazy delete of expired item %s/%s failed: %v", key, field, delErr)
			}
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *Store) deleteIfUnchanged(ctx context.Context, key, field, raw string) error {
	return hdelIfEqual.Run(ctx, s.rdb, []string{key}, field, raw).Err()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}
