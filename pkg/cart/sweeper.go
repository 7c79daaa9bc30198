package cart

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultSweepInterval  = 15 * time.Minute
	DefaultSweepBatchSize = 100
)

// SweeperConfig tunes a Sweeper. Zero values fall back to the defaults above.
type SweeperConfig struct {
	// Interval between sweep cycles when running in the background.
	Interval time.Duration
	// BatchSize bounds each SCAN/HSCAN page so one huge cart cannot stall
	// the sweep on every other cart.
	BatchSize int64
}

// Sweeper is the out-of-band counterpart to lazy expiration: a stateless scan
// over every cart that deletes records whose expiry has passed, converging the
// store with per-item TTL intent even for users who never come back. It takes
// no per-user lock; safety against concurrent renewal comes from the
// compare-and-delete script shared with the store's lazy path.
type Sweeper struct {
	rdb       *redis.Client
	interval  time.Duration
	batchSize int64
	now       func() time.Time
}

func NewSweeper(rdb *redis.Client, cfg SweeperConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultSweepInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultSweepBatchSize
	}
	return &Sweeper{
		rdb:       rdb,
		interval:  cfg.Interval,
		batchSize: cfg.BatchSize,
		now:       time.Now,
	}
}

// Sweep scans every cart once and returns how many expired items it removed.
// A fault on one cart is logged and the remaining carts are still processed.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	removed := 0
	iter := s.rdb.Scan(ctx, 0, keyPrefix+"*", s.batchSize).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		n, err := s.sweepCart(ctx, key)
		removed += n
		if err != nil {
			log.Printf("Sweep of %s failed: %v", key, err)
		}
	}
	if err := iter.Err(); err != nil {
		return removed, backendErr(err)
	}
	return removed, nil
}

func (s *Sweeper) sweepCart(ctx context.Context, key string) (int, error) {
	removed := 0
	var cursor uint64
	for {
		fields, next, err := s.rdb.HScan(ctx, key, cursor, "*", s.batchSize).Result()
		if err != nil {
			return removed, backendErr(err)
		}
		for i := 0; i+1 < len(fields); i += 2 {
			field, raw := fields[i], fields[i+1]
			item, decErr := decodeItem([]byte(raw))
			if decErr != nil {
				log.Printf("Sweep skipping unreadable record %s/%s: %v", key, field, decErr)
				continue
			}
			if !expired(item, s.now()) {
				continue
			}
			n, err := hdelIfEqual.Run(ctx, s.rdb, []string{key}, field, raw).Int()
			if err != nil {
				return removed, backendErr(err)
			}
			removed += int(n)
		}
		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}

// Run sweeps on the configured interval until ctx is cancelled. Cycle faults
// are logged and never halt the loop.
func (s *Sweeper) Run(ctx context.Context) {
	log.Printf("Cart sweeper running every %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("Cart sweeper stopped: %v", ctx.Err())
			return
		case <-ticker.C:
			removed, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("Sweep cycle failed: %v", err)
				continue
			}
			if removed > 0 {
				log.Printf("Sweep removed %d expired cart items", removed)
			}
		}
	}
}
