package redis

import (
	"github.com/redis/go-redis/v9"

	"github.com/shopbridge/cart-service/pkg/global"
)

// NewClient builds the Redis handle from the environment. The caller owns the
// client and is responsible for closing it; everything downstream receives it
// by injection.
func NewClient() *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     global.GetEnvOrDefault("REDIS_ADDRESS", "localhost:6379"),
		Password: global.GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       0,
		Protocol: 2,
	})
}
