package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/shopbridge/cart-service/internal/router"
	"github.com/shopbridge/cart-service/pkg/cart"
	"github.com/shopbridge/cart-service/pkg/catalog"
	"github.com/shopbridge/cart-service/pkg/global"
	redisconn "github.com/shopbridge/cart-service/pkg/redis"
)

func main() {

	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file loaded, using process environment: %v", err)
	}

	rdb := redisconn.NewClient()
	defer rdb.Close()

	ctx, cancel := global.GetDefaultTimer()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to ping Redis: %v", err)
	}
	cancel()
	log.Println("Connected to Redis successfully")

	itemTTL := time.Duration(global.GetEnvIntOrDefault("CART_ITEM_TTL_HOURS", 24)) * time.Hour
	store := cart.NewStore(rdb, cart.Config{ItemTTL: itemTTL})

	sweepInterval := time.Duration(global.GetEnvIntOrDefault("SWEEP_INTERVAL_MINUTES", 15)) * time.Minute
	sweeper := cart.NewSweeper(rdb, cart.SweeperConfig{Interval: sweepInterval})

	var cat *catalog.Service
	if uri := os.Getenv("MONGODB_URI"); uri != "" {
		ctx, cancel := global.GetDefaultTimer()
		var err error
		cat, err = catalog.Connect(ctx, uri, global.GetEnvOrDefault("MONGODB_DATABASE", "shopbridge"))
		cancel()
		if err != nil {
			log.Fatalf("Failed to connect to MongoDB: %v", err)
		}
		defer cat.Close(context.Background())
		log.Println("Connected to MongoDB successfully")
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()
	go sweeper.Run(sweepCtx)

	engine := router.NewEngine()
	extendDays := global.GetEnvIntOrDefault("CART_EXTEND_DAYS", 7)
	router.RegisterRoutes(engine, router.NewHandler(store, sweeper, cat, extendDays))

	port := global.GetEnvOrDefault("PORT", "8000")
	log.Printf("Cart service is running on port %s", port)

	if err := engine.Run(":" + port); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
