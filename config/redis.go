package config

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

// RDB stays nil when REDIS_ADDR is unset; callers must treat a nil client
// as "caching disabled".
var RDB *redis.Client

func ConnectRedis() {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		log.Println("REDIS_ADDR not set, score caching disabled")
		return
	}

	RDB = redis.NewClient(&redis.Options{
		Addr: redisAddr,
	})

	if _, err := RDB.Ping(context.Background()).Result(); err != nil {
		log.Printf("Failed to connect to Redis, caching disabled: %v", err)
		RDB = nil
		return
	}

	log.Println("Connected to Redis")
}
