package config

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

var RedisClient *redis.Client

// Cache policy for the two read-heavy surfaces. Stats move with every
// distribution so they expire quickly; the course catalogue changes only
// through admin CRUD, which invalidates it explicitly.
const (
	UserStatsCacheTTL = 10 * time.Minute
	CourseCacheTTL    = time.Hour
)

// UserStatsCacheKey returns the cache key for one user's dashboard stats.
func UserStatsCacheKey(userID string) string {
	return "userStats:" + userID
}

// CourseCacheKey returns the cache key for a catalogue listing. The status
// filter is part of the key; an empty status is the unfiltered listing.
func CourseCacheKey(status string) string {
	return "courses:" + status
}

// CourseCacheKeys returns every catalogue key, for invalidation.
func CourseCacheKeys() []string {
	return []string{
		CourseCacheKey(""),
		CourseCacheKey("active"),
		CourseCacheKey("inactive"),
	}
}

// ConnectRedis establishes connection to Redis
func ConnectRedis() *redis.Client {
	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		redisAddr = "localhost:6379"
	}

	redisPassword := os.Getenv("REDIS_PASSWORD")
	redisDB := 0

	if dbStr := os.Getenv("REDIS_DB"); dbStr != "" {
		if db, err := strconv.Atoi(dbStr); err == nil {
			redisDB = db
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := client.Ping(ctx).Result()
	if err != nil {
		log.Printf("Warning: Redis connection failed: %v", err)
		log.Println("Stats and course caching will be disabled")
		return nil
	}

	log.Println("Connected to Redis")
	RedisClient = client
	return client
}

// GetRedisClient returns the Redis client instance
func GetRedisClient() *redis.Client {
	return RedisClient
}

// CloseRedis closes the Redis connection
func CloseRedis() {
	if RedisClient != nil {
		RedisClient.Close()
	}
}
