package cache

import (
	"breeze/internal/common"
	"fmt"
	"time"

	"github.com/go-redis/redis/v7"
)

type InitRedisOpts struct {
	Addr        string
	Username    string
	Password    string
	ServiceLogs chan<- common.ServiceLog
}

// InitRedis initialises a singleton instance of a Redis cache
func InitRedis(opts InitRedisOpts) error {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Username: opts.Username,
		Password: opts.Password,
	})
	if err := client.Ping().Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	if opts.ServiceLogs != nil {
		opts.ServiceLogs <- common.ServiceLogf(common.LogLevelDebug, "connected to redis at addr[%s]", opts.Addr)
	}
	instance = &redisCache{client: client}
	return nil
}

type redisCache struct {
	client *redis.Client
}

func (r *redisCache) Set(key string, value string, ttl time.Duration) error {
	if err := r.client.Set(key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key[%s]: %w", key, err)
	}
	return nil
}

func (r *redisCache) SetIfNotExists(key string, value string, ttl time.Duration) (bool, error) {
	isSet, err := r.client.SetNX(key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to setnx key[%s]: %w", key, err)
	}
	return isSet, nil
}

func (r *redisCache) Get(key string) (string, error) {
	value, err := r.client.Get(key).Result()
	if err != nil {
		if err == redis.Nil {
			return "", nil
		}
		return "", fmt.Errorf("failed to get key[%s]: %w", key, err)
	}
	return value, nil
}

func (r *redisCache) Del(key string) error {
	if err := r.client.Del(key).Err(); err != nil {
		return fmt.Errorf("failed to delete key[%s]: %w", key, err)
	}
	return nil
}
