package config

import "time"

type RedisConfig interface {
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetStoreTimeout() time.Duration
}

type Redis struct{}

var _ RedisConfig = Redis{}

func (Redis) GetRedisAddr() string {
	return GetEnv("REDIS_ADDR", "localhost:6379")
}

func (Redis) GetRedisPassword() string {
	return GetEnv("REDIS_PASSWORD", "")
}

func (Redis) GetRedisDB() int {
	return GetEnvInt("REDIS_DB", 0)
}

// GetStoreTimeout bounds every renewal store round-trip.
func (Redis) GetStoreTimeout() time.Duration {
	return GetEnvDuration("STORE_TIMEOUT", 3*time.Second)
}
