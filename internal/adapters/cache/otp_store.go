// Package cache holds the OTP code and request-counter stores.
package cache

import "time"

// Options configures an OTP store
type Options struct {
	CodeTTL         time.Duration
	CodeCapacity    int
	RequestWindow   time.Duration
	RequestCapacity int
}

// Backend names reported by the stores
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)
