package config

import (
	"fmt"

	"github.com/google/uuid"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// SessionSnapshotKey returns the cache key for a session's participant snapshot
func (r *CacheKeyStruct) SessionSnapshotKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("live:session:%s:snapshot", sessionID)
}

// SessionScoresPublishedKey marks that a completed session's standings were queued
func (r *CacheKeyStruct) SessionScoresPublishedKey(sessionID uuid.UUID) string {
	return fmt.Sprintf("live:session:%s:scores_published", sessionID)
}

// JoinRateKey returns the rate limiter bucket for a client IP
func (r *CacheKeyStruct) JoinRateKey(ip string) string {
	return fmt.Sprintf("live:ratelimit:join:%s", ip)
}

var CacheKey = NewCacheKeyStruct()
