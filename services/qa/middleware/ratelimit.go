// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package middleware provides gin middleware for the QA API.
package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/MedQA/services/qa/observability"
)

// staleClientAge is how long an idle client's limiter is kept before
// the sweep discards it.
const staleClientAge = 10 * time.Minute

// clientLimiter pairs a token bucket with its last use.
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter applies a per-client-IP token bucket.
//
// # Thread Safety
//
// Safe for concurrent use; the client map is mutex-guarded and each
// token bucket is internally synchronized.
type RateLimiter struct {
	rps     rate.Limit
	burst   int
	metrics *observability.Metrics

	mu      sync.Mutex
	clients map[string]*clientLimiter
}

// NewRateLimiter builds a limiter allowing rps requests per second
// with the given burst per client IP. metrics may be nil.
func NewRateLimiter(rps float64, burst int, metrics *observability.Metrics) *RateLimiter {
	return &RateLimiter{
		rps:     rate.Limit(rps),
		burst:   burst,
		metrics: metrics,
		clients: make(map[string]*clientLimiter),
	}
}

// Middleware returns the gin handler enforcing the limit. Rejected
// requests get 429 with a retry hint.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow(c.ClientIP()) {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimited(c.FullPath())
			}
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cl, ok := rl.clients[ip]
	if !ok {
		// Sweep before inserting so the new entry cannot be evicted
		// by its own zero lastSeen.
		rl.sweepLocked(now)
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst), lastSeen: now}
		rl.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter.Allow()
}

// sweepLocked drops limiters idle past staleClientAge. Called with the
// mutex held, only when a new client arrives, so steady-state traffic
// pays nothing.
func (rl *RateLimiter) sweepLocked(now time.Time) {
	for ip, cl := range rl.clients {
		if now.Sub(cl.lastSeen) > staleClientAge {
			delete(rl.clients, ip)
		}
	}
}
