// Package cache keeps reasoned classifications so repeated ingredients skip the reasoner.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"nhp/internal/domain"
)

// Key identifies an ingredient by normalized name and declared amount.
func Key(ing domain.Ingredient) string {
	name := strings.Join(strings.Fields(strings.ToLower(ing.Name)), " ")
	amount := strings.Join(strings.Fields(strings.ToLower(ing.DeclaredAmount)), "")
	hash := sha256.Sum256([]byte(name + "\x00" + amount))
	return hex.EncodeToString(hash[:16])
}

// MemoryCache is an in-process LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, domain.ClassificationResult]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 1024
	}
	return &MemoryCache{lru: expirable.NewLRU[string, domain.ClassificationResult](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) (domain.ClassificationResult, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Put(_ context.Context, key string, result domain.ClassificationResult) {
	c.lru.Add(key, result)
}

func (c *MemoryCache) Clear(context.Context) error {
	c.lru.Purge()
	return nil
}

func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (domain.ClassificationResult, bool) {
	return domain.ClassificationResult{}, false
}

func (Nop) Put(context.Context, string, domain.ClassificationResult) {}

func (Nop) Clear(context.Context) error { return nil }
