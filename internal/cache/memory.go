package cache

import (
	"context"
	"sync"
	"time"

	"github.com/masterlinc/orchestrator/internal/models"
)

// entry pairs a cached workflow with its expiry deadline
type entry struct {
	wf        *models.Workflow
	expiresAt time.Time
}

// MemoryCache is an in-process WorkflowCache with lazy TTL expiry. It is
// the default backend for minimal deployments without Redis.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an in-memory cache with the given TTL
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the cached workflow, or nil without error on a miss
func (c *MemoryCache) Get(_ context.Context, workflowID string) (*models.Workflow, error) {
	c.mu.RLock()
	e, ok := c.entries[workflowID]
	c.mu.RUnlock()

	if !ok {
		return nil, nil
	}

	if c.now().After(e.expiresAt) {
		c.mu.Lock()
		// Re-check under the write lock; a Set may have refreshed it
		if cur, ok := c.entries[workflowID]; ok && c.now().After(cur.expiresAt) {
			delete(c.entries, workflowID)
		}
		c.mu.Unlock()
		return nil, nil
	}

	return e.wf.Clone(), nil
}

// Set stores the workflow under its ID with the cache's TTL
func (c *MemoryCache) Set(_ context.Context, wf *models.Workflow) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[wf.WorkflowID] = entry{
		wf:        wf.Clone(),
		expiresAt: c.now().Add(c.ttl),
	}
	return nil
}

// Delete evicts the workflow from the cache
func (c *MemoryCache) Delete(_ context.Context, workflowID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, workflowID)
	return nil
}

// Len returns the number of live entries, counting expired ones not yet
// lazily evicted
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
