// Package cache keeps each location's full history in memory, backed by the
// persistent store. Writes go to the store first so a crash never loses a
// committed record set.
package cache

import (
	"sync"

	"go.uber.org/zap"

	"github.com/NasaLegend/nasa-spaceapps-2/internal/models"
	"github.com/NasaLegend/nasa-spaceapps-2/internal/store"
)

// Entry is one cached location's record set and the label of the source that
// produced it.
type Entry struct {
	Records []models.ClimateRecord
	Source  string
}

// LocationCache is a write-through cache keyed by location key.
type LocationCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	store   *store.Store
	logger  *zap.Logger
}

// New returns an empty cache backed by st.
func New(st *store.Store, logger *zap.Logger) *LocationCache {
	return &LocationCache{
		entries: make(map[string]Entry),
		store:   st,
		logger:  logger,
	}
}

// Hydrate loads every persisted location into memory. Called once at startup;
// a decode failure for one location is logged and skipped.
func (c *LocationCache) Hydrate() error {
	infos, err := c.store.ListLocations()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, info := range infos {
		records, source, err := c.store.LoadRecords(info.Key)
		if err != nil {
			c.logger.Warn("skipping unreadable cached location",
				zap.String("locationKey", info.Key),
				zap.Error(err))
			continue
		}
		c.entries[info.Key] = Entry{Records: records, Source: source}
	}
	c.logger.Info("location cache hydrated", zap.Int("locations", len(c.entries)))
	return nil
}

// Get returns the cached entry for a key.
func (c *LocationCache) Get(key string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[key]
	return e, ok
}

// Put persists the record set, then updates memory. The store write happening
// first means a false return leaves the cache unchanged.
func (c *LocationCache) Put(key, source string, records []models.ClimateRecord) error {
	if err := c.store.SaveRecords(key, source, records); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries[key] = Entry{Records: records, Source: source}
	c.mu.Unlock()
	return nil
}

// Clear removes one location from memory and the store.
func (c *LocationCache) Clear(key string) error {
	if err := c.store.DeleteRecords(key); err != nil {
		return err
	}
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// ClearAll removes every location from memory and the store.
func (c *LocationCache) ClearAll() error {
	if err := c.store.DeleteAll(); err != nil {
		return err
	}
	c.mu.Lock()
	c.entries = make(map[string]Entry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of cached locations.
func (c *LocationCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
