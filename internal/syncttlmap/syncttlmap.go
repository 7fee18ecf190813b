// Package syncttlmap implements a concurrency safe map whose entries expire
// after a fixed TTL. It backs the in flight poll guard so two workers never
// poll the same operation at the same time.
package syncttlmap

import (
	"sync"
	"time"
)

// TTLMap structure
type TTLMap struct {
	TTL  time.Duration
	data sync.Map
}

type expireEntry struct {
	ExpiresAt time.Time
	Value     interface{}
}

// New returns a new TTLMap
func New(ttl time.Duration) *TTLMap {
	return &TTLMap{TTL: ttl}
}

// Store saves a key/value pair into TTLMap
func (t *TTLMap) Store(key string, val interface{}) {
	t.data.Store(key, expireEntry{
		ExpiresAt: time.Now().Add(t.TTL),
		Value:     val,
	})
}

// Delete deletes the given key from TTLMap
func (t *TTLMap) Delete(key string) {
	t.data.Delete(key)
}

// Load retrieves the value of the given key from TTLMap. Expired entries
// return nil.
func (t *TTLMap) Load(key string) (val interface{}) {
	entry, ok := t.data.Load(key)
	if !ok {
		return nil
	}

	expireEntry, ok := entry.(expireEntry)
	if !ok {
		return nil
	}

	if time.Now().After(expireEntry.ExpiresAt) {
		return nil
	}

	return expireEntry.Value
}

// LoadOrStore returns the existing non expired value for the key if present.
// Otherwise it stores val and returns it. loaded is true if the value was
// already present. The check and the store are a single atomic step, so
// concurrent callers for one key agree on exactly one winner.
func (t *TTLMap) LoadOrStore(key string, val interface{}) (actual interface{}, loaded bool) {
	for {
		entry, found := t.data.LoadOrStore(key, expireEntry{
			ExpiresAt: time.Now().Add(t.TTL),
			Value:     val,
		})
		if !found {
			return val, false
		}
		existing, ok := entry.(expireEntry)
		if ok && time.Now().Before(existing.ExpiresAt) {
			return existing.Value, true
		}
		// the stored entry expired, evict exactly that entry and race for
		// the slot again
		t.data.CompareAndDelete(key, entry)
	}
}

// CleaningBackground starts a go routine for cleaning expired entries
func (t *TTLMap) CleaningBackground(cleaning time.Duration) {
	go func() {
		for now := range time.Tick(cleaning) {
			t.data.Range(func(k, v interface{}) bool {
				if expireEntry, ok := v.(expireEntry); ok && now.After(expireEntry.ExpiresAt) {
					t.data.Delete(k)
				}
				return true
			})
		}
	}()
}
