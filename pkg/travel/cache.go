package travel

import (
	"sync"
	"time"

	"github.com/jcourtner/wayfarer/pkg/character"
)

// characterCache is an advisory TTL cache of recently loaded characters.
// The store remains the source of truth: every mutation path writes
// through, and a stale hit is tolerated.
type characterCache struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]cacheEntry
}

type cacheEntry struct {
	c       *character.Character
	expires time.Time
}

func newCharacterCache(ttl time.Duration) *characterCache {
	return &characterCache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
	}
}

func cacheKey(guildID, userID string) string {
	return guildID + ":" + userID
}

func (cc *characterCache) get(guildID, userID string) (*character.Character, bool) {
	cc.mu.RLock()
	e, ok := cc.entries[cacheKey(guildID, userID)]
	cc.mu.RUnlock()
	if !ok || time.Now().After(e.expires) {
		return nil, false
	}
	return e.c, true
}

func (cc *characterCache) put(c *character.Character) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.entries[cacheKey(c.GuildID, c.UserID)] = cacheEntry{
		c:       c,
		expires: time.Now().Add(cc.ttl),
	}
}

func (cc *characterCache) invalidate(guildID, userID string) {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	delete(cc.entries, cacheKey(guildID, userID))
}
