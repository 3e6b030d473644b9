package retrigger

import (
	"sync"
	"time"

	"github.com/FloatTech/ttl"

	"github.com/pouncebot/pounce/bot/msg"
)

// trackerTTL is how long an idle cooldown window survives before the cache
// reclaims it; it only needs to outlive the longest window anyone would
// configure.
const trackerTTL = 24 * time.Hour

type window struct {
	mu    sync.Mutex
	start time.Time
	fires int
}

// cooldowns tracks fire counts per (guild, trigger, scope key) window
type cooldowns struct {
	cache *ttl.Cache[string, *window]
	now   func() time.Time
}

func newCooldowns() *cooldowns {
	return &cooldowns{
		cache: ttl.NewCache[string, *window](trackerTTL),
		now:   time.Now,
	}
}

func scopeKey(guild string, t *Trigger, m msg.Message) string {
	key := guild + "\x00" + t.Name + "\x00"
	switch t.Cooldown.Style {
	case "channel":
		return key + m.Channel
	case "author", "member":
		if m.User != nil {
			return key + m.User.ID
		}
	}
	return key
}

func (c *cooldowns) rate(t *Trigger) int {
	if t.Cooldown.Rate <= 0 {
		return 1
	}
	return t.Cooldown.Rate
}

// allow reports whether the trigger may fire in its current window
func (c *cooldowns) allow(guild string, t *Trigger, m msg.Message) bool {
	if t.Cooldown.Zero() {
		return true
	}
	w := c.cache.Get(scopeKey(guild, t, m))
	if w == nil {
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if c.now().Sub(w.start) >= t.Cooldown.Window() {
		return true
	}
	return w.fires < c.rate(t)
}

// record counts a fire against the trigger's current window
func (c *cooldowns) record(guild string, t *Trigger, m msg.Message) {
	if t.Cooldown.Zero() {
		return
	}
	key := scopeKey(guild, t, m)
	w := c.cache.Get(key)
	if w == nil {
		w = &window{}
		c.cache.Set(key, w)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := c.now()
	if w.start.IsZero() || now.Sub(w.start) >= t.Cooldown.Window() {
		w.start = now
		w.fires = 0
	}
	w.fires++
}
