package continuity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"wrap-render-server/modules/render"
	"wrap-render-server/modules/renderset"
)

// Store is a byte oriented key/value store. Get returns nil, nil for a missing key.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type view struct {
	Type render.ViewType `json:"type"`
	URL  string          `json:"url"`
}

// entry - persisted shape, timestamp in unix milliseconds
type entry struct {
	Views     []view `json:"views"`
	Timestamp int64  `json:"timestamp"`
}

// Cache keeps the last render set per scope and mode so in-progress work
// survives reloads. Scope is the customer id or the design session id.
type Cache struct {
	store Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewCache(store Store, log zerolog.Logger) *Cache {
	return &Cache{store: store, log: log, now: time.Now}
}

// Key - continuity:{scope}:{mode}
func Key(scope string, mode render.Mode) string {
	if scope == "" {
		scope = "anonymous"
	}
	return fmt.Sprintf("continuity:%s:%s", scope, mode)
}

// Save overwrites the entry for scope and mode.
func (c *Cache) Save(ctx context.Context, scope string, mode render.Mode, rs *renderset.RenderSet) error {
	e := entry{Views: []view{}, Timestamp: c.now().UnixMilli()}
	if rs != nil {
		for _, item := range rs.Entries() {
			e.Views = append(e.Views, view{Type: item.View, URL: item.URL})
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode continuity entry: %w", err)
	}
	if err := c.store.Set(ctx, Key(scope, mode), data); err != nil {
		return fmt.Errorf("failed to save continuity entry: %w", err)
	}
	return nil
}

// Load returns the saved set, or an empty one when nothing usable is stored.
// The returned set is never nil; a non-nil error only reports a store failure.
func (c *Cache) Load(ctx context.Context, scope string, mode render.Mode) (*renderset.RenderSet, error) {
	rs, _, err := c.LoadWithTime(ctx, scope, mode)
	return rs, err
}

// LoadWithTime also reports when the entry was saved, zero when absent.
func (c *Cache) LoadWithTime(ctx context.Context, scope string, mode render.Mode) (*renderset.RenderSet, time.Time, error) {
	key := Key(scope, mode)

	data, err := c.store.Get(ctx, key)
	if err != nil {
		return renderset.New(), time.Time{}, fmt.Errorf("failed to read continuity entry: %w", err)
	}
	if len(data) == 0 {
		return renderset.New(), time.Time{}, nil
	}

	var e entry
	if err := json.Unmarshal(data, &e); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("⚠️  [Continuity] Discarding unreadable entry")
		return renderset.New(), time.Time{}, nil
	}

	entries := make([]renderset.Entry, 0, len(e.Views))
	for _, v := range e.Views {
		entries = append(entries, renderset.Entry{View: v.Type, URL: v.URL})
	}
	return renderset.FromEntries(entries), time.UnixMilli(e.Timestamp), nil
}

// Clear drops the entry for scope and mode.
func (c *Cache) Clear(ctx context.Context, scope string, mode render.Mode) error {
	if err := c.store.Delete(ctx, Key(scope, mode)); err != nil {
		return fmt.Errorf("failed to clear continuity entry: %w", err)
	}
	return nil
}
