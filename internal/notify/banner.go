package notify

import (
	"sync"
	"time"

	"github.com/sjnosa/connect/internal/models"
)

// DefaultBannerTTL is how long an in-app banner stays visible.
const DefaultBannerTTL = 5 * time.Second

type bannerEntry struct {
	item  models.NotificationItem
	timer *time.Timer
}

// Banner is the in-app notification sink. Every item expires on its own timer and can be
// dismissed earlier.
type Banner struct {
	ttl time.Duration

	mu    sync.Mutex
	items []*bannerEntry
}

func NewBanner(ttl time.Duration) *Banner {
	if ttl <= 0 {
		ttl = DefaultBannerTTL
	}
	return &Banner{ttl: ttl}
}

// Show makes item visible until its TTL elapses or it is dismissed.
func (b *Banner) Show(item models.NotificationItem) {
	e := &bannerEntry{item: item}
	b.mu.Lock()
	b.items = append(b.items, e)
	e.timer = time.AfterFunc(b.ttl, func() { b.remove(e) })
	b.mu.Unlock()
}

// Dismiss removes the item with id. It reports whether the item was still visible.
func (b *Banner) Dismiss(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.items {
		if e.item.ID == id {
			e.timer.Stop()
			b.items = append(b.items[:i], b.items[i+1:]...)
			return true
		}
	}
	return false
}

// Visible returns the items currently shown, oldest first.
func (b *Banner) Visible() []models.NotificationItem {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.NotificationItem, len(b.items))
	for i, e := range b.items {
		out[i] = e.item
	}
	return out
}

// Clear removes every item.
func (b *Banner) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.items {
		e.timer.Stop()
	}
	b.items = nil
}

func (b *Banner) remove(target *bannerEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.items {
		if e == target {
			b.items = append(b.items[:i], b.items[i+1:]...)
			return
		}
	}
}
