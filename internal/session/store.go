// Package session keeps one dashboard controller per browser view. A view is
// mounted on first page load and unmounted when it is ended explicitly or
// goes idle past the TTL.
package session

import (
	"time"

	"github.com/google/uuid"

	"subtrack/internal/cache"
	"subtrack/internal/catalog"
	"subtrack/internal/core"
)

// Unmount reasons passed to OnUnmount callbacks.
const (
	ReasonEnded   = "ended"
	ReasonEvicted = "evicted"
)

// View is the state owned by one mounted dashboard.
type View struct {
	ID        string
	Dashboard *core.Dashboard
	MountedAt time.Time
}

// Store holds mounted views in a TTL-bounded LRU.
type Store struct {
	catalog   *catalog.Catalog
	views     *cache.LRUCache[*View]
	onUnmount func(v *View, reason string)
}

// NewStore creates a store holding at most maxViews views, each expiring after
// ttl without activity.
func NewStore(cat *catalog.Catalog, maxViews int, ttl time.Duration) *Store {
	s := &Store{
		catalog: cat,
		views:   cache.NewLRUCache[*View](maxViews, ttl),
	}
	s.views.OnEvict(func(_ string, v *View) {
		s.notify(v, ReasonEvicted)
	})
	return s
}

// OnUnmount registers a callback for views leaving the store. It must be set
// before the store is shared between goroutines.
func (s *Store) OnUnmount(fn func(v *View, reason string)) {
	s.onUnmount = fn
}

// Mount creates a fresh view with every subscription selected.
func (s *Store) Mount() *View {
	v := &View{
		ID:        uuid.NewString(),
		Dashboard: core.NewDashboard(s.catalog.All()),
		MountedAt: time.Now(),
	}
	s.views.Set(v.ID, v)
	return v
}

// Resume returns a mounted view and extends its lifetime.
func (s *Store) Resume(id string) (*View, bool) {
	if id == "" || !s.views.Touch(id) {
		return nil, false
	}
	return s.views.Get(id)
}

// Unmount discards a view. It reports whether the view existed.
func (s *Store) Unmount(id string) bool {
	v, ok := s.views.Get(id)
	if !ok {
		return false
	}
	s.views.Delete(id)
	s.notify(v, ReasonEnded)
	return true
}

// Size returns the number of mounted views.
func (s *Store) Size() int {
	return s.views.Size()
}

// CleanExpired unmounts idle views.
func (s *Store) CleanExpired() int {
	return s.views.CleanExpired()
}

// Catalog returns the catalog views are built from.
func (s *Store) Catalog() *catalog.Catalog {
	return s.catalog
}

func (s *Store) notify(v *View, reason string) {
	if s.onUnmount != nil && v != nil {
		s.onUnmount(v, reason)
	}
}
