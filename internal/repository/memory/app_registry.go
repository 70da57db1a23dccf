package memory

import (
	"time"

	"finsight-be/pkg/app"

	"github.com/patrickmn/go-cache"
)

// AppRegistry keeps one app container per browser session id. Containers idle for longer
// than the expiry are evicted and closed.
type AppRegistry struct {
	cache *cache.Cache
}

func NewAppRegistry(idle time.Duration) *AppRegistry {
	c := cache.New(idle, idle/3)
	c.OnEvicted(func(_ string, v interface{}) {
		if container, ok := v.(*app.Container); ok {
			container.Close()
		}
	})
	return &AppRegistry{cache: c}
}

func (r *AppRegistry) Save(container *app.Container) {
	r.cache.Set(container.Id, container, cache.DefaultExpiration)
}

// Get returns the container and slides its expiry.
func (r *AppRegistry) Get(sessionID string) (*app.Container, bool) {
	x, found := r.cache.Get(sessionID)
	if !found {
		return nil, false
	}
	container := x.(*app.Container)
	r.cache.Set(sessionID, container, cache.DefaultExpiration)
	return container, true
}

// Delete removes and closes the container.
func (r *AppRegistry) Delete(sessionID string) {
	r.cache.Delete(sessionID)
}

func (r *AppRegistry) Count() int {
	return r.cache.ItemCount()
}

// Flush closes every container, used on shutdown.
func (r *AppRegistry) Flush() {
	for id := range r.cache.Items() {
		r.cache.Delete(id)
	}
}
