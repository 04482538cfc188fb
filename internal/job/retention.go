package job

import (
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// retention expires terminal jobs after a TTL.
type retention struct {
	mu    sync.Mutex
	cache *gocache.Cache // nil once closed
}

func newRetention(ttl, cleanupInterval time.Duration, onExpire func(id string)) *retention {
	if cleanupInterval <= 0 {
		cleanupInterval = ttl / 2
	}
	c := gocache.New(ttl, cleanupInterval)
	c.OnEvicted(func(id string, _ interface{}) {
		onExpire(id)
	})
	return &retention{cache: c}
}

// track starts the TTL of a terminal job.
func (r *retention) track(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache != nil {
		r.cache.SetDefault(id, struct{}{})
	}
}

// forget drops a job evicted by hand. OnEvicted still fires; the callback
// sees ErrNotFound.
func (r *retention) forget(id string) {
	r.mu.Lock()
	c := r.cache
	r.mu.Unlock()
	if c != nil {
		c.Delete(id)
	}
}

// close drops pending expirations and releases the cache. go-cache stops its
// janitor goroutine from a finalizer once the cache is unreachable.
func (r *retention) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cache != nil {
		r.cache.Flush()
		r.cache = nil
	}
}

func (r *retention) closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cache == nil
}
