package cache

import (
	"math/rand/v2"
	"strconv"
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"
)

// ComputeFunc produces the derived value for one record.
type ComputeFunc func() string

// Computation memoizes a derived string per record ID for the lifetime of a
// session. Entries never expire and are never recomputed.
type Computation struct {
	items  *gocache.Cache
	logger zerolog.Logger

	mu       sync.Mutex
	inflight map[int]*computeCall
}

// computeCall is a computation in progress for one ID. done is closed once
// value is set.
type computeCall struct {
	done  chan struct{}
	value string
}

// NewComputation creates an empty computation cache.
func NewComputation(logger zerolog.Logger) *Computation {
	return &Computation{
		// no default expiration, no janitor
		items:    gocache.New(gocache.NoExpiration, 0),
		logger:   logger,
		inflight: make(map[int]*computeCall),
	}
}

// GetOrCompute returns the value stored for id, calling fn to produce and
// store it on first access. fn is not called when a value is present.
// Concurrent misses for the same id wait for a single call of fn; misses
// for different ids run independently.
func (c *Computation) GetOrCompute(id int, fn ComputeFunc) string {
	key := strconv.Itoa(id)

	if v, ok := c.lookup(key); ok {
		c.logger.Debug().Int("record_id", id).Bool("cache_hit", true).Msg("Served from cache")
		return v
	}

	c.mu.Lock()
	// Another caller may have filled the entry since the first lookup.
	if v, ok := c.lookup(key); ok {
		c.mu.Unlock()
		c.logger.Debug().Int("record_id", id).Bool("cache_hit", true).Msg("Served from cache")
		return v
	}
	if call, ok := c.inflight[id]; ok {
		c.mu.Unlock()
		<-call.done
		CacheHits.WithLabelValues(LayerMemory).Inc()
		c.logger.Debug().Int("record_id", id).Bool("cache_hit", true).Msg("Served from cache")
		return call.value
	}
	call := &computeCall{done: make(chan struct{})}
	c.inflight[id] = call
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.inflight, id)
		c.mu.Unlock()
		close(call.done)
	}()

	CacheMisses.WithLabelValues(LayerMemory).Inc()
	call.value = fn()
	c.items.Set(key, call.value, gocache.NoExpiration)
	CacheEntries.WithLabelValues(LayerMemory).Set(float64(c.items.ItemCount()))

	c.logger.Debug().
		Int("record_id", id).
		Bool("cache_hit", false).
		Str("value", call.value).
		Msg("Computed derived value")

	return call.value
}

// Len returns the number of memoized entries.
func (c *Computation) Len() int {
	return c.items.ItemCount()
}

func (c *Computation) lookup(key string) (string, bool) {
	item, ok := c.items.Get(key)
	if !ok {
		return "", false
	}
	v, ok := item.(string)
	if ok {
		CacheHits.WithLabelValues(LayerMemory).Inc()
	}
	return v, ok
}

// RandomSum is the reference derived computation: the sum of two independent
// uniform integers in [1,100].
func RandomSum() string {
	a := rand.IntN(100) + 1
	b := rand.IntN(100) + 1
	return strconv.Itoa(a + b)
}
