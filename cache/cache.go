package cache

import (
	"fmt"
	"sync"
	"time"

	"github.com/karlseguin/ccache/v3"

	"github.com/stxfxno/listify/youtube"
)

// Cache holds the relay's two TTL caches: exchanged bearer tokens keyed by
// client id, and search results keyed by query. Expiry-on-read only, no
// other eviction policy.
type Cache struct {
	Tokens   TokensCache
	Searches SearchesCache
}

func New() *Cache {
	tokensCache := ccache.New(
		ccache.Configure[string]().
			MaxSize(100).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	searchesCache := ccache.New(
		ccache.Configure[*youtube.Video]().
			MaxSize(10_000).
			GetsPerPromote(3).
			ItemsToPrune(1),
	)

	return &Cache{
		Tokens: TokensCache{
			c:   tokensCache,
			mux: sync.Mutex{},
		},
		Searches: SearchesCache{
			c:   searchesCache,
			mux: sync.Mutex{},
		},
	}
}

type TokensCache struct {
	c   *ccache.Cache[string]
	mux sync.Mutex
}

func (c *TokensCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (string, error),
) (*ccache.Item[string], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch token: %w", err)
	}

	return v, nil
}

type SearchesCache struct {
	c   *ccache.Cache[*youtube.Video]
	mux sync.Mutex
}

func (c *SearchesCache) Fetch(
	k string,
	ttl time.Duration,
	fetch func() (*youtube.Video, error),
) (*ccache.Item[*youtube.Video], error) {
	c.mux.Lock()
	defer c.mux.Unlock()

	v, err := c.c.Fetch(k, ttl, fetch)
	if nil != err {
		return nil, fmt.Errorf("fetch search result: %w", err)
	}

	return v, nil
}
