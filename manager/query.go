package manager

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/offsync/cache-common/store"
	"github.com/offsync/cache-common/utils"
)

// QueryIdentity describes a query: a statement plus its parameter list.
// The manager derives the cache key from it deterministically, equal
// identities always map to the same key.
type QueryIdentity struct {
	Statement  string
	Parameters []string
}

// FetchFunc retrieves the authoritative value for a query. The manager
// places no timeout of its own, bounding the fetch is the caller's job.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// QueryOptions defines per-query options for Query
type QueryOptions struct {
	// Domain selects the store, DefaultDomain when empty
	Domain string
	// TTL overrides the store default for the cached result when > 0
	TTL time.Duration
	// Tags are attached to the cached result
	Tags []string
	// ForceRefresh skips the fresh cache read
	ForceRefresh bool
}

// WarmUpQuery is one entry of a warm-up batch
type WarmUpQuery[T any] struct {
	Identity QueryIdentity
	Fetch    FetchFunc[T]
	Domain   string
	TTL      time.Duration
	Tags     []string
}

// deriveKey returns the cache key for an identity, memoizing the hash
func (manager *Manager[T]) deriveKey(identity QueryIdentity) string {
	normalized := utils.NormalizeKey(identity.Statement, identity.Parameters)

	if key, ok := manager.keyCache.Get(normalized); ok {
		return key.(string)
	}

	key := utils.MakeHash(normalized)
	manager.keyCache.Add(normalized, key)
	return key
}

// Query answers a query cache-aside. The cached value is served when the
// network is reachable and the entry is fresh. On a miss the fetch runs
// and its result is cached. When the fetch fails, a physically cached
// value is served even past its TTL, trading consistency for
// availability, otherwise the fetch error is returned untouched.
func (manager *Manager[T]) Query(ctx context.Context, identity QueryIdentity, fetch FetchFunc[T], options *QueryOptions) (T, error) {
	var zero T

	domain := DefaultDomain
	forceRefresh := false
	setOptions := store.SetOptions{}
	if options != nil {
		if options.Domain != "" {
			domain = options.Domain
		}
		forceRefresh = options.ForceRefresh
		setOptions.TTL = options.TTL
		setOptions.Tags = options.Tags
	}

	domainStore, err := manager.GetStore(domain)
	if err != nil {
		return zero, err
	}

	key := manager.deriveKey(identity)

	// the non-destructive read keeps an expired copy around for the
	// fallback below
	if !forceRefresh && manager.IsNetworkReachable() {
		if value, ok := domainStore.GetFresh(key); ok {
			return value, nil
		}
	}

	value, fetchErr := fetch(ctx)
	if fetchErr == nil {
		err = domainStore.Set(key, value, &setOptions)
		if err != nil {
			// the fetch succeeded, a cache write failure must not hide the result
			logger := log.WithFields(log.Fields{
				"package":  "manager",
				"struct":   "Manager",
				"function": "Query",
			})
			logger.WithError(err).Warnf("failed to cache query result for domain %s - %s", domain, key)
		}
		return value, nil
	}

	// degraded fallback, an expired entry may still be physically present
	if stale, ok := domainStore.GetStale(key); ok {
		logger := log.WithFields(log.Fields{
			"package":  "manager",
			"struct":   "Manager",
			"function": "Query",
		})
		logger.WithError(fetchErr).Warnf("fetch failed for domain %s - %s, serving stale cached value", domain, key)
		return stale, nil
	}

	return zero, fetchErr
}

// WarmUp executes each query with a forced refresh, concurrently. A
// failing entry is logged and swallowed so one bad query cannot abort the
// batch.
func (manager *Manager[T]) WarmUp(ctx context.Context, queries []WarmUpQuery[T]) {
	logger := log.WithFields(log.Fields{
		"package":  "manager",
		"struct":   "Manager",
		"function": "WarmUp",
	})

	wg := sync.WaitGroup{}
	for _, query := range queries {
		wg.Add(1)
		go func(query WarmUpQuery[T]) {
			defer utils.StackTraceFromPanic(logger)
			defer wg.Done()

			_, err := manager.Query(ctx, query.Identity, query.Fetch, &QueryOptions{
				Domain:       query.Domain,
				TTL:          query.TTL,
				Tags:         query.Tags,
				ForceRefresh: true,
			})
			if err != nil {
				logger.WithError(err).Warnf("failed to warm up query %s", query.Identity.Statement)
			}
		}(query)
	}

	wg.Wait()
}
