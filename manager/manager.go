// Package manager provides the cache manager, the engine's top layer. A
// manager owns one bounded store per named domain, wraps remote fetches
// with cache-aside querying and stale fallback, tracks network
// reachability, and sweeps expired entries on a fixed interval.
package manager

import (
	"sync"
	"time"

	lrucache "github.com/hashicorp/golang-lru"
	"github.com/rs/xid"
	log "github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/xerrors"

	"github.com/offsync/cache-common/report"
	"github.com/offsync/cache-common/store"
	"github.com/offsync/cache-common/utils"
)

const (
	// DefaultDomain is the domain used when a query names none
	DefaultDomain = "default"
	// DefaultMaintenanceInterval is the default sweep interval
	DefaultMaintenanceInterval = 5 * time.Minute
	// defaultKeyCacheSize bounds the derived-key memoization cache
	defaultKeyCacheSize = 1024
)

// PersisterFactory creates the durable medium for a domain.
// A nil factory keeps all domains purely in-memory.
type PersisterFactory func(domain string) (store.Persister, error)

// ReachabilityProvider is a push-style source of network state changes
type ReachabilityProvider interface {
	OnChange(callback func(reachable bool))
}

// Config defines configuration of a Manager
type Config struct {
	// DefaultStoreConfig applies to domains without an override
	DefaultStoreConfig *store.Config
	// DomainStoreConfigs overrides the store config per domain
	DomainStoreConfigs map[string]*store.Config
	// MaintenanceInterval is the expiry sweep period
	MaintenanceInterval time.Duration
	// PersisterFactory supplies the durable medium per domain, may be nil
	PersisterFactory PersisterFactory
	// Reporter receives sweep and statistics telemetry, may be nil
	Reporter report.Reporter
}

// NewDefaultConfig creates a Config with default values
func NewDefaultConfig() *Config {
	return &Config{
		DefaultStoreConfig:  store.NewDefaultConfig(),
		MaintenanceInterval: DefaultMaintenanceInterval,
	}
}

// Manager owns one bounded store per domain for the process lifetime.
// Construction is explicit so tests and applications can hold isolated
// instances, there is no package-level singleton.
type Manager[T any] struct {
	id     string
	config *Config

	stores      map[string]*store.Store[T]
	storesMutex sync.Mutex

	keyCache         *lrucache.Cache
	networkReachable atomic.Bool
	reporter         report.Reporter

	closeChan chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewManager creates a new Manager and starts its maintenance loop
func NewManager[T any](config *Config) (*Manager[T], error) {
	if config == nil {
		config = NewDefaultConfig()
	}

	if config.DefaultStoreConfig == nil {
		config.DefaultStoreConfig = store.NewDefaultConfig()
	}

	err := config.DefaultStoreConfig.Validate()
	if err != nil {
		return nil, err
	}

	for domain, domainConfig := range config.DomainStoreConfigs {
		err = domainConfig.Validate()
		if err != nil {
			return nil, xerrors.Errorf("invalid store config for domain %s: %w", domain, err)
		}
	}

	if config.MaintenanceInterval <= 0 {
		config.MaintenanceInterval = DefaultMaintenanceInterval
	}

	reporter := config.Reporter
	if reporter == nil {
		reporter = report.NewLogReporter()
	}

	keyCache, err := lrucache.New(defaultKeyCacheSize)
	if err != nil {
		return nil, xerrors.Errorf("failed to create key cache: %w", err)
	}

	manager := &Manager[T]{
		id:     xid.New().String(),
		config: config,

		stores: map[string]*store.Store[T]{},

		keyCache: keyCache,
		reporter: reporter,

		closeChan: make(chan struct{}),
	}

	// assume connectivity until the provider says otherwise
	manager.networkReachable.Store(true)

	manager.wg.Add(1)
	go manager.runMaintenance()

	return manager, nil
}

// GetID returns ID of the manager instance
func (manager *Manager[T]) GetID() string {
	return manager.id
}

// Release stops the maintenance loop and releases all stores
func (manager *Manager[T]) Release() {
	manager.closeOnce.Do(func() {
		close(manager.closeChan)
	})
	manager.wg.Wait()

	manager.storesMutex.Lock()
	defer manager.storesMutex.Unlock()

	for _, domainStore := range manager.stores {
		domainStore.Release()
	}

	manager.reporter.Release()
}

// GetStore returns the store for the domain, creating it on first
// reference. Idempotent per domain name for the manager lifetime.
func (manager *Manager[T]) GetStore(domain string) (*store.Store[T], error) {
	manager.storesMutex.Lock()
	defer manager.storesMutex.Unlock()

	if domainStore, ok := manager.stores[domain]; ok {
		return domainStore, nil
	}

	storeConfig := manager.config.DefaultStoreConfig
	if domainConfig, ok := manager.config.DomainStoreConfigs[domain]; ok {
		storeConfig = domainConfig
	}

	var persister store.Persister
	if manager.config.PersisterFactory != nil {
		created, err := manager.config.PersisterFactory(domain)
		if err != nil {
			// durable mirroring is best effort, run the domain in-memory
			logger := log.WithFields(log.Fields{
				"package":  "manager",
				"struct":   "Manager",
				"function": "GetStore",
			})
			logger.WithError(err).Warnf("failed to create persister for domain %s, continuing without persistence", domain)
		} else {
			persister = created
		}
	}

	domainStore, err := store.NewStore[T](domain, storeConfig, persister)
	if err != nil {
		return nil, xerrors.Errorf("failed to create store for domain %s: %w", domain, err)
	}

	manager.stores[domain] = domainStore
	return domainStore, nil
}

// GetDomains returns the names of all registered domains
func (manager *Manager[T]) GetDomains() []string {
	manager.storesMutex.Lock()
	defer manager.storesMutex.Unlock()

	domains := []string{}
	for domain := range manager.stores {
		domains = append(domains, domain)
	}
	return domains
}

// SetNetworkReachable updates the process-wide reachability flag.
// The transition back to reachable has no side effect, nothing is flushed.
func (manager *Manager[T]) SetNetworkReachable(reachable bool) {
	manager.networkReachable.Store(reachable)
}

// IsNetworkReachable returns the current reachability flag
func (manager *Manager[T]) IsNetworkReachable() bool {
	return manager.networkReachable.Load()
}

// WatchReachability subscribes the manager to a push-style provider
func (manager *Manager[T]) WatchReachability(provider ReachabilityProvider) {
	provider.OnChange(manager.SetNetworkReachable)
}

// InvalidateByTags removes all entries carrying any of the tags from the
// named domains, or from every domain when none are named. Returns the
// number of entries removed.
func (manager *Manager[T]) InvalidateByTags(tags []string, domains ...string) int {
	if len(domains) == 0 {
		domains = manager.GetDomains()
	}

	removed := 0
	for _, domain := range domains {
		manager.storesMutex.Lock()
		domainStore, ok := manager.stores[domain]
		manager.storesMutex.Unlock()

		if ok {
			removed += domainStore.ClearByTags(tags)
		}
	}
	return removed
}

// DomainStatistics returns a statistics snapshot per registered domain
func (manager *Manager[T]) DomainStatistics() map[string]store.Statistics {
	manager.storesMutex.Lock()
	stores := map[string]*store.Store[T]{}
	for domain, domainStore := range manager.stores {
		stores[domain] = domainStore
	}
	manager.storesMutex.Unlock()

	statistics := map[string]store.Statistics{}
	for domain, domainStore := range stores {
		statistics[domain] = domainStore.Statistics()
	}
	return statistics
}

// GlobalStatistics returns the aggregate snapshot across all domains
func (manager *Manager[T]) GlobalStatistics() store.Statistics {
	global := store.Statistics{}
	for _, statistics := range manager.DomainStatistics() {
		global.Add(statistics)
	}
	return global
}

// runMaintenance sweeps all domains on the configured interval
func (manager *Manager[T]) runMaintenance() {
	logger := log.WithFields(log.Fields{
		"package":  "manager",
		"struct":   "Manager",
		"function": "runMaintenance",
	})

	defer utils.StackTraceFromPanic(logger)
	defer manager.wg.Done()

	ticker := time.NewTicker(manager.config.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-manager.closeChan:
			return
		case <-ticker.C:
			manager.sweep()
		}
	}
}

// sweep purges expired entries from every domain and reports statistics.
// Each domain is processed fully within the one invocation.
func (manager *Manager[T]) sweep() {
	sweepID := xid.New().String()

	manager.storesMutex.Lock()
	stores := map[string]*store.Store[T]{}
	for domain, domainStore := range manager.stores {
		stores[domain] = domainStore
	}
	manager.storesMutex.Unlock()

	for domain, domainStore := range stores {
		expired := domainStore.ClearExpired()
		manager.reporter.ReportSweep(sweepID, domain, expired)
		manager.reporter.ReportStatistics(domain, domainStore.Statistics())
	}
}
