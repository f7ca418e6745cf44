package metrics

import (
	"sync"
	"time"

	"metadata-tracker/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	Stats() Stats
}

// Stats holds a point-in-time view of the folder store registry.
type Stats struct {
	OpenStores      int
	DisabledFolders int
	TotalSizeBytes  int64
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	stopOnce      sync.Once
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection. Safe to call more than once.
func (c *Collector) Stop() {
	c.stopOnce.Do(func() { close(c.stopChan) })
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.Stats()

	StoresOpen.Set(float64(stats.OpenStores))
	StoresDisabled.Set(float64(stats.DisabledFolders))
	StoreSizeBytes.Set(float64(stats.TotalSizeBytes))

	logging.Debug("Metrics collected: stores=%d, disabled=%d, size=%d bytes",
		stats.OpenStores, stats.DisabledFolders, stats.TotalSizeBytes)
}
