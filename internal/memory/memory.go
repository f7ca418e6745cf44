package memory

import (
	"context"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"metadata-tracker/internal/logging"
	"metadata-tracker/internal/metrics"
)

// Config holds the monitor thresholds.
type Config struct {
	// LimitBytes overrides the limit; 0 uses GOMEMLIMIT.
	LimitBytes int64
	// HighWaterMark is the usage ratio below which paused workers resume.
	HighWaterMark float64
	// CriticalWaterMark is the usage ratio at which workers pause.
	CriticalWaterMark float64
	CheckInterval     time.Duration
}

// DefaultConfig returns the thresholds used for warm runs.
func DefaultConfig() Config {
	return Config{
		HighWaterMark:     0.7,
		CriticalWaterMark: 0.85,
		CheckInterval:     2 * time.Second,
	}
}

// Monitor samples heap usage and pauses callers of Wait while it is
// critical. Frame decoding of large animations is the main consumer.
type Monitor struct {
	config    Config
	limit     int64
	readAlloc func() uint64

	mu      sync.Mutex
	paused  bool
	resume  chan struct{}
	stop    chan struct{}
	stopped sync.Once
}

// NewMonitor creates a monitor. Without a limit it never pauses.
func NewMonitor(config Config) *Monitor {
	limit := config.LimitBytes
	if limit == 0 {
		if current := debug.SetMemoryLimit(-1); current > 0 && current < 1<<62 {
			limit = current
		}
	}
	return &Monitor{
		config:    config,
		limit:     limit,
		readAlloc: heapAlloc,
		resume:    make(chan struct{}),
		stop:      make(chan struct{}),
	}
}

func heapAlloc() uint64 {
	var stats runtime.MemStats
	runtime.ReadMemStats(&stats)
	return stats.HeapAlloc
}

// Start samples usage in the background until Stop.
func (m *Monitor) Start() {
	if m.limit == 0 {
		logging.Debug("Memory monitor: no limit configured, backpressure disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(m.config.CheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.check()
			case <-m.stop:
				return
			}
		}
	}()
}

// Stop ends sampling and releases every waiter.
func (m *Monitor) Stop() {
	m.stopped.Do(func() { close(m.stop) })
}

func (m *Monitor) check() {
	usage := float64(m.readAlloc()) / float64(m.limit)
	metrics.MemoryUsageRatio.Set(usage)

	m.mu.Lock()
	defer m.mu.Unlock()

	switch {
	case !m.paused && usage >= m.config.CriticalWaterMark:
		logging.Warn("Memory critical (%.1f%% of limit), pausing warm workers", usage*100)
		m.paused = true
		metrics.MemoryPaused.Set(1)
		metrics.MemoryPausesTotal.Inc()
		go runtime.GC()
	case m.paused && usage < m.config.HighWaterMark:
		logging.Info("Memory recovered (%.1f%% of limit), resuming warm workers", usage*100)
		m.paused = false
		metrics.MemoryPaused.Set(0)
		close(m.resume)
		m.resume = make(chan struct{})
	}
}

// Paused reports whether waiters are currently blocked.
func (m *Monitor) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.paused
}

// Wait blocks while memory is critical. It returns ctx.Err() if ctx ends
// first and nil once work may continue or the monitor is stopped.
func (m *Monitor) Wait(ctx context.Context) error {
	m.mu.Lock()
	if !m.paused {
		m.mu.Unlock()
		return nil
	}
	resume := m.resume
	m.mu.Unlock()

	select {
	case <-resume:
		return nil
	case <-m.stop:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
