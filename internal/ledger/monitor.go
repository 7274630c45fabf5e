package ledger

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// MonitorConfig holds network monitor configuration.
type MonitorConfig struct {
	CheckInterval time.Duration
	FailThreshold int
}

// HealthProber is the probe surface the monitor needs, satisfied by *Client.
type HealthProber interface {
	Health(ctx context.Context) Health
}

// MetricsRecordFunc is an optional callback for recording probe results.
type MetricsRecordFunc func(network string, connected bool)

// Monitor periodically probes every configured ledger network and logs
// transitions between reachable and degraded. A network is degraded only
// after FailThreshold consecutive failed probes, so a single dropped
// request does not flap the status.
type Monitor struct {
	clients   map[string]HealthProber
	cfg       MonitorConfig
	onMetrics MetricsRecordFunc
	logger    *zap.Logger

	mu         sync.Mutex
	failCounts map[string]int
}

// NewMonitor creates a Monitor over the given per-network probers.
func NewMonitor(clients map[string]HealthProber, cfg MonitorConfig, logger *zap.Logger) *Monitor {
	if cfg.CheckInterval == 0 {
		cfg.CheckInterval = time.Minute
	}
	if cfg.FailThreshold == 0 {
		cfg.FailThreshold = 3
	}
	return &Monitor{
		clients:    clients,
		cfg:        cfg,
		logger:     logger,
		failCounts: make(map[string]int),
	}
}

// SetMetricsRecord configures the metrics recording callback.
func (m *Monitor) SetMetricsRecord(fn MetricsRecordFunc) {
	m.onMetrics = fn
}

// Start runs the probe loop until quit is signalled.
func (m *Monitor) Start(quit <-chan os.Signal) {
	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), m.cfg.CheckInterval-time.Second)
			m.CheckAll(ctx)
			cancel()
		case <-quit:
			return
		}
	}
}

// CheckAll probes every network once, concurrently.
func (m *Monitor) CheckAll(ctx context.Context) {
	var wg sync.WaitGroup
	for name, client := range m.clients {
		wg.Add(1)
		go func(network string, prober HealthProber) {
			defer wg.Done()

			health := prober.Health(ctx)
			connected := health.Connected

			if m.onMetrics != nil {
				m.onMetrics(network, connected)
			}

			m.mu.Lock()
			prevCount := m.failCounts[network]
			if connected {
				m.failCounts[network] = 0
			} else {
				m.failCounts[network]++
			}
			count := m.failCounts[network]
			m.mu.Unlock()

			switch {
			case connected && prevCount >= m.cfg.FailThreshold:
				m.logger.Info("ledger network recovered",
					zap.String("network", network),
					zap.Int64("chain_id", health.ChainID),
				)
			case !connected && count == m.cfg.FailThreshold:
				m.logger.Warn("ledger network degraded",
					zap.String("network", network),
					zap.Int("fail_count", count),
				)
			}
		}(name, client)
	}
	wg.Wait()
}
