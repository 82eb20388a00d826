package monitoring

import (
	"maps"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultCheckInterval  = 30 * time.Second
	defaultAlertThreshold = 1000
	defaultAlertCooldown  = 5 * time.Minute
	restartDelay          = 5 * time.Second
)

// Gauge reports the current value of a named server quantity, such as the
// number of live environments.
type Gauge func() int64

// Monitor periodically logs goroutine counts and registered gauges, and
// warns when the goroutine count passes a threshold.
type Monitor struct {
	mu             sync.RWMutex
	baseline       int
	current        int
	peak           int
	checkInterval  time.Duration
	alertThreshold int
	alertCooldown  time.Duration
	lastAlert      time.Time
	gauges         map[string]Gauge

	numGoroutine func() int
	now          func() time.Time

	stopChan chan struct{}
	stopOnce sync.Once
	logger   zerolog.Logger
}

// Snapshot is one reading of the monitor
type Snapshot struct {
	Goroutines int              `json:"goroutines"`
	Baseline   int              `json:"baseline"`
	Peak       int              `json:"peak"`
	Gauges     map[string]int64 `json:"gauges"`
	Alert      bool             `json:"alert"`
}

// NewMonitor creates a monitor. A non-positive interval selects 30s.
func NewMonitor(interval time.Duration, logger zerolog.Logger) *Monitor {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	baseline := runtime.NumGoroutine()
	return &Monitor{
		baseline:       baseline,
		current:        baseline,
		peak:           baseline,
		checkInterval:  interval,
		alertThreshold: defaultAlertThreshold,
		alertCooldown:  defaultAlertCooldown,
		gauges:         make(map[string]Gauge),
		numGoroutine:   runtime.NumGoroutine,
		now:            time.Now,
		stopChan:       make(chan struct{}),
		logger:         logger.With().Str("component", "monitor").Logger(),
	}
}

// SetAlertThreshold changes the goroutine count that triggers a warning
func (m *Monitor) SetAlertThreshold(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.alertThreshold = n
}

// RegisterGauge adds or replaces a named gauge
func (m *Monitor) RegisterGauge(name string, g Gauge) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = g
}

// Start begins periodic checks
func (m *Monitor) Start() {
	go m.run()
	m.logger.Info().
		Int("baseline", m.baseline).
		Dur("interval", m.checkInterval).
		Msg("Started server monitoring")
}

// Stop ends periodic checks. It is safe to call more than once.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

func (m *Monitor) run() {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error().
				Interface("panic", r).
				Msg("Monitor panicked - restarting")
			select {
			case <-m.stopChan:
				return
			case <-time.After(restartDelay):
			}
			go m.run()
		}
	}()

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Check()
		case <-m.stopChan:
			return
		}
	}
}

// Check takes a reading, logs it and returns it
func (m *Monitor) Check() Snapshot {
	current := m.numGoroutine()

	m.mu.Lock()
	m.current = current
	if current > m.peak {
		m.peak = current
	}
	alert := current > m.alertThreshold && m.now().Sub(m.lastAlert) > m.alertCooldown
	if alert {
		m.lastAlert = m.now()
	}
	gauges := maps.Clone(m.gauges)
	snap := Snapshot{
		Goroutines: current,
		Baseline:   m.baseline,
		Peak:       m.peak,
		Gauges:     make(map[string]int64, len(gauges)),
		Alert:      alert,
	}
	threshold := m.alertThreshold
	m.mu.Unlock()

	// Gauges may take their own locks, so read them unlocked
	names := make([]string, 0, len(gauges))
	for name, g := range gauges {
		snap.Gauges[name] = g()
		names = append(names, name)
	}
	sort.Strings(names)

	event := m.logger.Debug().
		Int("goroutines", snap.Goroutines).
		Int("baseline", snap.Baseline).
		Int("peak", snap.Peak)
	for _, name := range names {
		event = event.Int64(name, snap.Gauges[name])
	}
	event.Msg("Server metrics")

	if alert {
		m.logger.Warn().
			Int("goroutines", current).
			Int("threshold", threshold).
			Msg("High goroutine count detected - possible leak")
	}
	return snap
}

// Metrics returns the last reading without taking a new one
func (m *Monitor) Metrics() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{
		Goroutines: m.current,
		Baseline:   m.baseline,
		Peak:       m.peak,
	}
}
