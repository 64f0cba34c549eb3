package goCreds

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one Store counter or histogram.
type MetricID uint16

const (
	// MetricLoadSuccess counts successful reads of the user file.
	MetricLoadSuccess MetricID = iota
	// MetricLoadFailure counts reads that fell back to an empty store.
	MetricLoadFailure
	// MetricPersistSuccess counts successful writes of the user file.
	MetricPersistSuccess
	// MetricPersistFailure counts failed writes of the user file.
	MetricPersistFailure
	// MetricUserCreated counts created users.
	MetricUserCreated
	// MetricUserCreateDuplicate counts creates or renames rejected for a taken username.
	MetricUserCreateDuplicate
	// MetricUserUpdated counts applied partial updates.
	MetricUserUpdated
	// MetricUserDeleted counts deleted users.
	MetricUserDeleted
	// MetricUserToggled counts activation toggles.
	MetricUserToggled
	// MetricPasswordVerifySuccess counts successful password verifications.
	MetricPasswordVerifySuccess
	// MetricPasswordVerifyFailure counts rejected password verifications.
	MetricPasswordVerifyFailure
	// MetricPasswordUpdated counts password rotations.
	MetricPasswordUpdated
	// MetricTOTPEnabled counts TOTP enrollments.
	MetricTOTPEnabled
	// MetricTOTPDisabled counts TOTP removals.
	MetricTOTPDisabled
	// MetricTOTPCodeSuccess counts accepted TOTP codes.
	MetricTOTPCodeSuccess
	// MetricTOTPCodeFailure counts rejected TOTP codes.
	MetricTOTPCodeFailure
	// MetricPersistLatency is the histogram of user file write latency.
	MetricPersistLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and the persist latency histogram.
// A nil or disabled Metrics ignores every update.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns Metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are collected.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is collected.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram id. Only MetricPersistLatency is a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricPersistLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricPersistLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricPersistLatency].buckets[i])
		}
		s.Histograms[MetricPersistLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
