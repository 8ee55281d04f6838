package metrics

import (
	"sync/atomic"
	"time"
)

// ID identifies a single counter or histogram slot.
type ID uint16

const (
	// IDTokenIssued counts issued access/refresh pairs.
	IDTokenIssued ID = iota
	// IDTokenValidateSuccess counts access tokens accepted by validation.
	IDTokenValidateSuccess
	// IDTokenValidateFailure counts access tokens rejected by validation.
	IDTokenValidateFailure
	// IDTokenRevoked counts explicit revocations that reached the denylist.
	IDTokenRevoked
	// IDRefreshSuccess counts completed refresh rotations.
	IDRefreshSuccess
	// IDRefreshFailure counts rejected refresh attempts.
	IDRefreshFailure
	// IDRefreshReuseDetected counts rotation conflicts treated as token theft.
	IDRefreshReuseDetected
	// IDDeviceMismatchSoft counts device-binding mismatches on validation.
	IDDeviceMismatchSoft
	// IDDeviceMismatchHard counts device-binding mismatches that rejected a refresh.
	IDDeviceMismatchHard
	// IDLoginFailureRecorded counts recorded failed credential attempts.
	IDLoginFailureRecorded
	// IDAccountLocked counts lockouts applied by the protection state machine.
	IDAccountLocked
	// IDIPBlocked counts source addresses hard-blocked for failure volume.
	IDIPBlocked
	// IDSuspiciousPattern counts device-churn and velocity flags.
	IDSuspiciousPattern
	// IDRateLimitAllowed counts admitted rate-limit checks.
	IDRateLimitAllowed
	// IDRateLimitDenied counts denied rate-limit checks.
	IDRateLimitDenied
	// IDRateLimitFailOpen counts checks admitted because the cache was down.
	IDRateLimitFailOpen
	// IDSessionEvicted counts sessions evicted by the per-principal cap.
	IDSessionEvicted
	// IDSessionInvalidated counts sessions removed by logout or revocation.
	IDSessionInvalidated
	// IDValidateLatency is the validation latency histogram.
	IDValidateLatency
	idCount
)

const (
	// BucketCount is the number of fixed histogram buckets.
	BucketCount = 8

	cacheLineSize = 64
)

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]uint64
}

// Config controls which metric families are recorded.
type Config struct {
	Enabled       bool
	EnableLatency bool
}

// Metrics is the in-process metric store. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [idCount]paddedCounter
	histograms    [idCount]histogram
}

// Snapshot is a point-in-time copy of all counters and histogram buckets.
type Snapshot struct {
	Counters   map[ID]uint64
	Histograms map[ID][]uint64
}

// New creates a metric store from cfg.
func New(cfg Config) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatency,
	}
}

// Enabled reports whether counters are being recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is being recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter by one.
func (m *Metrics) Inc(id ID) {
	if m == nil || !m.enabled || id >= idCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample into the histogram for id. Only
// IDValidateLatency carries a histogram.
func (m *Metrics) Observe(id ID, d time.Duration) {
	if m == nil || !m.enableLatency || id != IDValidateLatency {
		return
	}
	atomic.AddUint64(&m.histograms[id].buckets[bucketIndex(d)], 1)
}

// Value reads a single counter.
func (m *Metrics) Value(id ID) uint64 {
	if m == nil || id >= idCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// TakeSnapshot copies every counter and histogram into a Snapshot. A
// disabled store yields empty maps.
func (m *Metrics) TakeSnapshot() Snapshot {
	if m == nil || !m.enabled {
		return Snapshot{
			Counters:   map[ID]uint64{},
			Histograms: map[ID][]uint64{},
		}
	}

	s := Snapshot{
		Counters:   make(map[ID]uint64, int(idCount)),
		Histograms: make(map[ID][]uint64, 1),
	}

	for id := ID(0); id < idCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, BucketCount)
		for i := 0; i < BucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[IDValidateLatency].buckets[i])
		}
		s.Histograms[IDValidateLatency] = buckets
	}

	return s
}

// Count is the number of defined metric IDs.
func Count() int {
	return int(idCount)
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
