// config.go - EngineConfig and Diagnostics: the ambient configuration and
// observability surface every tier reads from instead of reaching for
// package-level globals. Diagnostics is owned per Engine instance and
// gated by the DEBUG_ENGINE switch, so two Engines in the same process
// never share trace state.

package aggo

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
)

// EngineConfig controls the resource limits and tier-selection thresholds
// an Engine uses to compile and run pipelines. A zero EngineConfig is not
// ready to use; call DefaultConfig and override individual fields.
type EngineConfig struct {
	// BatchSize is the number of rows a columnar Batch holds.
	BatchSize int

	// ColumnarMinRows is the live document count below which the planner
	// prefers the row-id hot path over the columnar tier (the
	// SMALL_DATASET reason code).
	ColumnarMinRows int

	// ExprCacheSize bounds the expression compiler's structural-key LRU.
	ExprCacheSize int

	// IVMTransformCacheSize is carried on the config but not read: the IVM
	// transform operators cache documents in an unbounded map.
	IVMTransformCacheSize int

	// RingCapacity is the delta ring buffer's slot count; it is rounded
	// up to the next power of two.
	RingCapacity int
	// RingPauseAt and RingResumeAt are the occupancy fractions (0,1] at
	// which a producer is paused/resumed (defaults: 0.8 / 0.4).
	RingPauseAt  float64
	RingResumeAt float64

	// BloomFilterBits is the default token Bloom filter width (256 bytes
	// => 2048 bits, 512 bytes => 4096 bits). NewTokenBloomFilter takes its
	// width as an argument and does not read this field.
	BloomFilterBits uint64
	// BloomFalsePositiveRate is the default target false-positive rate.
	// NewTokenBloomFilter does not read this field.
	BloomFalsePositiveRate float64

	// EnableColumnarGroup mirrors ENABLE_COLUMNAR_GROUP. There is no
	// columnar $group kernel: $group and a fused $unwind+$group always run
	// on the row-id tier, and when this flag is false the planner reports
	// FEATURE_OFF for them.
	EnableColumnarGroup bool
	// EnableColumnarUnwind mirrors ENABLE_COLUMNAR_UNWIND.
	EnableColumnarUnwind bool
	// DisableHotPathStreaming mirrors DISABLE_HOT_PATH_STREAMING. No tier
	// reads it: the row-id executor and the IVM chain run the same way
	// whether it is set or not.
	DisableHotPathStreaming bool
	// DebugEngine mirrors DEBUG_ENGINE: turns on the per-engine
	// Diagnostics trace log and reason-code tally.
	DebugEngine bool
}

// DefaultConfig returns an EngineConfig with the documented defaults,
// with the four closed environment toggles applied as overrides so that
// ENABLE_COLUMNAR_GROUP=1, etc. take effect without plumbing flags through
// every call site.
func DefaultConfig() EngineConfig {
	cfg := EngineConfig{
		BatchSize:              1024,
		ColumnarMinRows:        4096,
		ExprCacheSize:          1024,
		IVMTransformCacheSize:  256,
		RingCapacity:           4096,
		RingPauseAt:            0.8,
		RingResumeAt:           0.4,
		BloomFilterBits:        256 * 8,
		BloomFalsePositiveRate: 0.01,
		EnableColumnarGroup:    envBool("ENABLE_COLUMNAR_GROUP"),
		EnableColumnarUnwind:   envBool("ENABLE_COLUMNAR_UNWIND"),
		DisableHotPathStreaming: envBool("DISABLE_HOT_PATH_STREAMING"),
		DebugEngine:            envBool("DEBUG_ENGINE"),
	}
	return cfg
}

func envBool(name string) bool {
	v := os.Getenv(name)
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false
	}
	return b
}

// Diagnostics is a per-Engine trace and counter sink, active only when its
// owning EngineConfig.DebugEngine is set. Every method is a no-op (beyond
// one plain bool check) when disabled, so leaving it wired in hot paths
// costs nothing in production configurations.
type Diagnostics struct {
	enabled bool

	mu          sync.Mutex
	trace       []string
	reasonTally map[ReasonCode]int64
	opCounters  map[string]int64
}

// NewDiagnostics returns a Diagnostics gated by enabled.
func NewDiagnostics(enabled bool) *Diagnostics {
	d := &Diagnostics{enabled: enabled}
	if enabled {
		d.reasonTally = make(map[ReasonCode]int64)
		d.opCounters = make(map[string]int64)
	}
	return d
}

// Tracef appends a formatted trace line; it is a no-op when disabled.
func (d *Diagnostics) Tracef(format string, args ...interface{}) {
	if d == nil || !d.enabled {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.trace = append(d.trace, fmt.Sprintf(format, args...))
}

// TraceLines returns a snapshot of all recorded trace lines.
func (d *Diagnostics) TraceLines() []string {
	if d == nil || !d.enabled {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.trace...)
}

// CountReason tallies one occurrence of a plan/explain reason code.
func (d *Diagnostics) CountReason(code ReasonCode) {
	if d == nil || !d.enabled {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reasonTally[code]++
}

// ReasonTally returns a snapshot of reason-code counts.
func (d *Diagnostics) ReasonTally() map[ReasonCode]int64 {
	if d == nil || !d.enabled {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[ReasonCode]int64, len(d.reasonTally))
	for k, v := range d.reasonTally {
		out[k] = v
	}
	return out
}

// IncrOp increments a named free-form operation counter (e.g. "batches",
// "rows_filtered"). Implemented with an atomic-free map under the same
// lock as the rest of Diagnostics since it is a debug-only path.
func (d *Diagnostics) IncrOp(name string, delta int64) {
	if d == nil || !d.enabled {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opCounters[name] += delta
}

// OpCounters returns a snapshot of the named operation counters.
func (d *Diagnostics) OpCounters() map[string]int64 {
	if d == nil || !d.enabled {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[string]int64, len(d.opCounters))
	for k, v := range d.opCounters {
		out[k] = v
	}
	return out
}

// batchIDGenerator hands out strictly increasing delta-batch ids. It is
// not shared process-wide: batch ids only need to be monotonic within a
// single ring, and each ring holds its own generator instance.
type batchIDGenerator struct{ n uint64 }

func (g *batchIDGenerator) next() uint64 { return atomic.AddUint64(&g.n, 1) }
