// Package sampler periodically samples process-level resource usage and Go
// runtime statistics into the metric registry. It runs as an independent
// background task; a failed tick is logged and skipped, leaving the previous
// gauge values in place, and never crashes the loop.
package sampler

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"sync"
	"time"

	"github.com/prometheus/procfs"

	"github.com/c360/pulse/errors"
	pulsemetric "github.com/c360/pulse/metric"
)

// runtime/metrics sample names for GC cycle counts by kind.
const (
	gcCyclesAutomatic = "/gc/cycles/automatic:gc-cycles"
	gcCyclesForced    = "/gc/cycles/forced:gc-cycles"
)

// Summary is a point-in-time view of the last completed sample, consumed by
// the health endpoints and the analytics engine.
type Summary struct {
	CPUPercent      float64   `json:"cpu_percent"`
	CPUTotalSeconds float64   `json:"cpu_total_seconds"`
	MemoryPercent   float64   `json:"memory_percent"`
	MemoryRSS       float64   `json:"memory_rss"`
	MemoryVMS       float64   `json:"memory_vms"`
	Threads         int       `json:"threads"`
	OpenFDs         int       `json:"open_fds"`
	Goroutines      int       `json:"goroutines"`
	UptimeSeconds   float64   `json:"uptime_seconds"`
	SampledAt       time.Time `json:"sampled_at"`
}

// Sampler writes process and runtime series into the registry on a fixed
// period. All OS queries are isolated here; the request path never waits on
// them.
type Sampler struct {
	registry *pulsemetric.Registry
	logger   *slog.Logger
	interval time.Duration

	proc    procfs.Proc
	hasProc bool

	onSample func(Summary)

	mu            sync.Mutex
	lastCPU       float64
	lastWall      time.Time
	cpuPrimed     bool
	lastGCAuto    uint64
	lastGCForced  uint64
	lastGCPause   time.Duration
	memTotalBytes float64
	last          Summary
	hasSummary    bool
}

// New creates a sampler bound to a registry. On platforms without procfs the
// sampler degrades to runtime-only statistics rather than failing.
func New(registry *pulsemetric.Registry, interval time.Duration, logger *slog.Logger) *Sampler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}

	s := &Sampler{
		registry: registry,
		logger:   logger,
		interval: interval,
	}

	proc, err := procfs.Self()
	if err != nil {
		logger.Warn("procfs unavailable, sampling runtime statistics only", "error", err)
	} else {
		s.proc = proc
		s.hasProc = true
		s.readMemTotal()
	}

	return s
}

// OnSample registers a hook invoked with each completed sample, outside the
// sampler lock. Must be called before Run.
func (s *Sampler) OnSample(fn func(Summary)) {
	s.onSample = fn
}

// readMemTotal caches total system memory for memory-percent computation
func (s *Sampler) readMemTotal() {
	fs, err := procfs.NewDefaultFS()
	if err != nil {
		s.logger.Warn("cannot open procfs mount", "error", err)
		return
	}
	meminfo, err := fs.Meminfo()
	if err != nil || meminfo.MemTotal == nil {
		s.logger.Warn("cannot read meminfo", "error", err)
		return
	}
	s.memTotalBytes = float64(*meminfo.MemTotal) * 1024
}

// Run executes the sampling loop until ctx is cancelled. Cancellation is
// honored at tick boundaries only; an in-flight sample always completes.
func (s *Sampler) Run(ctx context.Context) {
	s.logger.Info("system sampler started", "interval", s.interval)

	// Prime CPU tracking so the second tick can report a delta.
	s.SampleOnce()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("system sampler stopped")
			return
		case <-ticker.C:
			s.SampleOnce()
		}
	}
}

// SampleOnce performs a single sample. Errors are logged and the tick is
// skipped; stale gauge values remain visible until the next successful tick.
func (s *Sampler) SampleOnce() Summary {
	summary := s.sample()
	if s.onSample != nil {
		s.onSample(summary)
	}
	return summary
}

// sample collects a single sample under the lock
func (s *Sampler) sample() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	core := s.registry.Core()

	summary := Summary{
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: s.registry.Uptime().Seconds(),
		SampledAt:     now,
	}

	if s.hasProc {
		if err := s.sampleProcess(&summary, now); err != nil {
			s.logger.Warn("process sample skipped", "error", err)
		}
	}

	s.sampleRuntime(&summary)

	core.UptimeSeconds.Set(summary.UptimeSeconds)
	core.GoroutinesTotal.Set(float64(summary.Goroutines))

	s.last = summary
	s.hasSummary = true
	return summary
}

// sampleProcess reads OS-level process stats via procfs and updates the
// corresponding series. Called with the sampler lock held.
func (s *Sampler) sampleProcess(summary *Summary, now time.Time) error {
	stat, err := s.proc.Stat()
	if err != nil {
		return errors.WrapTransient(errors.ErrSamplingFailed, "Sampler", "sampleProcess",
			"read process stat: "+err.Error())
	}

	core := s.registry.Core()

	cpuSeconds := stat.CPUTime()
	summary.CPUTotalSeconds = cpuSeconds

	if s.cpuPrimed {
		cpuDelta := cpuSeconds - s.lastCPU
		wallDelta := now.Sub(s.lastWall).Seconds()
		if wallDelta > 0 && cpuDelta >= 0 {
			percent := cpuDelta / wallDelta * 100
			limit := 100 * float64(runtime.NumCPU())
			if percent > limit {
				percent = limit
			}
			summary.CPUPercent = percent
			core.CPUUsagePercent.Set(percent)
		}
		if err := s.registry.AddCounter(core.CPUSecondsTotal, cpuSeconds-s.lastCPU); err != nil {
			s.logger.Warn("cpu counter update dropped", "error", err)
		}
	}
	s.lastCPU = cpuSeconds
	s.lastWall = now
	s.cpuPrimed = true

	rss := float64(stat.ResidentMemory())
	vms := float64(stat.VirtualMemory())
	summary.MemoryRSS = rss
	summary.MemoryVMS = vms
	summary.Threads = stat.NumThreads
	core.MemoryResidentBytes.Set(rss)
	core.MemoryVirtualBytes.Set(vms)
	core.ThreadsTotal.Set(float64(stat.NumThreads))

	if s.memTotalBytes > 0 {
		summary.MemoryPercent = rss / s.memTotalBytes * 100
		core.MemoryUsagePercent.Set(summary.MemoryPercent)
	}

	if fds, err := s.proc.FileDescriptorsLen(); err == nil {
		summary.OpenFDs = fds
		core.OpenFDs.Set(float64(fds))
	}

	return nil
}

// sampleRuntime reads Go GC and heap statistics. Called with the sampler
// lock held.
func (s *Sampler) sampleRuntime(_ *Summary) {
	core := s.registry.Core()

	samples := []metrics.Sample{
		{Name: gcCyclesAutomatic},
		{Name: gcCyclesForced},
	}
	metrics.Read(samples)

	auto := samples[0].Value.Uint64()
	forced := samples[1].Value.Uint64()

	if auto >= s.lastGCAuto {
		core.GCCollectionsTotal.WithLabelValues("automatic").Add(float64(auto - s.lastGCAuto))
	}
	if forced >= s.lastGCForced {
		core.GCCollectionsTotal.WithLabelValues("forced").Add(float64(forced - s.lastGCForced))
	}
	s.lastGCAuto = auto
	s.lastGCForced = forced

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	pause := time.Duration(memStats.PauseTotalNs)
	if pause >= s.lastGCPause {
		core.GCPauseSeconds.Add((pause - s.lastGCPause).Seconds())
	}
	s.lastGCPause = pause

	core.HeapObjects.Set(float64(memStats.HeapObjects))
}

// LastSummary returns the most recent completed sample, if any
func (s *Sampler) LastSummary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasSummary
}
