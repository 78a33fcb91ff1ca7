package build

import (
	"sync"
	"time"

	"github.com/conneroisu/buildlens/internal/hooks"
)

// MetricsTapName is the tap name BuildMetrics registers under.
const MetricsTapName = "BuildMetrics"

// BuildMetrics tracks build outcomes across a watch session
type BuildMetrics struct {
	TotalBuilds      int64
	SuccessfulBuilds int64
	FailedBuilds     int64
	Invalidations    int64
	AverageDuration  time.Duration
	TotalDuration    time.Duration
	LastAssetCount   int
	mutex            sync.RWMutex
}

// NewBuildMetrics creates a new build metrics tracker
func NewBuildMetrics() *BuildMetrics {
	return &BuildMetrics{}
}

// Attach taps the metrics into a pipeline's lifecycle hooks
func (bm *BuildMetrics) Attach(p hooks.Pipeline) {
	p.CompileStart().Tap(MetricsTapName, func(hooks.CompileStarted) {
		bm.mutex.Lock()
		defer bm.mutex.Unlock()
		bm.TotalBuilds++
	})
	p.CompileFinish().Tap(MetricsTapName, func(ev hooks.CompileFinished) {
		bm.RecordSuccess(ev.Duration(), ev.OutputFileCount())
	})
	p.CompileFailed().Tap(MetricsTapName, func(hooks.CompileFailed) {
		bm.mutex.Lock()
		defer bm.mutex.Unlock()
		bm.FailedBuilds++
	})
	p.FileInvalidated().Tap(MetricsTapName, func(hooks.FileInvalidated) {
		bm.mutex.Lock()
		defer bm.mutex.Unlock()
		bm.Invalidations++
	})
}

// RecordSuccess records a finished build
func (bm *BuildMetrics) RecordSuccess(duration time.Duration, assets int) {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.SuccessfulBuilds++
	bm.TotalDuration += duration
	bm.LastAssetCount = assets
	bm.AverageDuration = bm.TotalDuration / time.Duration(bm.SuccessfulBuilds)
}

// GetSnapshot returns a snapshot of current metrics
func (bm *BuildMetrics) GetSnapshot() BuildMetrics {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()
	// Return a copy without the mutex to avoid lock copying issues
	return BuildMetrics{
		TotalBuilds:      bm.TotalBuilds,
		SuccessfulBuilds: bm.SuccessfulBuilds,
		FailedBuilds:     bm.FailedBuilds,
		Invalidations:    bm.Invalidations,
		AverageDuration:  bm.AverageDuration,
		TotalDuration:    bm.TotalDuration,
		LastAssetCount:   bm.LastAssetCount,
	}
}

// Reset resets all metrics
func (bm *BuildMetrics) Reset() {
	bm.mutex.Lock()
	defer bm.mutex.Unlock()

	bm.TotalBuilds = 0
	bm.SuccessfulBuilds = 0
	bm.FailedBuilds = 0
	bm.Invalidations = 0
	bm.AverageDuration = 0
	bm.TotalDuration = 0
	bm.LastAssetCount = 0
}

// GetSuccessRate returns the success rate as a percentage
func (bm *BuildMetrics) GetSuccessRate() float64 {
	bm.mutex.RLock()
	defer bm.mutex.RUnlock()

	if bm.TotalBuilds == 0 {
		return 0.0
	}

	return float64(bm.SuccessfulBuilds) / float64(bm.TotalBuilds) * 100.0
}
