package logger

import (
	"sync"
	"time"
)

// BatchProgress tracks progress through one reconciliation batch and logs it
// at intervals, so long ingestion runs stay observable without logging every
// item.
type BatchProgress struct {
	logger      Logger
	operation   string
	total       int
	processed   int
	created     int
	updated     int
	skipped     int
	failed      int
	startTime   time.Time
	lastLogTime time.Time
	logInterval time.Duration
	mutex       sync.Mutex
}

// NewBatchProgress creates a progress tracker for a batch of the given size.
func NewBatchProgress(log Logger, operation string, total int) *BatchProgress {
	if log == nil {
		log = GetGlobalLogger()
	}
	now := time.Now()
	p := &BatchProgress{
		logger:      log.WithComponent("progress"),
		operation:   operation,
		total:       total,
		startTime:   now,
		lastLogTime: now,
		logInterval: 5 * time.Second,
	}
	p.logger.WithFields(Fields{
		"operation": operation,
		"total":     total,
	}).Debug("Starting batch")
	return p
}

// Observe records the outcome of one item. Exactly one of the flags applies.
func (p *BatchProgress) Observe(created, updated, skipped, failed bool) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	p.processed++
	switch {
	case created:
		p.created++
	case updated:
		p.updated++
	case skipped:
		p.skipped++
	case failed:
		p.failed++
	}

	now := time.Now()
	if now.Sub(p.lastLogTime) >= p.logInterval {
		p.log(now)
		p.lastLogTime = now
	}
}

// Finish logs the final counts for the batch.
func (p *BatchProgress) Finish() {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.log(time.Now())
}

func (p *BatchProgress) log(now time.Time) {
	p.logger.WithFields(Fields{
		"operation": p.operation,
		"processed": p.processed,
		"total":     p.total,
		"created":   p.created,
		"updated":   p.updated,
		"skipped":   p.skipped,
		"failed":    p.failed,
		"elapsed":   now.Sub(p.startTime).Round(time.Millisecond).String(),
	}).Info("Batch progress")
}
