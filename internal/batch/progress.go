package batch

import (
	"sync"
	"time"
)

const percentMultiplier = 100

// Progress tracks chunk completion. It is safe for concurrent use.
type Progress struct {
	totalItems      int
	totalChunks     int
	processedItems  int
	processedChunks int
	startTime       time.Time
	lastUpdate      time.Time

	mu sync.RWMutex
}

// Snapshot is an immutable copy of Progress.
type Snapshot struct {
	TotalItems      int
	ProcessedItems  int
	TotalChunks     int
	ProcessedChunks int
	PercentComplete float64
	Elapsed         time.Duration
	LastUpdate      time.Time
}

// NewProgress creates a tracker for totalItems split into totalChunks.
func NewProgress(totalItems, totalChunks int) *Progress {
	now := time.Now()
	return &Progress{
		totalItems:  totalItems,
		totalChunks: totalChunks,
		startTime:   now,
		lastUpdate:  now,
	}
}

// AddProcessed records one finished chunk of n items.
func (p *Progress) AddProcessed(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processedItems += n
	p.processedChunks++
	p.lastUpdate = time.Now()
}

// IsComplete reports whether every item has been processed.
func (p *Progress) IsComplete() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.processedItems >= p.totalItems
}

// Snapshot returns the current state.
func (p *Progress) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var percent float64
	if p.totalItems > 0 {
		percent = float64(p.processedItems) / float64(p.totalItems) * percentMultiplier
	}
	return Snapshot{
		TotalItems:      p.totalItems,
		ProcessedItems:  p.processedItems,
		TotalChunks:     p.totalChunks,
		ProcessedChunks: p.processedChunks,
		PercentComplete: percent,
		Elapsed:         time.Since(p.startTime),
		LastUpdate:      p.lastUpdate,
	}
}
