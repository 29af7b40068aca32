package batch

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Chunking limits.
const (
	// DefaultBatchSize is the default number of items per chunk.
	DefaultBatchSize = 100

	// MinBatchSize is the minimum allowed chunk size.
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed chunk size.
	MaxBatchSize = 1000
)

// Common batch errors.
var (
	ErrInvalidBatchSize = fmt.Errorf("batch size must be between %d and %d", MinBatchSize, MaxBatchSize)
	ErrNilCallback      = errors.New("batch callback cannot be nil")
	ErrEmptyItems       = errors.New("items slice cannot be empty")
)

// Callback handles one chunk. index is 0-based.
type Callback[T any] func(ctx context.Context, chunk []T, index int) error

// ProgressFunc is invoked after each successful chunk.
type ProgressFunc func(snap Snapshot)

// Processor splits items into chunks and hands each chunk to a Callback.
type Processor[T any] struct {
	batchSize  int
	onProgress ProgressFunc
}

// NewProcessor creates a processor with the given chunk size.
func NewProcessor[T any](batchSize int) (*Processor[T], error) {
	if batchSize < MinBatchSize || batchSize > MaxBatchSize {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidBatchSize, batchSize)
	}
	return &Processor[T]{batchSize: batchSize}, nil
}

// NewProcessorWithDefaults creates a processor using DefaultBatchSize.
func NewProcessorWithDefaults[T any]() *Processor[T] {
	return &Processor[T]{batchSize: DefaultBatchSize}
}

// WithProgress sets the progress callback.
func (p *Processor[T]) WithProgress(fn ProgressFunc) *Processor[T] {
	p.onProgress = fn
	return p
}

// BatchSize returns the configured chunk size.
func (p *Processor[T]) BatchSize() int {
	return p.batchSize
}

// Chunks returns items split into consecutive chunks. The chunks alias items.
func (p *Processor[T]) Chunks(items []T) [][]T {
	bounds := p.CalculateBatches(len(items))
	chunks := make([][]T, len(bounds))
	for i, b := range bounds {
		chunks[i] = items[b[0]:b[1]:b[1]]
	}
	return chunks
}

// CalculateBatches returns [start, end) index pairs for totalItems.
func (p *Processor[T]) CalculateBatches(totalItems int) [][2]int {
	if totalItems <= 0 {
		return nil
	}
	total := (totalItems + p.batchSize - 1) / p.batchSize
	bounds := make([][2]int, total)
	for i := range total {
		start := i * p.batchSize
		end := min(start+p.batchSize, totalItems)
		bounds[i] = [2]int{start, end}
	}
	return bounds
}

// Process runs the chunks in order and stops at the first error.
func (p *Processor[T]) Process(ctx context.Context, items []T, fn Callback[T]) error {
	if err := p.check(items, fn); err != nil {
		return err
	}

	chunks := p.Chunks(items)
	progress := NewProgress(len(items), len(chunks))

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(ctx, chunk, i); err != nil {
			return fmt.Errorf("batch %d failed: %w", i, err)
		}
		p.report(progress, len(chunk))
	}
	return nil
}

// ProcessConcurrent runs up to maxConcurrency chunks at once. The first
// failure cancels the context handed to the remaining chunks and is returned.
func (p *Processor[T]) ProcessConcurrent(
	ctx context.Context,
	items []T,
	fn Callback[T],
	maxConcurrency int,
) error {
	if err := p.check(items, fn); err != nil {
		return err
	}
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	chunks := p.Chunks(items)
	progress := NewProgress(len(items), len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := fn(gctx, chunk, i); err != nil {
				return fmt.Errorf("batch %d failed: %w", i, err)
			}
			p.report(progress, len(chunk))
			return nil
		})
	}
	return g.Wait()
}

func (p *Processor[T]) check(items []T, fn Callback[T]) error {
	if len(items) == 0 {
		return ErrEmptyItems
	}
	if fn == nil {
		return ErrNilCallback
	}
	return nil
}

func (p *Processor[T]) report(progress *Progress, n int) {
	progress.AddProcessed(n)
	if p.onProgress != nil {
		p.onProgress(progress.Snapshot())
	}
}
