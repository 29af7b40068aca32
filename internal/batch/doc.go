// Package batch splits bulk work into fixed-size chunks.
//
// Bulk actions on large selections are sent to the server in chunks of
// BulkBatchSize identifiers so a single request never carries an unbounded
// id list. Chunks run sequentially (stop on first error) or concurrently
// with a limit, and report progress after each chunk.
package batch
