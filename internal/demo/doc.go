// Package demo serves an in-memory product list that speaks the same wire
// protocol tablesync expects from a real backend.
//
// The server answers GET {route} with a props envelope holding a paginated
// row set, pagination meta with a last_updated watermark and an optional
// polling block. X-Partial-Data limits which props are returned. Bulk
// mutations are accepted on DELETE {route}/bulk and PATCH {route}/bulk-status
// and bump the watermark, so a polling client notices them.
//
// It exists for local development, the demo-server command and end-to-end
// tests of the table controller.
package demo
