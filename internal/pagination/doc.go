// Package pagination holds the wire-level pieces of a paginated, sortable,
// filterable list request: sort state, cleaned request parameters and the
// pagination metadata returned by the server.
//
// This package is shared by the table controller, the HTTP fetcher and the
// demo server so that all three agree on parameter names:
//   - SortState: column + direction with toggle semantics
//   - RequestParams: the minimal non-empty parameter set sent over the wire
//   - Meta: server pagination and freshness metadata
package pagination
