// Package remote defines the remote list fetcher consumed by table
// controllers and provides its HTTP implementation.
//
// The wire shape follows page-props responses:
//
//	{"props": {"data": {"data": [...], "current_page": 1, "last_page": 4},
//	           "meta": {"last_updated": "..."},
//	           "polling": {"interval": 30000, "endpoint": "/admin/products"}}}
//
// The name of the rows field ("data" above) is configurable per table.
package remote
