// Package listview provides a virtual scrolling list for Bubble Tea views.
//
// Only the rows inside the viewport (plus a small buffer) are rendered, so a
// table that keeps appending pages stays responsive. Items can be replaced in
// place with SetItems, which keeps the cursor on the same index when possible;
// that is how the table browser swaps in fresh snapshots without losing the
// user's position.
package listview
