// Package store is the SQLite-backed datastore the replay reads from.
//
// The datastore holds one table, read_data_record(dpid, rts, reading): one
// row per historical sensor reading. The replay loader pages through it in
// half-open time windows [from, to).
//
// # Ordering
//
// Window queries are ordered by rts ASC, rowid ASC. Rows sharing a
// timestamp come back in insertion order, so a channel's rows are always
// delivered in non-decreasing timestamp order.
//
// # Connection
//
// A Store is created unconnected. Connect opens and pings the database and
// may be called repeatedly until it succeeds; the loader does exactly that.
//
// # Database Configuration
//
//   - WAL mode: the replay reads while a seeding process may still write
//   - synchronous=NORMAL
//   - busy_timeout=5000: wait for locks up to 5 seconds
package store
