// Package store provides persistence backends implementing graph.Store:
// an in-memory map (MemStore), a single-file SQLite backend, and a
// MySQL/MariaDB backend for shared, durable deployments.
package store
