// Package store provides the SQLite-backed variant store: the single
// source of truth for which (size, format) variants exist per asset.
//
// It persists:
//   - Per-asset metadata as key-value pairs, including the nested
//     size -> format -> variant map and conversion state
//   - Conversion job states used for duplicate-dispatch suppression
//   - Append-only conversion records driving savings statistics
//
// The database uses WAL mode for improved concurrent read performance
// and includes automatic schema initialization. Writes are
// last-write-wins per (asset, size, format) key; the orchestrator
// guarantees at most one conversion pass per asset is active at a time.
package store
