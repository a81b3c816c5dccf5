// Package store keeps recent alert records in memory for the history API.
// Records expire a fixed TTL after their last update; a background loop (Run)
// evicts them.
package store
