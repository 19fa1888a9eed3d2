// Package cmd implements the command-line interface of flipcache. Every command works
// on the session of one user (--uid) and its local durable store.
//
// The package is organized into several subpackages:
//
//   - sync: Sync a root collection with the remote store and print the filtered result
//   - recent: Commands for the recent market lookups (set, get, update, del, ls)
//   - cache: Commands for inspecting and editing the local cache (ls, del, drop-partition, sweep, ...)
//   - util: Shared utilities for command-line processing and configuration (internal use)
//
// See flipcache -help for a list of all commands.
package cmd
