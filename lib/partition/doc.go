// Package partition resolves the partitions (connected external stores, expense types)
// a root collection is split into.
package partition
