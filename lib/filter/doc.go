// Package filter sorts and filters merged record lists by date, partition and text.
//
// Sorting and date filtering treat records without a date differently: SortByDate keeps
// them and moves them to the end, ByDate drops them.
package filter
