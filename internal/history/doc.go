// Package history retrieves raw trade events from the external
// ElasticSearch trade archive.
//
// The archive is paginated newest-first with a hard page size, so the
// fetcher walks backwards through time by narrowing the query window to
// just before the earliest event of each page. Pagination terminates
// when a page carries at most one hit, when the archive returns the
// same page twice, or when a batch cap is reached. Events come back in
// ascending time order ready for aggregation.
package history
