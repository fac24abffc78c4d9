// Package ingestion crawls the marketplace catalog into the popular products table.
//
// A crawl is a chain of queue jobs:
//
//	catalog.crawl     one per run, fans out a category job per category
//	catalog.category  fetches one page, enqueues an upsert per item and the next page
//	catalog.upsert    merges one observation into the catalog row
//	catalog.refresh   re-reads one product, deleting it once the upstream reports it gone
//
// Every handler is safe to run more than once for the same payload.
package ingestion
