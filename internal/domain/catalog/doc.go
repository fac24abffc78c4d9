// Package catalog contains the popular-products catalog: products discovered
// by the ingestion pipeline, keyed by the upstream's external product id, and
// the set of upstream categories each one was seen under.
package catalog
