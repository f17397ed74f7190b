// Package scrapbox provides the two project sources the import command uses:
// a local JSON export file and a rate-limited crawl of the Scrapbox REST API.
// Both produce a domain.Project ready for ingestion.
package scrapbox
