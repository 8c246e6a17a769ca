// Package news defines the shared domain types and interfaces of the curation
// pipeline: scraped articles, scored candidates, persisted sheet rows and the
// collaborators (sources, scorer, clock) the pipeline consumes.
package news
