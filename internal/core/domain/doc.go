// Package domain defines the core entities of the Scrapbox RAG pipeline.
//
// This package is the innermost layer of the hexagon and has no external
// dependencies. It defines:
//
//   - Project and Page: a Scrapbox export, the pipeline's only input
//   - Chunk: a bounded slice of a page, the unit of indexing and retrieval
//   - SparseVector: term -> weight mapping produced by the encoder
//   - ScoredContext, Answer, StreamEvent: retrieval and answering results
//   - IngestReport: the summary of one ingestion run
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
