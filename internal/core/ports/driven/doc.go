// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
//   - SparseEncoder: Turns text into a sparse term-weight vector (SPLADE service)
//   - SparseIndex: Index management, bulk writes and ranked search (Elasticsearch)
//   - Generator: Language model completion, whole or streamed (Ollama)
//   - Chunker: Splits pages into chunks
//   - ConfigStore: Application configuration
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - PromptStore: Customisable prompt templates. Without it, embedded defaults are used.
//   - Metrics: Ingestion and search observer. Without it, progress is only logged.
//   - ProjectSource: Fetches a project export from a remote wiki.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter, connector, or postprocessor package
package driven
