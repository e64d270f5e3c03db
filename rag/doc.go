/*
Package rag implements the retrieval-and-answering core: it splits documents
into token-bounded overlapping fragments, embeds and indexes them, retrieves
and reranks candidates for a question, and composes a citation-constrained
answer with a heuristic confidence score.

Core interfaces/types:

  - Fragment — immutable unit of retrievable text with stable provenance
  - VectorStore — vector index contract (Upsert / Query / Count), with
    in-memory and Qdrant-backed implementations
  - Reranker — candidate reordering (NoopReranker / ProviderReranker)
  - Retriever — expansion → multi-query search → dedupe → rerank → top-k
  - Composer — prompt construction (strict/hybrid), confidence, previews,
    citation stripping
  - Ingestor / Indexer — document → fragments → embeddings → index
  - FragmentStore — durable ingestion ledger (GORM)

Index time flows one direction (documents → fragments → embeddings → index)
and query time flows one direction (question → expanded queries → candidates
→ reranked candidates → prompt → answer). The external capabilities
(embedding provider, vector index, language model, rerank scorer) are
injected; the core defines no timeout or retry policy of its own and honors
caller-supplied contexts on every blocking call.
*/
package rag
