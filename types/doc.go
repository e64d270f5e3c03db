// Package types holds the shared error taxonomy for the docqa pipeline.
//
// Every external capability (embedding provider, vector index, language
// model) and the ingestion stage surfaces failures as a *types.Error with a
// distinct ErrorCode, so callers can branch on the failure class without
// parsing messages. Capability failures are always propagated; the pipeline
// never substitutes fabricated content for a failed call.
package types
