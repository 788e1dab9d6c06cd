// Package extraction turns raw legal document text into typed,
// confidence-scored clauses.
//
// The pipeline for one document:
//
//  1. Registry resolves the per-document-type Config (prompt, worked
//     examples, chunk size, model parameters); unknown types fall back to
//     the generic config.
//  2. Chunker splits the text into overlapping windows with absolute
//     offsets so clauses spanning a window boundary are not lost.
//  3. A Provider labels each window (bounded concurrency, per-window
//     retry with exponential backoff; windows that keep failing are
//     dropped with a warning in Metadata).
//  4. Overlapping duplicates from adjacent windows are merged, keeping
//     the maximum confidence and the union of key terms.
//  5. Clauses are ordered by absolute offset and given deterministic ids
//     of the form {documentID}-clause-{ordinal}.
//
// Two providers ship with the package: LLMProvider (langchaingo against
// any OpenAI-compatible endpoint, rate limited) and HeuristicProvider
// (pattern matching, no network). Both validate backend output into typed
// RawExtractions at the boundary; malformed output is a typed error.
package extraction
