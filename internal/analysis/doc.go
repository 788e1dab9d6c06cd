// Package analysis aggregates extracted clauses and inferred
// relationships into the structured analysis record persisted with a
// processing job: party, financial and date buckets, a rule-based risk
// assessment, mandatory-clause compliance scoring, and the aggregate
// confidence for the document.
package analysis
