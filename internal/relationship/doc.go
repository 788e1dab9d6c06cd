// Package relationship infers directed, strength-scored relationships
// between the clauses of one document.
//
// The mapper runs a pairwise scan (quadratic, bounded by a maximum clause
// count) applying fixed rules in priority order: DEPENDS_ON between
// financial clauses tied to the same party, PRECEDES from date terms to
// later obligations sharing a key term, CONFLICTS_WITH when limiting
// language ("notwithstanding", "except", "provided that") surrounds a
// shared term, and REFERENCES when one clause's text mentions another's
// distinguishing key term. Edge strength is the Jaccard similarity of the
// two key-term sets, floored at 0.1 when a rule fires without overlap;
// edges weaker than 0.05 are suppressed.
package relationship
