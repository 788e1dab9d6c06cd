package relationship

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/lexd/internal/extraction"
)

const (
	// defaultMinStrength is the floor below which no edge is produced;
	// it filters pairs related only through boilerplate.
	defaultMinStrength = 0.05

	// ruleFloor is the strength assigned when a rule fires with no
	// lexical overlap between the key-term sets.
	ruleFloor = 0.1

	// defaultMaxClauses bounds the O(n²) pairwise scan. Typical documents
	// yield tens of clauses; beyond the bound the scan is truncated and a
	// warning logged rather than burning quadratic time.
	defaultMaxClauses = 512
)

// conflictMarkers are the lexical signals that one clause negates or
// limits another.
var conflictMarkers = []string{"notwithstanding", "except", "provided that"}

// Mapper infers pairwise relationships between the clauses of one
// document. Stateless; safe for concurrent use.
type Mapper struct {
	minStrength float64
	maxClauses  int
	logger      *zap.Logger
}

// NewMapper creates a mapper with the default thresholds.
func NewMapper(logger *zap.Logger) *Mapper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mapper{
		minStrength: defaultMinStrength,
		maxClauses:  defaultMaxClauses,
		logger:      logger,
	}
}

// Map scans every ordered clause pair and emits the first matching rule
// per pair. Clauses arrive ordered by document offset, which makes the
// required lower-target-id tie-break the natural iteration order.
func (m *Mapper) Map(clauses []extraction.Clause) []ClauseRelationship {
	if len(clauses) > m.maxClauses {
		m.logger.Warn("clause count exceeds pairwise scan bound, truncating",
			zap.Int("clauses", len(clauses)),
			zap.Int("bound", m.maxClauses),
		)
		clauses = clauses[:m.maxClauses]
	}

	parties := partyNames(clauses)
	termOwners := termOccurrences(clauses)

	var rels []ClauseRelationship
	for i := range clauses {
		for j := range clauses {
			if i == j {
				continue
			}
			rel, ok := m.inferPair(clauses[i], clauses[j], parties, termOwners)
			if !ok {
				continue
			}
			if rel.Strength < m.minStrength {
				continue
			}
			rels = append(rels, rel)
		}
	}
	return rels
}

// inferPair applies the rules in priority order; the first match wins.
func (m *Mapper) inferPair(src, dst extraction.Clause, parties []string, termOwners map[string]int) (ClauseRelationship, bool) {
	if party, ok := sharedParty(src, dst, parties); ok &&
		src.Type == extraction.ClauseFinancial && dst.Type == extraction.ClauseFinancial {
		return m.edge(src, dst, TypeDependsOn,
			fmt.Sprintf("financial terms tied to the same party %q", party)), true
	}

	if src.Type == extraction.ClauseDate && dst.Type == extraction.ClauseObligation &&
		src.Start < dst.Start {
		if term, ok := sharedTerm(src, dst); ok {
			return m.edge(src, dst, TypePrecedes,
				fmt.Sprintf("date term precedes obligation sharing %q", term)), true
		}
	}

	if term, ok := sharedTerm(src, dst); ok && hasConflictMarker(src.Text, dst.Text) {
		return m.edge(src, dst, TypeConflictsWith,
			fmt.Sprintf("limiting language around shared term %q", term)), true
	}

	if term, ok := crossReference(src, dst, termOwners); ok {
		return m.edge(src, dst, TypeReferences,
			fmt.Sprintf("text references distinguishing term %q", term)), true
	}

	return ClauseRelationship{}, false
}

// edge builds the relationship with Jaccard strength, floored when the
// rule fired without lexical overlap.
func (m *Mapper) edge(src, dst extraction.Clause, typ Type, description string) ClauseRelationship {
	strength := jaccard(src.KeyTerms, dst.KeyTerms)
	if strength == 0 {
		strength = ruleFloor
	}
	return ClauseRelationship{
		SourceClauseID: src.ID,
		TargetClauseID: dst.ID,
		Type:           typ,
		Description:    description,
		Strength:       strength,
	}
}

// partyNames collects the key terms of party-identification clauses.
func partyNames(clauses []extraction.Clause) []string {
	var names []string
	for _, c := range clauses {
		if c.Type != extraction.ClauseParty {
			continue
		}
		names = append(names, c.KeyTerms...)
	}
	return names
}

// termOccurrences counts how many clauses carry each key term; a term held
// by exactly one clause distinguishes it.
func termOccurrences(clauses []extraction.Clause) map[string]int {
	counts := make(map[string]int)
	for _, c := range clauses {
		for _, t := range c.KeyTerms {
			counts[t]++
		}
	}
	return counts
}

// sharedParty returns a party name referenced by both clause texts.
func sharedParty(a, b extraction.Clause, parties []string) (string, bool) {
	aText := strings.ToLower(a.Text)
	bText := strings.ToLower(b.Text)
	for _, p := range parties {
		if strings.Contains(aText, p) && strings.Contains(bText, p) {
			return p, true
		}
	}
	return "", false
}

// sharedTerm returns a key term present in both clauses' term sets.
func sharedTerm(a, b extraction.Clause) (string, bool) {
	for _, t := range a.KeyTerms {
		if b.HasKeyTerm(t) {
			return t, true
		}
	}
	return "", false
}

// hasConflictMarker reports whether either clause carries limiting language.
func hasConflictMarker(texts ...string) bool {
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, marker := range conflictMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}

// crossReference returns a distinguishing key term of dst that src's text
// mentions.
func crossReference(src, dst extraction.Clause, termOwners map[string]int) (string, bool) {
	srcText := strings.ToLower(src.Text)
	for _, t := range dst.KeyTerms {
		if termOwners[t] != 1 {
			continue
		}
		if src.HasKeyTerm(t) {
			continue
		}
		if strings.Contains(srcText, t) {
			return t, true
		}
	}
	return "", false
}

// jaccard computes |A∩B| / |A∪B| over two term sets.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		set[t] = struct{}{}
	}
	intersection := 0
	union := len(set)
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := set[t]; ok {
			intersection++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}
