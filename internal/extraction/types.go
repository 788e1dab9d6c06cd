package extraction

import (
	"sort"
	"strings"
)

// ClauseType classifies an extracted clause.
type ClauseType string

const (
	ClauseParty       ClauseType = "PARTY_IDENTIFICATION"
	ClauseFinancial   ClauseType = "FINANCIAL_TERMS"
	ClauseDate        ClauseType = "DATE_TERM"
	ClauseTermination ClauseType = "TERMINATION"
	ClauseObligation  ClauseType = "OBLIGATION"
	ClauseRiskFactor  ClauseType = "RISK_FACTOR"
	ClauseOther       ClauseType = "OTHER"
)

// ParseClauseType maps a provider class tag to a ClauseType.
// Unrecognized tags map to ClauseOther rather than failing the span.
func ParseClauseType(s string) ClauseType {
	switch ClauseType(strings.ToUpper(strings.TrimSpace(s))) {
	case ClauseParty:
		return ClauseParty
	case ClauseFinancial:
		return ClauseFinancial
	case ClauseDate:
		return ClauseDate
	case ClauseTermination:
		return ClauseTermination
	case ClauseObligation:
		return ClauseObligation
	case ClauseRiskFactor:
		return ClauseRiskFactor
	default:
		return ClauseOther
	}
}

// RawExtraction is a single labeled span returned by a provider, after
// validation at the provider boundary. Offsets are window-local until the
// extractor maps them back onto the original document.
type RawExtraction struct {
	Class      ClauseType        `json:"extraction_class"`
	Text       string            `json:"extraction_text"`
	Attributes map[string]string `json:"attributes,omitempty"`
	WindowID   int               `json:"source_window_id"`
	Start      int               `json:"char_offset_start"`
	End        int               `json:"char_offset_end"`
	Confidence float64           `json:"confidence"`
}

// Clause is a typed, confidence-scored span of the original document text.
// Immutable once emitted by the extractor.
type Clause struct {
	ID         string     `json:"clause_id"`
	Type       ClauseType `json:"clause_type"`
	Text       string     `json:"clause_text"`
	KeyTerms   []string   `json:"key_terms,omitempty"`
	Confidence float64    `json:"confidence_score"`
	Start      int        `json:"char_offset_start"`
	End        int        `json:"char_offset_end"`
}

// HasKeyTerm reports whether the clause carries the given (lowercased) key term.
func (c Clause) HasKeyTerm(term string) bool {
	for _, t := range c.KeyTerms {
		if t == term {
			return true
		}
	}
	return false
}

// Window is a bounded substring of the document submitted to the provider.
// Offset is the byte offset of the window within the original text.
type Window struct {
	ID     int
	Text   string
	Offset int
}

// WorkedExample is a few-shot example passed through to the provider.
type WorkedExample struct {
	Text        string          `json:"text"`
	Extractions []RawExtraction `json:"extractions"`
}

// Metadata records how an extraction run went. It is persisted alongside
// the analysis result so dropped windows are visible to callers.
type Metadata struct {
	RunID          string   `json:"run_id"`
	DocumentType   string   `json:"document_type"`
	ModelID        string   `json:"model_id"`
	WindowCount    int      `json:"window_count"`
	FailedWindows  int      `json:"failed_windows"`
	RawExtractions int      `json:"raw_extractions"`
	MergedClauses  int      `json:"merged_clauses"`
	Warnings       []string `json:"warnings,omitempty"`
}

// normalizeTerms lowercases, trims, dedups and sorts a term set.
func normalizeTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
