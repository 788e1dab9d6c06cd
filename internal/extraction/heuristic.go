package extraction

import (
	"context"
	"regexp"
	"strings"
)

// ClausePattern is a sentence-level detection pattern for the heuristic
// provider.
type ClausePattern struct {
	Name   string
	Class  ClauseType
	Regex  string
	Weight float64
}

// DefaultClausePatterns returns the built-in legal clause patterns.
func DefaultClausePatterns() []ClausePattern {
	return []ClausePattern{
		// Money and payment terms
		{Name: "currency_amount", Class: ClauseFinancial, Regex: `\$[\d,]+(?:\.\d{2})?`, Weight: 0.9},
		{Name: "payment_terms", Class: ClauseFinancial, Regex: `(?i)\b(rent|fee|payment|deposit|compensation|salary)\b`, Weight: 0.7},

		// Dates and deadlines
		{Name: "calendar_date", Class: ClauseDate, Regex: `(?i)\b(january|february|march|april|may|june|july|august|september|october|november|december)\s+\d{1,2},?\s+\d{4}`, Weight: 0.85},
		{Name: "deadline", Class: ClauseDate, Regex: `(?i)\b(no later than|within \d+ (days|months)|effective date|commencing on)\b`, Weight: 0.75},

		// Parties
		{Name: "party_definition", Class: ClauseParty, Regex: `(?i)\b(between|by and among)\b.*\b(and)\b|\((the\s+)?["“](landlord|tenant|employer|employee|lessor|lessee|company|contractor|client)["”]\)`, Weight: 0.8},
		{Name: "party_role", Class: ClauseParty, Regex: `(?i)\b(landlord|tenant|employer|employee|lessor|lessee|licensor|licensee)\b`, Weight: 0.6},

		// Termination
		{Name: "termination", Class: ClauseTermination, Regex: `(?i)\b(terminat(e|ion|es|ed)|expir(e|ation|es))\b`, Weight: 0.8},

		// Obligations
		{Name: "obligation", Class: ClauseObligation, Regex: `(?i)\b(shall|must|agrees to|is required to|is obligated to)\b`, Weight: 0.65},

		// Risk
		{Name: "risk_language", Class: ClauseRiskFactor, Regex: `(?i)\b(indemnif\w*|liab\w*|penalt\w*|damages|default|breach\w*|forfeit\w*)\b`, Weight: 0.75},
	}
}

type compiledClausePattern struct {
	ClausePattern
	regex *regexp.Regexp
}

// HeuristicProvider implements Provider with pattern matching over
// sentences. It needs no network and is the default backend when no LLM
// credentials are configured; it also keeps tests hermetic.
type HeuristicProvider struct {
	patterns []compiledClausePattern
}

// NewHeuristicProvider compiles the given patterns, skipping invalid ones.
// Passing nil uses DefaultClausePatterns.
func NewHeuristicProvider(patterns []ClausePattern) *HeuristicProvider {
	if len(patterns) == 0 {
		patterns = DefaultClausePatterns()
	}
	compiled := make([]compiledClausePattern, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p.Regex)
		if err != nil {
			continue
		}
		compiled = append(compiled, compiledClausePattern{ClausePattern: p, regex: re})
	}
	return &HeuristicProvider{patterns: compiled}
}

// Invoke labels each sentence of the window with the best-matching pattern.
func (h *HeuristicProvider) Invoke(ctx context.Context, req InvokeRequest) ([]RawExtraction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raws []RawExtraction
	for _, seg := range splitSentences(req.Text) {
		best := h.findBestMatch(seg.text)
		if best == nil {
			continue
		}
		raws = append(raws, RawExtraction{
			Class: best.Class,
			Text:  seg.text,
			Attributes: map[string]string{
				"pattern":   best.Name,
				"key_terms": strings.Join(keyTermCandidates(best.regex, seg.text), ", "),
			},
			Start:      seg.start,
			End:        seg.start + len(seg.text),
			Confidence: best.Weight,
		})
	}
	return raws, nil
}

// findBestMatch returns the highest-weight pattern matching the sentence.
func (h *HeuristicProvider) findBestMatch(sentence string) *compiledClausePattern {
	var best *compiledClausePattern
	for i := range h.patterns {
		p := &h.patterns[i]
		if p.regex.MatchString(sentence) && (best == nil || p.Weight > best.Weight) {
			best = p
		}
	}
	return best
}

// keyTermCandidates collects the matched lexical fragments as key terms.
func keyTermCandidates(re *regexp.Regexp, sentence string) []string {
	matches := re.FindAllString(sentence, 4)
	terms := make([]string, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, strings.ToLower(strings.TrimSpace(m)))
	}
	return terms
}

type sentenceSpan struct {
	text  string
	start int
}

// splitSentences cuts the window into sentence-ish segments on periods,
// newlines and semicolons, preserving window-local offsets.
func splitSentences(text string) []sentenceSpan {
	var spans []sentenceSpan
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', ';', '\n':
			seg := strings.TrimSpace(text[start : i+1])
			if seg != "" {
				spans = append(spans, sentenceSpan{text: seg, start: start + leadingSpace(text[start:i+1])})
			}
			start = i + 1
		}
	}
	if seg := strings.TrimSpace(text[start:]); seg != "" {
		spans = append(spans, sentenceSpan{text: seg, start: start + leadingSpace(text[start:])})
	}
	return spans
}

func leadingSpace(s string) int {
	return len(s) - len(strings.TrimLeft(s, " \t\r\n"))
}

var _ Provider = (*HeuristicProvider)(nil)
