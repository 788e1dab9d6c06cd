package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/fyrsmithlabs/lexd/internal/extraction"
	"github.com/fyrsmithlabs/lexd/internal/relationship"
)

// highConfidence is the bar above which a single risk factor makes the
// whole document high risk.
const highConfidence = 0.8

// Builder aggregates clauses and relationships into a Result. Pure and
// deterministic given identical inputs; safe for concurrent use.
type Builder struct {
	checklists map[string][]extraction.ClauseType
}

// NewBuilder creates a builder with the built-in mandatory-clause
// checklists per document type.
func NewBuilder() *Builder {
	return &Builder{checklists: map[string][]extraction.ClauseType{
		"rental": {
			extraction.ClauseParty,
			extraction.ClauseFinancial,
			extraction.ClauseDate,
			extraction.ClauseTermination,
		},
		"nda": {
			extraction.ClauseParty,
			extraction.ClauseObligation,
			extraction.ClauseDate,
		},
		"employment": {
			extraction.ClauseParty,
			extraction.ClauseFinancial,
			extraction.ClauseDate,
			extraction.ClauseTermination,
			extraction.ClauseObligation,
		},
		"service_agreement": {
			extraction.ClauseParty,
			extraction.ClauseFinancial,
			extraction.ClauseObligation,
			extraction.ClauseTermination,
		},
		extraction.GenericDocumentType: {
			extraction.ClauseParty,
			extraction.ClauseObligation,
		},
	}}
}

// Build assembles the structured analysis record for one document.
func (b *Builder) Build(documentID, documentType string, clauses []extraction.Clause,
	rels []relationship.ClauseRelationship, elapsed time.Duration, meta *extraction.Metadata) *Result {

	result := &Result{
		DocumentID:            documentID,
		DocumentType:          documentType,
		ExtractedClauses:      clauses,
		ClauseRelationships:   rels,
		RiskAssessment:        b.assessRisk(clauses),
		ComplianceCheck:       b.checkCompliance(documentType, clauses),
		ConfidenceScore:       aggregateConfidence(clauses),
		ProcessingTimeSeconds: elapsed.Seconds(),
		ExtractionMetadata:    meta,
	}

	for _, c := range clauses {
		switch c.Type {
		case extraction.ClauseParty:
			result.PartiesIdentified = append(result.PartiesIdentified, c.Text)
		case extraction.ClauseFinancial:
			result.FinancialTerms = append(result.FinancialTerms, c.Text)
		case extraction.ClauseDate:
			result.ImportantDates = append(result.ImportantDates, c.Text)
		}
	}

	return result
}

// assessRisk derives the overall risk level from RISK_FACTOR clauses:
// none is low, one or two low-confidence factors is medium, any
// high-confidence factor or three or more factors is high.
func (b *Builder) assessRisk(clauses []extraction.Clause) RiskAssessment {
	var factors []string
	highConfidenceHit := false
	for _, c := range clauses {
		if c.Type != extraction.ClauseRiskFactor {
			continue
		}
		factors = append(factors, c.Text)
		if c.Confidence > highConfidence {
			highConfidenceHit = true
		}
	}

	level := RiskLow
	switch {
	case len(factors) == 0:
		level = RiskLow
	case highConfidenceHit || len(factors) >= 3:
		level = RiskHigh
	default:
		level = RiskMedium
	}

	return RiskAssessment{OverallRiskLevel: level, RiskFactors: factors}
}

// checkCompliance scores the document against its type's mandatory-clause
// checklist: the mean confidence of clauses with checklist-relevant types,
// scaled to 0..100, plus one issue per mandatory type that is absent.
func (b *Builder) checkCompliance(documentType string, clauses []extraction.Clause) ComplianceCheck {
	checklist, ok := b.checklists[strings.ToLower(documentType)]
	if !ok {
		checklist = b.checklists[extraction.GenericDocumentType]
	}

	mandatory := make(map[extraction.ClauseType]bool, len(checklist))
	for _, t := range checklist {
		mandatory[t] = false
	}

	sum := 0.0
	relevant := 0
	for _, c := range clauses {
		if _, ok := mandatory[c.Type]; !ok {
			continue
		}
		mandatory[c.Type] = true
		sum += c.Confidence
		relevant++
	}

	score := 0.0
	if relevant > 0 {
		score = sum / float64(relevant) * 100
	}

	var issues []string
	for _, t := range checklist {
		if !mandatory[t] {
			issues = append(issues, fmt.Sprintf("missing mandatory clause type %s", t))
		}
	}

	return ComplianceCheck{ComplianceScore: score, Issues: issues}
}

// aggregateConfidence is the mean clause confidence, 0 with no clauses.
func aggregateConfidence(clauses []extraction.Clause) float64 {
	if len(clauses) == 0 {
		return 0
	}
	sum := 0.0
	for _, c := range clauses {
		sum += c.Confidence
	}
	return sum / float64(len(clauses))
}
