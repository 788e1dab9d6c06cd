package analysis

import (
	"github.com/fyrsmithlabs/lexd/internal/extraction"
	"github.com/fyrsmithlabs/lexd/internal/relationship"
)

// Risk levels for RiskAssessment.OverallRiskLevel.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// RiskAssessment summarizes the risk posture derived from RISK_FACTOR
// clauses.
type RiskAssessment struct {
	OverallRiskLevel string   `json:"overall_risk_level"`
	RiskFactors      []string `json:"risk_factors,omitempty"`
}

// ComplianceCheck scores coverage of the document type's mandatory clause
// checklist, 0 to 100, with one issue per missing mandatory clause type.
type ComplianceCheck struct {
	ComplianceScore float64  `json:"compliance_score"`
	Issues          []string `json:"issues,omitempty"`
}

// Result is the structured analysis record for one document: clauses,
// relationships and the derived summaries. Written once by a processing
// job, read many times. Field names are stable across versions; schema
// evolution is additive only.
type Result struct {
	DocumentID            string                            `json:"document_id"`
	DocumentType          string                            `json:"document_type"`
	ExtractedClauses      []extraction.Clause               `json:"extracted_clauses"`
	ClauseRelationships   []relationship.ClauseRelationship `json:"clause_relationships"`
	PartiesIdentified     []string                          `json:"parties_identified"`
	FinancialTerms        []string                          `json:"financial_terms"`
	ImportantDates        []string                          `json:"important_dates"`
	RiskAssessment        RiskAssessment                    `json:"risk_assessment"`
	ComplianceCheck       ComplianceCheck                   `json:"compliance_check"`
	ConfidenceScore       float64                           `json:"confidence_score"`
	ProcessingTimeSeconds float64                           `json:"processing_time_seconds"`
	ExtractionMetadata    *extraction.Metadata              `json:"extraction_metadata,omitempty"`
}
