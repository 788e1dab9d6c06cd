package relationship

// Type classifies a directed relationship between two clauses.
type Type string

const (
	TypeReferences    Type = "REFERENCES"
	TypeModifies      Type = "MODIFIES"
	TypeConflictsWith Type = "CONFLICTS_WITH"
	TypePrecedes      Type = "PRECEDES"
	TypeDependsOn     Type = "DEPENDS_ON"
)

// ClauseRelationship is a directed, strength-scored edge between two
// clauses of the same document. Source and target ids always differ and
// both exist in the document's clause list.
type ClauseRelationship struct {
	SourceClauseID string  `json:"source_clause_id"`
	TargetClauseID string  `json:"target_clause_id"`
	Type           Type    `json:"relationship_type"`
	Description    string  `json:"relationship_description"`
	Strength       float64 `json:"strength"`
}
