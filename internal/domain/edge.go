package domain

import "time"

// EdgeType identifies the evidence dimension that produced an edge.
type EdgeType string

const (
	EdgeCoworker    EdgeType = "coworker"
	EdgeEducation   EdgeType = "education"
	EdgeFamily      EdgeType = "family"
	EdgeAffiliation EdgeType = "affiliation"
	EdgeHometown    EdgeType = "hometown"
	EdgeSocial      EdgeType = "social"
)

// EdgeTypes lists all edge types in descending base-strength order.
var EdgeTypes = []EdgeType{
	EdgeFamily,
	EdgeCoworker,
	EdgeEducation,
	EdgeAffiliation,
	EdgeHometown,
	EdgeSocial,
}

// EdgeMetadata records the evidence that justified an edge.
type EdgeMetadata struct {
	Company     string
	School      string
	Affiliation string
	Hometown    string
	Surname     string
	Platform    string
	SharedYears int
}

// Edge is a directed half of an undirected relationship. Every derivation
// emits both directions with identical strength and confidence. Edges carry
// no identity beyond (FromID, ToID, Type); rebuilds replace the full set.
type Edge struct {
	FromID     string
	ToID       string
	Type       EdgeType
	Strength   float64 // 0-100, per-type base plus contextual modifiers
	Confidence float64 // 0-100, discounted while an endpoint is a ghost
	Metadata   EdgeMetadata
	CreatedAt  time.Time
}

// HighTrustType reports whether the edge type outranks others when breaking
// ranking ties between paths of equal numeric score.
func HighTrustType(t EdgeType) bool {
	return t == EdgeCoworker || t == EdgeEducation
}
