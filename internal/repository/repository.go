package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/anika/warmpath/internal/domain"
	"github.com/anika/warmpath/internal/graph"
)

// Repository persists people and derived relationship edges in a graph
// database through the graph.Client contract.
type Repository struct {
	client graph.Client
}

// New instantiates a Repository backed by the supplied graph client.
func New(client graph.Client) *Repository {
	return &Repository{client: client}
}

// UpsertPerson ensures a person node exists with the latest evidence fields.
func (r *Repository) UpsertPerson(ctx context.Context, person domain.Person) error {
	if person.ID == "" {
		return errors.New("person id is required")
	}

	props, err := personProperties(person)
	if err != nil {
		return fmt.Errorf("encode person %s: %w", person.ID, err)
	}

	_, err = r.client.ExecuteWrite(ctx, upsertPersonCypher, map[string]any{
		"personId": person.ID,
		"props":    props,
	})
	if err != nil {
		return fmt.Errorf("upsert person %s: %w", person.ID, err)
	}
	return nil
}

// GetPerson fetches a single person by id, returning domain.ErrNotFound when
// the node does not exist.
func (r *Repository) GetPerson(ctx context.Context, id string) (domain.Person, error) {
	if id == "" {
		return domain.Person{}, errors.New("person id is required")
	}

	res, err := r.client.ExecuteRead(ctx, getPersonCypher, map[string]any{
		"personId": id,
	})
	if err != nil {
		return domain.Person{}, fmt.Errorf("get person %s: %w", id, err)
	}
	if len(res.Records) == 0 {
		return domain.Person{}, fmt.Errorf("person %s: %w", id, domain.ErrNotFound)
	}
	return recordToPerson(res.Records[0])
}

// ListPersons returns every stored person ordered by id.
func (r *Repository) ListPersons(ctx context.Context) ([]domain.Person, error) {
	res, err := r.client.ExecuteRead(ctx, listPersonsCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	persons := make([]domain.Person, 0, len(res.Records))
	for _, record := range res.Records {
		p, err := recordToPerson(record)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	return persons, nil
}

// ReplaceEdges discards the previous edge generation and writes the new one
// in a single write statement, so a failure leaves the old set in place.
func (r *Repository) ReplaceEdges(ctx context.Context, edges []domain.Edge) error {
	params := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		params = append(params, map[string]any{
			"fromId":      e.FromID,
			"toId":        e.ToID,
			"type":        string(e.Type),
			"strength":    e.Strength,
			"confidence":  e.Confidence,
			"company":     e.Metadata.Company,
			"school":      e.Metadata.School,
			"affiliation": e.Metadata.Affiliation,
			"hometown":    e.Metadata.Hometown,
			"surname":     e.Metadata.Surname,
			"platform":    e.Metadata.Platform,
			"sharedYears": e.Metadata.SharedYears,
			"createdAt":   formatTime(e.CreatedAt),
		})
	}

	_, err := r.client.ExecuteWrite(ctx, replaceEdgesCypher, map[string]any{
		"edges": params,
	})
	if err != nil {
		return fmt.Errorf("replace edges: %w", err)
	}
	return nil
}

// ListEdges returns the full current edge generation.
func (r *Repository) ListEdges(ctx context.Context) ([]domain.Edge, error) {
	res, err := r.client.ExecuteRead(ctx, listEdgesCypher, nil)
	if err != nil {
		return nil, fmt.Errorf("list edges: %w", err)
	}
	edges := make([]domain.Edge, 0, len(res.Records))
	for _, record := range res.Records {
		edges = append(edges, recordToEdge(record))
	}
	return edges, nil
}

// MarkVerified flips the verified flag and sets the trust score on a person.
func (r *Repository) MarkVerified(ctx context.Context, id string, trustScore float64) error {
	res, err := r.client.ExecuteWrite(ctx, markVerifiedCypher, map[string]any{
		"personId":   id,
		"trustScore": trustScore,
	})
	if err != nil {
		return fmt.Errorf("mark person %s verified: %w", id, err)
	}
	if len(res.Records) == 0 {
		return fmt.Errorf("person %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// BoostEdgeConfidence raises confidence on every edge touching the person,
// capped at 100.
func (r *Repository) BoostEdgeConfidence(ctx context.Context, personID string, delta float64) error {
	_, err := r.client.ExecuteWrite(ctx, boostConfidenceCypher, map[string]any{
		"personId": personID,
		"delta":    delta,
	})
	if err != nil {
		return fmt.Errorf("boost edge confidence for %s: %w", personID, err)
	}
	return nil
}

func personProperties(p domain.Person) (map[string]any, error) {
	employments, err := json.Marshal(p.Employments)
	if err != nil {
		return nil, err
	}
	educations, err := json.Marshal(p.Educations)
	if err != nil {
		return nil, err
	}
	handles, err := json.Marshal(p.SocialHandles)
	if err != nil {
		return nil, err
	}

	props := map[string]any{
		"fullName":        p.FullName,
		"company":         p.Company,
		"title":           p.Title,
		"location":        p.Location,
		"employmentsJson": string(employments),
		"educationsJson":  string(educations),
		"affiliations":    p.Affiliations,
		"hometownCity":    p.Hometown.City,
		"hometownRegion":  p.Hometown.Region,
		"socialHandles":   string(handles),
		"socialLinks":     p.SocialLinks,
		"interests":       p.Interests,
		"verified":        p.Verified,
		"trustScore":      p.TrustScore,
		"updatedAt":       formatTime(p.UpdatedAt),
	}
	if !p.CreatedAt.IsZero() {
		props["createdAt"] = formatTime(p.CreatedAt)
	}
	return props, nil
}

func recordToPerson(record graph.Record) (domain.Person, error) {
	p := domain.Person{
		ID:       toString(record["personId"]),
		FullName: toString(record["fullName"]),
		Company:  toString(record["company"]),
		Title:    toString(record["title"]),
		Location: toString(record["location"]),
		Hometown: domain.Hometown{
			City:   toString(record["hometownCity"]),
			Region: toString(record["hometownRegion"]),
		},
		Affiliations: toStringSlice(record["affiliations"]),
		SocialLinks:  toStringSlice(record["socialLinks"]),
		Interests:    toStringSlice(record["interests"]),
		Verified:     toBool(record["verified"]),
		TrustScore:   toFloat64(record["trustScore"]),
	}
	if created := toTimePtr(record["createdAt"]); created != nil {
		p.CreatedAt = *created
	}
	if updated := toTimePtr(record["updatedAt"]); updated != nil {
		p.UpdatedAt = *updated
	}

	if raw := toString(record["employmentsJson"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Employments); err != nil {
			return domain.Person{}, fmt.Errorf("decode employments for %s: %w", p.ID, err)
		}
	}
	if raw := toString(record["educationsJson"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.Educations); err != nil {
			return domain.Person{}, fmt.Errorf("decode educations for %s: %w", p.ID, err)
		}
	}
	if raw := toString(record["socialHandles"]); raw != "" {
		if err := json.Unmarshal([]byte(raw), &p.SocialHandles); err != nil {
			return domain.Person{}, fmt.Errorf("decode social handles for %s: %w", p.ID, err)
		}
	}
	return p, nil
}

func recordToEdge(record graph.Record) domain.Edge {
	e := domain.Edge{
		FromID:     toString(record["fromId"]),
		ToID:       toString(record["toId"]),
		Type:       domain.EdgeType(toString(record["type"])),
		Strength:   toFloat64(record["strength"]),
		Confidence: toFloat64(record["confidence"]),
		Metadata: domain.EdgeMetadata{
			Company:     toString(record["company"]),
			School:      toString(record["school"]),
			Affiliation: toString(record["affiliation"]),
			Hometown:    toString(record["hometown"]),
			Surname:     toString(record["surname"]),
			Platform:    toString(record["platform"]),
			SharedYears: int(toFloat64(record["sharedYears"])),
		},
	}
	if created := toTimePtr(record["createdAt"]); created != nil {
		e.CreatedAt = *created
	}
	return e
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int64:
		return float64(v)
	case int:
		return float64(v)
	default:
		return 0
	}
}

func toBool(val any) bool {
	b, _ := val.(bool)
	return b
}

func toStringSlice(val any) []string {
	raw, ok := val.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s := toString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func toTimePtr(val any) *time.Time {
	switch v := val.(type) {
	case time.Time:
		return &v
	case string:
		if v == "" {
			return nil
		}
		if parsed, err := time.Parse(time.RFC3339Nano, v); err == nil {
			return &parsed
		}
		if parsed, err := time.Parse(time.RFC3339, v); err == nil {
			return &parsed
		}
	}
	return nil
}

const upsertPersonCypher = `
MERGE (p:Person {personId: $personId})
SET p += $props
RETURN p.personId AS personId
`

const personReturnClause = `
RETURN p.personId AS personId,
       p.fullName AS fullName,
       p.company AS company,
       p.title AS title,
       p.location AS location,
       p.employmentsJson AS employmentsJson,
       p.educationsJson AS educationsJson,
       p.affiliations AS affiliations,
       p.hometownCity AS hometownCity,
       p.hometownRegion AS hometownRegion,
       p.socialHandles AS socialHandles,
       p.socialLinks AS socialLinks,
       p.interests AS interests,
       p.verified AS verified,
       p.trustScore AS trustScore,
       p.createdAt AS createdAt,
       p.updatedAt AS updatedAt
`

const getPersonCypher = `
MATCH (p:Person {personId: $personId})
` + personReturnClause

const listPersonsCypher = `
MATCH (p:Person)
` + personReturnClause + `
ORDER BY p.personId
`

const replaceEdgesCypher = `
OPTIONAL MATCH (:Person)-[r:RELATES]->(:Person)
DELETE r
WITH count(*) AS discarded
UNWIND $edges AS edge
MATCH (f:Person {personId: edge.fromId})
MATCH (t:Person {personId: edge.toId})
CREATE (f)-[rel:RELATES {
  type: edge.type,
  strength: edge.strength,
  confidence: edge.confidence,
  company: edge.company,
  school: edge.school,
  affiliation: edge.affiliation,
  hometown: edge.hometown,
  surname: edge.surname,
  platform: edge.platform,
  sharedYears: edge.sharedYears,
  createdAt: edge.createdAt
}]->(t)
RETURN count(rel) AS created
`

const listEdgesCypher = `
MATCH (f:Person)-[r:RELATES]->(t:Person)
RETURN f.personId AS fromId,
       t.personId AS toId,
       r.type AS type,
       r.strength AS strength,
       r.confidence AS confidence,
       r.company AS company,
       r.school AS school,
       r.affiliation AS affiliation,
       r.hometown AS hometown,
       r.surname AS surname,
       r.platform AS platform,
       r.sharedYears AS sharedYears,
       r.createdAt AS createdAt
ORDER BY fromId, toId, type
`

const markVerifiedCypher = `
MATCH (p:Person {personId: $personId})
SET p.verified = true,
    p.trustScore = $trustScore
RETURN p.personId AS personId
`

const boostConfidenceCypher = `
MATCH (p:Person {personId: $personId})-[r:RELATES]-()
SET r.confidence = CASE
  WHEN r.confidence + $delta > 100.0 THEN 100.0
  ELSE r.confidence + $delta
END
RETURN count(r) AS updated
`
