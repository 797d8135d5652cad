package service

import (
	"time"

	"github.com/anika/warmpath/internal/domain"
)

// EmploymentInput mirrors domain.Employment for inbound payloads.
type EmploymentInput struct {
	Company   string
	Title     string
	StartYear int
	EndYear   int
}

// EducationInput mirrors domain.Education for inbound payloads.
type EducationInput struct {
	School    string
	Degree    string
	StartYear int
	EndYear   int
}

// PersonInput is the inbound evidence payload accepted by the engine.
type PersonInput struct {
	ID             string
	FullName       string
	Company        string
	Title          string
	Location       string
	Employments    []EmploymentInput
	Educations     []EducationInput
	Affiliations   []string
	HometownCity   string
	HometownRegion string
	SocialHandles  map[string]string
	SocialLinks    []string
	Interests      []string
	Verified       bool
	TrustScore     *float64
	CreatedAt      *time.Time
	UpdatedAt      *time.Time
}

func (in PersonInput) toDomain(now time.Time) domain.Person {
	createdAt := now
	updatedAt := now
	if in.CreatedAt != nil {
		createdAt = in.CreatedAt.UTC()
	}
	if in.UpdatedAt != nil {
		updatedAt = in.UpdatedAt.UTC()
	}

	trust := domain.GhostTrustScore
	if in.Verified {
		trust = domain.ActivatedTrustScore
	}
	if in.TrustScore != nil {
		trust = clampScore(*in.TrustScore)
	}

	employments := make([]domain.Employment, 0, len(in.Employments))
	for _, e := range in.Employments {
		employments = append(employments, domain.Employment{
			Company:   sanitizeString(e.Company),
			Title:     sanitizeString(e.Title),
			StartYear: e.StartYear,
			EndYear:   e.EndYear,
		})
	}

	educations := make([]domain.Education, 0, len(in.Educations))
	for _, e := range in.Educations {
		educations = append(educations, domain.Education{
			School:    sanitizeString(e.School),
			Degree:    sanitizeString(e.Degree),
			StartYear: e.StartYear,
			EndYear:   e.EndYear,
		})
	}

	return domain.Person{
		ID:            in.ID,
		FullName:      sanitizeString(in.FullName),
		Company:       sanitizeString(in.Company),
		Title:         sanitizeString(in.Title),
		Location:      sanitizeString(in.Location),
		Employments:   employments,
		Educations:    educations,
		Affiliations:  sanitizeAll(in.Affiliations),
		Hometown:      domain.Hometown{City: sanitizeString(in.HometownCity), Region: sanitizeString(in.HometownRegion)},
		SocialHandles: in.SocialHandles,
		SocialLinks:   sanitizeAll(in.SocialLinks),
		Interests:     sanitizeAll(in.Interests),
		Verified:      in.Verified,
		TrustScore:    trust,
		CreatedAt:     createdAt,
		UpdatedAt:     updatedAt,
	}
}

// ActivationData carries the profile details a ghost supplies when accepting
// an invitation.
type ActivationData struct {
	FullName string
	Company  string
	Title    string
	Location string
}

func (d ActivationData) apply(p domain.Person) (domain.Person, bool) {
	changed := false
	if v := sanitizeString(d.FullName); v != "" && v != p.FullName {
		p.FullName = v
		changed = true
	}
	if v := sanitizeString(d.Company); v != "" && v != p.Company {
		p.Company = v
		changed = true
	}
	if v := sanitizeString(d.Title); v != "" && v != p.Title {
		p.Title = v
		changed = true
	}
	if v := sanitizeString(d.Location); v != "" && v != p.Location {
		p.Location = v
		changed = true
	}
	return p, changed
}

// ConnectionResult is the outcome of a path discovery request. An empty path
// list with a message is a valid result, not an error.
type ConnectionResult struct {
	SourceID string
	TargetID string
	MaxHops  int
	Paths    []domain.Path
	TopScore float64
	Message  string
}

// ResolveRequest describes an imprecise target to resolve before path
// discovery runs.
type ResolveRequest struct {
	RequesterID string
	Name        string
	Company     string
	Title       string
}

// RankedMatch is one resolved candidate with its confidence and approach hint.
type RankedMatch struct {
	Person            domain.Person
	Confidence        float64
	MatchedFactors    []string
	SuggestedApproach string
}

// ResolveResult is the outcome of target resolution. Found=false with a
// strategy string is advisory output, not an error.
type ResolveResult struct {
	Found    bool
	Matches  []RankedMatch
	Strategy string
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func sanitizeAll(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s := sanitizeString(v); s != "" {
			out = append(out, s)
		}
	}
	return out
}
