package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/anika/warmpath/internal/service"
)

// Dataset contains the generated people.
type Dataset struct {
	People []service.PersonInput `json:"people"`
}

// Generator produces synthetic professional-network data aligned with the
// evidence schema. All randomness flows from the configured seed, so a fixed
// seed reproduces the same network.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	fragments nameFragments
	companies []string
	schools   []string
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.NumPeople <= 0 {
		cfg.NumPeople = defaults.NumPeople
	}
	if cfg.GhostRatio <= 0 {
		cfg.GhostRatio = defaults.GhostRatio
	}
	if cfg.NumCompanies <= 0 {
		cfg.NumCompanies = defaults.NumCompanies
	}
	if cfg.NumSchools <= 0 {
		cfg.NumSchools = defaults.NumSchools
	}
	if cfg.AffiliationChance <= 0 {
		cfg.AffiliationChance = defaults.AffiliationChance
	}
	if cfg.SocialLinkChance <= 0 {
		cfg.SocialLinkChance = defaults.SocialLinkChance
	}
	if cfg.InterestChance <= 0 {
		cfg.InterestChance = defaults.InterestChance
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	g := &Generator{
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultNameFragments(),
	}
	g.companies = g.buildCompanyPool(cfg.NumCompanies)
	g.schools = g.buildSchoolPool(cfg.NumSchools)
	return g
}

// Generate synthesises a professional network. It respects context
// cancellation.
func (g *Generator) Generate(ctx context.Context) (Dataset, error) {
	people := make([]service.PersonInput, g.cfg.NumPeople)
	var handlePool []string
	currentYear := time.Now().UTC().Year()

	for i := 0; i < g.cfg.NumPeople; i++ {
		if err := ctx.Err(); err != nil {
			return Dataset{}, err
		}

		personID := fmt.Sprintf("PER-%05d", i+1)
		fullName := g.randomFullName()
		employments := g.randomEmployments(currentYear)
		company := ""
		title := ""
		if len(employments) > 0 {
			last := employments[len(employments)-1]
			if last.EndYear == 0 {
				company = last.Company
				title = last.Title
			}
		}

		hometownIdx := g.rand.Intn(len(g.fragments.hometowns))
		hometown := g.fragments.hometowns[hometownIdx]

		handle := g.randomHandle(personID)
		var links []string
		if len(handlePool) > 0 && g.rand.Float64() < g.cfg.SocialLinkChance {
			links = append(links, handlePool[g.rand.Intn(len(handlePool))])
		}
		handlePool = append(handlePool, handle)

		people[i] = service.PersonInput{
			ID:             personID,
			FullName:       fullName,
			Company:        company,
			Title:          title,
			Location:       hometown.city + ", " + hometown.region,
			Employments:    employments,
			Educations:     g.randomEducations(),
			Affiliations:   g.randomAffiliations(),
			HometownCity:   hometown.city,
			HometownRegion: hometown.region,
			SocialHandles:  map[string]string{g.randomPlatform(): handle},
			SocialLinks:    links,
			Interests:      g.randomInterests(),
			Verified:       g.rand.Float64() >= g.cfg.GhostRatio,
		}
	}

	return Dataset{People: people}, nil
}

func (g *Generator) buildCompanyPool(n int) []string {
	pool := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(pool) < n {
		name := fmt.Sprintf("%s %s",
			g.fragments.companyStems[g.rand.Intn(len(g.fragments.companyStems))],
			g.fragments.companySuffix[g.rand.Intn(len(g.fragments.companySuffix))])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		pool = append(pool, name)
	}
	return pool
}

func (g *Generator) buildSchoolPool(n int) []string {
	pool := make([]string, 0, n)
	seen := make(map[string]struct{}, n)
	for len(pool) < n {
		name := fmt.Sprintf("%s %s",
			g.fragments.schoolStems[g.rand.Intn(len(g.fragments.schoolStems))],
			g.fragments.schoolKinds[g.rand.Intn(len(g.fragments.schoolKinds))])
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		pool = append(pool, name)
	}
	return pool
}

func (g *Generator) randomEmployments(currentYear int) []service.EmploymentInput {
	count := 1 + g.rand.Intn(3)
	employments := make([]service.EmploymentInput, 0, count)
	year := currentYear - g.rand.Intn(15) - count*2
	for i := 0; i < count; i++ {
		duration := 1 + g.rand.Intn(6)
		end := year + duration
		if i == count-1 && g.rand.Float64() < 0.8 {
			end = 0 // current role
		}
		employments = append(employments, service.EmploymentInput{
			Company:   g.companies[g.rand.Intn(len(g.companies))],
			Title:     g.fragments.titles[g.rand.Intn(len(g.fragments.titles))],
			StartYear: year,
			EndYear:   end,
		})
		year += duration
	}
	return employments
}

func (g *Generator) randomEducations() []service.EducationInput {
	if g.rand.Float64() < 0.15 {
		return nil
	}
	start := 1995 + g.rand.Intn(20)
	return []service.EducationInput{{
		School:    g.schools[g.rand.Intn(len(g.schools))],
		Degree:    g.fragments.degrees[g.rand.Intn(len(g.fragments.degrees))],
		StartYear: start,
		EndYear:   start + 4,
	}}
}

func (g *Generator) randomAffiliations() []string {
	if g.rand.Float64() >= g.cfg.AffiliationChance {
		return nil
	}
	return []string{g.fragments.affiliations[g.rand.Intn(len(g.fragments.affiliations))]}
}

func (g *Generator) randomInterests() []string {
	if g.rand.Float64() >= g.cfg.InterestChance {
		return nil
	}
	count := 1 + g.rand.Intn(2)
	interests := make([]string, 0, count)
	for i := 0; i < count; i++ {
		interests = append(interests, g.fragments.interests[g.rand.Intn(len(g.fragments.interests))])
	}
	return interests
}

func (g *Generator) randomFullName() string {
	return fmt.Sprintf("%s %s",
		g.fragments.first[g.rand.Intn(len(g.fragments.first))],
		g.fragments.last[g.rand.Intn(len(g.fragments.last))])
}

func (g *Generator) randomHandle(personID string) string {
	return fmt.Sprintf("@%s%s", personID, g.fragments.handleTags[g.rand.Intn(len(g.fragments.handleTags))])
}

func (g *Generator) randomPlatform() string {
	return g.fragments.platforms[g.rand.Intn(len(g.fragments.platforms))]
}

type hometown struct {
	city   string
	region string
}

type nameFragments struct {
	first         []string
	last          []string
	titles        []string
	degrees       []string
	companyStems  []string
	companySuffix []string
	schoolStems   []string
	schoolKinds   []string
	affiliations  []string
	interests     []string
	platforms     []string
	handleTags    []string
	hometowns     []hometown
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		first:         []string{"Jane", "John", "Alex", "Priya", "Liu", "Maria", "Omar", "Sofia", "Noah", "Emma", "Lucas", "Mia", "Ava", "Ethan", "Zara", "Jamie", "Sam", "Jordan"},
		last:          []string{"Doe", "Smith", "Chen", "Patel", "Garcia", "Khan", "Kim", "Ivanov", "Nguyen", "Silva", "Brown", "Lee", "Rivera", "Okafor"},
		titles:        []string{"Engineer", "Product Manager", "Designer", "Analyst", "Director", "Consultant", "Researcher", "Account Executive"},
		degrees:       []string{"Bachelor", "Master", "PhD", "Associate"},
		companyStems:  []string{"Acme", "Globex", "Initech", "Umbra", "Vertex", "Northwind", "Cascade", "Lumen", "Harbor", "Summit"},
		companySuffix: []string{"Corp", "Labs", "Systems", "Partners", "Industries", "Group"},
		schoolStems:   []string{"State", "Riverside", "Northern", "Pacific", "Lakeside", "Central", "Highland"},
		schoolKinds:   []string{"University", "College", "Institute"},
		affiliations:  []string{"Rotary Club", "Chess Society", "Alumni Network", "Toastmasters", "Cycling Club", "Volunteer Corps"},
		interests:     []string{"photography", "climbing", "jazz", "open source", "sailing", "chess", "gardening"},
		platforms:     []string{"mastodon", "linkedin", "bluesky"},
		handleTags:    []string{"", ".dev", ".io", "_x"},
		hometowns: []hometown{
			{"Eugene", "OR"}, {"Boise", "ID"}, {"Madison", "WI"}, {"Asheville", "NC"},
			{"Fresno", "CA"}, {"Duluth", "MN"}, {"Savannah", "GA"}, {"Provo", "UT"},
		},
	}
}
