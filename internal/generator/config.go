package generator

// Config drives the synthetic network generator.
type Config struct {
	NumPeople         int
	GhostRatio        float64 // fraction of people generated unverified
	NumCompanies      int
	NumSchools        int
	AffiliationChance float64
	SocialLinkChance  float64
	InterestChance    float64
	Seed              int64
}

// DefaultConfig returns baseline settings that yield a well-connected
// demo network.
func DefaultConfig() Config {
	return Config{
		NumPeople:         500,
		GhostRatio:        0.4,
		NumCompanies:      20,
		NumSchools:        12,
		AffiliationChance: 0.3,
		SocialLinkChance:  0.25,
		InterestChance:    0.5,
		Seed:              42,
	}
}
