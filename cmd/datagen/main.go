package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/anika/warmpath/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		people            = flag.Int("people", cfg.NumPeople, "number of people to generate")
		ghostRatio        = flag.Float64("ghost-ratio", cfg.GhostRatio, "fraction of people generated as unverified ghosts")
		companies         = flag.Int("companies", cfg.NumCompanies, "size of the company pool")
		schools           = flag.Int("schools", cfg.NumSchools, "size of the school pool")
		affiliationChance = flag.Float64("affiliation-chance", cfg.AffiliationChance, "probability a person carries an affiliation")
		socialLinkChance  = flag.Float64("social-link-chance", cfg.SocialLinkChance, "probability a person links an existing social handle")
		interestChance    = flag.Float64("interest-chance", cfg.InterestChance, "probability a person lists interests")
		seed              = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir         = flag.String("output-dir", "data", "directory to write people.json")
		writeStdout       = flag.Bool("stdout", false, "write dataset to stdout instead of files")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumPeople:         *people,
		GhostRatio:        clampProbability(*ghostRatio),
		NumCompanies:      *companies,
		NumSchools:        *schools,
		AffiliationChance: clampProbability(*affiliationChance),
		SocialLinkChance:  clampProbability(*socialLinkChance),
		InterestChance:    clampProbability(*interestChance),
		Seed:              *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	dataset, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := generator.WriteDataset(dataset, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d people into %s\n", len(dataset.People), *outputDir)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
