package domain

import (
	"errors"
	"time"
)

// ErrNotFound indicates a referenced person or record does not exist.
var ErrNotFound = errors.New("not found")

// Trust score bounds applied across the engine.
const (
	GhostTrustScore     = 25.0
	ActivatedTrustScore = 90.0
)

// Employment captures one entry in a person's company history.
type Employment struct {
	Company   string
	Title     string
	StartYear int
	EndYear   int // zero means present
}

// Education captures one entry in a person's education history.
type Education struct {
	School    string
	Degree    string
	StartYear int
	EndYear   int
}

// Hometown identifies where a person grew up. City and Region together form
// the grouping key for hometown edges.
type Hometown struct {
	City   string
	Region string
}

// Person is a node in the introduction graph. A person without a verified
// account is a ghost: it exists only because evidence references it.
type Person struct {
	ID            string
	FullName      string
	Company       string
	Title         string
	Location      string
	Employments   []Employment
	Educations    []Education
	Affiliations  []string
	Hometown      Hometown
	SocialHandles map[string]string // platform -> own handle
	SocialLinks   []string          // handles this person is linked to
	Interests     []string
	Verified      bool
	TrustScore    float64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Ghost reports whether the person is an unverified placeholder.
func (p Person) Ghost() bool {
	return !p.Verified
}
