package service

import "testing"

func TestNormalizeCompany(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Acme Corp", "acme"},
		{"Acme Corporation", "acme"},
		{"Acme, Inc.", "acme"},
		{"Globex Holding Company Ltd", "globex holding"},
		{"Corp", "corp"}, // a lone suffix is still a name
		{"  ", ""},
	}
	for _, tc := range cases {
		if got := normalizeCompany(tc.in); got != tc.want {
			t.Errorf("normalizeCompany(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSurname(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Jamie Chen", "chen"},
		{"Mary Anne van Dyke", "dyke"},
		{"Madonna", ""},
		{"Jamie C", ""},
	}
	for _, tc := range cases {
		if got := surname(tc.in); got != tc.want {
			t.Errorf("surname(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestYearsOverlap(t *testing.T) {
	cases := []struct {
		name                       string
		aStart, aEnd, bStart, bEnd int
		want                       int
	}{
		{"partial overlap", 2018, 2022, 2020, 2023, 2},
		{"disjoint", 2010, 2012, 2014, 2016, 0},
		{"ongoing engagement", 2020, 0, 2022, 0, 4},
		{"unknown start", 0, 2020, 2018, 2020, 0},
	}
	for _, tc := range cases {
		if got := yearsOverlap(tc.aStart, tc.aEnd, tc.bStart, tc.bEnd, 2026); got != tc.want {
			t.Errorf("%s: yearsOverlap = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestDegreeLevel(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"PhD", 4},
		{"Doctor of Philosophy", 4},
		{"MBA", 3},
		{"Master of Science", 3},
		{"Bachelor of Arts", 2},
		{"BS Computer Science", 2},
		{"Associate Degree", 1},
		{"", 0},
		{"Certificate", 0},
	}
	for _, tc := range cases {
		if got := degreeLevel(tc.in); got != tc.want {
			t.Errorf("degreeLevel(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestNameVariants(t *testing.T) {
	variants := nameVariants("Jamie Chen")
	want := map[string]bool{
		"jamie chen": true,
		"chen jamie": true,
		"j chen":     true,
		"jamie c":    true,
	}
	if len(variants) != len(want) {
		t.Fatalf("expected %d variants, got %v", len(want), variants)
	}
	for _, v := range variants {
		if !want[v] {
			t.Errorf("unexpected variant %q", v)
		}
	}
}
