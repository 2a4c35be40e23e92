package matching

import (
	"reflect"
	"strings"
	"testing"

	"jobdroid/internal/jobs"
)

func testProfile() *Profile {
	return &Profile{
		Titles:           []string{"Software Developer Intern"},
		Keywords:         []string{"python", "react"},
		ExcludedKeywords: []string{"senior"},
		Locations:        []string{"Remote"},
		MinYears:         0,
		MaxYears:         1,
	}
}

func TestEvaluateExcludedKeywordVetoes(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	posting := &jobs.Posting{
		Title:      "Senior Software Developer Intern",
		Location:   "Remote",
		Experience: "0-1 years",
	}

	result := engine.Evaluate(posting)
	if result.Match {
		t.Fatalf("expected no match for vetoed posting")
	}
	if result.Score != 0 {
		t.Fatalf("expected score 0, got %v", result.Score)
	}
	if len(result.Reasons) != 1 || !strings.Contains(result.Reasons[0], "senior") {
		t.Fatalf("expected veto reason naming the keyword, got %v", result.Reasons)
	}
}

func TestEvaluateScoresFullMatch(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	posting := &jobs.Posting{
		Title:       "Software Developer Intern",
		Description: "Work with python and react",
		Location:    "Remote",
		Experience:  "Fresher",
	}

	result := engine.Evaluate(posting)
	if !result.Match {
		t.Fatalf("expected a match, got reasons %v", result.Reasons)
	}
	// title 30 + keywords 2*5 + location 20 + entry bonus 10
	if result.Score != 70 {
		t.Fatalf("expected score 70, got %v", result.Score)
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	posting := &jobs.Posting{
		Title:       "Frontend Intern",
		Description: "react experience welcome",
		Location:    "Remote",
	}

	first := engine.Evaluate(posting)
	second := engine.Evaluate(posting)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical results, got %+v and %+v", first, second)
	}
}

func TestEvaluateBelowThreshold(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	posting := &jobs.Posting{
		Title:      "Data Clerk",
		Location:   "Onsite, Berlin",
		Experience: "0-1 years",
	}

	result := engine.Evaluate(posting)
	if result.Match {
		t.Fatalf("expected no match")
	}
	if len(result.Reasons) != 1 || !strings.Contains(result.Reasons[0], "Score too low") {
		t.Fatalf("expected the score/threshold reason, got %v", result.Reasons)
	}
}

func TestExperienceCompatibility(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	tests := []struct {
		name       string
		experience string
		compatible bool
	}{
		{name: "fresher", experience: "fresher", compatible: true},
		{name: "no experience", experience: "no experience required", compatible: true},
		{name: "zero years", experience: "0 years", compatible: true},
		{name: "internship", experience: "internship position", compatible: true},
		{name: "overlapping range", experience: "0-1 years", compatible: true},
		{name: "range with to", experience: "1 to 3 years", compatible: true},
		{name: "too senior", experience: "2-4 years", compatible: false},
		{name: "single high value", experience: "5 years", compatible: false},
		{name: "ambiguous text", experience: "some experience with Go", compatible: true},
		{name: "empty", experience: "", compatible: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.experienceCompatible(strings.ToLower(tt.experience))
			if got != tt.compatible {
				t.Fatalf("experienceCompatible(%q) = %v, expected %v", tt.experience, got, tt.compatible)
			}
		})
	}
}

func TestRankAndFilterOrderAndLimit(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	postings := []*jobs.Posting{
		{Title: "Python Intern", Description: "python", Location: "Remote"},
		{Title: "Software Developer Intern", Description: "python and react", Location: "Remote", Experience: "Fresher"},
		{Title: "Senior Architect", Description: "python"},
		{Title: "React Intern", Description: "react", Location: "Remote"},
	}

	ranked := engine.RankAndFilter(postings, 0)
	for _, s := range ranked {
		if !s.Result.Match {
			t.Fatalf("ranked output contains non-match: %+v", s)
		}
	}
	for i := 1; i < len(ranked); i++ {
		if ranked[i-1].Result.Score < ranked[i].Result.Score {
			t.Fatalf("ranking not descending at index %d", i)
		}
	}
	if len(ranked) == 0 || ranked[0].Posting.Title != "Software Developer Intern" {
		t.Fatalf("expected the strongest posting first, got %+v", ranked)
	}

	limited := engine.RankAndFilter(postings, 1)
	if len(limited) != 1 {
		t.Fatalf("expected 1 result with limit 1, got %d", len(limited))
	}
}

func TestRankAndFilterKeepsDiscoveryOrderOnTies(t *testing.T) {
	engine := NewEngine(testProfile(), DefaultWeights())

	postings := []*jobs.Posting{
		{Title: "Python Intern A", Description: "python", Location: "Remote"},
		{Title: "Python Intern B", Description: "python", Location: "Remote"},
	}

	ranked := engine.RankAndFilter(postings, 0)
	if len(ranked) != 2 {
		t.Fatalf("expected 2 results, got %d", len(ranked))
	}
	if ranked[0].Posting.Title != "Python Intern A" || ranked[1].Posting.Title != "Python Intern B" {
		t.Fatalf("tie did not keep discovery order: %s, %s", ranked[0].Posting.Title, ranked[1].Posting.Title)
	}

	again := engine.RankAndFilter(postings, 0)
	if !reflect.DeepEqual(ranked, again) {
		t.Fatalf("expected ranking to be idempotent")
	}
}
