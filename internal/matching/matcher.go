// Package matching scores job postings against the applicant's preference
// profile. Evaluation is a pure function of the posting and the profile:
// no I/O, no mutable state, same output for the same input.
package matching

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"jobdroid/internal/jobs"
)

// Weights holds the scoring constants. The values carry no derivation
// beyond "they worked"; they are kept configurable instead of re-derived.
type Weights struct {
	TitleExact   float64
	TitlePartial float64
	KeywordEach  float64
	KeywordCap   float64
	Location     float64
	EntryBonus   float64
	Threshold    float64
}

// DefaultWeights returns the stock scoring constants.
func DefaultWeights() Weights {
	return Weights{
		TitleExact:   30,
		TitlePartial: 15,
		KeywordEach:  5,
		KeywordCap:   40,
		Location:     20,
		EntryBonus:   10,
		Threshold:    40,
	}
}

// Profile describes what the applicant is looking for. All matching is
// case-insensitive; the engine normalizes the profile once at construction.
type Profile struct {
	Titles           []string
	Keywords         []string
	ExcludedKeywords []string
	Locations        []string
	// MinYears and MaxYears bound the acceptable experience requirement.
	// MinYears must not exceed MaxYears.
	MinYears int
	MaxYears int
}

// Result is the outcome of evaluating a single posting. It is never
// persisted; it only ranks postings and explains the decision.
type Result struct {
	Match   bool
	Score   float64
	Reasons []string
}

// Reason joins the collected reasons into a single human-readable trace.
func (r Result) Reason() string {
	if len(r.Reasons) == 0 {
		return "General match"
	}
	return strings.Join(r.Reasons, " | ")
}

// Scored pairs a posting with its evaluation for ranking.
type Scored struct {
	Posting *jobs.Posting
	Result  Result
}

// Phrases that mark a posting as entry-level friendly.
var entryKeywords = []string{"intern", "internship", "fresher", "entry level", "graduate"}

// Phrases in an experience requirement that pass unconditionally.
var experiencePassPhrases = []string{"fresher", "no experience", "entry level", "0 year"}

// yearRange extracts numeric ranges such as "0-1 years" or "2 to 4 years"
// from free-form experience requirements.
var yearRange = regexp.MustCompile(`(\d+)\s*[-to]*\s*(\d*)\s*year`)

// Engine evaluates postings against a normalized profile.
type Engine struct {
	weights Weights

	titles    []string
	keywords  []string
	excluded  []string
	locations []string
	minYears  int
	maxYears  int
}

// NewEngine builds an engine from the profile. The profile is copied and
// lowercased, so later mutation of the caller's slices has no effect.
func NewEngine(profile *Profile, weights Weights) *Engine {
	return &Engine{
		weights:   weights,
		titles:    lowerAll(profile.Titles),
		keywords:  lowerAll(profile.Keywords),
		excluded:  lowerAll(profile.ExcludedKeywords),
		locations: lowerAll(profile.Locations),
		minYears:  profile.MinYears,
		maxYears:  profile.MaxYears,
	}
}

// Evaluate decides whether a posting matches the profile. Excluded keywords
// veto immediately, then the experience requirement gates, then the additive
// score is compared against the threshold.
func (e *Engine) Evaluate(p *jobs.Posting) Result {
	title := strings.ToLower(p.Title)
	description := strings.ToLower(p.Description)
	location := strings.ToLower(p.Location)
	experience := strings.ToLower(p.Experience)

	for _, excluded := range e.excluded {
		if strings.Contains(title, excluded) || strings.Contains(description, excluded) {
			return Result{Reasons: []string{fmt.Sprintf("Contains excluded keyword: '%s'", excluded)}}
		}
	}

	if !e.experienceCompatible(experience) {
		return Result{Reasons: []string{fmt.Sprintf("Experience requirement doesn't match: %s", p.Experience)}}
	}

	var score float64
	var reasons []string

	titleScore := 0.0
	for _, preferred := range e.titles {
		if strings.Contains(title, preferred) {
			titleScore = e.weights.TitleExact
			reasons = append(reasons, "Title matches: "+preferred)
			break
		}
	}
	if titleScore == 0 {
	partial:
		for _, preferred := range e.titles {
			for _, word := range strings.Fields(preferred) {
				if len(word) > 3 && strings.Contains(title, word) {
					titleScore = e.weights.TitlePartial
					reasons = append(reasons, "Partial title match")
					break partial
				}
			}
		}
	}
	score += titleScore

	var matched []string
	for _, keyword := range e.keywords {
		if strings.Contains(description, keyword) || strings.Contains(title, keyword) {
			matched = append(matched, keyword)
		}
	}
	keywordScore := float64(len(matched)) * e.weights.KeywordEach
	if keywordScore > e.weights.KeywordCap {
		keywordScore = e.weights.KeywordCap
	}
	score += keywordScore
	if len(matched) > 0 {
		preview := matched
		if len(preview) > 5 {
			preview = preview[:5]
		}
		reasons = append(reasons, "Keywords found: "+strings.Join(preview, ", "))
	}

	for _, preferred := range e.locations {
		if strings.Contains(location, preferred) {
			score += e.weights.Location
			reasons = append(reasons, "Location matches: "+preferred)
			break
		}
	}

	for _, entry := range entryKeywords {
		if strings.Contains(title, entry) || strings.Contains(description, entry) {
			score += e.weights.EntryBonus
			reasons = append(reasons, "Entry-level position")
			break
		}
	}

	if score < e.weights.Threshold {
		return Result{
			Score:   score,
			Reasons: []string{fmt.Sprintf("Score too low (%.1f < %.0f)", score, e.weights.Threshold)},
		}
	}

	return Result{Match: true, Score: score, Reasons: reasons}
}

// experienceCompatible reports whether the requirement text is acceptable
// for the profile's experience range. Requirements without a parseable
// number are treated as permissive.
func (e *Engine) experienceCompatible(text string) bool {
	for _, phrase := range experiencePassPhrases {
		if strings.Contains(text, phrase) {
			return true
		}
	}
	if strings.Contains(text, "intern") {
		return true
	}

	ranges := yearRange.FindAllStringSubmatch(text, -1)
	if len(ranges) == 0 {
		return true
	}

	for _, m := range ranges {
		reqMin, _ := strconv.Atoi(m[1])
		reqMax := reqMin
		if m[2] != "" {
			reqMax, _ = strconv.Atoi(m[2])
		}
		if reqMin <= e.maxYears && reqMax >= e.minYears {
			return true
		}
	}
	return false
}

// RankAndFilter evaluates every posting, keeps only matches and returns
// them ordered by descending score. Ties keep discovery order. A
// non-positive limit means no truncation.
func (e *Engine) RankAndFilter(postings []*jobs.Posting, limit int) []Scored {
	scored := make([]Scored, 0, len(postings))
	for _, p := range postings {
		result := e.Evaluate(p)
		if result.Match {
			scored = append(scored, Scored{Posting: p, Result: result})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Result.Score > scored[j].Result.Score
	})

	if limit > 0 && len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func lowerAll(values []string) []string {
	lowered := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		lowered = append(lowered, v)
	}
	return lowered
}
