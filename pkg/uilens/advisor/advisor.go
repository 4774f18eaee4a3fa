// Package advisor requests categorized improvement suggestions for a
// comparison result from a generative capability.
//
// Parsing mirrors the vision package: capability output is untrusted,
// invalid suggestions are dropped, and a total parse failure degrades to
// zero suggestions with a fallback summary rather than an error.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/randalmurphal/uilens/pkg/uilens/extract"
	"github.com/randalmurphal/uilens/pkg/uilens/llm"
)

// Category classifies a suggestion. The set is closed; anything else is
// rejected during parsing.
type Category string

// Suggestion categories.
const (
	CategoryColor      Category = "color"
	CategorySpacing    Category = "spacing"
	CategoryTypography Category = "typography"
	CategoryLayout     Category = "layout"
	CategoryBorder     Category = "border"
	CategoryShadow     Category = "shadow"
	CategoryOther      Category = "other"
)

// Severity ranks a suggestion. The set is closed.
type Severity string

// Suggestion severities, most urgent first.
const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

var validCategories = map[Category]bool{
	CategoryColor: true, CategorySpacing: true, CategoryTypography: true,
	CategoryLayout: true, CategoryBorder: true, CategoryShadow: true,
	CategoryOther: true,
}

var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityMajor:    1,
	SeverityMinor:    2,
}

// Suggestion is one validated improvement suggestion.
type Suggestion struct {
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
}

// Advice is the advisor's full output for one comparison.
type Advice struct {
	Suggestions []Suggestion `json:"suggestions"`
	Summary     string       `json:"summary"`
	Confidence  float64      `json:"confidence"`
}

// FallbackSummary is returned when the capability output cannot be parsed.
const FallbackSummary = "no structured suggestions could be extracted"

const taskDescription = `Compare these two renderings of the same UI component. The first image is
the original, the second is a regenerated version. The comparison scored
structural similarity %.3f and color similarity %.3f.

Suggest concrete improvements to the regenerated version. Respond with a
JSON object only:
{"suggestions": [{"category": "color|spacing|typography|layout|border|shadow|other", "severity": "critical|major|minor", "description": "..."}], "summary": "...", "confidence": 0.0}`

// Advisor requests refinement suggestions from a capability.
type Advisor struct {
	client llm.Client
}

// New creates an Advisor backed by the given capability client.
func New(client llm.Client) *Advisor {
	return &Advisor{client: client}
}

// Advise requests suggestions for a comparison result, attaching both
// images. Capability call failures propagate; malformed output degrades
// to an empty Advice with the fallback summary.
func (a *Advisor) Advise(ctx context.Context, result compare.Result, originalPNG, generatedPNG []byte) (Advice, error) {
	resp, err := a.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: fmt.Sprintf(taskDescription, result.SSIMScore, result.ColorScore),
			Images:  []llm.Image{llm.PNG(originalPNG), llm.PNG(generatedPNG)},
		}},
	})
	if err != nil {
		return Advice{}, err
	}
	return ParseResponse(resp.Content), nil
}

// rawAdvice is the loose decoding target.
type rawAdvice struct {
	Suggestions []struct {
		Category    string `json:"category"`
		Severity    string `json:"severity"`
		Description string `json:"description"`
	} `json:"suggestions"`
	Summary    string   `json:"summary"`
	Confidence *float64 `json:"confidence"`
}

// ParseResponse extracts and validates advice from raw capability text.
// It never fails: total parse failure yields zero suggestions, confidence
// 0, and the fallback summary.
func ParseResponse(text string) Advice {
	fallback := Advice{Summary: FallbackSummary}

	raw, ok := extract.FirstObject(text)
	if !ok {
		return fallback
	}

	var parsed rawAdvice
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return fallback
	}

	advice := Advice{Summary: parsed.Summary}
	if advice.Summary == "" {
		advice.Summary = FallbackSummary
	}
	if parsed.Confidence != nil {
		advice.Confidence = clamp01(*parsed.Confidence)
	}

	for _, s := range parsed.Suggestions {
		category := Category(s.Category)
		severity := Severity(s.Severity)
		if !validCategories[category] {
			continue
		}
		if _, ok := severityRank[severity]; !ok {
			continue
		}
		if s.Description == "" {
			continue
		}
		advice.Suggestions = append(advice.Suggestions, Suggestion{
			Category:    category,
			Severity:    severity,
			Description: s.Description,
		})
	}

	return advice
}

// SortBySeverity orders suggestions critical, major, minor. The sort is
// stable: suggestions of equal severity keep their original order.
func SortBySeverity(suggestions []Suggestion) []Suggestion {
	out := make([]Suggestion, len(suggestions))
	copy(out, suggestions)
	sort.SliceStable(out, func(i, j int) bool {
		return severityRank[out[i].Severity] < severityRank[out[j].Severity]
	})
	return out
}

// FilterByCategory keeps only suggestions in the given category set.
func FilterByCategory(suggestions []Suggestion, categories ...Category) []Suggestion {
	keep := make(map[Category]bool, len(categories))
	for _, c := range categories {
		keep[c] = true
	}

	var out []Suggestion
	for _, s := range suggestions {
		if keep[s.Category] {
			out = append(out, s)
		}
	}
	return out
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
