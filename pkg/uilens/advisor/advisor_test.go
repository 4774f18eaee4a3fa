package advisor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/randalmurphal/uilens/pkg/uilens/advisor"
	"github.com/randalmurphal/uilens/pkg/uilens/compare"
	"github.com/randalmurphal/uilens/pkg/uilens/llm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse_Valid(t *testing.T) {
	text := "Here is my analysis:\n```json\n" + `{
		"suggestions": [
			{"category": "color", "severity": "major", "description": "Background is too dark"},
			{"category": "spacing", "severity": "minor", "description": "Increase padding"}
		],
		"summary": "Close match with minor color drift",
		"confidence": 0.85
	}` + "\n```"

	advice := advisor.ParseResponse(text)

	require.Len(t, advice.Suggestions, 2)
	assert.Equal(t, advisor.CategoryColor, advice.Suggestions[0].Category)
	assert.Equal(t, "Close match with minor color drift", advice.Summary)
	assert.Equal(t, 0.85, advice.Confidence)
}

func TestParseResponse_DropsInvalidSuggestions(t *testing.T) {
	text := `{
		"suggestions": [
			{"category": "color", "severity": "major", "description": "valid"},
			{"category": "fonts", "severity": "major", "description": "unknown category"},
			{"category": "layout", "severity": "urgent", "description": "unknown severity"},
			{"category": "layout", "severity": "minor", "description": ""}
		],
		"summary": "mixed bag",
		"confidence": 0.5
	}`

	advice := advisor.ParseResponse(text)

	require.Len(t, advice.Suggestions, 1)
	assert.Equal(t, "valid", advice.Suggestions[0].Description)
}

func TestParseResponse_TotalFailure(t *testing.T) {
	for _, text := range []string{
		"",
		"I could not analyze these images.",
		"{broken json",
	} {
		advice := advisor.ParseResponse(text)
		assert.Empty(t, advice.Suggestions, "input: %q", text)
		assert.Equal(t, advisor.FallbackSummary, advice.Summary)
		assert.Equal(t, 0.0, advice.Confidence)
	}
}

func TestParseResponse_ConfidenceClamped(t *testing.T) {
	advice := advisor.ParseResponse(`{"suggestions": [], "summary": "s", "confidence": 3.5}`)
	assert.Equal(t, 1.0, advice.Confidence)
}

func TestAdvise_CapabilityErrorPropagates(t *testing.T) {
	boom := llm.NewError("complete", errors.New("network down"), true)
	adv := advisor.New(llm.NewMockClient("").WithError(boom))

	_, err := adv.Advise(context.Background(), compare.Result{}, []byte("a"), []byte("b"))
	assert.ErrorIs(t, err, boom)
}

func TestAdvise_AttachesBothImages(t *testing.T) {
	mock := llm.NewMockClient(`{"suggestions": [], "summary": "ok", "confidence": 1}`)
	adv := advisor.New(mock)

	advice, err := adv.Advise(context.Background(), compare.Result{SSIMScore: 0.9, ColorScore: 0.8},
		[]byte("original"), []byte("generated"))

	require.NoError(t, err)
	assert.Equal(t, "ok", advice.Summary)
	require.Len(t, mock.Requests, 1)
	require.Len(t, mock.Requests[0].Messages[0].Images, 2)
	assert.Equal(t, []byte("original"), mock.Requests[0].Messages[0].Images[0].Data)
	assert.Equal(t, []byte("generated"), mock.Requests[0].Messages[0].Images[1].Data)
}

func TestSortBySeverity_StableOrder(t *testing.T) {
	input := []advisor.Suggestion{
		{Category: advisor.CategorySpacing, Severity: advisor.SeverityMinor, Description: "first minor"},
		{Category: advisor.CategoryColor, Severity: advisor.SeverityCritical, Description: "crit"},
		{Category: advisor.CategoryLayout, Severity: advisor.SeverityMajor, Description: "major"},
		{Category: advisor.CategoryBorder, Severity: advisor.SeverityMinor, Description: "second minor"},
	}

	sorted := advisor.SortBySeverity(input)

	require.Len(t, sorted, 4)
	assert.Equal(t, advisor.SeverityCritical, sorted[0].Severity)
	assert.Equal(t, advisor.SeverityMajor, sorted[1].Severity)
	assert.Equal(t, "first minor", sorted[2].Description)
	assert.Equal(t, "second minor", sorted[3].Description)

	// Input is untouched.
	assert.Equal(t, advisor.SeverityMinor, input[0].Severity)
}

func TestFilterByCategory(t *testing.T) {
	input := []advisor.Suggestion{
		{Category: advisor.CategoryColor, Severity: advisor.SeverityMinor, Description: "a"},
		{Category: advisor.CategoryShadow, Severity: advisor.SeverityMinor, Description: "b"},
		{Category: advisor.CategoryColor, Severity: advisor.SeverityMajor, Description: "c"},
	}

	filtered := advisor.FilterByCategory(input, advisor.CategoryColor)

	require.Len(t, filtered, 2)
	assert.Equal(t, "a", filtered[0].Description)
	assert.Equal(t, "c", filtered[1].Description)

	assert.Empty(t, advisor.FilterByCategory(input, advisor.CategoryTypography))
}
