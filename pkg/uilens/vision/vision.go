// Package vision identifies UI components on a screenshot using a
// multimodal capability.
//
// The capability's output is treated as untrusted: the response is parsed
// best-effort and every candidate that fails shape validation is silently
// dropped. Malformed output degrades to fewer (possibly zero) components;
// only the capability call itself can fail.
package vision

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/randalmurphal/uilens/pkg/uilens/extract"
	"github.com/randalmurphal/uilens/pkg/uilens/llm"
)

// ComponentIdentification is one identified UI component.
type ComponentIdentification struct {
	// Type is an open tag ("button", "card", "navbar", ...).
	Type string `json:"type"`
	// Name is a human-readable label.
	Name string `json:"name"`
	// BoundingBox locates the component on the screenshot.
	BoundingBox BoundingBox `json:"boundingBox"`
	// Confidence is clamped to [0, 1].
	Confidence float64 `json:"confidence"`
}

// BoundingBox is a pixel-unit rectangle. All fields are non-negative.
type BoundingBox struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// taskDescription is the fixed instruction sent with every screenshot.
const taskDescription = `Identify the distinct UI components visible in this screenshot.
For each component return its type (e.g. button, card, navbar, hero, footer, form, input),
a short descriptive name, its bounding box in pixels, and your confidence.

Respond with a JSON array only:
[{"type": "button", "name": "Primary CTA", "boundingBox": {"x": 0, "y": 0, "width": 120, "height": 40}, "confidence": 0.9}]`

// Identifier sends screenshots to a capability and validates the response.
type Identifier struct {
	client llm.Client
	logger *slog.Logger
}

// Option configures an Identifier.
type Option func(*Identifier)

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Identifier) { i.logger = logger }
}

// NewIdentifier creates an Identifier backed by the given capability client.
func NewIdentifier(client llm.Client, opts ...Option) *Identifier {
	ident := &Identifier{client: client}
	for _, opt := range opts {
		opt(ident)
	}
	return ident
}

// Identify sends the PNG screenshot to the capability and returns the
// validated component list. Transport and authorization failures from the
// capability propagate; malformed output yields an empty list and nil error.
func (i *Identifier) Identify(ctx context.Context, screenshotPNG []byte) ([]ComponentIdentification, error) {
	resp, err := i.client.Complete(ctx, llm.CompletionRequest{
		Messages: []llm.Message{{
			Role:    llm.RoleUser,
			Content: taskDescription,
			Images:  []llm.Image{llm.PNG(screenshotPNG)},
		}},
	})
	if err != nil {
		return nil, err
	}

	components := ParseResponse(resp.Content)
	if i.logger != nil {
		i.logger.Debug("components identified",
			slog.Int("count", len(components)),
			slog.Int("response_bytes", len(resp.Content)),
		)
	}
	return components, nil
}

// candidate is the loose decoding target. Pointer fields distinguish
// missing values from zero values during validation.
type candidate struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	BoundingBox *struct {
		X      *float64 `json:"x"`
		Y      *float64 `json:"y"`
		Width  *float64 `json:"width"`
		Height *float64 `json:"height"`
	} `json:"boundingBox"`
	Confidence *float64 `json:"confidence"`
}

// ParseResponse extracts and validates components from raw capability text.
// It never fails: no array, unparseable JSON, or all-invalid elements all
// degrade to an empty list.
func ParseResponse(text string) []ComponentIdentification {
	raw, ok := extract.FirstArray(text)
	if !ok {
		return nil
	}

	var candidates []json.RawMessage
	if err := json.Unmarshal([]byte(raw), &candidates); err != nil {
		return nil
	}

	var components []ComponentIdentification
	for _, item := range candidates {
		var c candidate
		if err := json.Unmarshal(item, &c); err != nil {
			continue
		}
		comp, ok := validate(c)
		if !ok {
			continue
		}
		components = append(components, comp)
	}
	return components
}

func validate(c candidate) (ComponentIdentification, bool) {
	if c.Type == "" || c.Name == "" {
		return ComponentIdentification{}, false
	}
	box := c.BoundingBox
	if box == nil || box.X == nil || box.Y == nil || box.Width == nil || box.Height == nil {
		return ComponentIdentification{}, false
	}
	if c.Confidence == nil {
		return ComponentIdentification{}, false
	}

	return ComponentIdentification{
		Type: c.Type,
		Name: c.Name,
		BoundingBox: BoundingBox{
			X:      clampNonNegative(*box.X),
			Y:      clampNonNegative(*box.Y),
			Width:  clampNonNegative(*box.Width),
			Height: clampNonNegative(*box.Height),
		},
		Confidence: clamp01(*c.Confidence),
	}, true
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
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
