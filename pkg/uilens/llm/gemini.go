package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultGeminiEndpoint is the generateContent endpoint template.
// The model name is appended by the client.
const DefaultGeminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models"

// Gemini implements Client against the Gemini REST API.
type Gemini struct {
	endpoint string
	model    string
	apiKey   string
	client   *http.Client
}

// GeminiOption configures Gemini.
type GeminiOption func(*Gemini)

// NewGemini creates a Gemini client. The API key is required; everything
// else has working defaults.
func NewGemini(apiKey string, opts ...GeminiOption) *Gemini {
	g := &Gemini{
		endpoint: DefaultGeminiEndpoint,
		model:    "gemini-2.5-flash",
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 2 * time.Minute},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// WithGeminiEndpoint overrides the API endpoint (useful for proxies and tests).
func WithGeminiEndpoint(url string) GeminiOption {
	return func(g *Gemini) { g.endpoint = url }
}

// WithGeminiModel sets the default model.
func WithGeminiModel(model string) GeminiOption {
	return func(g *Gemini) { g.model = model }
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) GeminiOption {
	return func(g *Gemini) { g.client = c }
}

// Wire format for generateContent.
type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inline_data,omitempty"`
}

type geminiInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"` // base64
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"system_instruction,omitempty"`
	GenerationConfig  struct {
		Temperature     float64 `json:"temperature"`
		MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

// Complete implements Client.
func (g *Gemini) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	if g.apiKey == "" {
		return nil, NewError("complete", fmt.Errorf("api key required"), false)
	}

	model := g.model
	if req.Model != "" {
		model = req.Model
	}

	body, err := json.Marshal(g.buildRequest(req))
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("encode request: %w", err), false)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.endpoint, model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, NewError("complete", err, false)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, NewError("complete", ctx.Err(), false)
		}
		return nil, NewError("complete", err, true)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, NewError("complete", fmt.Errorf("read response: %w", err), true)
	}

	if resp.StatusCode != http.StatusOK {
		msg := fmt.Sprintf("status %d: %s", resp.StatusCode, respBody)
		return nil, NewError("complete", fmt.Errorf("%s", msg), isRetryableError(msg))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, NewError("complete", fmt.Errorf("decode response: %w", err), false)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return nil, NewError("complete", fmt.Errorf("empty response"), true)
	}

	candidate := parsed.Candidates[0]
	var content bytes.Buffer
	for _, part := range candidate.Content.Parts {
		content.WriteString(part.Text)
	}

	return &CompletionResponse{
		Content:      content.String(),
		Model:        model,
		FinishReason: candidate.FinishReason,
		Usage: TokenUsage{
			InputTokens:  parsed.UsageMetadata.PromptTokenCount,
			OutputTokens: parsed.UsageMetadata.CandidatesTokenCount,
			TotalTokens:  parsed.UsageMetadata.TotalTokenCount,
		},
		Duration: time.Since(start),
	}, nil
}

func (g *Gemini) buildRequest(req CompletionRequest) geminiRequest {
	var out geminiRequest

	if req.SystemPrompt != "" {
		out.SystemInstruction = &geminiContent{
			Parts: []geminiPart{{Text: req.SystemPrompt}},
		}
	}

	for _, msg := range req.Messages {
		role := "user"
		if msg.Role == RoleAssistant {
			role = "model"
		}
		content := geminiContent{Role: role}
		if msg.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: msg.Content})
		}
		for _, img := range msg.Images {
			content.Parts = append(content.Parts, geminiPart{
				InlineData: &geminiInlineData{
					MIMEType: img.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(img.Data),
				},
			})
		}
		out.Contents = append(out.Contents, content)
	}

	out.GenerationConfig.Temperature = req.Temperature
	out.GenerationConfig.MaxOutputTokens = req.MaxTokens

	return out
}
