package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mamadbah2/nutritrack/internal/domain/models"
)

const (
	defaultBaseURL = "https://api.anthropic.com"
	messagesPath   = "/v1/messages"
	apiVersion     = "2023-06-01"
	defaultModel   = "claude-3-5-sonnet-20241022"
	maxTokens      = 1024
)

// ErrNoFoods is returned when the model answered but identified no usable food.
var ErrNoFoods = errors.New("no food identified")

const systemPrompt = `You are a nutrition assistant. Identify every food item described by the user or visible in the photo and estimate its nutrition for the portion shown or described.

RULES:
- Output ONLY a JSON object, no prose and no markdown.
- Structure:
  {
    "foods": [
      {"name": "string", "calories": integer kcal, "protein": grams, "fat": grams, "carbs": grams, "weight": "portion, e.g. 150g or 1 cup"}
    ]
  }
- Use non-negative numbers. Round calories to whole kcal.
- If nothing edible is present, return {"foods": []}.`

// Client calls the Anthropic Messages API to turn text or photos into food entries.
type Client struct {
	httpClient *resty.Client
	model      string
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.httpClient.SetBaseURL(strings.TrimRight(url, "/")) }
}

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.SetTimeout(d) }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a configured Anthropic client.
func NewClient(apiKey string, opts ...Option) *Client {
	client := resty.New().
		SetBaseURL(defaultBaseURL).
		SetHeader("x-api-key", apiKey).
		SetHeader("anthropic-version", apiVersion).
		SetHeader("content-type", "application/json").
		SetTimeout(30 * time.Second)

	c := &Client{httpClient: client, model: defaultModel, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type messageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type messageResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

type analyzedFood struct {
	Name     string  `json:"name"`
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Fat      float64 `json:"fat"`
	Carbs    float64 `json:"carbs"`
	Weight   string  `json:"weight"`
}

// AnalyzeText estimates the foods of a free-text meal description.
func (c *Client) AnalyzeText(ctx context.Context, description string) ([]models.FoodEntry, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, models.NewValidationError("text", "must not be blank")
	}
	blocks := []contentBlock{{Type: "text", Text: description}}
	return c.analyze(ctx, blocks, models.SourceTextAnalysis)
}

// AnalyzePhoto estimates the foods visible in an image.
func (c *Client) AnalyzePhoto(ctx context.Context, image []byte, mediaType string) ([]models.FoodEntry, error) {
	if len(image) == 0 {
		return nil, models.NewValidationError("image", "must not be empty")
	}
	switch mediaType {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
	default:
		return nil, models.NewValidationError("image", "unsupported media type %q", mediaType)
	}
	blocks := []contentBlock{
		{Type: "image", Source: &imageSource{Type: "base64", MediaType: mediaType, Data: base64.StdEncoding.EncodeToString(image)}},
		{Type: "text", Text: "Identify the foods in this photo."},
	}
	return c.analyze(ctx, blocks, models.SourcePhotoAnalysis)
}

func (c *Client) analyze(ctx context.Context, blocks []contentBlock, source models.Provenance) ([]models.FoodEntry, error) {
	reqBody := messageRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    systemPrompt,
		Messages: []message{
			{Role: "user", Content: blocks},
			// Prefill the assistant response to force JSON
			{Role: "assistant", Content: []contentBlock{{Type: "text", Text: "{"}}},
		},
	}

	var respBody messageResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&respBody).
		Post(messagesPath)

	if err != nil {
		return nil, fmt.Errorf("anthropic api call: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("anthropic api error (%d): %s", resp.StatusCode(), resp.String())
	}
	if len(respBody.Content) == 0 {
		return nil, fmt.Errorf("empty response from ai")
	}

	// Reconstruct the full JSON since we prefilled the opening brace
	responseText := "{" + respBody.Content[0].Text
	c.logger.Debug("analysis response", zap.String("source", string(source)), zap.Int("bytes", len(responseText)))

	return ParseFoods(responseText, source)
}

// ParseFoods decodes a model answer into validated food entries. Invalid items are
// dropped; ErrNoFoods is returned when none remain.
func ParseFoods(responseText string, source models.Provenance) ([]models.FoodEntry, error) {
	// Clean up potential markdown code blocks if the model wraps the JSON
	responseText = strings.TrimSpace(responseText)
	if strings.HasPrefix(responseText, "```json") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
	} else if strings.HasPrefix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
	}
	responseText = strings.TrimSpace(responseText)

	var result struct {
		Foods []analyzedFood `json:"foods"`
	}
	if err := json.Unmarshal([]byte(responseText), &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ai response: %w", err)
	}

	foods := make([]models.FoodEntry, 0, len(result.Foods))
	for _, f := range result.Foods {
		weight := f.Weight
		if strings.TrimSpace(weight) == "" {
			weight = "1 serving"
		}
		entry, err := models.NewFoodEntry(f.Name, int(math.Round(f.Calories)), f.Protein, f.Fat, f.Carbs, weight, source)
		if err != nil {
			continue
		}
		foods = append(foods, entry)
	}
	if len(foods) == 0 {
		return nil, ErrNoFoods
	}
	return foods, nil
}
