package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/types"
)

const openaiSystemPrompt = `You are a request triage classifier. Given a support request, respond with a single JSON object:
{"category": "<best matching category>", "confidence": <0..1>, "sentiment": "positive|neutral|negative", "complexity_score": <0..1>}
Valid categories: %s. Respond with JSON only.`

// OpenAIConfig holds OpenAI classifier configuration.
type OpenAIConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIClassifier classifies requests through the OpenAI chat API.
type OpenAIClassifier struct {
	client     *openai.Client
	config     *OpenAIConfig
	categories string
	logger     *logrus.Logger
}

var _ Classifier = (*OpenAIClassifier)(nil)

// NewOpenAIClassifier creates an OpenAI-backed classifier constrained to the
// given category set.
func NewOpenAIClassifier(config *OpenAIConfig, categories []string, logger *logrus.Logger) *OpenAIClassifier {
	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &OpenAIClassifier{
		client:     openai.NewClientWithConfig(clientConfig),
		config:     config,
		categories: joinCategories(categories),
		logger:     logger,
	}
}

// Name identifies the backend.
func (c *OpenAIClassifier) Name() string {
	return "openai"
}

// Classify sends the request text for classification and parses the JSON
// reply into a classifier output.
func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (*types.ClassifierOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.config.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(openaiSystemPrompt, c.categories)},
			{Role: openai.ChatMessageRoleUser, Content: text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.logger.WithError(err).Error("OpenAI classification call failed")
		return nil, fmt.Errorf("openai classification failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return parseClassifierJSON(resp.Choices[0].Message.Content)
}

// parseClassifierJSON decodes a model reply into a classifier output,
// clamping numeric fields into range.
func parseClassifierJSON(content string) (*types.ClassifierOutput, error) {
	var out types.ClassifierOutput
	if err := json.Unmarshal([]byte(content), &out); err != nil {
		return nil, fmt.Errorf("malformed classifier reply: %w", err)
	}

	out.Confidence = clampUnit(out.Confidence)
	if out.ComplexityScore != nil {
		clamped := clampUnit(*out.ComplexityScore)
		out.ComplexityScore = &clamped
	}
	return &out, nil
}

func joinCategories(categories []string) string {
	if len(categories) == 0 {
		return "general"
	}
	joined := categories[0]
	for _, c := range categories[1:] {
		joined += ", " + c
	}
	return joined
}
