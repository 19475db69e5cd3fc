package classify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/sirupsen/logrus"

	"github.com/tributary-ai/triage-router/internal/types"
)

const anthropicSystemPrompt = `You are a request triage classifier. Given a support request, respond with a single JSON object:
{"category": "<best matching category>", "confidence": <0..1>, "sentiment": "positive|neutral|negative", "complexity_score": <0..1>}
Valid categories: %s. Respond with JSON only, no prose.`

// AnthropicConfig holds Anthropic classifier configuration.
type AnthropicConfig struct {
	APIKey  string        `yaml:"api_key"`
	BaseURL string        `yaml:"base_url"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"`
}

// AnthropicClassifier classifies requests through the Anthropic messages
// API. The selector reserves it for complex and critical work.
type AnthropicClassifier struct {
	client     *anthropic.Client
	config     *AnthropicConfig
	categories string
	logger     *logrus.Logger
}

var _ Classifier = (*AnthropicClassifier)(nil)

// NewAnthropicClassifier creates an Anthropic-backed classifier constrained
// to the given category set.
func NewAnthropicClassifier(config *AnthropicConfig, categories []string, logger *logrus.Logger) *AnthropicClassifier {
	opts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Model == "" {
		config.Model = "claude-3-5-haiku-20241022"
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	client := anthropic.NewClient(opts...)

	return &AnthropicClassifier{
		client:     &client,
		config:     config,
		categories: joinCategories(categories),
		logger:     logger,
	}
}

// Name identifies the backend.
func (c *AnthropicClassifier) Name() string {
	return "anthropic"
}

// Classify sends the request text for classification and parses the JSON
// reply into a classifier output.
func (c *AnthropicClassifier) Classify(ctx context.Context, text string) (*types.ClassifierOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.config.Model),
		MaxTokens: 256,
		System: []anthropic.TextBlockParam{
			{Text: fmt.Sprintf(anthropicSystemPrompt, c.categories)},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		c.logger.WithError(err).Error("Anthropic classification call failed")
		return nil, fmt.Errorf("anthropic classification failed: %w", err)
	}

	var reply strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}
	if reply.Len() == 0 {
		return nil, fmt.Errorf("anthropic returned no text content")
	}

	return parseClassifierJSON(reply.String())
}
