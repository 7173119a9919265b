package external

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cryptobuddy/pkg/config"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

const completionSystemPrompt = "You are CryptoBuddy, a friendly assistant inside a cryptocurrency chat. " +
	"Answer general questions briefly and helpfully in two or three sentences. " +
	"Do not give financial advice."

// OpenAICompleter answers free-form questions through an OpenAI-compatible
// chat completion API
type OpenAICompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
	logger    *logrus.Entry
}

// NewOpenAICompleter creates a completer from configuration
func NewOpenAICompleter(cfg *config.OpenAIConfig, logger *logrus.Logger) *OpenAICompleter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient.Timeout = cfg.Timeout
	}

	return &OpenAICompleter{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		logger:    logger.WithField("component", "completion"),
	}
}

// Complete returns the assistant's answer to prompt
func (o *OpenAICompleter) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:     o.model,
		MaxTokens: o.maxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: completionSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			o.logger.WithFields(logrus.Fields{
				"status": apiErr.HTTPStatusCode,
				"code":   apiErr.Code,
			}).Warn("Completion API rejected request")
		}
		return "", fmt.Errorf("failed to create completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion returned no choices")
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
