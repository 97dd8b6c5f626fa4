package openaiLLM

import (
	"context"
	"errors"
	"sync"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/customHttpClient"
	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type chatClient struct {
	api         openai.Client
	modelName   string
	temperature float64
	maxTokens   int64
}

var logger *logger_i.Logger
var openaiClient *chatClient
var initErr error
var once sync.Once

func GetOpenAIClient(ctx context.Context, settings *config.Settings) (llm.Provider, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_openai")
		if settings.Model.OpenAIAPIKey == "" {
			initErr = errors.New("OPENAI_API_KEY is not set")
			return
		}
		openaiClient = &chatClient{
			api: openai.NewClient(
				option.WithAPIKey(settings.Model.OpenAIAPIKey),
				option.WithHTTPClient(customHttpClient.Get()),
			),
			modelName:   settings.Model.OpenAIName,
			temperature: float64(settings.Model.Temperature),
			maxTokens:   int64(settings.Model.MaxTokens),
		}
		logger.Info("OpenAI chat client created", "model", openaiClient.modelName)
	})

	if initErr != nil {
		return nil, initErr
	}
	return openaiClient, nil
}

func (c *chatClient) Name() string {
	return "openai:" + c.modelName
}

func (c *chatClient) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(c.modelName),
		Messages:    buildMessages(prompt),
		Temperature: openai.Float(c.temperature),
		MaxTokens:   openai.Int(c.maxTokens),
	})
	if err != nil {
		logger.WithContext(ctx).Error("OpenAI generation failed", "error", err)
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", errors.New("openai returned an empty response")
	}
	return resp.Choices[0].Message.Content, nil
}

func buildMessages(prompt llm.Prompt) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(prompt.History)+2)
	if prompt.System != "" {
		messages = append(messages, openai.SystemMessage(prompt.System))
	}
	for _, m := range prompt.History {
		if m.Role == llm.RoleAssistant {
			messages = append(messages, openai.AssistantMessage(m.Content))
		} else {
			messages = append(messages, openai.UserMessage(m.Content))
		}
	}
	return append(messages, openai.UserMessage(prompt.User))
}
