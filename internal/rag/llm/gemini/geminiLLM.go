package gemini

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/akolanti/PDFChat/internal/config"
	"github.com/akolanti/PDFChat/internal/customHttpClient"
	"github.com/akolanti/PDFChat/internal/rag/llm"
	"github.com/akolanti/PDFChat/pkg/logger_i"
	"google.golang.org/genai"
)

var errClosed = errors.New("gemini client closed")

type llmClient struct {
	client      *genai.Client
	modelName   string
	temperature float32
	maxTokens   int32
	closed      atomic.Bool
}

var logger *logger_i.Logger
var geminiClient *llmClient
var initErr error
var once sync.Once

func GetGeminiClient(ctx context.Context, settings *config.Settings) (llm.Provider, error) {
	once.Do(func() {
		logger = logger_i.NewLogger("llm_gemini")
		geminiClient, initErr = newGeminiClient(ctx, settings)
	})

	if initErr != nil {
		return nil, initErr
	}
	return geminiClient, nil
}

func newGeminiClient(ctx context.Context, settings *config.Settings) (*llmClient, error) {
	if settings.Model.GoogleAPIKey == "" {
		return nil, errors.New("GOOGLE_API_KEY is not set")
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     settings.Model.GoogleAPIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: customHttpClient.Get(),
	})
	if err != nil {
		logger.Error("Error creating Gemini client:", "error", err)
		return nil, err
	}

	gc := &llmClient{
		client:      c,
		modelName:   settings.Model.Name,
		temperature: settings.Model.Temperature,
		maxTokens:   settings.Model.MaxTokens,
	}
	logger.Info("Gemini client created", "model", gc.modelName)
	go closeClient(ctx, gc)
	return gc, nil
}

func (c *llmClient) Name() string {
	return "gemini:" + c.modelName
}

func (c *llmClient) Generate(ctx context.Context, prompt llm.Prompt) (string, error) {
	if c.closed.Load() {
		return "", errClosed
	}
	log := logger.WithContext(ctx)

	contents := buildContents(prompt)
	contentConfig := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(prompt.System, genai.RoleUser),
		Temperature:       genai.Ptr(c.temperature),
		MaxOutputTokens:   c.maxTokens,
	}

	result, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, contentConfig)
	if err != nil {
		log.Error("Gemini generation failed", "error", err)
		return "", err
	}
	text := result.Text()
	if text == "" {
		return "", errors.New("gemini returned an empty response")
	}
	return text, nil
}

// buildContents maps prior turns onto user/model contents and ends with the
// current user message.
func buildContents(prompt llm.Prompt) []*genai.Content {
	contents := make([]*genai.Content, 0, len(prompt.History)+1)
	for _, m := range prompt.History {
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(prompt.User, genai.RoleUser))
}

func closeClient(ctx context.Context, llm *llmClient) {
	<-ctx.Done()
	logger.Info("Closing Gemini client")
	llm.closed.Store(true)
}
