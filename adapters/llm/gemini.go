package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/satriahrh/kyc-voice/domain/entities"
	"github.com/satriahrh/kyc-voice/domain/repositories"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = 0.0
	defaultTimeout     = 5 * time.Second
)

// GeminiConfig configures the Gemini transcript normalizer
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// NewGeminiConfigFromEnv reads GEMINI_API_KEY, GEMINI_MODEL and GEMINI_TIMEOUT
func NewGeminiConfigFromEnv() GeminiConfig {
	config := GeminiConfig{
		APIKey: os.Getenv("GEMINI_API_KEY"),
		Model:  os.Getenv("GEMINI_MODEL"),
	}
	if timeout, err := time.ParseDuration(os.Getenv("GEMINI_TIMEOUT")); err == nil && timeout > 0 {
		config.Timeout = timeout
	}
	return config
}

// contentGenerator is the subset of *genai.Models used here
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiNormalizer rewrites speech transcripts into the canonical form of a
// field, e.g. "my pan is a b c d e one two three four f" to "ABCDE1234F".
// It never decides validity; the caller validates what it returns.
type GeminiNormalizer struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

var _ repositories.TranscriptNormalizer = (*GeminiNormalizer)(nil)

// NewGeminiNormalizer creates a Gemini API client for transcript normalization
func NewGeminiNormalizer(ctx context.Context, config GeminiConfig, logger *zap.Logger) (*GeminiNormalizer, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return newGeminiNormalizer(client.Models, config, logger), nil
}

func newGeminiNormalizer(models contentGenerator, config GeminiConfig, logger *zap.Logger) *GeminiNormalizer {
	model := config.Model
	if model == "" {
		model = defaultModel
	}
	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &GeminiNormalizer{
		models:  models,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

var fieldInstructions = map[entities.FieldID]string{
	entities.FieldName: "The user was asked for their full name. Reply with only the name, " +
		"in title case, letters and single spaces only.",
	entities.FieldPhone: "The user was asked for a 10-digit mobile number. Reply with only the digits " +
		"they spoke, converting number words (including 'double' and 'triple') to digits. Do not add or drop digits.",
	entities.FieldPAN: "The user was asked for a PAN card number (5 letters, 4 digits, 1 letter). Reply with only " +
		"the characters they spoke, uppercase, no spaces, converting number words and spelled letters " +
		"(e.g. 'bee' to B). Do not add or drop characters.",
	entities.FieldConsent: "The user was asked whether they consent to KYC verification. Reply with exactly " +
		"'yes', 'no', or 'unclear'.",
}

// Normalize asks Gemini for the canonical form of transcript
func (g *GeminiNormalizer) Normalize(ctx context.Context, field entities.FieldID, transcript string) (string, error) {
	instruction, ok := fieldInstructions[field]
	if !ok {
		return "", fmt.Errorf("no normalization instruction for field %s", field)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromText(instruction+" If you cannot tell, reply with an empty line.", genai.RoleUser),
		genai.NewContentFromText("Transcript: "+transcript, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(defaultTemperature)),
		MaxOutputTokens: 32,
	}

	start := time.Now()
	response, err := g.models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	if response == nil || len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "", fmt.Errorf("empty response from Gemini")
	}

	var b strings.Builder
	for _, part := range response.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			b.WriteString(part.Text)
		}
	}
	normalized := strings.TrimSpace(b.String())

	g.logger.Debug("Transcript normalized",
		zap.String("field", string(field)),
		zap.String("transcript", transcript),
		zap.String("normalized", normalized),
		zap.Duration("latency", time.Since(start)))

	return normalized, nil
}
