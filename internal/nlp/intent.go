package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/masterlinc/orchestrator/internal/collaborators"
)

// Known intents the engine acts on
const (
	IntentAppointment = "appointment"
	IntentEmergency   = "emergency"
	IntentInquiry     = "inquiry"
)

// IntentAnalyzer classifies call transcripts with a chat model. It
// satisfies collaborators.IntentAnalyzer so it can replace the gateway's
// remote classification when an API key is configured.
type IntentAnalyzer struct {
	client *openai.Client
	model  string
	temp   float32
	logger *zap.Logger
}

// NewIntentAnalyzer creates an AI-backed intent analyzer
func NewIntentAnalyzer(apiKey, model string, temperature float32, logger *zap.Logger) *IntentAnalyzer {
	return &IntentAnalyzer{
		client: openai.NewClient(apiKey),
		model:  model,
		temp:   temperature,
		logger: logger,
	}
}

var _ collaborators.IntentAnalyzer = (*IntentAnalyzer)(nil)

// AnalyzeIntent classifies the transcript into one of the known intents
// and produces a one-line summary
func (a *IntentAnalyzer) AnalyzeIntent(ctx context.Context, text string) (*collaborators.IntentAnalysis, error) {
	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temp,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: `You classify healthcare call transcripts. Respond only with JSON of the form {"intent": "appointment"|"emergency"|"inquiry", "summary": "<one line>"}.`,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		a.logger.Error("OpenAI API call failed", zap.Error(err))
		return nil, fmt.Errorf("OpenAI API call failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no response from OpenAI")
	}

	content := resp.Choices[0].Message.Content

	var result collaborators.IntentAnalysis
	if err := json.Unmarshal([]byte(extractJSON(content)), &result); err != nil {
		a.logger.Error("Failed to parse intent response",
			zap.Error(err),
			zap.String("content", content))
		return nil, fmt.Errorf("failed to parse intent response: %w", err)
	}

	switch result.Intent {
	case IntentAppointment, IntentEmergency, IntentInquiry:
	default:
		a.logger.Warn("Model returned unknown intent, treating as inquiry",
			zap.String("intent", result.Intent))
		result.Intent = IntentInquiry
	}

	a.logger.Info("Intent analyzed",
		zap.String("intent", result.Intent))

	return &result, nil
}

// extractJSON pulls the first JSON object out of a response that may be
// wrapped in markdown code fences
func extractJSON(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
