package collaborators

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// VoiceGatewayClient talks to the call/voice gateway over HTTP
type VoiceGatewayClient struct {
	httpClient
}

// NewVoiceGatewayClient creates a voice gateway client
func NewVoiceGatewayClient(baseURL string, timeout time.Duration, logger *zap.Logger) *VoiceGatewayClient {
	return &VoiceGatewayClient{newHTTPClient(baseURL, timeout, logger)}
}

// GetTranscript fetches the transcript of a call
func (c *VoiceGatewayClient) GetTranscript(ctx context.Context, callID string) (string, error) {
	var resp struct {
		Transcript string `json:"transcript"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/calls/"+callID+"/transcript", nil, &resp); err != nil {
		return "", err
	}
	return resp.Transcript, nil
}

// AnalyzeIntent classifies the intent of a transcript
func (c *VoiceGatewayClient) AnalyzeIntent(ctx context.Context, text string) (*IntentAnalysis, error) {
	req := map[string]string{"text": text}
	var resp IntentAnalysis
	if err := c.doJSON(ctx, http.MethodPost, "/api/nlp/intent", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RouteCall routes an active call based on classified intent
func (c *VoiceGatewayClient) RouteCall(ctx context.Context, callID string, routing RouteContext) error {
	return c.doJSON(ctx, http.MethodPost, "/api/calls/"+callID+"/route", routing, nil)
}

// SendNotification sends an SMS-style notification. Delivery is
// at-least-once from the workflow's perspective; the gateway must tolerate
// duplicates.
func (c *VoiceGatewayClient) SendNotification(ctx context.Context, to, message string) error {
	req := map[string]string{"to": to, "message": message}
	c.logger.Debug("Sending notification", zap.String("to", to))
	return c.doJSON(ctx, http.MethodPost, "/api/notifications", req, nil)
}

// IntentAnalyzer is anything that can classify transcript intent. The
// gateway does it remotely; an AI model can be swapped in behind the same
// signature.
type IntentAnalyzer interface {
	AnalyzeIntent(ctx context.Context, text string) (*IntentAnalysis, error)
}

// gatewayWithAnalyzer overrides AnalyzeIntent on a CallGateway
type gatewayWithAnalyzer struct {
	CallGateway
	analyzer IntentAnalyzer
}

// WithIntentAnalyzer returns a CallGateway whose intent classification is
// served by the given analyzer while all other operations pass through
func WithIntentAnalyzer(gw CallGateway, analyzer IntentAnalyzer) CallGateway {
	return &gatewayWithAnalyzer{CallGateway: gw, analyzer: analyzer}
}

func (g *gatewayWithAnalyzer) AnalyzeIntent(ctx context.Context, text string) (*IntentAnalysis, error) {
	return g.analyzer.AnalyzeIntent(ctx, text)
}
