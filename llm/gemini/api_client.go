package gemini

import (
	"context"

	"google.golang.org/genai"
)

// apiClient is the subset of the genai SDK used by Client.
type apiClient interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// realAPIClient wraps the actual Gemini client for stateless operations
type realAPIClient struct {
	client *genai.Client
}

func (r *realAPIClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return r.client.Models.GenerateContent(ctx, model, contents, config)
}
