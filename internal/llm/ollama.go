package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// OllamaClient calls a local Ollama server. It is the default provider: the
// ranking and refinement models are small enough to run next to the service.
type OllamaClient struct {
	client *api.Client
	model  string
}

func NewOllamaClient(baseURL, model string, httpClient *http.Client) (*OllamaClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &OllamaClient{
		client: api.NewClient(u, httpClient),
		model:  model,
	}, nil
}

func (o *OllamaClient) Model() string { return o.model }

func (o *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	stream := false
	genReq := api.GenerateRequest{
		Model:  o.model,
		Prompt: req.Prompt,
		System: req.System,
		Stream: &stream,
		Options: map[string]interface{}{
			"temperature": Temperature,
			"seed":        Seed,
			"num_predict": maxTokens(req),
		},
	}
	if req.JSON {
		genReq.Format = json.RawMessage(`"json"`)
	}

	var sb strings.Builder
	err := o.client.Generate(ctx, &genReq, func(resp api.GenerateResponse) error {
		sb.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		var statusErr api.StatusError
		if errors.As(err, &statusErr) && retryableStatus(statusErr.StatusCode) {
			return "", &RetryableError{StatusCode: statusErr.StatusCode, Message: statusErr.ErrorMessage}
		}
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return sb.String(), nil
}
