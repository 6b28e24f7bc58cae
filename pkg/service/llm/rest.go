package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/prompter/pkg/domain/model"
	"github.com/m-mizutani/prompter/pkg/utils/safe"
)

// REST request/response shapes of the generateContent endpoint. Only the
// fields this client uses are declared.

type restPart struct {
	Text string `json:"text"`
}

type restContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []restPart `json:"parts"`
}

type restGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
}

type restRequest struct {
	SystemInstruction *restContent         `json:"systemInstruction,omitempty"`
	Contents          []restContent        `json:"contents"`
	GenerationConfig  restGenerationConfig `json:"generationConfig"`
}

type restResponse struct {
	Candidates []struct {
		Content restContent `json:"content"`
	} `json:"candidates"`
}

// GenerateFallback sends the same request payload through the raw REST
// endpoint. Used as the lower-level transport when the primary path fails
// with a network-class error.
func (x *Client) GenerateFallback(ctx context.Context, req *model.ChatRequest) (string, error) {
	x.mu.Lock()
	apiKey := x.apiKey
	modelName := x.model
	endpoint := x.endpoint
	hc := x.httpClient
	x.mu.Unlock()

	if apiKey == "" {
		return "", goerr.New("fallback transport requires an API key")
	}

	payload := restRequest{
		GenerationConfig: restGenerationConfig{
			Temperature:     req.Generation.Temperature,
			MaxOutputTokens: req.Generation.MaxOutputTokens,
			TopK:            req.Generation.TopK,
			TopP:            req.Generation.TopP,
		},
	}
	if req.SystemInstruction != "" {
		payload.SystemInstruction = &restContent{
			Parts: []restPart{{Text: req.SystemInstruction}},
		}
	}
	for _, turn := range req.Turns {
		payload.Contents = append(payload.Contents, restContent{
			Role:  turn.Role.String(),
			Parts: []restPart{{Text: turn.Content}},
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", goerr.Wrap(err, "failed to marshal generateContent payload")
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", endpoint, modelName)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", goerr.Wrap(err, "failed to build generateContent request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", apiKey)

	resp, err := hc.Do(httpReq)
	if err != nil {
		return "", goerr.Wrap(err, "generateContent request failed", goerr.V("model", modelName))
	}
	defer safe.Close(ctx, resp.Body)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", goerr.Wrap(err, "failed to read generateContent response")
	}

	if resp.StatusCode != http.StatusOK {
		return "", goerr.New(fmt.Sprintf("backend returned status %d", resp.StatusCode),
			goerr.V("status", resp.Status),
			goerr.V("body", string(respBody)),
		)
	}

	var parsed restResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", goerr.Wrap(err, "failed to parse generateContent response")
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", goerr.New("backend returned no candidates")
	}

	texts := make([]string, 0, len(parsed.Candidates[0].Content.Parts))
	for _, part := range parsed.Candidates[0].Content.Parts {
		texts = append(texts, part.Text)
	}
	return strings.Join(texts, "\n"), nil
}
