package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"vidflow/internal/models"
)

// RemoteGateway talks to the hosted model runtime over HTTP JSON. The
// understanding capability lives on the primary endpoint; embeddings may be
// served from a secondary-region endpoint (some embedding models are only
// reachable there). Routing stays inside this type.
type RemoteGateway struct {
	endpoint      string
	embedEndpoint string
	apiKey        string
	client        *http.Client
}

func NewRemoteGateway(endpoint, embedEndpoint, apiKey string) *RemoteGateway {
	if embedEndpoint == "" {
		embedEndpoint = endpoint
	}
	return &RemoteGateway{
		endpoint:      endpoint,
		embedEndpoint: embedEndpoint,
		apiKey:        apiKey,
		client:        &http.Client{Timeout: 40 * time.Minute},
	}
}

func (g *RemoteGateway) Understand(ctx context.Context, ref models.StorageRef, transcript string) (UnderstandResult, CallInfo, error) {
	info := CallInfo{Capability: "understand", Region: "primary"}
	payload := map[string]any{
		"bucket":     ref.Bucket,
		"key":        ref.Key,
		"transcript": transcript,
	}
	var parsed struct {
		Model  string           `json:"model"`
		Result UnderstandResult `json:"result"`
	}
	if err := g.post(ctx, g.endpoint+"/v1/understand", payload, &parsed); err != nil {
		return UnderstandResult{}, info, wrapModelErr("understand", err)
	}
	info.Model = parsed.Model
	return parsed.Result, info, nil
}

func (g *RemoteGateway) EmbedVideo(ctx context.Context, ref models.StorageRef) ([]float32, CallInfo, error) {
	info := CallInfo{Capability: "embed_video", Region: "secondary"}
	payload := map[string]any{"bucket": ref.Bucket, "key": ref.Key}
	var parsed struct {
		Model     string    `json:"model"`
		Embedding []float32 `json:"embedding"`
	}
	if err := g.post(ctx, g.embedEndpoint+"/v1/embed/video", payload, &parsed); err != nil {
		return nil, info, wrapModelErr("embed_video", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, info, wrapModelErr("embed_video", fmt.Errorf("empty embedding in response"))
	}
	info.Model = parsed.Model
	return parsed.Embedding, info, nil
}

func (g *RemoteGateway) EmbedText(ctx context.Context, text string) ([]float32, CallInfo, error) {
	info := CallInfo{Capability: "embed_text", Region: "secondary"}
	payload := map[string]any{"text": text}
	var parsed struct {
		Model     string    `json:"model"`
		Embedding []float32 `json:"embedding"`
	}
	if err := g.post(ctx, g.embedEndpoint+"/v1/embed/text", payload, &parsed); err != nil {
		return nil, info, wrapModelErr("embed_text", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, info, wrapModelErr("embed_text", fmt.Errorf("empty embedding in response"))
	}
	info.Model = parsed.Model
	return parsed.Embedding, info, nil
}

type httpStatusError struct {
	code int
	body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("model endpoint returned %d: %s", e.code, e.body)
}

func (g *RemoteGateway) post(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return &httpStatusError{code: resp.StatusCode, body: truncateBody(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode model response: %w", err)
	}
	return nil
}

func wrapModelErr(capability string, err error) error {
	permanent := false
	if se, ok := err.(*httpStatusError); ok {
		permanent = permanentStatus(se.code)
	}
	return &ModelInvocationError{Capability: capability, Permanent: permanent, Err: err}
}

func truncateBody(b []byte) string {
	const max = 512
	if len(b) > max {
		b = b[:max]
	}
	return string(b)
}
