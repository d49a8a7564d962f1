package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Result is what an extractor returns for one image: the raw text, any
// structured fields the backend identified, and its confidence in [0,1].
type Result struct {
	Text       string            `json:"text"`
	Fields     map[string]string `json:"fields"`
	Confidence float64           `json:"confidence"`
}

// Extractor runs OCR on a document image. Implementations are untrusted,
// best-effort collaborators: a failure must never corrupt order or OTP state.
type Extractor interface {
	Extract(ctx context.Context, image []byte) (*Result, error)
}

// VisionClient calls an external AI-vision OCR endpoint over HTTP.
type VisionClient struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewVisionClient creates a client with the given request timeout.
func NewVisionClient(endpoint, apiKey string, timeout time.Duration) *VisionClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &VisionClient{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

func (v *VisionClient) Extract(ctx context.Context, image []byte) (*Result, error) {
	payload := map[string]string{
		"image": base64.StdEncoding.EncodeToString(image),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("vision endpoint returned %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("vision response decode failed: %w", err)
	}
	return &result, nil
}
