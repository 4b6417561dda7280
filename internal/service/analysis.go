package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// AnalysisResult is the normalized output of the analysis backend
type AnalysisResult struct {
	Calories    float64        `json:"calories"`
	Macros      Macronutrients `json:"macronutrients"`
	Ingredients []string       `json:"ingredients"`
}

// analysisRequest mirrors the webhook contract: exactly one of the two
// fields is non-empty per call, and the backend picks its analysis mode
// from whichever is populated.
type analysisRequest struct {
	ImageURL string `json:"imageUrl"`
	Text     string `json:"text"`
}

// analysisResponse is the backend's wire format
type analysisResponse struct {
	Calorias        *float64 `json:"calorias"`
	Macronutrientes *struct {
		Proteinas    float64 `json:"proteinas"`
		Carboidratos float64 `json:"carboidratos"`
		Gorduras     float64 `json:"gorduras"`
	} `json:"macronutrientes"`
	Ingredientes []string `json:"ingredientes"`
}

// AnalysisClient sends meal photos or ingredient text to the external
// nutritional-analysis endpoint.
type AnalysisClient struct {
	endpoint string
	client   *http.Client
}

// NewAnalysisClient creates a client for the given endpoint. An empty
// endpoint is allowed; Analyze then fails with ErrAnalysisNotConfigured
// before any network I/O.
func NewAnalysisClient(endpoint string) *AnalysisClient {
	return &AnalysisClient{
		endpoint: endpoint,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Analyze submits either an image URL or ingredient text for analysis.
// Missing calories in the response default to 0; a missing macronutrient
// breakdown or ingredient list is an invalid response. No retries here,
// the caller decides whether to re-trigger.
func (c *AnalysisClient) Analyze(ctx context.Context, imageURL, text string) (*AnalysisResult, error) {
	if c.endpoint == "" {
		return nil, ErrAnalysisNotConfigured
	}

	payload, err := json.Marshal(analysisRequest{ImageURL: imageURL, Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach analysis service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("[AnalysisClient] request failed with status %d: %s", resp.StatusCode, string(body))
		return nil, &AnalysisServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed analysisResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	if parsed.Macronutrientes == nil || parsed.Ingredientes == nil {
		return nil, ErrInvalidResponse
	}

	result := &AnalysisResult{
		Macros: Macronutrients{
			Protein: nonNegative(parsed.Macronutrientes.Proteinas),
			Carbs:   nonNegative(parsed.Macronutrientes.Carboidratos),
			Fat:     nonNegative(parsed.Macronutrientes.Gorduras),
		},
		Ingredients: parsed.Ingredientes,
	}
	if parsed.Calorias != nil {
		result.Calories = nonNegative(*parsed.Calorias)
	}

	return result, nil
}

func nonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
