package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
)

// TextClient calls the Vertex AI generateContent endpoint for planning.
type TextClient struct {
	httpClient *http.Client
	logger     *logging.ChanneledLogger

	// Endpoint overrides the regional Vertex AI base URL; used by tests.
	Endpoint string
	Project  string
	Location string
	Model    string
}

// NewTextClient creates a planning text client for one project/location/model.
func NewTextClient(httpClient *http.Client, logger *logging.ChanneledLogger, project, location, model string) *TextClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &TextClient{
		httpClient: httpClient,
		logger:     logger,
		Project:    project,
		Location:   location,
		Model:      model,
	}
}

func (c *TextClient) baseURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.Location)
}

type generateContentRequest struct {
	Contents         []textContent  `json:"contents"`
	GenerationConfig *textGenConfig `json:"generationConfig,omitempty"`
}

type textContent struct {
	Role  string     `json:"role"`
	Parts []textPart `json:"parts"`
}

type textPart struct {
	Text string `json:"text"`
}

type textGenConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []textPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// GenerateText sends the prompt to the text model and returns the raw
// concatenated candidate text. Planning failures abort the whole run, so
// errors here are returned as-is for the plan service to wrap.
func (c *TextClient) GenerateText(ctx context.Context, token *AccessToken, prompt string) (string, error) {
	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
		c.baseURL(), c.Project, c.Location, c.Model)

	payload, err := json.Marshal(generateContentRequest{
		Contents: []textContent{{Role: "user", Parts: []textPart{{Text: prompt}}}},
		GenerationConfig: &textGenConfig{
			Temperature:     0.7,
			MaxOutputTokens: 2048,
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode generateContent request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build generateContent request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token.Value)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &domain.UpstreamTransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.UpstreamTransientError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("text model %s returned HTTP %d", c.Model, resp.StatusCode)
	}

	var parsed generateContentResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("failed to parse generateContent response: %w", err)
	}
	if len(parsed.Candidates) == 0 {
		return "", &domain.UpstreamShapeError{Expected: "candidates", Keys: topLevelKeys(body)}
	}

	var sb strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}

	if c.logger != nil {
		c.logger.Plan().Debug("Text model call completed", "model", c.Model, "duration", time.Since(start))
	}

	return sb.String(), nil
}

// topLevelKeys extracts the top-level field names of a JSON object body so a
// shape mismatch can be triaged without logging the full payload.
func topLevelKeys(body []byte) []string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil
	}
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
