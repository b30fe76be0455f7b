package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
)

// ImageClient calls the Vertex AI predict endpoint for image generation.
// The model is passed per call so the frame service can switch tiers when
// the primary tier reports quota exhaustion.
type ImageClient struct {
	httpClient *http.Client
	logger     *logging.ChanneledLogger

	// Endpoint overrides the regional Vertex AI base URL; used by tests.
	Endpoint string
	Project  string
	Location string
}

// NewImageClient creates an image generation client for one project/location.
func NewImageClient(httpClient *http.Client, logger *logging.ChanneledLogger, project, location string) *ImageClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 90 * time.Second}
	}
	return &ImageClient{
		httpClient: httpClient,
		logger:     logger,
		Project:    project,
		Location:   location,
	}
}

func (c *ImageClient) baseURL() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	return fmt.Sprintf("https://%s-aiplatform.googleapis.com", c.Location)
}

type predictRequest struct {
	Instances  []predictInstance `json:"instances"`
	Parameters predictParameters `json:"parameters"`
}

type predictInstance struct {
	Prompt string `json:"prompt"`
}

type predictParameters struct {
	SampleCount int `json:"sampleCount"`
	Seed        int `json:"seed"`
}

type predictResponse struct {
	Predictions []struct {
		BytesBase64Encoded string `json:"bytesBase64Encoded"`
		MimeType           string `json:"mimeType"`
	} `json:"predictions"`
}

// GenerateImage requests one seeded image from the given model tier and
// returns it as a data URL. Errors are classified into the domain taxonomy:
// transport/5xx failures are transient, 4xx signals quota/permission for the
// tier, and a 2xx body without image bytes is a contract violation.
func (c *ImageClient) GenerateImage(ctx context.Context, token *AccessToken, model, prompt string, seed int) (string, error) {
	url := fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:predict",
		c.baseURL(), c.Project, c.Location, model)

	payload, err := json.Marshal(predictRequest{
		Instances:  []predictInstance{{Prompt: prompt}},
		Parameters: predictParameters{SampleCount: 1, Seed: seed},
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode predict request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build predict request: %w", err)
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

	switch {
	case resp.StatusCode >= 500:
		return "", &domain.UpstreamTransientError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("image model %s predict failed", model),
		}
	case resp.StatusCode >= 400:
		return "", &domain.UpstreamQuotaError{StatusCode: resp.StatusCode, Model: model}
	}

	var parsed predictResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", &domain.UpstreamShapeError{Expected: "predictions", Keys: topLevelKeys(body)}
	}
	if len(parsed.Predictions) == 0 || parsed.Predictions[0].BytesBase64Encoded == "" {
		return "", &domain.UpstreamShapeError{Expected: "predictions[0].bytesBase64Encoded", Keys: topLevelKeys(body)}
	}

	mimeType := parsed.Predictions[0].MimeType
	if mimeType == "" {
		mimeType = "image/png"
	}

	if c.logger != nil {
		c.logger.Image().Debug("Image model call completed", "model", model, "seed", seed, "duration", time.Since(start))
	}

	return fmt.Sprintf("data:%s;base64,%s", mimeType, parsed.Predictions[0].BytesBase64Encoded), nil
}
