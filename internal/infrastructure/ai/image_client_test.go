package ai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testImageClient(srv *httptest.Server) *ImageClient {
	c := NewImageClient(srv.Client(), nil, "storyloom-dev", "us-central1")
	c.Endpoint = srv.URL
	return c
}

func TestImageClientGenerateImage(t *testing.T) {
	token := &AccessToken{Value: "ya29.test"}

	t.Run("returns a data URL on success", func(t *testing.T) {
		var gotPath, gotAuth string
		var gotBody predictRequest
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			gotAuth = r.Header.Get("Authorization")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.Write([]byte(`{"predictions": [{"bytesBase64Encoded": "aGVsbG8=", "mimeType": "image/png"}]}`))
		}))
		defer srv.Close()

		url, err := testImageClient(srv).GenerateImage(context.Background(), token, "imagen-3.0-generate-002", "a hero", 42)
		require.NoError(t, err)
		assert.Equal(t, "data:image/png;base64,aGVsbG8=", url)

		assert.Equal(t, "/v1/projects/storyloom-dev/locations/us-central1/publishers/google/models/imagen-3.0-generate-002:predict", gotPath)
		assert.Equal(t, "Bearer ya29.test", gotAuth)
		require.Len(t, gotBody.Instances, 1)
		assert.Equal(t, "a hero", gotBody.Instances[0].Prompt)
		assert.Equal(t, 1, gotBody.Parameters.SampleCount)
		assert.Equal(t, 42, gotBody.Parameters.Seed)
	})

	t.Run("5xx is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "backend overloaded", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := testImageClient(srv).GenerateImage(context.Background(), token, "m", "p", 0)
		var transient *domain.UpstreamTransientError
		require.ErrorAs(t, err, &transient)
		assert.Equal(t, http.StatusServiceUnavailable, transient.StatusCode)
	})

	t.Run("4xx is a quota signal for the tier", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "RESOURCE_EXHAUSTED", http.StatusTooManyRequests)
		}))
		defer srv.Close()

		_, err := testImageClient(srv).GenerateImage(context.Background(), token, "imagen-3.0-generate-002", "p", 0)
		var quota *domain.UpstreamQuotaError
		require.ErrorAs(t, err, &quota)
		assert.Equal(t, http.StatusTooManyRequests, quota.StatusCode)
		assert.Equal(t, "imagen-3.0-generate-002", quota.Model)
	})

	t.Run("2xx without image bytes is a shape error carrying the keys", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"deployedModelId": "123", "metadata": {}}`))
		}))
		defer srv.Close()

		_, err := testImageClient(srv).GenerateImage(context.Background(), token, "m", "p", 0)
		var shape *domain.UpstreamShapeError
		require.ErrorAs(t, err, &shape)
		assert.Equal(t, []string{"deployedModelId", "metadata"}, shape.Keys)
	})

	t.Run("network failure is transient", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close() // refuse connections

		c := NewImageClient(nil, nil, "p", "l")
		c.Endpoint = srv.URL
		_, err := c.GenerateImage(context.Background(), token, "m", "p", 0)
		var transient *domain.UpstreamTransientError
		require.ErrorAs(t, err, &transient)
	})
}

func TestPlaceholderImage(t *testing.T) {
	t.Run("is a PNG data URL", func(t *testing.T) {
		url := PlaceholderImage(0)
		assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
	})

	t.Run("is deterministic per frame index", func(t *testing.T) {
		assert.Equal(t, PlaceholderImage(3), PlaceholderImage(3))
		assert.NotEqual(t, PlaceholderImage(0), PlaceholderImage(1))
	})
}
