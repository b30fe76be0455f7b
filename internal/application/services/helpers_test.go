package services

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/storyloom/storyloom-go/internal/infrastructure/ai"
	"github.com/storyloom/storyloom-go/internal/infrastructure/caching"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

const (
	testPrimaryModel  = "imagen-3.0-generate-002"
	testFallbackModel = "imagen-3.0-fast-generate-001"
)

// testHarness wires real services against fake provider endpoints.
type testHarness struct {
	creds  *ai.ServiceAccount
	tokens *ai.TokenProvider
	logger *logging.ChanneledLogger
	perf   *performance.Tracker
	store  *caching.StoryboardStore

	tokenCalls atomic.Int32
	imageCalls atomic.Int32
	textCalls  atomic.Int32
}

func quietLogger(t *testing.T) *logging.ChanneledLogger {
	t.Helper()
	cfg := logging.DefaultLoggerConfig()
	cfg.OutputToConsole = false
	logger, err := logging.NewChanneledLogger(cfg)
	require.NoError(t, err)
	return logger
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	})

	h := &testHarness{
		logger: quietLogger(t),
		perf:   performance.NewTracker(),
		store:  caching.NewStoryboardStore(0),
	}

	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.tokenCalls.Add(1)
		w.Write([]byte(`{"access_token": "ya29.test", "expires_in": 3600}`))
	}))
	t.Cleanup(tokenSrv.Close)

	h.creds = &ai.ServiceAccount{
		ClientEmail: "sb@p.iam.gserviceaccount.com",
		PrivateKey:  string(pemBytes),
		TokenURI:    tokenSrv.URL,
	}
	h.tokens = ai.NewTokenProvider(tokenSrv.Client(), h.logger)

	return h
}

// textService builds a PlanService whose text endpoint replies with body.
func (h *testHarness) textService(t *testing.T, status int, body string) *PlanService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.textCalls.Add(1)
		if status >= 400 {
			http.Error(w, body, status)
			return
		}
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	client := ai.NewTextClient(srv.Client(), h.logger, "proj", "loc", "gemini-test")
	client.Endpoint = srv.URL
	return NewPlanService(client, h.tokens, h.creds, h.logger, h.perf)
}

// imageService builds a FrameService whose predict endpoint is driven by fn.
func (h *testHarness) imageService(t *testing.T, fn http.HandlerFunc) *FrameService {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.imageCalls.Add(1)
		fn(w, r)
	}))
	t.Cleanup(srv.Close)

	client := ai.NewImageClient(srv.Client(), h.logger, "proj", "loc")
	client.Endpoint = srv.URL
	return NewFrameService(client, h.logger, h.perf, testPrimaryModel, testFallbackModel, 3, time.Millisecond)
}

// orchestrator assembles the full pipeline around the given frame service.
func (h *testHarness) orchestrator(plans *PlanService, frames *FrameService) *OrchestratorService {
	return NewOrchestratorService(plans, frames, h.store, h.tokens, h.creds,
		rate.NewLimiter(rate.Inf, 1), h.logger, h.perf)
}

// wrapPlanText wraps raw text in a generateContent response envelope.
func wrapPlanText(raw string) string {
	b, _ := json.Marshal(raw)
	return fmt.Sprintf(`{"candidates": [{"content": {"parts": [{"text": %s}]}}]}`, b)
}

// sevenFramePlanJSON is a well-formed model plan payload.
func sevenFramePlanJSON() string {
	frames := ""
	for i := 0; i < 7; i++ {
		if i > 0 {
			frames += ","
		}
		frames += fmt.Sprintf(`{"description": "scene %d"}`, i)
	}
	return fmt.Sprintf(`{"frames": [%s]}`, frames)
}

func okPredictResponse(w http.ResponseWriter) {
	w.Write([]byte(`{"predictions": [{"bytesBase64Encoded": "aW1n", "mimeType": "image/png"}]}`))
}
