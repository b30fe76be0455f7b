package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/ai"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
)

// FrameService generates a single storyboard frame. It is total: provider
// failures never escape as errors, they come back as failed frames carrying
// a placeholder image and a diagnostic message.
type FrameService struct {
	images      *ai.ImageClient
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	primaryModel  string
	fallbackModel string // empty disables tier fallback
	attempts      int
	retryDelay    time.Duration
}

// NewFrameService creates a frame service. attempts is the per-tier attempt
// cap for transient failures; retryDelay is the fixed wait between attempts.
func NewFrameService(images *ai.ImageClient, logger *logging.ChanneledLogger, perfTracker *performance.Tracker, primaryModel, fallbackModel string, attempts int, retryDelay time.Duration) *FrameService {
	if attempts < 1 {
		attempts = 1
	}
	return &FrameService{
		images:        images,
		logger:        logger,
		perfTracker:   perfTracker,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
		attempts:      attempts,
		retryDelay:    retryDelay,
	}
}

// Generate produces the frame for one plan entry. On quota rejection from
// the primary tier the same frame is retried once against the fallback tier
// without burning the local retry budget.
func (s *FrameService) Generate(ctx context.Context, storyboardID, description string, frameIndex, seed int, token *ai.AccessToken) domain.Frame {
	marker := s.perfTracker.StartOperation("frame:generate")
	marker.AddMetadata("frameIndex", frameIndex)
	defer marker.Complete()

	prompt := cinematicPrompt(description)
	frameSeed := domain.FrameSeed(seed, frameIndex)

	imageURL, err := s.generateWithRetry(ctx, s.primaryModel, prompt, frameSeed, token)

	var quota *domain.UpstreamQuotaError
	if err != nil && errors.As(err, &quota) && s.fallbackModel != "" && quota.Model != s.fallbackModel {
		s.logger.Image().Warn("Primary tier rejected frame, switching to fallback tier",
			"frameIndex", frameIndex, "primary", quota.Model, "fallback", s.fallbackModel, "status", quota.StatusCode)
		imageURL, err = s.generateWithRetry(ctx, s.fallbackModel, prompt, frameSeed, token)
	}

	if err != nil {
		marker.SetError(err)
		s.logger.Image().Error("Frame generation exhausted all attempts",
			"storyboardId", storyboardID, "frameIndex", frameIndex, "error", err.Error())
		return domain.FailedFrame(storyboardID, frameIndex, description, ai.PlaceholderImage(frameIndex), err.Error())
	}

	return domain.SucceededFrame(storyboardID, frameIndex, description, imageURL)
}

// generateWithRetry runs the bounded retry loop for one model tier. Only
// transient upstream failures are retried; quota and shape errors stop the
// loop immediately because retrying cannot fix them.
func (s *FrameService) generateWithRetry(ctx context.Context, model, prompt string, seed int, token *ai.AccessToken) (string, error) {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.attempts-1)),
		ctx,
	)

	var imageURL string
	attempt := 0

	err := backoff.Retry(func() error {
		attempt++
		url, err := s.images.GenerateImage(ctx, token, model, prompt, seed)
		if err == nil {
			imageURL = url
			return nil
		}

		var transient *domain.UpstreamTransientError
		if errors.As(err, &transient) {
			s.logger.Image().Warn("Transient image generation failure, will retry",
				"model", model, "attempt", attempt, "error", err.Error())
			return err
		}
		return backoff.Permanent(err)
	}, policy)

	return imageURL, err
}

// cinematicPrompt composes the framing directive for one frame description.
func cinematicPrompt(description string) string {
	return fmt.Sprintf(
		"Cinematic storyboard panel: %s. Wide 16:9 film still, dramatic lighting, consistent visual style across the storyboard, high detail, no text, no captions, no speech bubbles.",
		description,
	)
}
