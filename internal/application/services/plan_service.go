// Package services provides application-level services that orchestrate
// storyboard planning and generation against the AI infrastructure.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/ai"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
)

// planPromptTemplate instructs the text model to emit nothing but the plan
// JSON. The fixed frame count lives in the prompt and in the validation
// below; the model is never trusted to count.
const planPromptTemplate = `You are a storyboard director. Break the following story intent into exactly %d storyboard frames that together tell the story with a clear beginning, middle, and end.

Respond with ONLY a JSON object of this exact shape, no markdown fences and no surrounding prose:
{"frames": [{"description": "..."}]}

The frames array must contain exactly %d entries. Each description is one or two sentences of concrete visual direction for a single panel.

Story intent: %s`

// PlanService turns a free-text intent into a validated 7-frame plan.
type PlanService struct {
	text        *ai.TextClient
	tokens      *ai.TokenProvider
	creds       *ai.ServiceAccount
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
}

// NewPlanService creates a plan service.
func NewPlanService(text *ai.TextClient, tokens *ai.TokenProvider, creds *ai.ServiceAccount, logger *logging.ChanneledLogger, perfTracker *performance.Tracker) *PlanService {
	return &PlanService{
		text:        text,
		tokens:      tokens,
		creds:       creds,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// DeriveStoryboardID maps an intent to a stable storyboard identifier so
// that repeated planning of the same intent addresses the same storyboard
// slot. Callers may instead supply their own id.
func DeriveStoryboardID(intent string) string {
	return fmt.Sprintf("sb-%d", domain.Seed(intent))
}

// Plan requests frame descriptions for the intent and validates the result.
// It never touches the storyboard store.
func (s *PlanService) Plan(ctx context.Context, intent, storyboardID string) (*domain.StoryboardPlan, error) {
	if strings.TrimSpace(intent) == "" {
		return nil, &domain.ValidationError{Field: "intent", Reason: "intent is required"}
	}
	if storyboardID == "" {
		storyboardID = DeriveStoryboardID(intent)
	}

	marker := s.perfTracker.StartOperation("plan:request")
	defer marker.Complete()

	token, err := s.tokens.Token(ctx, s.creds)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	prompt := fmt.Sprintf(planPromptTemplate, domain.FrameCount, domain.FrameCount, intent)

	raw, err := s.text.GenerateText(ctx, token, prompt)
	if err != nil {
		marker.SetError(err)
		return nil, &domain.PlanError{Reason: "text model call failed", Err: err}
	}

	plan, err := s.parsePlan(raw, storyboardID)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	s.logger.Plan().Info("Plan generated", "storyboardId", storyboardID, "frames", len(plan.Frames))
	return plan, nil
}

// parsePlan strips any markdown code-fence wrapping, parses the JSON, and
// enforces the exact frame count. The raw text rides on the error for
// diagnostics; the frame list is never padded or truncated.
func (s *PlanService) parsePlan(raw, storyboardID string) (*domain.StoryboardPlan, error) {
	var payload struct {
		Frames []domain.PlanFrame `json:"frames"`
	}

	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &payload); err != nil {
		return nil, &domain.PlanError{Reason: "model response is not valid plan JSON", Raw: raw, Err: err}
	}

	if len(payload.Frames) != domain.FrameCount {
		return nil, &domain.PlanError{
			Reason: fmt.Sprintf("expected exactly %d frame descriptions, got %d", domain.FrameCount, len(payload.Frames)),
			Raw:    raw,
		}
	}

	for i, f := range payload.Frames {
		if strings.TrimSpace(f.Description) == "" {
			return nil, &domain.PlanError{
				Reason: fmt.Sprintf("frame %d has an empty description", i),
				Raw:    raw,
			}
		}
	}

	return &domain.StoryboardPlan{StoryboardID: storyboardID, Frames: payload.Frames}, nil
}

// stripCodeFences removes the ```json ... ``` wrapping that text models
// commonly add around structured output.
func stripCodeFences(raw string) string {
	out := strings.TrimSpace(raw)
	out = strings.TrimPrefix(out, "```json")
	out = strings.TrimPrefix(out, "```")
	out = strings.TrimSuffix(out, "```")
	return strings.TrimSpace(out)
}
