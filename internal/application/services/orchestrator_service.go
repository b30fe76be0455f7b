package services

import (
	"context"
	"fmt"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/storyloom/storyloom-go/internal/infrastructure/ai"
	"github.com/storyloom/storyloom-go/internal/infrastructure/caching"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/logging"
	"github.com/storyloom/storyloom-go/internal/infrastructure/observability/performance"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// OrchestratorService sequences planning, authentication, and per-frame
// generation for one storyboard, and owns all mutations of the store.
//
// Frames are generated sequentially on purpose: the pacing limiter keeps the
// service under provider rate limits, so overall latency scales linearly
// with the frame count. Runs for different storyboard ids proceed
// independently; runs for the same id are collapsed by the singleflight
// group and the store's per-key lock, which together make Generate
// idempotent even under concurrent callers.
type OrchestratorService struct {
	plans       *PlanService
	frames      *FrameService
	store       *caching.StoryboardStore
	tokens      *ai.TokenProvider
	creds       *ai.ServiceAccount
	limiter     *rate.Limiter
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	group singleflight.Group
}

// NewOrchestratorService creates the orchestrator.
func NewOrchestratorService(
	plans *PlanService,
	frames *FrameService,
	store *caching.StoryboardStore,
	tokens *ai.TokenProvider,
	creds *ai.ServiceAccount,
	limiter *rate.Limiter,
	logger *logging.ChanneledLogger,
	perfTracker *performance.Tracker,
) *OrchestratorService {
	return &OrchestratorService{
		plans:       plans,
		frames:      frames,
		store:       store,
		tokens:      tokens,
		creds:       creds,
		limiter:     limiter,
		logger:      logger,
		perfTracker: perfTracker,
	}
}

// Plan delegates to the plan service. The store is never touched here.
func (s *OrchestratorService) Plan(ctx context.Context, intent, storyboardID string) (*domain.StoryboardPlan, error) {
	return s.plans.Plan(ctx, intent, storyboardID)
}

// Generate runs the full pipeline for one plan. When a storyboard already
// exists for the id it is returned unchanged without any provider calls;
// this is the system's primary consistency guarantee.
func (s *OrchestratorService) Generate(ctx context.Context, plan *domain.StoryboardPlan) (*domain.Storyboard, error) {
	if err := plan.Validate(); err != nil {
		return nil, err
	}

	id := plan.StoryboardID
	v, err, _ := s.group.Do(id, func() (any, error) {
		return s.generateLocked(ctx, id, plan)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Storyboard), nil
}

func (s *OrchestratorService) generateLocked(ctx context.Context, id string, plan *domain.StoryboardPlan) (*domain.Storyboard, error) {
	lock := s.store.KeyLock(id)
	lock.Lock()
	defer lock.Unlock()

	if existing, found := s.store.Get(id); found {
		s.logger.Cache().Info("Storyboard already generated, returning stored result", "storyboardId", id)
		return existing, nil
	}

	marker := s.perfTracker.StartOperation("storyboard:generate")
	marker.AddMetadata("storyboardId", id)
	defer marker.Complete()

	token, err := s.tokens.Token(ctx, s.creds)
	if err != nil {
		marker.SetError(err)
		return nil, err
	}

	seed := domain.Seed(id)
	s.logger.System().Info("Starting storyboard generation", "storyboardId", id, "seed", seed)

	frames := make([]domain.Frame, 0, domain.FrameCount)
	for i, pf := range plan.Frames {
		if i > 0 {
			if err := s.limiter.Wait(ctx); err != nil {
				marker.SetError(err)
				return nil, err
			}
		}

		frame := s.frames.Generate(ctx, id, pf.Description, i, seed, token)
		frames = append(frames, frame)

		// A disconnected caller stops the run before the next provider call.
		if err := ctx.Err(); err != nil {
			marker.SetError(err)
			return nil, err
		}
	}

	sb := &domain.Storyboard{
		StoryboardID: id,
		Plan:         plan,
		Seed:         seed,
		Frames:       frames,
	}
	s.store.Put(id, sb)

	succeeded := 0
	for _, f := range frames {
		if f.Success {
			succeeded++
		}
	}
	marker.AddMetadata("succeededFrames", succeeded)
	s.logger.System().Info("Storyboard generation complete",
		"storyboardId", id, "frames", len(frames), "succeeded", succeeded)

	return sb, nil
}

// GenerateFrame generates one frame on its own, for incremental delivery.
// When the storyboard is already stored and the index is in range, the
// stored frame is replaced, which is how a caller regenerates a frame after
// an Edit.
func (s *OrchestratorService) GenerateFrame(ctx context.Context, storyboardID string, frameIndex int, description string) (*domain.Frame, error) {
	if storyboardID == "" {
		return nil, &domain.ValidationError{Field: "storyboardId", Reason: "storyboardId is required"}
	}
	if description == "" {
		return nil, &domain.ValidationError{Field: "description", Reason: "description is required"}
	}
	if frameIndex < 0 {
		return nil, &domain.RangeError{FrameIndex: frameIndex, FrameCount: domain.FrameCount}
	}

	token, err := s.tokens.Token(ctx, s.creds)
	if err != nil {
		return nil, err
	}

	// Extension frames draw from the storyboard's extension seed so their
	// images reproduce independently of the original frames.
	seed := domain.Seed(storyboardID)
	if sb, found := s.store.Get(storyboardID); found && sb.ExtensionSeed != 0 && frameIndex >= domain.FrameCount {
		seed = sb.ExtensionSeed
	}

	frame := s.frames.Generate(ctx, storyboardID, description, frameIndex, seed, token)

	lock := s.store.KeyLock(storyboardID)
	lock.Lock()
	defer lock.Unlock()
	if sb, found := s.store.Get(storyboardID); found && frameIndex < len(sb.Frames) {
		sb.Frames[frameIndex] = frame
		s.store.Put(storyboardID, sb)
	}

	return &frame, nil
}

// Extend appends extra frame entries to a stored storyboard. The new frames
// carry placeholder images; generating real images for extensions is a
// separate caller action. Their seeds come from a suffixed generator so the
// extension is reproducible independently of the original frames.
func (s *OrchestratorService) Extend(ctx context.Context, storyboardID string, extraFrames []domain.PlanFrame) (*domain.Storyboard, error) {
	if storyboardID == "" {
		return nil, &domain.ValidationError{Field: "storyboardId", Reason: "storyboardId is required"}
	}
	if len(extraFrames) == 0 {
		return nil, &domain.ValidationError{Field: "extraFrames", Reason: "at least one extra frame is required"}
	}
	for i, f := range extraFrames {
		if f.Description == "" {
			return nil, &domain.ValidationError{Field: "extraFrames", Reason: fmt.Sprintf("extra frame %d has an empty description", i)}
		}
	}

	lock := s.store.KeyLock(storyboardID)
	lock.Lock()
	defer lock.Unlock()

	sb, found := s.store.Get(storyboardID)
	if !found {
		return nil, &domain.NotFoundError{StoryboardID: storyboardID}
	}

	if sb.ExtensionSeed == 0 {
		sb.ExtensionSeed = domain.Seed(storyboardID, "ext")
	}
	for _, pf := range extraFrames {
		idx := len(sb.Frames)
		frame := domain.PendingFrame(storyboardID, idx, pf.Description, ai.PlaceholderImage(idx))
		sb.Frames = append(sb.Frames, frame)
	}
	s.store.Put(storyboardID, sb)

	s.logger.System().Info("Storyboard extended",
		"storyboardId", storyboardID, "added", len(extraFrames), "extensionSeed", sb.ExtensionSeed, "total", len(sb.Frames))

	return sb, nil
}

// Edit replaces the description of one frame. The image is deliberately left
// untouched: edit is metadata-only, regeneration is a separate caller action.
func (s *OrchestratorService) Edit(ctx context.Context, storyboardID string, frameIndex int, newDescription string) (*domain.Storyboard, error) {
	if storyboardID == "" {
		return nil, &domain.ValidationError{Field: "storyboardId", Reason: "storyboardId is required"}
	}
	if newDescription == "" {
		return nil, &domain.ValidationError{Field: "newDescription", Reason: "newDescription is required"}
	}

	lock := s.store.KeyLock(storyboardID)
	lock.Lock()
	defer lock.Unlock()

	sb, found := s.store.Get(storyboardID)
	if !found {
		return nil, &domain.NotFoundError{StoryboardID: storyboardID}
	}
	if frameIndex < 0 || frameIndex >= len(sb.Frames) {
		return nil, &domain.RangeError{FrameIndex: frameIndex, FrameCount: len(sb.Frames)}
	}

	sb.Frames[frameIndex].Description = newDescription
	s.store.Put(storyboardID, sb)

	s.logger.System().Info("Storyboard frame edited", "storyboardId", storyboardID, "frameIndex", frameIndex)
	return sb, nil
}

// Get returns a stored storyboard.
func (s *OrchestratorService) Get(storyboardID string) (*domain.Storyboard, error) {
	sb, found := s.store.Get(storyboardID)
	if !found {
		return nil, &domain.NotFoundError{StoryboardID: storyboardID}
	}
	return sb, nil
}
