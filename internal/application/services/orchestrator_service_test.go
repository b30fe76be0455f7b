package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sevenFramePlan(id string) *domain.StoryboardPlan {
	frames := make([]domain.PlanFrame, domain.FrameCount)
	for i := range frames {
		frames[i] = domain.PlanFrame{Description: "scene " + string(rune('a'+i))}
	}
	return &domain.StoryboardPlan{StoryboardID: id, Frames: frames}
}

func TestOrchestratorGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path produces a 7-frame storyboard", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		sb, err := orch.Generate(ctx, sevenFramePlan("sb-happy"))
		require.NoError(t, err)
		assert.Equal(t, "sb-happy", sb.StoryboardID)
		assert.Equal(t, domain.Seed("sb-happy"), sb.Seed)
		require.Len(t, sb.Frames, domain.FrameCount)
		for i, f := range sb.Frames {
			assert.True(t, f.Success, "frame %d", i)
			assert.Equal(t, domain.FrameID("sb-happy", i), f.ID)
			assert.Equal(t, domain.FrameTitle(i), f.Title)
		}
		assert.Equal(t, int32(domain.FrameCount), h.imageCalls.Load())
		assert.Equal(t, int32(1), h.tokenCalls.Load())
	})

	t.Run("invalid plan is rejected before any provider call", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		plan := sevenFramePlan("sb-bad")
		plan.Frames = plan.Frames[:5]
		_, err := orch.Generate(ctx, plan)
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Zero(t, h.imageCalls.Load())
		assert.Zero(t, h.tokenCalls.Load())
	})

	t.Run("second Generate for the same id makes no provider calls", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		first, err := orch.Generate(ctx, sevenFramePlan("sb-idem"))
		require.NoError(t, err)
		require.Equal(t, int32(domain.FrameCount), h.imageCalls.Load())

		second, err := orch.Generate(ctx, sevenFramePlan("sb-idem"))
		require.NoError(t, err)
		assert.Equal(t, int32(domain.FrameCount), h.imageCalls.Load())
		assert.Equal(t, first, second)
	})

	t.Run("concurrent Generate calls collapse to one provider run", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		var wg sync.WaitGroup
		results := make([]*domain.Storyboard, 4)
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sb, err := orch.Generate(ctx, sevenFramePlan("sb-race"))
				assert.NoError(t, err)
				results[i] = sb
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(domain.FrameCount), h.imageCalls.Load())
		for _, sb := range results[1:] {
			assert.Equal(t, results[0], sb)
		}
	})

	t.Run("one failing frame does not disturb its neighbours", func(t *testing.T) {
		h := newTestHarness(t)
		failedSeed := domain.FrameSeed(domain.Seed("sb-partial"), 4)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Parameters struct {
					Seed int `json:"seed"`
				} `json:"parameters"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			if body.Parameters.Seed == failedSeed {
				http.Error(w, "overloaded", http.StatusInternalServerError)
				return
			}
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		sb, err := orch.Generate(ctx, sevenFramePlan("sb-partial"))
		require.NoError(t, err)
		require.Len(t, sb.Frames, domain.FrameCount)
		for i, f := range sb.Frames {
			if i == 4 {
				assert.False(t, f.Success)
				assert.Equal(t, domain.FrameFailed, f.State)
				assert.NotEmpty(t, f.Error)
				assert.True(t, strings.HasPrefix(f.ImageURL, "data:image/png;base64,"))
				continue
			}
			assert.True(t, f.Success, "frame %d", i)
			assert.Empty(t, f.Error)
		}
	})

	t.Run("concurrent reads and edits share no storyboard state", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Generate(ctx, sevenFramePlan("sb-shared"))
		require.NoError(t, err)

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < 200; i++ {
				_, err := orch.Edit(ctx, "sb-shared", i%domain.FrameCount, "revision "+string(rune('a'+i%26)))
				assert.NoError(t, err)
			}
		}()

		for i := 0; i < 200; i++ {
			sb, err := orch.Get("sb-shared")
			require.NoError(t, err)
			_, err = json.Marshal(sb)
			require.NoError(t, err)
		}
		<-done
	})

	t.Run("canceled context aborts without storing a partial result", func(t *testing.T) {
		h := newTestHarness(t)
		runCtx, cancel := context.WithCancel(ctx)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			cancel()
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Generate(runCtx, sevenFramePlan("sb-cancel"))
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)

		_, err = orch.Get("sb-cancel")
		var notFound *domain.NotFoundError
		assert.ErrorAs(t, err, &notFound)
	})
}

func TestOrchestratorGenerateFrame(t *testing.T) {
	ctx := context.Background()

	t.Run("generates a single frame without a stored storyboard", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		frame, err := orch.GenerateFrame(ctx, "sb-solo", 2, "a rooftop standoff")
		require.NoError(t, err)
		assert.True(t, frame.Success)
		assert.Equal(t, "sb-solo-frame-2", frame.ID)
	})

	t.Run("replaces the stored frame when the storyboard exists", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Generate(ctx, sevenFramePlan("sb-regen"))
		require.NoError(t, err)

		frame, err := orch.GenerateFrame(ctx, "sb-regen", 3, "a rewritten scene")
		require.NoError(t, err)

		sb, err := orch.Get("sb-regen")
		require.NoError(t, err)
		assert.Equal(t, *frame, sb.Frames[3])
		assert.Equal(t, "a rewritten scene", sb.Frames[3].Description)
	})

	t.Run("rejects a negative frame index", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.GenerateFrame(ctx, "sb-solo", -1, "a rooftop standoff")
		var rangeErr *domain.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Zero(t, h.imageCalls.Load())
	})
}

func TestOrchestratorEdit(t *testing.T) {
	ctx := context.Background()

	t.Run("edit changes only the description", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		sb, err := orch.Generate(ctx, sevenFramePlan("sb-edit"))
		require.NoError(t, err)
		before := sb.Frames[1]

		edited, err := orch.Edit(ctx, "sb-edit", 1, "a new opening shot")
		require.NoError(t, err)
		after := edited.Frames[1]

		assert.Equal(t, "a new opening shot", after.Description)
		assert.Equal(t, before.ID, after.ID)
		assert.Equal(t, before.ImageURL, after.ImageURL)
		assert.Equal(t, before.State, after.State)
		assert.Equal(t, before.Success, after.Success)
	})

	t.Run("edit of an unknown storyboard is a NotFoundError", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Edit(ctx, "sb-ghost", 0, "anything")
		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("edit out of range is a RangeError", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Generate(ctx, sevenFramePlan("sb-range"))
		require.NoError(t, err)

		_, err = orch.Edit(ctx, "sb-range", 7, "beyond the last frame")
		var rangeErr *domain.RangeError
		require.ErrorAs(t, err, &rangeErr)
		assert.Equal(t, 7, rangeErr.FrameIndex)
	})
}

func TestOrchestratorExtend(t *testing.T) {
	ctx := context.Background()

	t.Run("extend appends pending frames", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Generate(ctx, sevenFramePlan("sb-extend"))
		require.NoError(t, err)

		sb, err := orch.Extend(ctx, "sb-extend", []domain.PlanFrame{
			{Description: "an epilogue at dawn"},
			{Description: "credits over the skyline"},
		})
		require.NoError(t, err)
		require.Len(t, sb.Frames, domain.FrameCount+2)
		assert.Equal(t, domain.Seed("sb-extend", "ext"), sb.ExtensionSeed)

		added := sb.Frames[domain.FrameCount]
		assert.Equal(t, domain.FramePending, added.State)
		assert.False(t, added.Success)
		assert.Equal(t, domain.FrameID("sb-extend", domain.FrameCount), added.ID)
		assert.Equal(t, "an epilogue at dawn", added.Description)
		assert.True(t, strings.HasPrefix(added.ImageURL, "data:image/png;base64,"))
	})

	t.Run("extension frames generate from the extension seed", func(t *testing.T) {
		h := newTestHarness(t)
		var lastSeed atomic.Int64
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			var body struct {
				Parameters struct {
					Seed int `json:"seed"`
				} `json:"parameters"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			lastSeed.Store(int64(body.Parameters.Seed))
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Generate(ctx, sevenFramePlan("sb-extseed"))
		require.NoError(t, err)

		_, err = orch.Extend(ctx, "sb-extseed", []domain.PlanFrame{{Description: "an epilogue"}})
		require.NoError(t, err)

		frame, err := orch.GenerateFrame(ctx, "sb-extseed", domain.FrameCount, "an epilogue")
		require.NoError(t, err)
		require.True(t, frame.Success)

		want := domain.FrameSeed(domain.Seed("sb-extseed", "ext"), domain.FrameCount)
		assert.Equal(t, int64(want), lastSeed.Load())

		// Original frames keep drawing from the base seed.
		_, err = orch.GenerateFrame(ctx, "sb-extseed", 2, "scene c")
		require.NoError(t, err)
		assert.Equal(t, int64(domain.FrameSeed(domain.Seed("sb-extseed"), 2)), lastSeed.Load())
	})

	t.Run("extend of an unknown storyboard is a NotFoundError", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Extend(ctx, "sb-ghost", []domain.PlanFrame{{Description: "anything"}})
		var notFound *domain.NotFoundError
		require.ErrorAs(t, err, &notFound)
	})

	t.Run("extend with no frames is a ValidationError", func(t *testing.T) {
		h := newTestHarness(t)
		frames := h.imageService(t, func(w http.ResponseWriter, r *http.Request) {
			okPredictResponse(w)
		})
		orch := h.orchestrator(nil, frames)

		_, err := orch.Extend(ctx, "sb-extend", nil)
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
	})
}
