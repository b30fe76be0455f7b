package services

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/storyloom/storyloom-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanServicePlan(t *testing.T) {
	ctx := context.Background()

	t.Run("returns a validated 7-frame plan", func(t *testing.T) {
		h := newTestHarness(t)
		plans := h.textService(t, http.StatusOK, wrapPlanText(sevenFramePlanJSON()))

		plan, err := plans.Plan(ctx, "a hero discovers powers", "sb-hero")
		require.NoError(t, err)
		assert.Equal(t, "sb-hero", plan.StoryboardID)
		require.Len(t, plan.Frames, domain.FrameCount)
		assert.Equal(t, "scene 0", plan.Frames[0].Description)
	})

	t.Run("strips markdown code fences", func(t *testing.T) {
		h := newTestHarness(t)
		fenced := "```json\n" + sevenFramePlanJSON() + "\n```"
		plans := h.textService(t, http.StatusOK, wrapPlanText(fenced))

		plan, err := plans.Plan(ctx, "a hero discovers powers", "sb-hero")
		require.NoError(t, err)
		assert.Len(t, plan.Frames, domain.FrameCount)
	})

	t.Run("derives a deterministic storyboard id when none is supplied", func(t *testing.T) {
		h := newTestHarness(t)
		plans := h.textService(t, http.StatusOK, wrapPlanText(sevenFramePlanJSON()))

		a, err := plans.Plan(ctx, "a hero discovers powers", "")
		require.NoError(t, err)
		b, err := plans.Plan(ctx, "a hero discovers powers", "")
		require.NoError(t, err)
		assert.Equal(t, a.StoryboardID, b.StoryboardID)
		assert.Equal(t, DeriveStoryboardID("a hero discovers powers"), a.StoryboardID)
	})

	t.Run("six frames is a PlanError carrying the raw text", func(t *testing.T) {
		h := newTestHarness(t)
		short := `{"frames": [{"description":"1"},{"description":"2"},{"description":"3"},{"description":"4"},{"description":"5"},{"description":"6"}]}`
		plans := h.textService(t, http.StatusOK, wrapPlanText(short))

		_, err := plans.Plan(ctx, "a hero discovers powers", "sb-hero")
		var planErr *domain.PlanError
		require.ErrorAs(t, err, &planErr)
		assert.Contains(t, planErr.Reason, "got 6")
		assert.Equal(t, short, planErr.Raw)
	})

	t.Run("eight frames is a PlanError", func(t *testing.T) {
		h := newTestHarness(t)
		long := `{"frames": [`
		for i := 0; i < 8; i++ {
			if i > 0 {
				long += ","
			}
			long += fmt.Sprintf(`{"description": "scene %d"}`, i)
		}
		long += `]}`
		plans := h.textService(t, http.StatusOK, wrapPlanText(long))

		_, err := plans.Plan(ctx, "a hero discovers powers", "sb-hero")
		var planErr *domain.PlanError
		require.ErrorAs(t, err, &planErr)
		assert.Contains(t, planErr.Reason, "got 8")
	})

	t.Run("prose instead of JSON is a PlanError carrying the raw text", func(t *testing.T) {
		h := newTestHarness(t)
		prose := "Sure! Here is a seven frame storyboard for you."
		plans := h.textService(t, http.StatusOK, wrapPlanText(prose))

		_, err := plans.Plan(ctx, "a hero discovers powers", "sb-hero")
		var planErr *domain.PlanError
		require.ErrorAs(t, err, &planErr)
		assert.Equal(t, prose, planErr.Raw)
	})

	t.Run("upstream failure is a PlanError", func(t *testing.T) {
		h := newTestHarness(t)
		plans := h.textService(t, http.StatusInternalServerError, "boom")

		_, err := plans.Plan(ctx, "a hero discovers powers", "sb-hero")
		var planErr *domain.PlanError
		require.ErrorAs(t, err, &planErr)
	})

	t.Run("empty intent is a ValidationError without any provider call", func(t *testing.T) {
		h := newTestHarness(t)
		plans := h.textService(t, http.StatusOK, wrapPlanText(sevenFramePlanJSON()))

		_, err := plans.Plan(ctx, "   ", "sb-hero")
		var validation *domain.ValidationError
		require.ErrorAs(t, err, &validation)
		assert.Zero(t, h.textCalls.Load())
		assert.Zero(t, h.tokenCalls.Load())
	})
}
