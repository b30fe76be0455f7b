// Package domain defines the core storyboard entities shared across the
// application and infrastructure layers.
package domain

import "fmt"

// FrameCount is the fixed number of frames in every storyboard plan.
const FrameCount = 7

// FrameState is the lifecycle state of a single storyboard frame.
type FrameState string

const (
	FramePending   FrameState = "pending"
	FrameSucceeded FrameState = "succeeded"
	FrameFailed    FrameState = "failed"
)

// PlanFrame is a single frame description inside a storyboard plan.
type PlanFrame struct {
	Description string `json:"description"`
}

// StoryboardPlan is the ordered list of frame descriptions derived from an
// intent. A plan is only valid when it carries exactly FrameCount frames.
type StoryboardPlan struct {
	StoryboardID string      `json:"storyboardId"`
	Frames       []PlanFrame `json:"frames"`
}

// Validate checks the structural invariants of a plan before generation.
func (p *StoryboardPlan) Validate() error {
	if p == nil {
		return &ValidationError{Field: "plan", Reason: "plan is required"}
	}
	if p.StoryboardID == "" {
		return &ValidationError{Field: "storyboardId", Reason: "storyboardId is required"}
	}
	if len(p.Frames) != FrameCount {
		return &ValidationError{
			Field:  "plan.frames",
			Reason: fmt.Sprintf("plan must contain exactly %d frames, got %d", FrameCount, len(p.Frames)),
		}
	}
	for i, f := range p.Frames {
		if f.Description == "" {
			return &ValidationError{
				Field:  "plan.frames",
				Reason: fmt.Sprintf("frame %d has an empty description", i),
			}
		}
	}
	return nil
}

// Frame is one storyboard panel: a description plus its generated (or
// placeholder) image. Frames are built through the constructors below so the
// state, success flag and error message can never disagree with each other.
type Frame struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ImageURL    string     `json:"image_url"`
	State       FrameState `json:"state"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
}

// FrameID derives the canonical frame identifier within a storyboard.
func FrameID(storyboardID string, frameIndex int) string {
	return fmt.Sprintf("%s-frame-%d", storyboardID, frameIndex)
}

// FrameTitle derives the 1-based display title for a frame.
func FrameTitle(frameIndex int) string {
	return fmt.Sprintf("Frame %d", frameIndex+1)
}

// SucceededFrame builds a frame holding a real generated image.
func SucceededFrame(storyboardID string, frameIndex int, description, imageURL string) Frame {
	return Frame{
		ID:          FrameID(storyboardID, frameIndex),
		Title:       FrameTitle(frameIndex),
		Description: description,
		ImageURL:    imageURL,
		State:       FrameSucceeded,
		Success:     true,
	}
}

// FailedFrame builds a frame whose generation exhausted all attempts. The
// image URL must be a well-formed placeholder reference, never empty.
func FailedFrame(storyboardID string, frameIndex int, description, placeholderURL, reason string) Frame {
	return Frame{
		ID:          FrameID(storyboardID, frameIndex),
		Title:       FrameTitle(frameIndex),
		Description: description,
		ImageURL:    placeholderURL,
		State:       FrameFailed,
		Success:     false,
		Error:       reason,
	}
}

// PendingFrame builds a frame that has not been generated yet. Extend appends
// these so the storyboard shape stays consistent before real generation.
func PendingFrame(storyboardID string, frameIndex int, description, placeholderURL string) Frame {
	return Frame{
		ID:          FrameID(storyboardID, frameIndex),
		Title:       FrameTitle(frameIndex),
		Description: description,
		ImageURL:    placeholderURL,
		State:       FramePending,
		Success:     false,
	}
}

// Storyboard is the assembled result of one orchestration run. Once stored it
// is only ever mutated through the orchestrator's Edit/Extend operations.
// ExtensionSeed is zero until the storyboard is first extended; appended
// frames draw their generation seeds from it rather than from Seed.
type Storyboard struct {
	StoryboardID  string          `json:"storyboardId"`
	Plan          *StoryboardPlan `json:"plan"`
	Seed          int             `json:"seed"`
	ExtensionSeed int             `json:"extensionSeed,omitempty"`
	Frames        []Frame         `json:"frames"`
}

// Clone returns a deep copy sharing no mutable state with the receiver.
func (s *Storyboard) Clone() *Storyboard {
	if s == nil {
		return nil
	}
	out := *s
	if s.Plan != nil {
		plan := *s.Plan
		plan.Frames = append([]PlanFrame(nil), s.Plan.Frames...)
		out.Plan = &plan
	}
	out.Frames = append([]Frame(nil), s.Frames...)
	return &out
}
