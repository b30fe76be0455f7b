package ai

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"log"

	"github.com/disintegration/imaging"
)

const (
	placeholderWidth  = 1024
	placeholderHeight = 576
)

// PlaceholderImage renders a slate placeholder panel for a frame that could
// not be generated and returns it as a PNG data URL. The rendering is pure
// and deterministic so repeated runs of the same storyboard stay
// byte-identical even when a provider is down.
func PlaceholderImage(frameIndex int) string {
	canvas := imaging.New(placeholderWidth, placeholderHeight, color.NRGBA{R: 0x2b, G: 0x2f, B: 0x36, A: 0xff})

	// A lighter center band marks the panel as intentionally blank rather
	// than a broken image.
	band := imaging.New(placeholderWidth, placeholderHeight/6, color.NRGBA{R: 0x3d, G: 0x43, B: 0x4d, A: 0xff})
	canvas = imaging.Paste(canvas, band, image.Pt(0, (placeholderHeight-placeholderHeight/6)/2))

	// One tick mark per frame index keeps placeholders visually
	// distinguishable within a storyboard.
	tick := imaging.New(12, 12, color.NRGBA{R: 0x8a, G: 0x93, B: 0xa3, A: 0xff})
	for i := 0; i <= frameIndex; i++ {
		canvas = imaging.Paste(canvas, tick, image.Pt(16+i*20, placeholderHeight-28))
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, canvas, imaging.PNG); err != nil {
		// Encoding an in-memory NRGBA image cannot realistically fail, but
		// the frame invariant demands a non-empty URL no matter what.
		log.Printf("placeholder encode failed: %v", err)
		return fmt.Sprintf("https://placehold.co/%dx%d?text=Frame+%d", placeholderWidth, placeholderHeight, frameIndex+1)
	}

	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}
