package domain

// Seed maps a storyboard identifier (plus an optional suffix) to a
// deterministic non-negative integer using a 31-multiplier rolling hash.
// Identical inputs always produce identical seeds, which is what lets two
// runs of the same storyboard request structurally similar image variants
// from providers that honor a seed parameter.
func Seed(id string, suffix ...string) int {
	s := id
	for _, sfx := range suffix {
		s += sfx
	}

	var h int32
	for _, r := range s {
		h = h*31 + int32(r)
	}

	n := int(h)
	if n < 0 {
		n = -n
	}
	return n
}

// FrameSeed derives the per-frame seed from a storyboard-level seed.
func FrameSeed(seed, frameIndex int) int {
	return seed + frameIndex
}
