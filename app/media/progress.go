package media

const (
	MinRating = 0
	MaxRating = 100
)

// ClampProgress bounds p to [0, total], or to [0, ∞) when total is unknown.
func ClampProgress(p int, total *int) int {
	if total != nil && p > *total {
		p = *total
	}
	if p < 0 {
		return 0
	}
	return p
}

// ValidRating reports whether r is an acceptable user rating. nil clears the
// rating and is always valid.
func ValidRating(r *int) bool {
	return r == nil || (*r >= MinRating && *r <= MaxRating)
}

// ClampRating bounds a rating typed into an editor before it is submitted.
func ClampRating(r int) int {
	return min(max(r, MinRating), MaxRating)
}
