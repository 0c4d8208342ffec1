package generation

import "math"

// Argmax returns the index of the largest logit. Ties go to the lowest index
// and NaN counts as negative infinity.
func Argmax(logits []float32) (int32, error) {
	if len(logits) == 0 {
		return 0, ErrEmptyLogits
	}
	best := 0
	bestV := math.Inf(-1)
	for i, l := range logits {
		v := float64(l)
		if math.IsNaN(v) {
			v = math.Inf(-1)
		}
		if v > bestV {
			best, bestV = i, v
		}
	}
	return int32(best), nil
}

// TruncatePrompt keeps the most recent budget tokens. A non-positive budget
// disables truncation. The returned slice never aliases ids when truncated.
func TruncatePrompt(ids []int32, budget int) []int32 {
	if budget <= 0 || len(ids) <= budget {
		return ids
	}
	return append([]int32(nil), ids[len(ids)-budget:]...)
}
