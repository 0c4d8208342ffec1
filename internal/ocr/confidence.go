package ocr

import (
	"regexp"
	"strings"
)

var (
	reDate     = regexp.MustCompile(`\b\d{1,4}[-/.]\d{1,2}[-/.]\d{2,4}\b`)
	reCurr     = regexp.MustCompile(`\b(rp|idr|usd|eur|sgd|myr)\b|[$£€]`)
	reAmount   = regexp.MustCompile(`\b\d{1,3}([.,]\d{3})+\b|\b\d+[.,]\d{2}\b`)
	reOrderNum = regexp.MustCompile(`\b[a-z]{2,5}-\d+(-\d+)*\b`)
)

// HeuristicConfidence scores how receipt-like the text looks, in 0..1.
// It is only reported in logs.
func HeuristicConfidence(txt string) float32 {
	txtL := strings.ToLower(txt)
	score := float32(0.2) // base
	if reDate.MatchString(txtL) {
		score += 0.2
	}
	if reCurr.MatchString(txtL) {
		score += 0.15
	}
	if reAmount.MatchString(txtL) {
		score += 0.15
	}
	if reOrderNum.MatchString(txtL) {
		score += 0.2
	}
	if len(txt) > 120 {
		score += 0.1
	} // enough content
	if score > 1.0 {
		score = 1.0
	}
	return score
}
