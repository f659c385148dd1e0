package comparison

// PercentageDiff is 100 * diffCount / (width * height). An empty image has no
// difference.
func PercentageDiff(diffCount, width, height int) float64 {
	area := width * height
	if area <= 0 {
		return 0
	}
	return float64(diffCount) * 100 / float64(area)
}

// Classify reports whether a comparison fails. Equal to the threshold passes.
func Classify(percentageDiff, threshold float64) bool {
	return percentageDiff > threshold
}
