package mastery

// Trend returns the least-squares slope of level weights over attempt
// order. Positive means the student is improving. Fewer than two points
// give 0.
func Trend(levels []Level) float64 {
	n := float64(len(levels))
	if n < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, l := range levels {
		x := float64(i)
		y := float64(l.Weight())
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}
