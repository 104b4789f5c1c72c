package match

import "math"

// CosineDistance returns 1 minus the cosine similarity of a and b, in
// [0,2]. Mismatched lengths and zero vectors score as maximally distant;
// those only arise from corrupted embeddings.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}

// Score maps a cosine distance onto a 0-100 match percentage rounded to
// two decimals: 100 at distance 0, 0 at distance 2.
func Score(distance float64) float64 {
	s := (1 - distance/2) * 100
	s = math.Round(s*100) / 100
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}
