package similarity

import "math"

// Norm is the Euclidean length of v.
func Norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// CosineDistance is 1 - cos(a, b). Zero vectors are maximally distant;
// vectors of different length are at distance 2.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) {
		return 2
	}
	na, nb := Norm(a), Norm(b)
	if na == 0 || nb == 0 {
		return 1
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return 1 - dot/(na*nb)
}
