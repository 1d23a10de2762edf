package vector

import "math"

// Dot returns the inner product of a and b accumulated in float64.
// For unit vectors this is the cosine similarity. Callers check lengths.
func Dot(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// DotCentroid returns the inner product of a vector with a float64 centroid.
func DotCentroid(a []float32, c []float64) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * c[i]
	}
	return dot
}

// SquaredEuclidean returns the squared L2 distance between a vector and a centroid.
func SquaredEuclidean(a []float32, c []float64) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - c[i]
		sum += d * d
	}
	return sum
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// Round4 rounds a score to 4 decimal places, half away from zero.
func Round4(x float64) float64 {
	return math.Round(x*1e4) / 1e4
}
