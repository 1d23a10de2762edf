package cluster

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/hyperjump/shiori/internal/vector"
)

// Seed fixes the random source so identical input always yields identical clusters.
const Seed int64 = 42

// Options tunes the k-means search.
type Options struct {
	Restarts  int     // independent k-means++ initializations; best inertia wins
	MaxIter   int     // Lloyd iteration cap per restart
	Tolerance float64 // relative to the mean per-dimension variance of the data
	Seed      int64
}

// DefaultOptions returns 10 restarts, 300 iterations and a 1e-4 tolerance.
func DefaultOptions() Options {
	return Options{Restarts: 10, MaxIter: 300, Tolerance: 1e-4, Seed: Seed}
}

// Result is the outcome of the best restart.
type Result struct {
	Labels     []int       // label in [0, k) per input vector
	Centroids  [][]float64 // member means, not renormalized
	Inertia    float64     // sum of squared distances to assigned centroids
	Iterations int
	Converged  bool
}

// KMeans partitions vectors into k clusters with Lloyd's algorithm seeded by
// greedy k-means++. All vectors must share one dimension.
func KMeans(vectors []vector.Vector, k int, opts Options) (*Result, error) {
	n := len(vectors)
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", vector.ErrInvalidParameter, k)
	}
	if n < k {
		return nil, &InsufficientDataError{Required: k, Got: n}
	}
	dim := len(vectors[0])
	if dim == 0 {
		return nil, fmt.Errorf("%w: empty vector at index 0", vector.ErrMalformedVector)
	}
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("%w: vector %d has %d dimensions, expected %d",
				vector.ErrMalformedVector, i, len(v), dim)
		}
	}
	if opts.Restarts < 1 {
		opts.Restarts = 1
	}
	if opts.MaxIter < 1 {
		opts.MaxIter = 1
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	tol := opts.Tolerance * meanVariance(vectors, dim)

	var best *Result
	for r := 0; r < opts.Restarts; r++ {
		res := lloyd(vectors, initPlusPlus(vectors, k, rng), opts.MaxIter, tol)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

// initPlusPlus picks k seeds from vectors. Each step samples 2+ln(k) candidates
// proportionally to their squared distance from the closest chosen seed and
// keeps the candidate that lowers the total potential the most.
func initPlusPlus(vectors []vector.Vector, k int, rng *rand.Rand) [][]float64 {
	n := len(vectors)
	trials := 2 + int(math.Log(float64(k)))

	centroids := make([][]float64, 0, k)
	first := toFloat64(vectors[rng.Intn(n)])
	centroids = append(centroids, first)

	closest := make([]float64, n)
	var potential float64
	for i, v := range vectors {
		closest[i] = vector.SquaredEuclidean(v, first)
		potential += closest[i]
	}

	cumulative := make([]float64, n)
	candidate := make([]float64, n)
	for len(centroids) < k {
		var acc float64
		for i, d := range closest {
			acc += d
			cumulative[i] = acc
		}

		bestIdx := -1
		bestPotential := math.Inf(1)
		var bestClosest []float64
		for t := 0; t < trials; t++ {
			idx := searchCumulative(cumulative, rng.Float64()*potential)
			c := toFloat64(vectors[idx])
			var pot float64
			for i, v := range vectors {
				d := vector.SquaredEuclidean(v, c)
				if closest[i] < d {
					d = closest[i]
				}
				candidate[i] = d
				pot += d
			}
			if pot < bestPotential {
				bestIdx, bestPotential = idx, pot
				bestClosest = append(bestClosest[:0], candidate...)
			}
		}

		centroids = append(centroids, toFloat64(vectors[bestIdx]))
		copy(closest, bestClosest)
		potential = bestPotential
	}
	return centroids
}

// searchCumulative returns the first index whose cumulative weight reaches r.
func searchCumulative(cumulative []float64, r float64) int {
	lo, hi := 0, len(cumulative)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cumulative[mid] < r {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func lloyd(vectors []vector.Vector, centroids [][]float64, maxIter int, tol float64) *Result {
	k, dim := len(centroids), len(centroids[0])
	labels := make([]int, len(vectors))
	for i := range labels {
		labels[i] = -1
	}
	res := &Result{Labels: labels, Centroids: centroids}

	sums := make([][]float64, k)
	for j := range sums {
		sums[j] = make([]float64, dim)
	}
	counts := make([]int, k)

	for iter := 0; iter < maxIter; iter++ {
		res.Iterations = iter + 1

		changed := false
		for i, v := range vectors {
			if l := nearest(v, centroids); l != labels[i] {
				labels[i] = l
				changed = true
			}
		}
		if !changed {
			res.Converged = true
			break
		}

		for j := range sums {
			clear(sums[j])
			counts[j] = 0
		}
		for i, v := range vectors {
			l := labels[i]
			counts[l]++
			for d, x := range v {
				sums[l][d] += float64(x)
			}
		}

		var shift float64
		for j := range centroids {
			// An empty cluster keeps its previous centroid.
			if counts[j] == 0 {
				continue
			}
			inv := 1 / float64(counts[j])
			for d := range centroids[j] {
				m := sums[j][d] * inv
				delta := m - centroids[j][d]
				shift += delta * delta
				centroids[j][d] = m
			}
		}
		if shift <= tol {
			res.Converged = true
			break
		}
	}

	// Labels must match the final centroids.
	for i, v := range vectors {
		labels[i] = nearest(v, centroids)
		res.Inertia += vector.SquaredEuclidean(v, centroids[labels[i]])
	}
	return res
}

// nearest returns the index of the closest centroid; the lowest index wins ties.
func nearest(v vector.Vector, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for j, c := range centroids {
		if d := vector.SquaredEuclidean(v, c); d < bestDist {
			best, bestDist = j, d
		}
	}
	return best
}

func meanVariance(vectors []vector.Vector, dim int) float64 {
	n := float64(len(vectors))
	var total float64
	for d := 0; d < dim; d++ {
		var sum, sumSq float64
		for _, v := range vectors {
			x := float64(v[d])
			sum += x
			sumSq += x * x
		}
		mean := sum / n
		total += max(sumSq/n-mean*mean, 0)
	}
	return total / float64(dim)
}

func toFloat64(v vector.Vector) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}
