// Package cluster groups embedded notes into topical clusters and summarizes
// each cluster with representative members and keywords.
package cluster

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hyperjump/shiori/internal/keyword"
	"github.com/hyperjump/shiori/internal/vector"
	"go.uber.org/zap"
)

// Parameter bounds for Cluster.
const (
	MinClusters       = 2
	MaxClusters       = 20
	MinRepresentative = 1
	MaxRepresentative = 10
)

// Member is one clustering input: an entity, its vector and its source text.
type Member struct {
	Ref    string
	Vector vector.Vector
	Text   string
}

// Summary describes one non-empty cluster.
type Summary struct {
	ClusterID       int                   `json:"cluster_id"`
	Size            int                   `json:"size"`
	Keywords        []string              `json:"keywords"`
	Representatives []vector.ScoredEntity `json:"representatives"`
}

// Engine runs k-means over members and builds cluster summaries.
type Engine struct {
	extractor *keyword.Extractor
	opts      Options
	keywords  int
	logger    *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithOptions overrides the k-means options.
func WithOptions(o Options) EngineOption {
	return func(e *Engine) { e.opts = o }
}

// WithKeywordCount sets how many keywords each summary carries.
func WithKeywordCount(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.keywords = n
		}
	}
}

// NewEngine creates a cluster engine that labels clusters with extractor.
func NewEngine(extractor *keyword.Extractor, opts ...EngineOption) *Engine {
	e := &Engine{
		extractor: extractor,
		opts:      DefaultOptions(),
		keywords:  keyword.DefaultTopN,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cluster partitions members into k clusters and returns one summary per
// non-empty cluster, largest first. Each summary lists up to perCluster
// members ranked by their dot product with the cluster centroid.
func (e *Engine) Cluster(members []Member, k, perCluster int) ([]Summary, error) {
	if k < MinClusters || k > MaxClusters {
		return nil, fmt.Errorf("%w: k must be between %d and %d, got %d",
			vector.ErrInvalidParameter, MinClusters, MaxClusters, k)
	}
	if perCluster < MinRepresentative || perCluster > MaxRepresentative {
		return nil, fmt.Errorf("%w: per_cluster must be between %d and %d, got %d",
			vector.ErrInvalidParameter, MinRepresentative, MaxRepresentative, perCluster)
	}
	if len(members) < k {
		return nil, &InsufficientDataError{Required: k, Got: len(members)}
	}

	vectors := make([]vector.Vector, len(members))
	for i, m := range members {
		vectors[i] = m.Vector
	}
	res, err := KMeans(vectors, k, e.opts)
	if err != nil {
		return nil, err
	}
	e.logger.Debug("kmeans finished",
		zap.Int("members", len(members)),
		zap.Int("k", k),
		zap.Float64("inertia", res.Inertia),
		zap.Int("iterations", res.Iterations),
		zap.Bool("converged", res.Converged))

	groups := make([][]int, k)
	for i, l := range res.Labels {
		groups[l] = append(groups[l], i)
	}

	summaries := make([]Summary, 0, k)
	for label, idxs := range groups {
		if len(idxs) == 0 {
			e.logger.Debug("skipping empty cluster", zap.Int("cluster_id", label))
			continue
		}
		s, err := e.summarize(label, idxs, members, res.Centroids[label], perCluster)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}

	sort.SliceStable(summaries, func(i, j int) bool { return summaries[i].Size > summaries[j].Size })
	return summaries, nil
}

func (e *Engine) summarize(label int, idxs []int, members []Member, centroid []float64, perCluster int) (Summary, error) {
	reps := make([]vector.ScoredEntity, len(idxs))
	texts := make([]string, len(idxs))
	for i, idx := range idxs {
		reps[i] = vector.ScoredEntity{Ref: members[idx].Ref, Score: vector.DotCentroid(members[idx].Vector, centroid)}
		texts[i] = members[idx].Text
	}
	sort.SliceStable(reps, func(i, j int) bool { return reps[i].Score > reps[j].Score })
	if len(reps) > perCluster {
		reps = reps[:perCluster]
	}
	for i := range reps {
		reps[i].Score = vector.Round4(reps[i].Score)
	}

	keywords, err := e.extractor.Extract(texts, e.keywords)
	if errors.Is(err, keyword.ErrEmptyCollection) {
		// Members exist but every text is stop words.
		keywords = []string{}
	} else if err != nil {
		return Summary{}, fmt.Errorf("cluster %d keywords: %w", label, err)
	}

	return Summary{
		ClusterID:       label,
		Size:            len(idxs),
		Keywords:        keywords,
		Representatives: reps,
	}, nil
}
