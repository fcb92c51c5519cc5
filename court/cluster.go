package court

import (
	"fmt"
	"math"
	"math/rand"
)

// ClusterConfig holds the similarity thresholds for grouping segments.
type ClusterConfig struct {
	RadiusThreshold   float64 `yaml:"radiusThreshold" json:"radiusThreshold"` // pixels
	AngleThresholdDeg float64 `yaml:"angleThreshold" json:"angleThreshold"`   // degrees
	Strategy          string  `yaml:"strategy,omitempty" json:"strategy,omitempty"`
	Seed              int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
	MaxIterations     int     `yaml:"maxIterations,omitempty" json:"maxIterations,omitempty"`
}

// Clustering strategy names accepted in configuration.
const (
	StrategyComponents  = "components"
	StrategyPropagation = "propagation"
)

// DefaultClusterConfig returns 50px / 5 degree thresholds with connected components.
func DefaultClusterConfig() ClusterConfig {
	return ClusterConfig{
		RadiusThreshold:   50,
		AngleThresholdDeg: 5,
		Strategy:          StrategyComponents,
		MaxIterations:     100,
	}
}

// Cluster is a group of segment indices with similar Hough parameters.
type Cluster struct {
	ID      int   `json:"id"`
	Members []int `json:"members"`
}

// ClusteringStrategy assigns a cluster label to every node of an adjacency graph.
type ClusteringStrategy interface {
	Partition(adjacency [][]bool) []int
}

// NewClusteringStrategy resolves a strategy by name. Empty means connected components.
func NewClusteringStrategy(cfg ClusterConfig) (ClusteringStrategy, error) {
	switch cfg.Strategy {
	case "", StrategyComponents:
		return ConnectedComponents{}, nil
	case StrategyPropagation:
		return LabelPropagation{Seed: cfg.Seed, MaxIterations: cfg.MaxIterations}, nil
	}
	return nil, fmt.Errorf("unknown clustering strategy %q", cfg.Strategy)
}

// Adjacency builds the similarity graph over all segment pairs: two segments are
// adjacent when their rho values differ by less than the radius threshold and their
// normals by less than the angle threshold. The graph is not transitive.
//
// Time and memory are quadratic in the number of segments.
func Adjacency(segments []LineSegment, cfg ClusterConfig) [][]bool {
	n := len(segments)
	adjacency := make([][]bool, n)
	for i := range adjacency {
		adjacency[i] = make([]bool, n)
		adjacency[i][i] = true
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			drho := math.Abs(segments[i].Rho() - segments[j].Rho())
			dtheta := angleDistance(segments[i].Theta(), segments[j].Theta()) * 180 / math.Pi
			if drho < cfg.RadiusThreshold && dtheta < cfg.AngleThresholdDeg {
				adjacency[i][j] = true
				adjacency[j][i] = true
			}
		}
	}
	return adjacency
}

// ConnectedComponents labels each connected component of the graph.
// The result does not depend on node order beyond label numbering.
type ConnectedComponents struct{}

func (ConnectedComponents) Partition(adjacency [][]bool) []int {
	uf := newUnionFind(len(adjacency))
	for i := range adjacency {
		for j := i + 1; j < len(adjacency); j++ {
			if adjacency[i][j] {
				uf.union(i, j)
			}
		}
	}

	labels := make([]int, len(adjacency))
	for i := range labels {
		labels[i] = uf.find(i)
	}
	return canonicalLabels(labels)
}

// LabelPropagation runs asynchronous label propagation: each node repeatedly adopts
// the most frequent label among its neighbors until no label changes. Ties are
// broken by the smallest label. The visiting order is shuffled from Seed, so the
// result is reproducible for a given seed and node order.
type LabelPropagation struct {
	Seed          int64
	MaxIterations int
}

func (lp LabelPropagation) Partition(adjacency [][]bool) []int {
	n := len(adjacency)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = i
	}

	maxIter := lp.MaxIterations
	if maxIter <= 0 {
		maxIter = 100
	}
	rng := rand.New(rand.NewSource(lp.Seed))
	order := rng.Perm(n)

	counts := make(map[int]int)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })

		for _, node := range order {
			clear(counts)
			for j, adjacent := range adjacency[node] {
				if adjacent {
					counts[labels[j]]++
				}
			}

			best, bestCount := labels[node], counts[labels[node]]
			for label, count := range counts {
				if count > bestCount || (count == bestCount && label < best) {
					best, bestCount = label, count
				}
			}
			if best != labels[node] {
				labels[node] = best
				changed = true
			}
		}

		if !changed {
			break
		}
	}
	return canonicalLabels(labels)
}

// canonicalLabels renumbers labels 0..k-1 in order of first occurrence.
func canonicalLabels(labels []int) []int {
	remap := make(map[int]int)
	out := make([]int, len(labels))
	for i, l := range labels {
		id, ok := remap[l]
		if !ok {
			id = len(remap)
			remap[l] = id
		}
		out[i] = id
	}
	return out
}

// unionFind implements a disjoint-set data structure with path compression.
type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return &unionFind{parent: p}
}

func (uf *unionFind) find(x int) int {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]]
		x = uf.parent[x]
	}
	return x
}

func (uf *unionFind) union(a, b int) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}

// SegmentClusterer groups raw segments into long lines and refits each group.
type SegmentClusterer struct {
	Config    ClusterConfig
	Strategy  ClusteringStrategy
	Tolerance Tolerance
}

// NewSegmentClusterer builds a clusterer with the strategy named in cfg.
func NewSegmentClusterer(cfg ClusterConfig, tol Tolerance) (*SegmentClusterer, error) {
	strategy, err := NewClusteringStrategy(cfg)
	if err != nil {
		return nil, err
	}
	return &SegmentClusterer{Config: cfg, Strategy: strategy, Tolerance: tol}, nil
}

// Clusters partitions segments into clusters ordered by their first member.
func (c *SegmentClusterer) Clusters(segments []LineSegment) []Cluster {
	if len(segments) == 0 {
		return nil
	}
	strategy := c.Strategy
	if strategy == nil {
		strategy = ConnectedComponents{}
	}

	labels := strategy.Partition(Adjacency(segments, c.Config))
	var clusters []Cluster
	for i, label := range labels {
		for label >= len(clusters) {
			clusters = append(clusters, Cluster{ID: len(clusters)})
		}
		clusters[label].Members = append(clusters[label].Members, i)
	}
	return clusters
}

// Cluster groups segments and merges every cluster into one refit line.
func (c *SegmentClusterer) Cluster(segments []LineSegment) ([]Cluster, []LineSegment, error) {
	clusters := c.Clusters(segments)
	lines := make([]LineSegment, 0, len(clusters))
	for _, cl := range clusters {
		members := make([]LineSegment, len(cl.Members))
		for i, idx := range cl.Members {
			members[i] = segments[idx]
		}
		line, err := MergeSegments(members, c.Tolerance)
		if err != nil {
			return nil, nil, fmt.Errorf("merging cluster %d (%d segments): %w", cl.ID, len(members), err)
		}
		lines = append(lines, line)
	}
	return clusters, lines, nil
}
